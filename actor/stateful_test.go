package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/controlkit/actorfsm/hfsm"
)

const (
	stUnstarted hfsm.StateID = "Unstarted"
	stStarted   hfsm.StateID = "Started"
	stRunning   hfsm.StateID = "Running"

	trBegin hfsm.TriggerID = "Begin"
	trGo    hfsm.TriggerID = "GoCmd"

	methodGo MethodID = "Go"
)

// commandBehavior backs the S4 command-validity scenario: Go is only valid
// in Started and, when valid, fires GoCmd rather than running a body.
type commandBehavior struct {
	mu          sync.Mutex
	errs        []error
	stateChangs int
}

func (b *commandBehavior) InitializeStates(def *hfsm.Definition) {
	def.State(stUnstarted).
		State(stStarted).
		State(stRunning).
		Transition(stUnstarted, trBegin, stStarted).
		Transition(stStarted, trGo, stRunning).
		Initial(stUnstarted)
}

func (b *commandBehavior) InitializeCommands() map[MethodID]Command {
	return map[MethodID]Command{
		methodGo: {ValidStates: []hfsm.StateID{stStarted}, Trigger: trGo},
	}
}

func (b *commandBehavior) HandleError(dctx *DispatchContext, err *GenericError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, err)
}

func (b *commandBehavior) errCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.errs)
}

func (b *commandBehavior) lastErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs[len(b.errs)-1]
}

func newCommandActor(t *testing.T) (*StatefulActor, *commandBehavior) {
	t.Helper()
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	return sa, behavior
}

// TestCommandValidity mirrors spec §8 scenario S4.
func TestCommandValidity(t *testing.T) {
	sa, behavior := newCommandActor(t)
	ctx := context.Background()

	_, err := AskCommand[struct{}](ctx, sa, methodGo, func(context.Context) (struct{}, error) {
		t.Fatal("command body must not run while invalid")
		return struct{}{}, nil
	})
	require.Error(t, err)
	var invalid *InvalidCommandError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, stUnstarted, sa.State())
	require.Equal(t, 1, behavior.errCount())

	require.NoError(t, sa.Mailbox().Execute(ctx, func(ctx context.Context) error {
		return sa.Fire(ctx, trBegin)
	}))
	require.Equal(t, stStarted, sa.State())

	_, err = AskCommand[struct{}](ctx, sa, methodGo, func(context.Context) (struct{}, error) {
		t.Fatal("command body must not run when a trigger is configured")
		return struct{}{}, nil
	})
	require.NoError(t, err)

	require.NoError(t, sa.Mailbox().Wait(ctx))
	require.Equal(t, stRunning, sa.State())
	require.Equal(t, 1, behavior.errCount(), "the Started call must not add another error")
}

// TestAskCommandRunsBodyWhenNoTrigger exercises the default-handler branch
// of the per-call dispatch rule.
func TestAskCommandRunsBodyWhenNoTrigger(t *testing.T) {
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	ctx := context.Background()

	result, err := AskCommand[int](ctx, sa, MethodID("NoCommandEntry"), func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, result)
}

// TestTellReturnsBeforeWorkExecutes mirrors spec §8 universal property 8.
func TestTellReturnsBeforeWorkExecutes(t *testing.T) {
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	ctx := context.Background()

	ran := make(chan struct{})
	Tell(ctx, sa.ActorBase, behavior, "Noop", func(context.Context) error {
		close(ran)
		return nil
	})

	select {
	case <-ran:
		t.Fatal("Tell must not run its work before returning")
	default:
	}

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("enqueued work never ran")
	}
}

// TestAskRunsInlineOnWorker exercises the "already on the worker" branch of
// the dispatch rule by calling Ask recursively from inside another Ask.
func TestAskRunsInlineOnWorker(t *testing.T) {
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	ctx := context.Background()

	result, err := Ask(ctx, sa.ActorBase, behavior, "Outer", func(wctx context.Context) (int, error) {
		require.True(t, sa.Mailbox().IsWorkerContext(wctx))
		inner, err := Ask(wctx, sa.ActorBase, behavior, "Inner", func(context.Context) (int, error) {
			return 7, nil
		})
		return inner + 1, err
	})
	require.NoError(t, err)
	require.Equal(t, 8, result)
}

// TestGenericErrorRoutedToHandler checks that a plain error from an Ask body
// is wrapped and delivered to the ErrorHandler hook.
func TestGenericErrorRoutedToHandler(t *testing.T) {
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err = Ask(ctx, sa.ActorBase, behavior, "Fails", func(context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, behavior.errCount())
	require.ErrorIs(t, behavior.lastErr(), boom)
}

// TestWatchStateFiresOnLeave exercises watch_state's one-shot contract.
func TestWatchStateFiresOnLeave(t *testing.T) {
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	ctx := context.Background()

	fired := make(chan struct{}, 2)
	require.NoError(t, sa.Mailbox().Execute(ctx, func(context.Context) error {
		sa.WatchState(stUnstarted, func() { fired <- struct{}{} })
		sa.WatchState(stStarted, func() { fired <- struct{}{} }) // already not in Started: fires immediately
		return nil
	}))

	select {
	case <-fired:
	default:
		t.Fatal("watch on a state the actor is not in must fire immediately")
	}

	require.NoError(t, sa.Mailbox().Execute(ctx, func(ctx context.Context) error {
		return sa.Fire(ctx, trBegin)
	}))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("watch on Unstarted must fire once the actor leaves it")
	}
}
