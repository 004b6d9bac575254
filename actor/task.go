package actor

import (
	"context"
	"sync"

	"github.com/controlkit/actorfsm/hfsm"
)

// Task is a minimal single-result future: the smallest synchronous-
// completion primitive that lets ContinueWhileInState treat "canceled" as a
// distinct outcome from "completed with a result or error". Production code
// would more likely adapt an existing asynchronous task rather than
// construct one of these directly.
type Task[T any] struct {
	mu       sync.Mutex
	done     chan struct{}
	closed   bool
	result   T
	err      error
	canceled bool
}

// NewTask creates an incomplete Task.
func NewTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

// Complete finishes the task with a result and/or error. A second call is a
// no-op.
func (t *Task[T]) Complete(result T, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.result = result
	t.err = err
	t.closed = true
	close(t.done)
}

// Cancel marks the task canceled. A second call (including after Complete)
// is a no-op.
func (t *Task[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.canceled = true
	t.closed = true
	close(t.done)
}

// Done returns a channel closed once the task completes or is canceled.
func (t *Task[T]) Done() <-chan struct{} { return t.done }

func (t *Task[T]) snapshot() (result T, err error, canceled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err, t.canceled
}

// ContinueWhileInState attaches a completion callback to task: when task
// finishes, if sa is still in scopeState, then(result) runs on sa's worker.
// A canceled task is reported through the actor's error policy as a
// CanceledError instead of running then.
func ContinueWhileInState[T any](ctx context.Context, sa *StatefulActor, task *Task[T], then func(result T), scopeState hfsm.StateID) {
	go func() {
		<-task.Done()
		sa.Act(ctx, func(context.Context) error {
			if !sa.fsm.IsInState(scopeState) {
				return nil
			}
			result, err, canceled := task.snapshot()
			switch {
			case canceled:
				sa.handleException(sa.Behavior, &DispatchContext{Actor: sa.ActorBase}, &CanceledError{})
			case err != nil:
				sa.handleException(sa.Behavior, &DispatchContext{Actor: sa.ActorBase}, classify(err))
			default:
				then(result)
			}
			return nil
		})
	}()
}
