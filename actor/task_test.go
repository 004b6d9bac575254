package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContinueWhileInStateRunsThenOnCompletion(t *testing.T) {
	sa, err := NewStatefulActor(timerBehavior{})
	require.NoError(t, err)
	ctx := context.Background()

	task := NewTask[int]()
	result := make(chan int, 1)
	ContinueWhileInState(ctx, sa, task, func(r int) { result <- r }, tsStarted)

	task.Complete(42, nil)

	select {
	case r := <-result:
		require.Equal(t, 42, r)
	case <-time.After(time.Second):
		t.Fatal("then was never invoked")
	}
}

func TestContinueWhileInStateSkipsAfterScopeExit(t *testing.T) {
	sa, err := NewStatefulActor(timerBehavior{})
	require.NoError(t, err)
	ctx := context.Background()

	task := NewTask[int]()
	ran := make(chan struct{}, 1)
	ContinueWhileInState(ctx, sa, task, func(int) { ran <- struct{}{} }, tsStarted)

	require.NoError(t, sa.Mailbox().Execute(ctx, func(ctx context.Context) error {
		return sa.Fire(ctx, trStop)
	}))
	task.Complete(1, nil)

	select {
	case <-ran:
		t.Fatal("then must not run once the actor left the scope state")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestContinueWhileInStateReportsCancellation(t *testing.T) {
	behavior := &commandBehavior{}
	sa, err := NewStatefulActor(behavior)
	require.NoError(t, err)
	ctx := context.Background()

	task := NewTask[int]()
	ContinueWhileInState(ctx, sa, task, func(int) {
		t.Fatal("then must not run for a canceled task")
	}, stUnstarted)

	task.Cancel()

	require.Eventually(t, func() bool { return behavior.errCount() > 0 }, time.Second, 5*time.Millisecond)
	var canceled *CanceledError
	require.ErrorAs(t, behavior.lastErr(), &canceled)
}
