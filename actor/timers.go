package actor

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/xerrors"

	"github.com/controlkit/actorfsm/hfsm"
)

// RepeatWhileInState starts a periodic timer that invokes cb on the actor's
// worker every interval, passing the elapsed time since the previous tick.
// A watcher on scopeState cancels the timer and discards any tick already
// in flight the moment the actor leaves scopeState — the "left scope" flag
// is the source of truth, not the timer's own Stop, since a tick may
// already be queued when the state changes.
func (sa *StatefulActor) RepeatWhileInState(ctx context.Context, interval time.Duration, cb func(elapsed time.Duration), scopeState hfsm.StateID) {
	var left int32
	var t *time.Timer
	lastTick := time.Now()

	var tick func()
	tick = func() {
		if atomic.LoadInt32(&left) != 0 {
			return
		}
		now := time.Now()
		elapsed := now.Sub(lastTick)
		lastTick = now

		sa.Act(ctx, func(context.Context) error {
			if atomic.LoadInt32(&left) != 0 {
				return nil
			}
			cb(elapsed)
			return nil
		})

		if atomic.LoadInt32(&left) == 0 {
			t.Reset(interval)
		}
	}
	t = time.AfterFunc(interval, tick)

	sa.WatchState(scopeState, func() {
		atomic.StoreInt32(&left, 1)
		t.Stop()
	})
}

// TimeoutWhileInState starts a one-shot timer. If the actor is still in
// scopeState when the expiry reaches the actor's worker, cb runs there (or,
// if cb is nil, a TimeoutError is raised through the actor's error policy).
// At most one delivery is guaranteed: the worker-side delivery claims the
// "left scope" flag with a compare-and-swap, and leaving scopeState sets the
// same flag, so an expiry already queued when the state changes is dropped.
func (sa *StatefulActor) TimeoutWhileInState(ctx context.Context, interval time.Duration, cb func(), scopeState hfsm.StateID) {
	var left int32
	var t *time.Timer
	t = time.AfterFunc(interval, func() {
		if atomic.LoadInt32(&left) != 0 {
			return
		}
		sa.Act(ctx, func(context.Context) error {
			if !atomic.CompareAndSwapInt32(&left, 0, 1) {
				return nil
			}
			if cb != nil {
				cb()
				return nil
			}
			err := NewTimeoutError(xerrors.Errorf("actor: timed out while in state %q", scopeState))
			sa.handleException(sa.Behavior, &DispatchContext{Actor: sa.ActorBase}, err)
			return nil
		})
	})

	sa.WatchState(scopeState, func() {
		atomic.StoreInt32(&left, 1)
		t.Stop()
	})
}
