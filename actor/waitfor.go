package actor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/controlkit/actorfsm/hfsm"
)

// WaitForState blocks the caller until sa reaches state (in_state becomes
// true) or timeout elapses. Intended for external callers bringing up an
// actor, not for use from inside an actor's own worker.
func WaitForState(ctx context.Context, sa *StatefulActor, state hfsm.StateID, timeout time.Duration) error {
	if sa.InState(state) {
		return nil
	}

	reached := make(chan struct{})
	var once sync.Once
	token := sa.AddStateChangedObserver(func(old, new hfsm.StateID, trigger hfsm.TriggerID) {
		if sa.InState(state) {
			once.Do(func() { close(reached) })
		}
	})
	defer sa.RemoveStateChangedObserver(token)

	// Re-check after subscribing in case the transition into state happened
	// between the first check and the observer registration.
	if sa.InState(state) {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-reached:
		return nil
	case <-timer.C:
		return xerrors.Errorf("actor: timed out waiting for state %q", state)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitSpec names one actor/state/timeout triple for WaitForAll/WaitForAny.
type AwaitSpec struct {
	Actor   *StatefulActor
	State   hfsm.StateID
	Timeout time.Duration
}

// WaitForAll blocks until every spec's actor reaches its target state,
// generalizing WaitForState to a fleet (e.g. waiting for every subsystem
// actor to reach Ready before a controller proceeds). Returns the first
// error encountered; the rest of the waits are canceled via the shared
// context.
func WaitForAll(ctx context.Context, specs ...AwaitSpec) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range specs {
		s := s
		g.Go(func() error { return WaitForState(gctx, s.Actor, s.State, s.Timeout) })
	}
	return g.Wait()
}

// WaitForAny blocks until the first spec's actor reaches its target state,
// then cancels the remaining waits. Returns an error only if every spec
// fails (times out or its context is canceled).
func WaitForAny(ctx context.Context, specs ...AwaitSpec) error {
	if len(specs) == 0 {
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan error, len(specs))
	var wg sync.WaitGroup
	for _, s := range specs {
		s := s
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- WaitForState(cctx, s.Actor, s.State, s.Timeout)
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for err := range results {
		if err == nil {
			cancel()
			return nil
		}
	}
	return xerrors.New("actor: WaitForAny: every wait failed")
}
