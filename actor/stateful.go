package actor

import (
	"context"
	"sync"

	"github.com/controlkit/actorfsm/hfsm"
)

// Behavior is the subclass contract a concrete stateful actor implements.
type Behavior interface {
	// InitializeStates builds the actor's state hierarchy and transitions.
	InitializeStates(def *hfsm.Definition)
	// InitializeCommands returns the per-method validity/trigger table.
	InitializeCommands() map[MethodID]Command
}

// StateChangedHandler is the optional hook a Behavior implements to react to
// every completed transition, in addition to any explicit observer added
// via AddStateChangedObserver.
type StateChangedHandler interface {
	HandleStateChanged(old, new hfsm.StateID, trigger hfsm.TriggerID)
}

// Command is a per-method policy: which states the method may be called
// from (empty = unrestricted, Invariant 7) and, optionally, a trigger the
// call translates into instead of running the method body.
type Command struct {
	ValidStates []hfsm.StateID
	Trigger     hfsm.TriggerID
}

// StatefulActor composes an ActorBase with an hfsm.Machine and a command
// table. Construct one with NewStatefulActor; all HFSM and command-table
// access happens on the actor's own worker.
type StatefulActor struct {
	*ActorBase
	Behavior Behavior

	fsm      *hfsm.Machine
	commands map[MethodID]Command

	watchersMu sync.Mutex
	watchers   map[hfsm.StateID][]func()
}

// NewStatefulActor builds the HFSM via Behavior.InitializeStates, wires its
// error and unhandled-trigger sinks, subscribes to state_changed to flush
// watchers, and builds the command table via Behavior.InitializeCommands —
// the five construction steps, in order.
func NewStatefulActor(behavior Behavior, opts ...BaseOption) (*StatefulActor, error) {
	base := NewActorBase(opts...)
	sa := &StatefulActor{
		ActorBase: base,
		Behavior:  behavior,
		watchers:  make(map[hfsm.StateID][]func()),
	}

	def := hfsm.NewDefinition()
	behavior.InitializeStates(def)

	fsm, err := def.Build(
		hfsm.WithErrorSink(sa.stateException),
		hfsm.WithUnhandledSink(sa.unhandledTrigger),
		hfsm.WithLogger(base.Logger),
	)
	if err != nil {
		return nil, err
	}
	sa.fsm = fsm
	sa.fsm.AddStateChangedObserver(sa.onStateChanged)
	sa.commands = behavior.InitializeCommands()

	return sa, nil
}

// State returns the actor's current leaf state.
func (sa *StatefulActor) State() hfsm.StateID { return sa.fsm.CurrentState() }

// Transitioning reports whether the actor's HFSM is mid-transition.
func (sa *StatefulActor) Transitioning() bool { return sa.fsm.Transitioning() }

// InState reports whether id is the current state or a transitive ancestor
// of it.
func (sa *StatefulActor) InState(id hfsm.StateID) bool { return sa.fsm.IsInState(id) }

// AddStateChangedObserver registers fn to run after every completed
// transition. Returns a token for RemoveStateChangedObserver.
func (sa *StatefulActor) AddStateChangedObserver(fn func(old, new hfsm.StateID, trigger hfsm.TriggerID)) int {
	return sa.fsm.AddStateChangedObserver(fn)
}

// RemoveStateChangedObserver removes a previously registered observer.
func (sa *StatefulActor) RemoveStateChangedObserver(token int) {
	sa.fsm.RemoveStateChangedObserver(token)
}

// Fire fires a trigger on the actor's HFSM. If the machine is currently
// transitioning the fire is deferred through Act so triggers never nest;
// otherwise it runs immediately. Must be called from the actor's worker
// (e.g. from within an Ask/Tell body or another Act closure).
func (sa *StatefulActor) Fire(ctx context.Context, trigger hfsm.TriggerID) error {
	if sa.fsm.Transitioning() {
		sa.Act(ctx, func(context.Context) error { return sa.fsm.Fire(trigger) })
		return nil
	}
	return sa.fsm.Fire(trigger)
}

// enqueueFire always defers the fire through Act, even when not currently
// transitioning — per the command-dispatch re-entrancy rule, a trigger
// translated from a call must never execute inline inside that call's
// dispatch.
func (sa *StatefulActor) enqueueFire(ctx context.Context, trigger hfsm.TriggerID) {
	sa.Act(ctx, func(context.Context) error { return sa.fsm.Fire(trigger) })
}

func (sa *StatefulActor) checkCommand(method MethodID) error {
	cmd, ok := sa.commands[method]
	if !ok || len(cmd.ValidStates) == 0 {
		return nil
	}
	cur := sa.fsm.CurrentState()
	for _, s := range cmd.ValidStates {
		if sa.fsm.IsInState(s) {
			return nil
		}
	}
	return &InvalidCommandError{Method: method, State: cur}
}

func (sa *StatefulActor) commandTrigger(method MethodID) (hfsm.TriggerID, bool) {
	cmd, ok := sa.commands[method]
	if !ok || cmd.Trigger == "" {
		return "", false
	}
	return cmd.Trigger, true
}

// AskCommand runs fn as a value-returning call subject to the command
// table: an invalid-command error short-circuits fn and is reported through
// the actor's error policy; a configured trigger fires (deferred) instead
// of running fn; otherwise fn runs as the default handler body.
func AskCommand[T any](ctx context.Context, sa *StatefulActor, method MethodID, fn func(context.Context) (T, error)) (T, error) {
	return Ask(ctx, sa.ActorBase, sa.Behavior, method, func(wctx context.Context) (T, error) {
		var zero T
		if err := sa.checkCommand(method); err != nil {
			return zero, err
		}
		if trig, ok := sa.commandTrigger(method); ok {
			sa.enqueueFire(wctx, trig)
			return zero, nil
		}
		return fn(wctx)
	})
}

// TellCommand is the void-returning counterpart to AskCommand.
func TellCommand(ctx context.Context, sa *StatefulActor, method MethodID, fn func(context.Context) error) {
	Tell(ctx, sa.ActorBase, sa.Behavior, method, func(wctx context.Context) error {
		if err := sa.checkCommand(method); err != nil {
			return err
		}
		if trig, ok := sa.commandTrigger(method); ok {
			sa.enqueueFire(wctx, trig)
			return nil
		}
		return fn(wctx)
	})
}

// WatchState registers a one-shot callback that fires the first time
// in_state(state) becomes false. If it is already false, cb runs
// immediately on the calling goroutine (the worker, by contract).
func (sa *StatefulActor) WatchState(state hfsm.StateID, cb func()) {
	if !sa.fsm.IsInState(state) {
		cb()
		return
	}
	sa.watchersMu.Lock()
	sa.watchers[state] = append(sa.watchers[state], cb)
	sa.watchersMu.Unlock()
}

func (sa *StatefulActor) onStateChanged(old, new hfsm.StateID, trigger hfsm.TriggerID) {
	sa.flushWatchers()
	if h, ok := sa.Behavior.(StateChangedHandler); ok {
		h.HandleStateChanged(old, new, trigger)
	}
}

func (sa *StatefulActor) flushWatchers() {
	sa.watchersMu.Lock()
	var toRun [][]func()
	for state, cbs := range sa.watchers {
		if !sa.fsm.IsInState(state) {
			toRun = append(toRun, cbs)
			delete(sa.watchers, state)
		}
	}
	sa.watchersMu.Unlock()

	for _, cbs := range toRun {
		for _, cb := range cbs {
			cb()
		}
	}
}

func (sa *StatefulActor) stateException(err error) {
	if h, ok := sa.Behavior.(StateExceptionHandler); ok {
		err = h.StateException(err)
	}
	if err == nil {
		return
	}
	sa.handleException(sa.Behavior, &DispatchContext{Actor: sa.ActorBase, Method: ""}, classify(err))
}

func (sa *StatefulActor) unhandledTrigger(trigger hfsm.TriggerID) {
	sa.Logger.Debug("actor: unhandled trigger", "actor", sa.ID, "trigger", trigger, "state", sa.fsm.CurrentState())
}

// classify wraps err as a GenericError unless it already belongs to the
// taxonomy in errors.go.
func classify(err error) error {
	switch err.(type) {
	case *GenericError, *FaultError, *TimeoutError, *WatchedStateError, *InvalidCommandError, *CanceledError:
		return err
	default:
		return &GenericError{Err: err}
	}
}
