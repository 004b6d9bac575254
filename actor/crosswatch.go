package actor

import (
	"context"

	"github.com/controlkit/actorfsm/hfsm"
)

// WatchOtherWhileInState subscribes to other's state_changed while this
// actor is in scopeState. Each notification bounces through Act to stay on
// this actor's worker; if the actor is still in scopeState and condition
// holds for the new state, action runs. condition is also evaluated
// immediately against other's current state. The subscription is removed
// when this actor leaves scopeState.
func (sa *StatefulActor) WatchOtherWhileInState(ctx context.Context, other *StatefulActor, condition func(otherState hfsm.StateID, trigger hfsm.TriggerID) bool, action func(), scopeState hfsm.StateID) {
	if !sa.fsm.IsInState(scopeState) {
		return
	}

	if condition(other.State(), "") {
		action()
	}

	token := other.AddStateChangedObserver(func(old, new hfsm.StateID, trigger hfsm.TriggerID) {
		sa.Act(ctx, func(context.Context) error {
			if sa.fsm.IsInState(scopeState) && condition(new, trigger) {
				action()
			}
			return nil
		})
	})

	sa.WatchState(scopeState, func() {
		other.RemoveStateChangedObserver(token)
	})
}

// WatchOtherAndUpdate is WatchOtherWhileInState with an always-true
// condition: update runs on every state_changed of other while this actor
// remains in scopeState, plus once immediately at registration.
func (sa *StatefulActor) WatchOtherAndUpdate(ctx context.Context, other *StatefulActor, scopeState hfsm.StateID, update func()) {
	sa.WatchOtherWhileInState(ctx, other, func(hfsm.StateID, hfsm.TriggerID) bool { return true }, update, scopeState)
}

// WatchOtherAndUpdateWithErrorState is WatchOtherAndUpdate, but if other is
// in errorState at the time of notification, a WatchedStateError is raised
// through this actor's error policy instead of running update.
func (sa *StatefulActor) WatchOtherAndUpdateWithErrorState(ctx context.Context, other *StatefulActor, errorState, scopeState hfsm.StateID, update func()) {
	action := func() {
		if other.InState(errorState) {
			err := &WatchedStateError{Other: other.ID, OtherState: other.State()}
			sa.handleException(sa.Behavior, &DispatchContext{Actor: sa.ActorBase}, err)
			return
		}
		update()
	}
	sa.WatchOtherWhileInState(ctx, other, func(hfsm.StateID, hfsm.TriggerID) bool { return true }, action, scopeState)
}
