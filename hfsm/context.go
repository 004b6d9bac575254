package hfsm

import "log/slog"

// Context is passed to guards, setup callbacks, and enter/exit hooks.
// Trigger is empty for plain enter/exit hooks invoked outside of a specific
// trigger (e.g. the initial state's entry).
type Context struct {
	FSM       *Machine
	Trigger   TriggerID
	FromState StateID
	ToState   StateID
	Data      any
	Logger    *slog.Logger
}

// CurrentState returns the current active state.
func (c *Context) CurrentState() StateID {
	return c.FSM.CurrentState()
}

// IsInState reports whether the given state is current or an ancestor of
// current.
func (c *Context) IsInState(id StateID) bool {
	return c.FSM.IsInState(id)
}
