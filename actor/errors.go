package actor

import (
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/controlkit/actorfsm/hfsm"
)

// GenericError wraps any unexpected failure from an Ask/Tell body, an hfsm
// callback, or a task passed to ContinueWhileInState that does not match a
// more specific kind. It is routed to HandleError.
type GenericError struct {
	Err error
}

func (e *GenericError) Error() string { return xerrors.Errorf("actor: %w", e.Err).Error() }
func (e *GenericError) Unwrap() error { return e.Err }

// FaultError represents a domain-level failure the actor is expected to
// recover from via a state transition. Subclasses (handlers) typically fire
// an Errored/Faulted trigger in response. Routed to HandleFault.
type FaultError struct {
	Err error
}

func (e *FaultError) Error() string { return xerrors.Errorf("actor: fault: %w", e.Err).Error() }
func (e *FaultError) Unwrap() error { return e.Err }

// TimeoutError is a fault subclass signaling an elapsed deadline. Routed to
// HandleTimeout (whose default behavior, if unimplemented, treats it as a
// plain fault).
type TimeoutError struct {
	FaultError
}

func NewTimeoutError(err error) *TimeoutError {
	return &TimeoutError{FaultError{Err: err}}
}

// WatchedStateError reports that another observed actor entered a state
// declared as an error condition for this actor's watch.
type WatchedStateError struct {
	Other      uuid.UUID
	OtherState hfsm.StateID
}

func (e *WatchedStateError) Error() string {
	return xerrors.Errorf("actor: watched actor %s entered error state %q", e.Other, e.OtherState).Error()
}

// InvalidCommandError reports that a call arrived which the command table
// rejects in the actor's current state.
type InvalidCommandError struct {
	Method MethodID
	State  hfsm.StateID
}

func (e *InvalidCommandError) Error() string {
	return xerrors.Errorf("actor: command %q invalid in state %q", e.Method, e.State).Error()
}

// CanceledError reports that a task passed to ContinueWhileInState was
// canceled before completion.
type CanceledError struct {
	Method MethodID
}

func (e *CanceledError) Error() string {
	return xerrors.Errorf("actor: task for %q was canceled", e.Method).Error()
}

// FaultHandler is the optional interface a Behavior may implement to react
// to a FaultError. If absent, faults are silently absorbed (spec default:
// no-op) after error observers have already been notified.
type FaultHandler interface {
	HandleFault(ctx *DispatchContext, err *FaultError)
}

// TimeoutHandler is the optional interface a Behavior may implement to
// react to a TimeoutError. If absent, a TimeoutError is routed to
// FaultHandler instead (spec default: treat as fault).
type TimeoutHandler interface {
	HandleTimeout(ctx *DispatchContext, err *TimeoutError)
}

// ErrorHandler is the optional interface a Behavior may implement to react
// to a GenericError.
type ErrorHandler interface {
	HandleError(ctx *DispatchContext, err *GenericError)
}

// StateExceptionHandler lets a Behavior override how an hfsm-sourced error
// (guard/hook/setup failure, or "fire while transitioning") is translated
// into one of the taxonomy kinds above before handleException dispatches
// it. The default wraps it as a GenericError.
type StateExceptionHandler interface {
	StateException(err error) error
}
