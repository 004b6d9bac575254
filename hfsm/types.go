// Package hfsm implements a hierarchical finite state machine: a forest of
// states where the machine occupies exactly one node at a time, guarded
// transitions that may be trigger-driven or condition-driven, and
// least-common-ancestor-aware enter/exit ordering across hierarchy
// boundaries.
//
// A Machine is synchronous and holds no goroutine of its own. Callers are
// responsible for ensuring a Machine is only ever touched from one logical
// thread at a time — the actor package does this by running every Fire and
// Update call on an actor's mailbox worker.
package hfsm

import "log/slog"

// StateID identifies one node of the state hierarchy.
type StateID string

// TriggerID names an event that may cause a transition.
type TriggerID string

// Logger is the default logger used when a Machine is built without
// WithLogger.
var Logger = slog.Default()
