// Package actor binds the mailbox and hfsm packages into a runtime for
// components whose state is mutated only by their own single worker: an
// ActorBase gives every component an identity, a mailbox, and an error
// policy; StatefulActor (stateful.go) adds an HFSM and a command table on
// top.
package actor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/controlkit/actorfsm/mailbox"
)

// MethodID names one entry point on an actor's facade. It is the
// statically-typed stand-in for "method identity" called for in systems
// where the facade is generated rather than reflected: a plain, comparable
// string works as the key into a command table.
type MethodID string

// ActorBase owns one mailbox, an identity, a logger, and the error-observer
// list every actor reports unhandled failures to. Embed it (or
// StatefulActor, which embeds it) in a concrete actor type.
type ActorBase struct {
	ID     uuid.UUID
	Logger *slog.Logger

	mailbox *mailbox.Mailbox

	errObserversMu sync.Mutex
	errObservers   []func(error)
}

// BaseOption configures an ActorBase at construction.
type BaseOption func(*ActorBase)

// WithIdentity overrides the randomly-generated actor identity.
func WithIdentity(id uuid.UUID) BaseOption {
	return func(b *ActorBase) { b.ID = id }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) BaseOption {
	return func(b *ActorBase) { b.Logger = logger }
}

// WithMailboxOptions forwards options to the underlying mailbox.New call.
func WithMailboxOptions(opts ...mailbox.Option) BaseOption {
	return func(b *ActorBase) { b.mailbox = mailbox.New(opts...) }
}

// NewActorBase constructs an ActorBase with a random identity and a mailbox
// that has not yet spawned a worker.
func NewActorBase(opts ...BaseOption) *ActorBase {
	b := &ActorBase{
		ID:     uuid.New(),
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.mailbox == nil {
		b.mailbox = mailbox.New(mailbox.WithLogger(b.Logger))
	}
	return b
}

// Mailbox exposes the underlying serialized queue, mostly for the
// StatefulActor layer and for tests.
func (b *ActorBase) Mailbox() *mailbox.Mailbox { return b.mailbox }

// AddErrorObserver registers fn to be called whenever handleException
// processes a failure from this actor's worker. Safe to call concurrently
// with dispatch.
func (b *ActorBase) AddErrorObserver(fn func(error)) {
	b.errObserversMu.Lock()
	defer b.errObserversMu.Unlock()
	b.errObservers = append(b.errObservers, fn)
}

func (b *ActorBase) notifyErrorObservers(err error) {
	b.errObserversMu.Lock()
	snapshot := make([]func(error), len(b.errObservers))
	copy(snapshot, b.errObservers)
	b.errObserversMu.Unlock()
	for _, fn := range snapshot {
		fn(err)
	}
}

// Act enqueues work on this actor's worker; used by internal code (timers,
// cross-actor watches) to re-dispatch onto the actor's own thread. An error
// returned by work is logged by the mailbox; it is not passed to the
// actor's error policy or to its error observers.
func (b *ActorBase) Act(ctx context.Context, work func(context.Context) error) {
	b.mailbox.Enqueue(ctx, work)
}

// Atomically is Act with the closure already bound over whatever facade
// value the caller wants mutated; Go has no implicit "self" to pass so the
// two are the same operation here.
func (b *ActorBase) Atomically(ctx context.Context, work func(context.Context) error) {
	b.Act(ctx, work)
}

// handleException is the error-propagation policy shared by ActorBase and
// StatefulActor: notify observers, then dispatch to whichever optional
// handler interface behavior implements, swallowing anything a handler
// itself panics with so a secondary failure never escapes the worker.
func (b *ActorBase) handleException(behavior any, dctx *DispatchContext, err error) {
	if err == nil {
		return
	}
	b.notifyErrorObservers(err)

	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("actor: error handler panicked", "actor", b.ID, "panic", r)
		}
	}()

	var timeoutErr *TimeoutError
	var faultErr *FaultError
	switch {
	case asTimeout(err, &timeoutErr):
		if h, ok := behavior.(TimeoutHandler); ok {
			h.HandleTimeout(dctx, timeoutErr)
			return
		}
		if h, ok := behavior.(FaultHandler); ok {
			h.HandleFault(dctx, &timeoutErr.FaultError)
			return
		}
	case asFault(err, &faultErr):
		if h, ok := behavior.(FaultHandler); ok {
			h.HandleFault(dctx, faultErr)
			return
		}
	default:
		if h, ok := behavior.(ErrorHandler); ok {
			ge, ok := err.(*GenericError)
			if !ok {
				ge = &GenericError{Err: err}
			}
			h.HandleError(dctx, ge)
			return
		}
	}
}

func asTimeout(err error, out **TimeoutError) bool {
	if t, ok := err.(*TimeoutError); ok {
		*out = t
		return true
	}
	return false
}

func asFault(err error, out **FaultError) bool {
	if f, ok := err.(*FaultError); ok {
		*out = f
		return true
	}
	return false
}

// DispatchContext is passed to the FaultHandler/TimeoutHandler/ErrorHandler
// hooks so they can fire triggers or inspect the method that failed without
// reaching back into actor internals.
type DispatchContext struct {
	Actor  *ActorBase
	Method MethodID
}
