package actor

import (
	"context"
	"runtime/debug"

	"golang.org/x/xerrors"
)

// Ask dispatches a value-returning call. If the caller is already on the
// actor's worker the closure runs inline; otherwise it blocks until the
// closure completes on the worker and returns its result. A panic inside fn
// is recovered and reported like any other error. Go methods can't carry
// their own type parameters, so Ask is a free function taking the actor's
// base and the concrete behavior value (for error-hook dispatch) alongside
// the method identity used to label the resulting DispatchContext.
func Ask[T any](ctx context.Context, base *ActorBase, behavior any, method MethodID, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	wrapped := func(wctx context.Context) (T, error) {
		result, err := safeInvoke(fn, wctx)
		if err != nil {
			base.handleException(behavior, &DispatchContext{Actor: base, Method: method}, err)
			return zero, err
		}
		return result, nil
	}

	if base.mailbox.IsWorkerContext(ctx) {
		return wrapped(ctx)
	}

	var result T
	err := base.mailbox.Execute(ctx, func(wctx context.Context) error {
		r, err := wrapped(wctx)
		result = r
		return err
	})
	if err != nil {
		return zero, err
	}
	return result, nil
}

// Tell dispatches a void call: fire-and-forget unless the caller is already
// on the worker, in which case it runs inline. Tell returns before the work
// executes whenever it has to enqueue (Invariant/property 8).
func Tell(ctx context.Context, base *ActorBase, behavior any, method MethodID, fn func(context.Context) error) {
	wrapped := func(wctx context.Context) error {
		err := safeInvokeVoid(fn, wctx)
		if err != nil {
			base.handleException(behavior, &DispatchContext{Actor: base, Method: method}, err)
		}
		return err
	}

	if base.mailbox.IsWorkerContext(ctx) {
		wrapped(ctx)
		return
	}
	base.mailbox.Enqueue(ctx, wrapped)
}

func safeInvoke[T any](fn func(context.Context) (T, error), ctx context.Context) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("actor: invocation panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

func safeInvokeVoid(fn func(context.Context) error, ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("actor: invocation panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
