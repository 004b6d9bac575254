package hfsm

// Transition is one outbound edge from the state it is declared on.
//
// A Transition is trigger-driven when Guard is nil: Fire walks the current
// state's ancestor chain looking for the first transition whose Guard is
// absent and whose Trigger matches. A Transition is condition-driven when
// Guard is non-nil: Update scans only the current state's own transition
// list (not its ancestors) for the first transition whose Guard evaluates
// true, ignoring Trigger.
type Transition struct {
	Trigger TriggerID // used when Guard is nil
	Target  StateID
	Guard   func(*Context) bool             // non-nil => condition-driven
	Setup   func(ctx *Context, target StateID) error // invoked after exit, before the cursor moves
}

// TransitionOption configures a Transition at definition time.
type TransitionOption func(*Transition)

// WithGuard makes the transition condition-driven: Update() evaluates fn
// and takes the transition the first time it returns true.
func WithGuard(fn func(*Context) bool) TransitionOption {
	return func(t *Transition) { t.Guard = fn }
}

// WithSetup attaches a setup callback, run after exit hooks and before the
// state cursor moves to the transition's target.
func WithSetup(fn func(ctx *Context, target StateID) error) TransitionOption {
	return func(t *Transition) { t.Setup = fn }
}
