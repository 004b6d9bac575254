package hfsm

import "fmt"

// Definition is a builder for a Machine's static structure. It is cheap to
// construct and to Validate; Build produces the runtime Machine.
type Definition struct {
	states  map[StateID]*StateInfo
	initial StateID
}

// NewDefinition creates an empty state machine definition.
func NewDefinition() *Definition {
	return &Definition{states: make(map[StateID]*StateInfo)}
}

// State adds a state to the definition.
func (d *Definition) State(id StateID, opts ...StateOption) *Definition {
	s := &StateInfo{ID: id}
	for _, opt := range opts {
		opt(s)
	}
	d.states[id] = s
	return d
}

// Transition adds a transition declared on state `from`.
func (d *Definition) Transition(from StateID, trigger TriggerID, target StateID, opts ...TransitionOption) *Definition {
	t := Transition{Trigger: trigger, Target: target}
	for _, opt := range opts {
		opt(&t)
	}
	s, ok := d.states[from]
	if !ok {
		// `from` has not been declared yet: a bare root state is created to
		// hold the transition, and Validate accepts it like any other state.
		// A later State call for the same id replaces it, dropping the
		// transitions recorded here.
		s = &StateInfo{ID: from}
		d.states[from] = s
	}
	s.Transitions = append(s.Transitions, t)
	return d
}

// Initial sets the state the machine occupies once built and started.
func (d *Definition) Initial(id StateID) *Definition {
	d.initial = id
	return d
}

// Validate checks the definition for configuration errors: an unknown
// initial state, an unknown parent, or a transition target outside the
// declared state set is fatal (Invariant 3).
func (d *Definition) Validate() error {
	if d.initial == "" {
		return fmt.Errorf("hfsm: no initial state defined")
	}
	if _, ok := d.states[d.initial]; !ok {
		return fmt.Errorf("hfsm: initial state %q not defined", d.initial)
	}
	for id, s := range d.states {
		if s.Parent != "" {
			if _, ok := d.states[s.Parent]; !ok {
				return fmt.Errorf("hfsm: state %q references undefined parent %q", id, s.Parent)
			}
		}
		for _, t := range s.Transitions {
			if _, ok := d.states[t.Target]; !ok {
				return fmt.Errorf("hfsm: transition from %q targets undefined state %q", id, t.Target)
			}
		}
	}
	for id := range d.states {
		if err := d.checkParentCycle(id); err != nil {
			return err
		}
	}
	return nil
}

func (d *Definition) checkParentCycle(id StateID) error {
	seen := make(map[StateID]bool)
	current := id
	for current != "" {
		if seen[current] {
			return fmt.Errorf("hfsm: cycle detected in parent hierarchy at state %q", current)
		}
		seen[current] = true
		s, ok := d.states[current]
		if !ok {
			break
		}
		current = s.Parent
	}
	return nil
}

// Build validates the definition and constructs a runtime Machine
// positioned at the initial state. No state_changed notification is made for
// this initial placement — there is no "from" state to exit. Only the
// initial state's own enter hook runs (not its ancestors'); an error from it
// goes to the error sink like any other hook error.
func (d *Definition) Build(opts ...MachineOption) (*Machine, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("hfsm: invalid definition: %w", err)
	}

	m := &Machine{
		states:  d.states,
		current: d.initial,
		logger:  Logger,
	}
	for _, opt := range opts {
		opt(m)
	}

	if s := m.states[m.current]; s != nil && s.OnEnter != nil {
		m.runHook("enter", &Context{FSM: m, ToState: m.current, Data: m.data, Logger: m.logger}, s.OnEnter)
	}

	return m, nil
}
