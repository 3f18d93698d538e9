// Package status provides a small transition-checked state machine.
package status

import (
	"fmt"
	"slices"
	"sync"
)

// Machine tracks a current state and enforces an allowed-transition table.
type Machine[S comparable] struct {
	mu          sync.RWMutex
	current     S
	transitions map[S][]S
	onChange    func(from, to S)
}

// NewMachine creates a machine starting in initial. onChange, if not nil,
// runs after every successful transition while the machine is locked, so
// it must not call back into the machine.
func NewMachine[S comparable](initial S, transitions map[S][]S, onChange func(from, to S)) *Machine[S] {
	return &Machine[S]{
		current:     initial,
		transitions: transitions,
		onChange:    onChange,
	}
}

// Current returns the current state.
func (m *Machine[S]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Can reports whether moving to the given state is allowed now.
func (m *Machine[S]) Can(to S) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.transitions[m.current], to)
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine[S]) Transition(to S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.transitions[m.current], to) {
		return &TransitionError[S]{From: m.current, To: to}
	}
	from := m.current
	m.current = to
	if m.onChange != nil {
		m.onChange(from, to)
	}
	return nil
}

// TransitionError reports a move the table does not allow.
type TransitionError[S comparable] struct {
	From S
	To   S
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("invalid transition from %v to %v", e.From, e.To)
}
