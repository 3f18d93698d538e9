package status

import (
	"errors"
	"testing"
)

type light string

const (
	red    light = "red"
	green  light = "green"
	yellow light = "yellow"
)

var lightTransitions = map[light][]light{
	red:    {green},
	green:  {yellow},
	yellow: {red},
}

func TestInitialState(t *testing.T) {
	m := NewMachine(red, lightTransitions, nil)
	if m.Current() != red {
		t.Errorf("initial state = %s, want red", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	m := NewMachine(red, lightTransitions, nil)
	for _, s := range []light{green, yellow, red} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition(%s) error = %v", s, err)
		}
	}
	if m.Current() != red {
		t.Errorf("state = %s, want red", m.Current())
	}
}

func TestInvalidTransitionLeavesState(t *testing.T) {
	m := NewMachine(red, lightTransitions, nil)
	err := m.Transition(yellow)
	if err == nil {
		t.Fatal("Transition(red -> yellow) should fail")
	}
	var te *TransitionError[light]
	if !errors.As(err, &te) || te.From != red || te.To != yellow {
		t.Errorf("error = %v, want TransitionError red->yellow", err)
	}
	if m.Current() != red {
		t.Errorf("state = %s, want red (unchanged)", m.Current())
	}
}

func TestCan(t *testing.T) {
	m := NewMachine(red, lightTransitions, nil)
	if !m.Can(green) || m.Can(yellow) {
		t.Error("Can() disagrees with the transition table")
	}
}

func TestTransitionCallsOnChange(t *testing.T) {
	var got []light
	m := NewMachine(red, lightTransitions, func(from, to light) {
		got = append(got, from, to)
	})
	_ = m.Transition(green)
	_ = m.Transition(red) // invalid, no callback

	if len(got) != 2 || got[0] != red || got[1] != green {
		t.Errorf("onChange calls = %v, want [red green]", got)
	}
}

// TestConnectionLifecycle walks login, drop and reconnect of an account.
func TestConnectionLifecycle(t *testing.T) {
	m := NewConnection(nil)
	steps := []Connection{Connecting, Online, Offline, Connecting, Failed, Connecting, Online}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if err := m.Transition(Online); err == nil {
		t.Error("Online -> Online should fail")
	}
}
