package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHandleEventViewFirst(t *testing.T) {
	r := NewRegistry()
	var got []string
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = append(got, "global") }})
	r.AddView("SELECTING", "quote", &Action{Key: tcell.KeyRune, Rune: 'q', Handler: func() { got = append(got, "view") }})

	if !r.HandleEvent("SELECTING", runeKey('q')) {
		t.Fatal("event not handled")
	}
	if !r.HandleEvent("NORMAL", runeKey('q')) {
		t.Fatal("event not handled")
	}
	if r.HandleEvent("NORMAL", runeKey('z')) {
		t.Error("unbound key handled")
	}
	if len(got) != 2 || got[0] != "view" || got[1] != "global" {
		t.Errorf("handlers = %v, want [view global]", got)
	}
}

func TestHandleSpecialKey(t *testing.T) {
	r := NewRegistry()
	called := false
	r.AddGlobal("page", &Action{Key: tcell.KeyPgUp, Handler: func() { called = true }})
	r.HandleEvent("NORMAL", tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone))
	if !called {
		t.Error("PgUp binding not called")
	}
}

func TestHintsOrderAndShadowing(t *testing.T) {
	r := NewRegistry()
	noop := func() {}
	r.AddGlobal("help", &Action{Key: tcell.KeyRune, Rune: '?', Description: "Help", Visible: true, Handler: noop})
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Visible: true, Handler: noop})
	r.AddGlobal("hidden", &Action{Key: tcell.KeyRune, Rune: 'x', Description: "Hidden", Handler: noop})
	r.AddView("V", "edit", &Action{Key: tcell.KeyRune, Rune: 'e', Description: "Edit", Visible: true, Handler: noop})
	r.AddView("V", "quote", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quote", Visible: true, Handler: noop})

	var got []string
	for _, a := range r.Hints("V") {
		got = append(got, a.Description)
	}
	want := []string{"Edit", "Quote", "Help"}
	if len(got) != len(want) {
		t.Fatalf("hints = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hints = %v, want %v", got, want)
			break
		}
	}
}

func TestAddReplaces(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "old", Visible: true})
	r.AddGlobal("quit", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "new", Visible: true})
	hints := r.Hints("")
	if len(hints) != 1 || hints[0].Description != "new" {
		t.Errorf("hints = %+v", hints)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{Action{Key: tcell.KeyRune, Rune: 'q'}, "q"},
		{Action{Key: tcell.KeyRune, Rune: ' '}, "Space"},
		{Action{Key: tcell.KeyPgUp}, "PgUp"},
	}
	for _, tt := range tests {
		if got := tt.action.Label(); got != tt.want {
			t.Errorf("Label() = %q, want %q", got, tt.want)
		}
	}
}
