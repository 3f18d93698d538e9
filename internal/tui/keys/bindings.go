package keys

import "github.com/gdamore/tcell/v2"

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

// Label returns the key as shown in hints, such as "q" or "PgUp".
func (a *Action) Label() string {
	if a.Key == tcell.KeyRune {
		if a.Rune == ' ' {
			return "Space"
		}
		return string(a.Rune)
	}
	if name, ok := tcell.KeyNames[a.Key]; ok {
		return name
	}
	return "?"
}

type binding struct {
	name   string
	action *Action
}

// Registry holds keybindings organized by scope. Bindings keep their
// registration order so hints and help are stable.
type Registry struct {
	global []binding
	views  map[string][]binding
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		views: make(map[string][]binding),
	}
}

func upsert(list []binding, name string, action *Action) []binding {
	for i := range list {
		if list[i].name == name {
			list[i].action = action
			return list
		}
	}
	return append(list, binding{name: name, action: action})
}

// AddGlobal registers a global keybinding. A binding with the same name is
// replaced.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.global = upsert(r.global, name, action)
}

// AddView registers a view-specific keybinding.
func (r *Registry) AddView(view, name string, action *Action) {
	r.views[view] = upsert(r.views[view], name, action)
}

// Hints returns the visible bindings for a view, view bindings first.
func (r *Registry) Hints(view string) []*Action {
	var hints []*Action
	for _, a := range r.Bindings(view) {
		if a.Visible {
			hints = append(hints, a)
		}
	}
	return hints
}

// Bindings returns every binding active in a view, view bindings first.
// A global binding shadowed by a view binding for the same key is left out.
func (r *Registry) Bindings(view string) []*Action {
	viewBindings := r.views[view]
	out := make([]*Action, 0, len(viewBindings)+len(r.global))
	for _, b := range viewBindings {
		out = append(out, b.action)
	}
	for _, g := range r.global {
		if !shadowed(viewBindings, g.action) {
			out = append(out, g.action)
		}
	}
	return out
}

func shadowed(list []binding, a *Action) bool {
	for _, b := range list {
		if b.action.Key == a.Key && b.action.Rune == a.Rune {
			return true
		}
	}
	return false
}

// HandleEvent dispatches a key event to matching action in the given view.
// Returns true if a handler matched.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	// Check view-specific bindings first.
	for _, b := range r.views[view] {
		if b.action.Matches(ev) {
			b.action.Handler()
			return true
		}
	}
	for _, b := range r.global {
		if b.action.Matches(ev) {
			b.action.Handler()
			return true
		}
	}
	return false
}
