package ui

import "github.com/rivo/tview"

// Pages is a stack-based page manager wrapping tview.Pages. Pages pushed on
// top of the base page are overlays: the pages below stay visible.
type Pages struct {
	*tview.Pages
	stack    []string
	onChange func(stack []string)
}

// NewPages creates a new stack-based page manager.
func NewPages() *Pages {
	return &Pages{
		Pages: tview.NewPages(),
	}
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []string)) {
	p.onChange = fn
}

// Push adds item on top of the stack under name, replacing a page with the
// same name.
func (p *Pages) Push(name string, item tview.Primitive) {
	p.remove(name)
	p.AddPage(name, item, true, true)
	p.SendToFront(name)
	p.stack = append(p.stack, name)
	p.notify()
}

// Pop removes the top page and returns its name, or empty if only the base
// page is left.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.Remove(top)
	return top
}

// Remove removes the named page wherever it is in the stack.
func (p *Pages) Remove(name string) {
	if p.remove(name) {
		p.notify()
	}
}

func (p *Pages) remove(name string) bool {
	for i, n := range p.stack {
		if n == name {
			p.stack = append(p.stack[:i], p.stack[i+1:]...)
			p.RemovePage(name)
			return true
		}
	}
	return false
}

// Current returns the name of the current (top) page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Has reports whether the named page is on the stack.
func (p *Pages) Has(name string) bool {
	for _, n := range p.stack {
		if n == name {
			return true
		}
	}
	return false
}

// Stack returns a copy of the current page stack.
func (p *Pages) Stack() []string {
	s := make([]string, len(p.stack))
	copy(s, p.stack)
	return s
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}

// Center wraps item in a flex layout that centers it at the given size.
func Center(item tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(item, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
