package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the text input for sending messages.
type Composer struct {
	*tview.InputField
	onSend     func()
	onChange   func(text string)
	onLeave    func()
	onExternal func()
	syncing    bool
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetTitle(" Compose (i to focus) ")
	input.SetTitleColor(theme.TitleColor)

	c := &Composer{InputField: input}

	input.SetChangedFunc(func(text string) {
		if !c.syncing && c.onChange != nil {
			c.onChange(text)
		}
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			if c.onSend != nil {
				c.onSend()
			}
		case tcell.KeyEscape, tcell.KeyTab:
			if c.onLeave != nil {
				c.onLeave()
			}
		}
	})
	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlE && c.onExternal != nil {
			c.onExternal()
			return nil
		}
		return ev
	})

	return c
}

// SetOnSend sets the callback for Enter. The text is already in the
// compose buffer through the change callback.
func (c *Composer) SetOnSend(fn func()) {
	c.onSend = fn
}

// SetOnChange sets the callback for every edit of the text.
func (c *Composer) SetOnChange(fn func(text string)) {
	c.onChange = fn
}

// SetOnLeave sets the callback for Esc and Tab.
func (c *Composer) SetOnLeave(fn func()) {
	c.onLeave = fn
}

// SetOnExternal sets the callback for Ctrl-E.
func (c *Composer) SetOnExternal(fn func()) {
	c.onExternal = fn
}

// Sync shows text without reporting it back as an edit.
func (c *Composer) Sync(text string) {
	if c.GetText() == text {
		return
	}
	c.syncing = true
	c.SetText(text)
	c.syncing = false
}

// SetEditing switches the title between composing and editing.
func (c *Composer) SetEditing(editing bool) {
	if editing {
		c.SetTitle(" Edit message (Enter saves, Esc cancels) ")
	} else {
		c.SetTitle(" Compose (i to focus) ")
	}
}
