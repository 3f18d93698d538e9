package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// FlashBar displays the advisory flash message.
type FlashBar struct {
	*tview.TextView
	theme *Theme
	text  string
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders msg. An empty message clears the bar.
func (fb *FlashBar) Update(msg string) {
	if msg == fb.text {
		return
	}
	fb.text = msg
	fb.Clear()
	if msg == "" {
		return
	}
	_, _ = fmt.Fprintf(fb, " [%s]%s[-]", Tag(fb.theme.FlashColor), tview.Escape(msg))
}

// Text returns the message on display.
func (fb *FlashBar) Text() string {
	return fb.text
}
