package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Logo is shown in place of the message thread while no chat is open.
type Logo struct {
	*tview.TextView
	theme *Theme
}

// NewLogo creates a new logo component.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBorderPadding(2, 0, 1, 0)

	l := &Logo{
		TextView: tv,
		theme:    theme,
	}
	l.render()
	return l
}

func (l *Logo) render() {
	titleColor := Tag(l.theme.TitleColor)
	fgColor := Tag(l.theme.FgColor)
	keyColor := Tag(l.theme.MenuKeyColor)

	_, _ = fmt.Fprintf(l,
		"[%s::b]╔╦╗╔═╗╦ ╦╔═╗╔╦╗[-:-:-]\n"+
			"[%s::b]║║║║  ╠═╣╠═╣ ║ [-:-:-]\n"+
			"[%s::b]╩ ╩╚═╝╩ ╩╩ ╩ ╩ [-:-:-]\n\n"+
			"[%s]Press [%s]Tab[%s] to open a chat, [%s]?[%s] for help[-:-:-]",
		titleColor, titleColor, titleColor,
		fgColor, keyColor, fgColor, keyColor, fgColor,
	)
}
