package views

import (
	"fmt"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatInfo displays details of the current chat.
type ChatInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewChatInfo creates a new chat details view.
func NewChatInfo(theme *ui.Theme) *ChatInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Chat Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ChatInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders chat details.
func (ci *ChatInfo) Update(k store.Key, chat protocol.ChatInfo, conn status.Connection, loaded int) {
	ci.Clear()

	fg := ui.Tag(ci.theme.FgColor)
	ct := ui.Tag(ci.theme.CounterColor)

	lastActive := formatTimestamp(chat.LastMessageTime)
	if lastActive == "" {
		lastActive = "-"
	}
	name := chat.Name
	if name == "" {
		name = chat.ID
	}

	text := fmt.Sprintf(
		"\n [%s::b]Name:[-:-:-]        [%s]%s[-]\n"+
			" [%s::b]Chat ID:[-:-:-]     [%s]%s[-]\n"+
			" [%s::b]Account:[-:-:-]     [%s]%s (%s)[-]\n"+
			" [%s::b]Unread:[-:-:-]      [%s]%t[-]\n"+
			" [%s::b]Muted:[-:-:-]       [%s]%t[-]\n"+
			" [%s::b]Pinned:[-:-:-]      [%s]%t[-]\n"+
			" [%s::b]Last Active:[-:-:-] [%s]%s[-]\n"+
			" [%s::b]Loaded:[-:-:-]      [%s]%d messages[-]",
		fg, ct, tview.Escape(sanitizeForTerminal(name)),
		fg, ct, tview.Escape(chat.ID),
		fg, ct, tview.Escape(k.Account), conn,
		fg, ct, chat.IsUnread,
		fg, ct, chat.IsMuted,
		fg, ct, chat.IsPinned,
		fg, ct, lastActive,
		fg, ct, loaded,
	)

	_, _ = fmt.Fprint(ci, text)
	ci.SetTitle(fmt.Sprintf(" %s Details (Esc close) ", tview.Escape(sanitizeForTerminal(name))))
}
