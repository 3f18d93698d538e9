package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatList is the sorted chat list.
type ChatList struct {
	*tview.Table
	theme *ui.Theme
	rows  []model.ChatRow
}

// NewChatList creates a new chat list table.
func NewChatList(theme *ui.Theme) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Chats ")
	table.SetTitleColor(theme.TitleColor)

	return &ChatList{
		Table: table,
		theme: theme,
	}
}

// Update refreshes the list. current is the index of the current chat, -1
// for none. The account id is shown when rows span several accounts.
func (cl *ChatList) Update(rows []model.ChatRow, current int) {
	cl.rows = rows
	cl.Clear()

	multi := multipleAccounts(rows)
	for i, r := range rows {
		color := cl.theme.FgColor
		switch {
		case r.IsUnread && !r.IsMuted:
			color = cl.theme.UnreadColor
		case r.IsMuted || !r.Connected:
			color = cl.theme.MutedColor
		}
		cell := tview.NewTableCell(tview.Escape(sanitizeForTerminal(RowLabel(r, multi)))).
			SetExpansion(1).
			SetTextColor(color)
		if r.IsUnread {
			cell.SetAttributes(tcell.AttrBold)
		}
		cl.SetCell(i, 0, cell)
		cl.SetCell(i, 1, tview.NewTableCell(formatTimestamp(r.LastTime)).
			SetTextColor(color).
			SetAlign(tview.AlignRight))
	}

	unread := 0
	for _, r := range rows {
		if r.IsUnread && !r.IsMuted {
			unread++
		}
	}
	if unread > 0 {
		cl.SetTitle(fmt.Sprintf(" Chats (%d) [%d unread] ", len(rows), unread))
	} else {
		cl.SetTitle(fmt.Sprintf(" Chats (%d) ", len(rows)))
	}

	if current >= 0 && current < len(rows) {
		cl.SetSelectable(true, false)
		cl.Select(current, 0)
	} else {
		cl.SetSelectable(false, false)
	}
}

// RowLabel renders one chat row: status markers then the name.
func RowLabel(r model.ChatRow, withAccount bool) string {
	var sb strings.Builder
	switch {
	case r.Typing:
		sb.WriteString("… ")
	case r.IsUnread:
		sb.WriteString("● ")
	default:
		sb.WriteString("  ")
	}
	if r.IsPinned {
		sb.WriteString("^ ")
	}
	if withAccount {
		sb.WriteString(r.Key.Account)
		sb.WriteString(": ")
	}
	sb.WriteString(r.Name)
	if r.IsMuted {
		sb.WriteString(" (muted)")
	}
	return sb.String()
}

func multipleAccounts(rows []model.ChatRow) bool {
	for _, r := range rows {
		if r.Key.Account != rows[0].Key.Account {
			return true
		}
	}
	return false
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
