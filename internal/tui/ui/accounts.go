package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/mchat/internal/status"
	"github.com/rivo/tview"
)

// AccountData is one account line of the accounts panel.
type AccountData struct {
	ID     string
	Status status.Connection
	Chats  int
}

// AccountsData holds what the accounts panel shows.
type AccountsData struct {
	Profile  string
	Accounts []AccountData
	Uptime   time.Duration
}

// AccountsInfo displays profile and account connection state.
type AccountsInfo struct {
	*tview.TextView
	theme *Theme
}

// NewAccountsInfo creates a new accounts panel.
func NewAccountsInfo(theme *Theme) *AccountsInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &AccountsInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the panel.
func (ai *AccountsInfo) Update(data AccountsData) {
	ai.Clear()
	_, _ = fmt.Fprint(ai, FormatAccounts(ai.theme, data))
}

// FormatAccounts renders the accounts panel text.
func FormatAccounts(theme *Theme, data AccountsData) string {
	fgColor := Tag(theme.FgColor)
	counterColor := Tag(theme.CounterColor)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s::b]Profile:[-:-:-] [%s]%s[-]  [%s::b]Up:[-:-:-] [%s]%s[-]\n",
		fgColor, counterColor, tview.Escape(data.Profile),
		fgColor, counterColor, formatDuration(data.Uptime))
	for _, a := range data.Accounts {
		color := Tag(theme.OfflineColor)
		if a.Status == status.Online {
			color = Tag(theme.OnlineColor)
		}
		fmt.Fprintf(&sb, "[%s::b]%s[-:-:-] [%s]%s[-] [%s]%d chats[-]\n",
			fgColor, tview.Escape(a.ID), color, a.Status, counterColor, a.Chats)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
