package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// AccountStatus is the connection of one account as shown in the bar.
type AccountStatus struct {
	ID   string
	Conn status.Connection
}

// StatusBar displays profile, accounts, mode and the clock.
type StatusBar struct {
	*tview.TextView
	theme    *ui.Theme
	profile  string
	accounts []AccountStatus
	mode     model.Mode
	now      func() time.Time
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{
		TextView: tv,
		theme:    theme,
		profile:  profile,
		mode:     model.ModeNormal,
		now:      time.Now,
	}
}

// Update sets the account states and mode and redraws the bar.
func (sb *StatusBar) Update(accounts []AccountStatus, mode model.Mode) {
	sb.accounts = accounts
	sb.mode = mode
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line())
}

func (sb *StatusBar) line() string {
	parts := make([]string, 0, len(sb.accounts))
	for _, a := range sb.accounts {
		color := ui.Tag(sb.theme.OfflineColor)
		switch a.Conn {
		case status.Online:
			color = ui.Tag(sb.theme.OnlineColor)
		case status.Connecting:
			color = ui.Tag(sb.theme.FlashColor)
		}
		parts = append(parts, fmt.Sprintf("%s [%s]%s[-]", tview.Escape(a.ID), color, strings.ToLower(string(a.Conn))))
	}
	return fmt.Sprintf(" [::b]%s[-:-:-] | %s | [%s::b]%s[-:-:-] | %s",
		tview.Escape(sb.profile), strings.Join(parts, " "),
		ui.Tag(sb.theme.MenuKeyColor), sb.mode, sb.now().Format("15:04"))
}
