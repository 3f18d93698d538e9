package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumbs is a breadcrumb bar showing account and chat of the current view.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the breadcrumb trail.
func (c *Crumbs) Update(trail []string) {
	c.Clear()
	if len(trail) == 0 {
		return
	}
	_, _ = fmt.Fprint(c, FormatCrumbs(c.theme, trail))
}

// FormatCrumbs renders trail with the last crumb highlighted.
func FormatCrumbs(theme *Theme, trail []string) string {
	parts := make([]string, 0, len(trail))
	for i, name := range trail {
		name = tview.Escape(name)
		if i == len(trail)-1 {
			parts = append(parts, fmt.Sprintf("[%s:%s:b] %s [-:-:-]",
				Tag(theme.CrumbActiveFg), Tag(theme.CrumbActiveBg), name))
		} else {
			parts = append(parts, fmt.Sprintf("[%s:%s:] %s [-:-:-]",
				Tag(theme.CrumbInactiveFg), Tag(theme.CrumbInactiveBg), name))
		}
	}
	return strings.Join(parts, " > ")
}
