package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpLinesPerPage is how many lines one help page shows.
const HelpLinesPerPage = 16

// HelpSection is a titled group of key hints.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// HelpView displays the key binding reference one page at a time.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	return &HelpView{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders page of sections. Pages past the end show the last one.
func (hv *HelpView) Update(sections []HelpSection, page int) {
	pages := HelpPages(hv.theme, sections, HelpLinesPerPage)
	page = min(max(page, 0), len(pages)-1)
	hv.Clear()
	hv.SetTitle(fmt.Sprintf(" Help %d/%d (←/→ page, Esc close) ", page+1, len(pages)))
	_, _ = fmt.Fprint(hv, strings.Join(pages[page], "\n"))
}

// HelpPages splits the rendered sections into pages of at most perPage
// lines. There is always at least one page.
func HelpPages(theme *ui.Theme, sections []HelpSection, perPage int) [][]string {
	kc := ui.Tag(theme.MenuKeyColor)
	var lines []string
	for _, s := range sections {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, fmt.Sprintf("  [::b]%s[-:-:-]", s.Title))
		for _, h := range s.Hints {
			lines = append(lines, fmt.Sprintf("  [%s]%-8s[-:-:-] %s", kc, tview.Escape(h.Key), h.Description))
		}
	}

	var pages [][]string
	for len(lines) > perPage {
		pages = append(pages, lines[:perPage])
		lines = lines[perPage:]
	}
	return append(pages, lines)
}
