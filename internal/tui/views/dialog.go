package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Picker is a filterable list of options. The done callback gets the index
// into the original options, or -1 on cancel.
type Picker struct {
	*tview.Flex
	filter  *tview.InputField
	list    *tview.List
	options []string
	visible []int
	done    func(index int)
}

// NewPicker creates a picker over options with current preselected.
func NewPicker(theme *ui.Theme, title string, options []string, current int, done func(index int)) *Picker {
	filter := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)
	filter.SetBackgroundColor(theme.BgColor)
	filter.SetFieldBackgroundColor(theme.BgColor)
	filter.SetFieldTextColor(theme.FgColor)
	filter.SetLabelColor(theme.MenuKeyColor)

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true).
		SetSelectedBackgroundColor(theme.SelectedBg).
		SetSelectedTextColor(theme.SelectedFg)
	list.SetBackgroundColor(theme.BgColor)
	list.SetMainTextColor(theme.FgColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(filter, 1, 0, true).
		AddItem(list, 0, 1, false)
	flex.SetBorder(true)
	flex.SetBorderColor(theme.BorderFocusColor)
	flex.SetBackgroundColor(theme.BgColor)
	flex.SetTitle(" " + title + " ")
	flex.SetTitleColor(theme.TitleColor)

	p := &Picker{
		Flex:    flex,
		filter:  filter,
		list:    list,
		options: options,
		done:    done,
	}
	p.apply("")
	for i, idx := range p.visible {
		if idx == current {
			list.SetCurrentItem(i)
		}
	}

	filter.SetChangedFunc(p.apply)
	filter.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Key() {
		case tcell.KeyUp, tcell.KeyDown, tcell.KeyPgUp, tcell.KeyPgDn:
			if handler := list.InputHandler(); handler != nil {
				handler(ev, func(tview.Primitive) {})
			}
			return nil
		case tcell.KeyEnter:
			p.finish(list.GetCurrentItem())
			return nil
		case tcell.KeyEscape:
			p.finish(-1)
			return nil
		}
		return ev
	})
	return p
}

// apply narrows the list to options containing text.
func (p *Picker) apply(text string) {
	p.list.Clear()
	p.visible = p.visible[:0]
	for i, o := range p.options {
		if text != "" && !containsFold(o, text) {
			continue
		}
		p.visible = append(p.visible, i)
		p.list.AddItem(tview.Escape(sanitizeForTerminal(o)), "", 0, nil)
	}
}

func (p *Picker) finish(item int) {
	index := -1
	if item >= 0 && item < len(p.visible) {
		index = p.visible[item]
	}
	if p.done != nil {
		done := p.done
		p.done = nil
		done(index)
	}
}

// Focus delegates focus to the filter input.
func (p *Picker) Focus(delegate func(tview.Primitive)) {
	delegate(p.filter)
}

// NewConfirm creates a yes/no dialog.
func NewConfirm(theme *ui.Theme, text string, done func(yes bool)) *tview.Modal {
	modal := tview.NewModal().
		SetText(text).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(index int, _ string) {
			done(index == 0)
		})
	modal.SetBackgroundColor(theme.BgColor)
	modal.SetBorderColor(theme.BorderFocusColor)
	return modal
}

// containsFold reports whether substr is within s, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
