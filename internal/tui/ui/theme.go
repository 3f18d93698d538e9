package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashColor        tcell.Color
	PromptBorderColor tcell.Color
	UnreadColor       tcell.Color
	MutedColor        tcell.Color
	OutgoingColor     tcell.Color
	QuoteColor        tcell.Color
	SelectedFg        tcell.Color
	SelectedBg        tcell.Color
	OnlineColor       tcell.Color
	OfflineColor      tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashColor:        tcell.ColorNavajoWhite,
		PromptBorderColor: tcell.ColorDodgerBlue,
		UnreadColor:       tcell.ColorWhite,
		MutedColor:        tcell.ColorGray,
		OutgoingColor:     tcell.ColorLightGreen,
		QuoteColor:        tcell.ColorGray,
		SelectedFg:        tcell.ColorBlack,
		SelectedBg:        tcell.ColorAqua,
		OnlineColor:       tcell.ColorGreen,
		OfflineColor:      tcell.ColorOrangeRed,
	}
}

// Tag returns a tview color tag name for c.
func Tag(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
