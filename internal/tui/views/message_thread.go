package views

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the message window and the composer for the
// current chat.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	typing   *tview.TextView
	composer *Composer
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().
		SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)

	composer := NewComposer(theme)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	return &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		typing:   typing,
		composer: composer,
	}
}

// Update renders the message window of v, oldest message at the top.
func (mt *MessageThread) Update(v model.View) {
	title := v.Title
	if v.PeerOnline {
		title += " ●"
	}
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(title))))
	mt.messages.Clear()

	highlight := ""
	for i := len(v.Messages) - 1; i >= 0; i-- {
		m := v.Messages[i]
		region := "m" + strconv.Itoa(i)
		if m.ID == v.Selected {
			highlight = region
		}
		_, _ = fmt.Fprintf(mt.messages, "[\"%s\"]%s[\"\"]\n", region, FormatMessage(mt.theme, m, v.Names, m.ID == v.EditingID))
	}

	if highlight != "" {
		mt.messages.Highlight(highlight)
		mt.messages.ScrollToHighlight()
	} else {
		mt.messages.Highlight()
		mt.messages.ScrollToEnd()
	}

	mt.typing.Clear()
	if len(v.Typing) > 0 {
		_, _ = fmt.Fprintf(mt.typing, " [%s]%s typing…[-]", ui.Tag(mt.theme.QuoteColor),
			tview.Escape(sanitizeForTerminal(strings.Join(v.Typing, ", "))))
	}
	mt.composer.SetEditing(v.Mode == model.ModeEditing)
}

// FormatMessage renders one message: header line, optional quote, text,
// attachment and reactions.
func FormatMessage(theme *ui.Theme, m protocol.ChatMessage, names map[string]string, editing bool) string {
	var sb strings.Builder

	sender := names[m.SenderID]
	if sender == "" {
		sender = m.SenderID
	}
	color := ui.Tag(theme.FgColor)
	if m.IsOutgoing {
		sender = "You"
		color = ui.Tag(theme.OutgoingColor)
	}
	fmt.Fprintf(&sb, "[%s::b]%s[-:-:-] [::d]%s[-:-:-]", color,
		tview.Escape(sanitizeForTerminal(sender)), formatTimestamp(m.TimeSent))
	if !m.IsRead && !m.IsOutgoing {
		fmt.Fprintf(&sb, " [%s]●[-]", ui.Tag(theme.UnreadColor))
	}
	if editing {
		sb.WriteString(" [::r] editing [::-]")
	}
	sb.WriteByte('\n')

	if m.QuotedID != "" {
		quoted := names[m.QuotedSender]
		if quoted == "" {
			quoted = m.QuotedSender
		}
		fmt.Fprintf(&sb, "[%s]│ %s: %s[-]\n", ui.Tag(theme.QuoteColor),
			tview.Escape(sanitizeForTerminal(quoted)), tview.Escape(sanitizeForTerminal(firstLine(m.QuotedText))))
	}
	if m.Text != "" {
		sb.WriteString(tview.Escape(sanitizeForTerminal(m.Text)))
		sb.WriteByte('\n')
	}
	if m.FileInfo != "" {
		fmt.Fprintf(&sb, "[::i]%s[::-]\n", tview.Escape(fmt.Sprintf("[%s: %s]", m.FileInfo, m.FileStatus)))
	}
	if r := FormatReactions(m.Reactions); r != "" {
		sb.WriteString(r)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FormatReactions renders reaction counts, most used first.
func FormatReactions(r protocol.Reactions) string {
	if len(r.EmojiCounts) == 0 {
		return ""
	}
	emojis := slices.Collect(maps.Keys(r.EmojiCounts))
	slices.SortFunc(emojis, func(a, b string) int {
		if d := r.EmojiCounts[b] - r.EmojiCounts[a]; d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	parts := make([]string, 0, len(emojis))
	for _, e := range emojis {
		parts = append(parts, fmt.Sprintf("%s%d", sanitizeForTerminal(e), r.EmojiCounts[e]))
	}
	return strings.Join(parts, " ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + "…"
	}
	return s
}

// Messages returns the messages text view (for focus management).
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer (for focus management).
func (mt *MessageThread) Composer() *Composer {
	return mt.composer
}
