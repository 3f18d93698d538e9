package views

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"github.com/matheus3301/mchat/internal/tui/ui"
)

func TestSanitizeForTerminal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"skin tone", "👍\U0001F3FB", "👍"},
		{"zwj family", "👨\u200D👩", "👨👩"},
		{"variation selector", "❤\uFE0F", "❤"},
		{"escape sequence", "a\x1b[31mb", "a[31mb"},
		{"keeps newline and tab", "a\n\tb", "a\n\tb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeForTerminal(tt.in); got != tt.want {
				t.Errorf("sanitizeForTerminal(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRowLabel(t *testing.T) {
	k := store.Key{Account: "wa", Chat: "c1"}
	tests := []struct {
		row   model.ChatRow
		multi bool
		want  string
	}{
		{model.ChatRow{Key: k, Name: "Alice"}, false, "  Alice"},
		{model.ChatRow{Key: k, Name: "Alice", IsUnread: true}, false, "● Alice"},
		{model.ChatRow{Key: k, Name: "Alice", IsUnread: true, Typing: true}, false, "… Alice"},
		{model.ChatRow{Key: k, Name: "Team", IsPinned: true, IsMuted: true}, true, "  ^ wa: Team (muted)"},
	}
	for _, tt := range tests {
		if got := RowLabel(tt.row, tt.multi); got != tt.want {
			t.Errorf("RowLabel(%+v) = %q, want %q", tt.row, got, tt.want)
		}
	}
}

func TestChatListTitleCountsUnread(t *testing.T) {
	cl := NewChatList(ui.DefaultTheme())
	cl.Update([]model.ChatRow{
		{Key: store.Key{Account: "a", Chat: "1"}, Name: "one", IsUnread: true},
		{Key: store.Key{Account: "a", Chat: "2"}, Name: "two", IsUnread: true, IsMuted: true},
		{Key: store.Key{Account: "a", Chat: "3"}, Name: "three"},
	}, 2)
	if got := cl.GetTitle(); got != " Chats (3) [1 unread] " {
		t.Errorf("title = %q", got)
	}
	if row, _ := cl.GetSelection(); row != 2 {
		t.Errorf("selected row = %d, want 2", row)
	}
}

func TestFormatMessage(t *testing.T) {
	theme := ui.DefaultTheme()
	names := map[string]string{"alice": "Alice"}
	in := protocol.ChatMessage{
		ID: "2", SenderID: "alice", Text: "sure [ok]", TimeSent: time.Now().UnixMilli(),
		QuotedID: "1", QuotedSender: "me", QuotedText: "lunch?\ntomorrow",
		Reactions: protocol.Reactions{EmojiCounts: map[string]int{"👍": 2}},
	}
	out := FormatMessage(theme, in, names, false)
	for _, want := range []string{"Alice", "me: lunch?…", "sure [ok[]", "👍2", "●"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	own := protocol.ChatMessage{ID: "3", SenderID: "me", Text: "hi", IsOutgoing: true, IsRead: true,
		FileInfo: "image", FileStatus: protocol.FileStatusNotDownloaded}
	out = FormatMessage(theme, own, names, true)
	for _, want := range []string{"You", "editing", "image: not_downloaded"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatReactionsOrder(t *testing.T) {
	got := FormatReactions(protocol.Reactions{EmojiCounts: map[string]int{"b": 1, "a": 1, "c": 3}})
	if got != "c3 a1 b1" {
		t.Errorf("FormatReactions() = %q, want %q", got, "c3 a1 b1")
	}
	if FormatReactions(protocol.Reactions{}) != "" {
		t.Error("empty reactions rendered")
	}
}

func TestHelpPages(t *testing.T) {
	sections := []HelpSection{
		{Title: "One", Hints: []ui.MenuHint{{Key: "a", Description: "A"}, {Key: "b", Description: "B"}}},
		{Title: "Two", Hints: []ui.MenuHint{{Key: "c", Description: "C"}}},
	}
	// 2 titles + 3 hints + 1 separator
	pages := HelpPages(ui.DefaultTheme(), sections, 4)
	if len(pages) != 2 || len(pages[0]) != 4 || len(pages[1]) != 2 {
		t.Fatalf("pages = %v", pages)
	}
	if got := HelpPages(ui.DefaultTheme(), nil, 4); len(got) != 1 {
		t.Errorf("empty help has %d pages, want 1", len(got))
	}
}

func TestPickerFilter(t *testing.T) {
	got := -2
	p := NewPicker(ui.DefaultTheme(), "Pick", []string{"Alice", "Bob", "alicia"}, 0, func(i int) { got = i })
	p.filter.SetText("ALI")
	if p.list.GetItemCount() != 2 {
		t.Fatalf("visible = %d, want 2", p.list.GetItemCount())
	}
	p.list.SetCurrentItem(1)
	p.finish(p.list.GetCurrentItem())
	if got != 2 {
		t.Errorf("picked %d, want 2 (alicia)", got)
	}
	// done runs once
	p.finish(-1)
	if got != 2 {
		t.Errorf("done called again with %d", got)
	}
}

func TestPickerEscape(t *testing.T) {
	got := -2
	p := NewPicker(ui.DefaultTheme(), "Pick", []string{"a"}, 0, func(i int) { got = i })
	p.filter.InputHandler()(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), nil)
	if got != -1 {
		t.Errorf("escape gave %d, want -1", got)
	}
}

func TestStatusBarLine(t *testing.T) {
	sb := NewStatusBar(ui.DefaultTheme(), "main")
	sb.now = func() time.Time { return time.Date(2026, 1, 1, 9, 30, 0, 0, time.Local) }
	sb.Update([]AccountStatus{{ID: "wa", Conn: status.Online}, {ID: "demo", Conn: status.Failed}}, model.ModeSelecting)
	line := sb.line()
	for _, want := range []string{"main", "wa", "online", "demo", "failed", "SELECTING", "09:30"} {
		if !strings.Contains(line, want) {
			t.Errorf("line missing %q: %s", want, line)
		}
	}
}
