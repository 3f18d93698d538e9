package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/protocol/prototest"
	"github.com/matheus3301/mchat/internal/store"
)

func outgoing(id string, sent time.Time) protocol.ChatMessage {
	return protocol.ChatMessage{ID: id, SenderID: "self", Text: "mine", TimeSent: sent.UnixMilli(), IsOutgoing: true, IsRead: true}
}

func wantPolicy(t *testing.T, err error, reason string) {
	t.Helper()
	var pe *PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PolicyError(%s)", err, reason)
	}
	if pe.Reason != reason {
		t.Errorf("reason = %q, want %q", pe.Reason, reason)
	}
}

func TestEditTooOld(t *testing.T) {
	f := newFixture(t, protocol.FeatureEditMessagesWithinTwoDays, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", outgoing("m1", f.now.Add(-72*time.Hour)))
	f.open("c1")
	_ = f.m.SelectUp()

	wantPolicy(t, f.m.BeginEdit(), ReasonTooOld)
	if f.m.Mode() != ModeSelecting {
		t.Errorf("mode = %s, want SELECTING", f.m.Mode())
	}
	if got := prototest.Of[protocol.EditMessageRequest](f.be); len(got) != 0 {
		t.Errorf("got %d EditMessage requests, want 0", len(got))
	}
	if f.m.Flash() == "" {
		t.Error("rejection not shown")
	}
}

func TestEditWindows(t *testing.T) {
	tests := []struct {
		name     string
		features protocol.Feature
		age      time.Duration
		reason   string
	}{
		{"two days ok", protocol.FeatureEditMessagesWithinTwoDays, 47 * time.Hour, ""},
		{"fifteen minutes ok", protocol.FeatureEditMessagesWithinFifteenMins, 10 * time.Minute, ""},
		{"fifteen minutes too old", protocol.FeatureEditMessagesWithinFifteenMins, 20 * time.Minute, ReasonTooOld},
		{"no edit support", protocol.FeatureNone, time.Minute, ReasonNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.features, Preferences{})
			f.chats(protocol.ChatInfo{ID: "c1"})
			f.deliver("c1", outgoing("m1", f.now.Add(-tt.age)))
			f.open("c1")
			_ = f.m.SelectUp()
			err := f.m.BeginEdit()
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("BeginEdit: %v", err)
				}
				if f.m.Mode() != ModeEditing {
					t.Errorf("mode = %s, want EDITING", f.m.Mode())
				}
				return
			}
			wantPolicy(t, err, tt.reason)
		})
	}
}

func TestEditSaveAndCancel(t *testing.T) {
	f := newFixture(t, protocol.FeatureEditMessagesWithinTwoDays, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", outgoing("m1", f.now.Add(-time.Minute)))
	f.open("c1")

	_ = f.m.SelectUp()
	if err := f.m.BeginEdit(); err != nil {
		t.Fatal(err)
	}
	if got := f.m.Entry(); got != "mine" {
		t.Errorf("entry = %q, want prefilled mine", got)
	}
	f.m.SetEntry("changed")
	if err := f.m.Send(); err != nil {
		t.Fatal(err)
	}
	edits := prototest.Of[protocol.EditMessageRequest](f.be)
	if len(edits) != 1 || edits[0].Message.ID != "m1" || edits[0].Message.Text != "changed" {
		t.Fatalf("edits = %+v", edits)
	}
	if edits[0].Message.TimeSent != f.now.Add(-time.Minute).UnixMilli() {
		t.Error("edit lost original metadata")
	}
	if f.m.Mode() != ModeNormal || f.m.Entry() != "" {
		t.Errorf("after save mode = %s entry = %q", f.m.Mode(), f.m.Entry())
	}
	if got := prototest.Of[protocol.SendMessageRequest](f.be); len(got) != 0 {
		t.Errorf("saving an edit sent %d new messages", len(got))
	}

	_ = f.m.SelectUp()
	_ = f.m.BeginEdit()
	f.m.SetEntry("discard me")
	f.m.CancelEdit()
	if f.m.Mode() != ModeNormal || f.m.Entry() != "" {
		t.Errorf("after cancel mode = %s entry = %q", f.m.Mode(), f.m.Entry())
	}
	if got := prototest.Of[protocol.EditMessageRequest](f.be); len(got) != 1 {
		t.Errorf("cancel sent an edit")
	}
}

func TestModeExclusivity(t *testing.T) {
	f := newFixture(t, protocol.FeatureEditMessagesWithinTwoDays, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", outgoing("m1", f.now), msg("m0", f.now.UnixMilli()-1))
	f.open("c1")

	wantPolicy(t, f.m.BeginEdit(), ReasonNotSelecting)

	_ = f.m.SelectUp()
	if err := f.m.BeginEdit(); err != nil {
		t.Fatal(err)
	}
	wantPolicy(t, f.m.BeginEdit(), ReasonEditing)
	wantPolicy(t, f.m.BeginFind(), ReasonEditing)
	wantPolicy(t, f.m.SelectUp(), ReasonEditing)
	if f.m.Mode() != ModeEditing {
		t.Errorf("mode = %s, want EDITING", f.m.Mode())
	}
	if f.m.Selected() != "m1" {
		t.Errorf("selected = %q, want m1 kept while editing", f.m.Selected())
	}
}

func TestFindingRejectionsNameFindMode(t *testing.T) {
	f := newFixture(t, 0, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", msg("m1", f.now.UnixMilli()), msg("m0", f.now.UnixMilli()-1))
	f.open("c1")

	if err := f.m.BeginFind(); err != nil {
		t.Fatal(err)
	}
	wantPolicy(t, f.m.BeginFind(), ReasonFinding)
	wantPolicy(t, f.m.SelectUp(), ReasonFinding)
	wantPolicy(t, f.m.PageUp(), ReasonFinding)
	wantPolicy(t, f.m.JumpToStart(context.Background()), ReasonFinding)
	if f.m.Mode() != ModeFinding {
		t.Errorf("mode = %s, want FINDING", f.m.Mode())
	}
}

func TestEditInboundRejected(t *testing.T) {
	f := newFixture(t, protocol.FeatureEditMessagesWithinTwoDays, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", msg("m1", f.now.UnixMilli()))
	f.open("c1")
	_ = f.m.SelectUp()
	wantPolicy(t, f.m.BeginEdit(), ReasonNotOutgoing)
}

func TestHelpResetsOnModeChange(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(2, 100)...)
	f.open("c1")
	f.m.HelpNext()
	f.m.HelpNext()
	if f.m.HelpPage() != 2 {
		t.Fatalf("help page = %d, want 2", f.m.HelpPage())
	}
	_ = f.m.SelectUp()
	if f.m.HelpPage() != 0 {
		t.Errorf("help page = %d after mode change, want 0", f.m.HelpPage())
	}
}

func TestSendQuotesSelection(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(3, 100)...)
	f.open("c1")

	f.m.SetEntry("plain")
	if err := f.m.Send(); err != nil {
		t.Fatal(err)
	}
	_ = f.m.SelectUp()
	_ = f.m.SelectUp()
	f.m.SetEntry("reply")
	if err := f.m.Send(); err != nil {
		t.Fatal(err)
	}

	sent := prototest.Of[protocol.SendMessageRequest](f.be)
	if len(sent) != 2 {
		t.Fatalf("sent %d, want 2", len(sent))
	}
	if sent[0].QuotedID != "" || sent[0].Text != "plain" || sent[0].ClientID == "" {
		t.Errorf("first = %+v", sent[0])
	}
	if sent[1].QuotedID != "002" || sent[1].QuotedText != "text 002" {
		t.Errorf("reply = %+v, want quote of 002", sent[1])
	}
	if sent[0].ClientID == sent[1].ClientID {
		t.Error("client ids not unique")
	}
	if f.m.Mode() != ModeNormal || f.m.Entry() != "" {
		t.Errorf("after send mode = %s entry = %q", f.m.Mode(), f.m.Entry())
	}
}

func TestSendEmptyIsNoop(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	f.m.SetEntry("   ")
	if err := f.m.Send(); err != nil {
		t.Fatal(err)
	}
	if got := prototest.Of[protocol.SendMessageRequest](f.be); len(got) != 0 {
		t.Errorf("sent %d blank messages", len(got))
	}
}

func TestMessageSentIsStored(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "a", LastMessageTime: 200}, protocol.ChatInfo{ID: "b", LastMessageTime: 100})
	f.m.Handle(acct, protocol.MessageSent{Success: true, ChatID: "b", Message: protocol.ChatMessage{ID: "s1", TimeSent: 300}})

	got, ok := f.m.Message(key("b"), "s1")
	if !ok || !got.IsOutgoing || !got.IsRead {
		t.Errorf("sent message = %+v, %v", got, ok)
	}
	if keys := f.m.ChatKeys(); keys[0] != key("b") {
		t.Errorf("order = %v, want b first", keys)
	}
}

func TestChatSwitchResetsSelection(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "a", LastMessageTime: 2}, protocol.ChatInfo{ID: "b", LastMessageTime: 1})
	f.deliver("a", seq(3, 100)...)
	f.open("a")
	_ = f.m.SelectUp()
	_ = f.m.BeginFind()
	f.m.NextChat()

	if got := f.m.Current().Key; got != key("b") {
		t.Fatalf("current = %v, want b", got)
	}
	if f.m.Mode() != ModeNormal || f.m.Selected() != "" {
		t.Errorf("mode = %s selected = %q after switch", f.m.Mode(), f.m.Selected())
	}
	f.m.NextChat()
	if got := f.m.Current().Key; got != key("a") {
		t.Errorf("NextChat did not wrap: %v", got)
	}
	f.m.PrevChat()
	if got := f.m.Current().Key; got != key("b") {
		t.Errorf("PrevChat = %v, want b", got)
	}
}

func TestNextUnreadChat(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(
		protocol.ChatInfo{ID: "a", LastMessageTime: 3},
		protocol.ChatInfo{ID: "b", LastMessageTime: 2},
		protocol.ChatInfo{ID: "c", LastMessageTime: 1, IsUnread: true},
	)
	f.open("a")
	if !f.m.NextUnreadChat() {
		t.Fatal("no unread chat found")
	}
	if got := f.m.Current().Key; got != key("c") {
		t.Errorf("current = %v, want c", got)
	}
	if info, _ := f.m.Chat(key("c")); info.IsUnread {
		t.Error("opened chat still unread")
	}
	if f.m.NextUnreadChat() {
		t.Error("found unread chat when none left")
	}
}

func TestMarkReadOnView(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	in := msg("m1", 100)
	in.IsRead = false
	f.deliver("c1", in, msg("m0", 50))
	f.open("c1")
	f.m.SetWindow(10)
	f.deliver("c1", in)

	got := prototest.Of[protocol.MarkReadRequest](f.be)
	if len(got) != 1 || got[0].MsgID != "m1" {
		t.Errorf("MarkRead = %+v, want one for m1", got)
	}
}

func TestSelectChatUnknown(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	if err := f.m.SelectChat(key("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := f.m.SelectChatAt(3); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteSelected(t *testing.T) {
	f := newFixture(t, protocol.FeatureDeleteMessages, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(2, 100)...)
	f.open("c1")
	_ = f.m.SelectUp()

	refuse := func(context.Context, string) bool { return false }
	accept := func(context.Context, string) bool { return true }
	if err := f.m.DeleteSelected(context.Background(), refuse); err != nil {
		t.Fatal(err)
	}
	if got := prototest.Of[protocol.DeleteMessageRequest](f.be); len(got) != 0 {
		t.Fatalf("refused delete sent %d requests", len(got))
	}
	if err := f.m.DeleteSelected(context.Background(), accept); err != nil {
		t.Fatal(err)
	}
	got := prototest.Of[protocol.DeleteMessageRequest](f.be)
	if len(got) != 1 || got[0].MsgID != "002" {
		t.Errorf("delete = %+v, want 002", got)
	}
}

func TestDeleteRevalidatesAfterPrompt(t *testing.T) {
	f := newFixture(t, protocol.FeatureDeleteMessages, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(2, 100)...)
	f.open("c1")
	_ = f.m.SelectUp()

	confirm := func(context.Context, string) bool {
		// the message is deleted elsewhere while the prompt is open
		f.m.Handle(acct, protocol.MessageDeleted{Success: true, ChatID: "c1", MsgID: "002"})
		return true
	}
	if err := f.m.DeleteSelected(context.Background(), confirm); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if got := prototest.Of[protocol.DeleteMessageRequest](f.be); len(got) != 0 {
		t.Errorf("sent %d deletes for a vanished message", len(got))
	}
}

func TestDeleteNotSupported(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(1, 100)...)
	f.open("c1")
	_ = f.m.SelectUp()
	wantPolicy(t, f.m.DeleteSelected(context.Background(), func(context.Context, string) bool { return true }), ReasonNotSupported)
}

func TestReactToggle(t *testing.T) {
	f := newFixture(t, protocol.FeatureReactions, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	m := msg("m1", 100)
	m.Reactions = protocol.Reactions{SenderEmojis: map[string]string{"self": "👍"}, EmojiCounts: map[string]int{"👍": 1}}
	f.deliver("c1", m)
	f.open("c1")
	_ = f.m.SelectUp()

	var offered []string
	pick := func(_ context.Context, options []string, current string) (string, bool) {
		offered = options
		return current, true
	}
	if err := f.m.React(context.Background(), pick); err != nil {
		t.Fatal(err)
	}
	if len(offered) != len(DefaultReactions) {
		t.Errorf("offered %v, want defaults", offered)
	}
	got := prototest.Of[protocol.SendReactionRequest](f.be)
	if len(got) != 1 || got[0].Emoji != "" || got[0].PrevEmoji != "👍" {
		t.Errorf("reaction = %+v, want removal of 👍", got)
	}
}

func TestReactLimitedWaitsForOptions(t *testing.T) {
	f := newFixture(t, protocol.FeatureLimitedReactions, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", msg("m1", 100))
	f.open("c1")
	_ = f.m.SelectUp()

	errc := make(chan error, 1)
	go func() {
		errc <- f.m.React(context.Background(), func(_ context.Context, options []string, _ string) (string, bool) {
			return options[0], true
		})
	}()
	waitFor(t, "reaction request", func() bool {
		return len(prototest.Of[protocol.GetAvailableReactionsRequest](f.be)) == 1
	})
	f.m.Handle(acct, protocol.AvailableReactions{ChatID: "c1", MsgID: "m1", Emojis: []string{"🔥"}})
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	got := prototest.Of[protocol.SendReactionRequest](f.be)
	if len(got) != 1 || got[0].Emoji != "🔥" {
		t.Errorf("reaction = %+v, want 🔥", got)
	}
}

func TestForwardSelected(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "a", LastMessageTime: 2}, protocol.ChatInfo{ID: "b", LastMessageTime: 1})
	f.deliver("a", seq(1, 100)...)
	f.open("a")
	_ = f.m.SelectUp()

	pick := func(_ context.Context, rows []ChatRow) (store.Key, bool) {
		return rows[1].Key, true
	}
	if err := f.m.ForwardSelected(context.Background(), pick); err != nil {
		t.Fatal(err)
	}
	got := prototest.Of[protocol.SendMessageRequest](f.be)
	if len(got) != 1 || got[0].ChatID != "b" || got[0].Text != "text 001" {
		t.Errorf("forward = %+v", got)
	}
}

func TestFindLocal(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(5, 100)...)
	f.open("c1")

	if err := f.m.BeginFind(); err != nil {
		t.Fatal(err)
	}
	if f.m.Mode() != ModeFinding {
		t.Fatalf("mode = %s, want FINDING", f.m.Mode())
	}
	if err := f.m.SubmitFind("TEXT 00"); err != nil {
		t.Fatal(err)
	}
	if got := f.m.Selected(); got != "005" {
		t.Errorf("selected = %q, want 005", got)
	}
	if err := f.m.FindNext(); err != nil {
		t.Fatal(err)
	}
	if got := f.m.Selected(); got != "004" {
		t.Errorf("selected = %q, want 004", got)
	}
	_ = f.m.BeginFind()
	wantPolicy(t, f.m.SubmitFind("absent"), ReasonNotFound)
	if f.m.Mode() != ModeSelecting {
		t.Errorf("mode = %s, want SELECTING after failed find", f.m.Mode())
	}
}

func TestFindRemote(t *testing.T) {
	f := newFixture(t, protocol.FeatureFindMessages, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.deliver("c1", seq(3, 100)...)
	f.open("c1")
	_ = f.m.BeginFind()
	if err := f.m.SubmitFind("needle"); err != nil {
		t.Fatal(err)
	}
	reqs := prototest.Of[protocol.FindMessageRequest](f.be)
	if len(reqs) != 1 || reqs[0].FindText != "needle" {
		t.Fatalf("find = %+v", reqs)
	}
	f.m.Handle(acct, protocol.FindMessageResult{Success: true, ChatID: "c1", MsgID: "001"})
	if got := f.m.Selected(); got != "001" {
		t.Errorf("selected = %q, want 001", got)
	}
}

func TestCancelFind(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	_ = f.m.BeginFind()
	f.m.CancelFind()
	if f.m.Mode() != ModeNormal {
		t.Errorf("mode = %s, want NORMAL", f.m.Mode())
	}
}

func TestJumpToQuoted(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	reply := msg("r", 500)
	reply.QuotedID = "001"
	f.deliver("c1", append(seq(3, 100), reply)...)
	f.open("c1")
	_ = f.m.SelectUp()
	if err := f.m.JumpToQuoted(); err != nil {
		t.Fatal(err)
	}
	if got := f.m.Selected(); got != "001" {
		t.Errorf("selected = %q, want 001", got)
	}
	wantPolicy(t, f.m.JumpToQuoted(), ReasonNotFound)
}

func TestEditExternal(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	f.m.SetEntry("draft")
	edit := func(_ context.Context, text string) (string, error) {
		return text + " extended\n", nil
	}
	if err := f.m.EditExternal(context.Background(), edit); err != nil {
		t.Fatal(err)
	}
	if got := f.m.Entry(); got != "draft extended" {
		t.Errorf("entry = %q", got)
	}
}

func TestSendFile(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	pick := func(context.Context) (string, bool) { return "/tmp/photo.jpg", true }
	if err := f.m.SendFile(context.Background(), pick); err != nil {
		t.Fatal(err)
	}
	got := prototest.Of[protocol.SendMessageRequest](f.be)
	if len(got) != 1 || got[0].FilePath != "/tmp/photo.jpg" {
		t.Errorf("send = %+v", got)
	}
}

func TestCreateChat(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.m.Handle(acct, protocol.NewContacts{FullSync: true, Contacts: []protocol.Contact{{ID: "u2", Name: "Zed"}, {ID: "u1", Name: "Amy"}}})
	var names []string
	pick := func(_ context.Context, contacts []protocol.Contact) (string, bool) {
		for _, c := range contacts {
			names = append(names, c.Name)
		}
		return "u1", true
	}
	if err := f.m.CreateChat(context.Background(), acct, pick); err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Amy" {
		t.Errorf("contacts offered = %v, want sorted by name", names)
	}
	got := prototest.Of[protocol.CreateChatRequest](f.be)
	if len(got) != 1 || got[0].UserID != "u1" {
		t.Errorf("create = %+v", got)
	}
}

func TestDeleteCurrentChat(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	if err := f.m.DeleteCurrentChat(context.Background(), func(context.Context, string) bool { return true }); err != nil {
		t.Fatal(err)
	}
	if got := prototest.Of[protocol.DeleteChatRequest](f.be); len(got) != 1 || got[0].ChatID != "c1" {
		t.Errorf("delete chat = %+v", got)
	}
}

func TestToggleMuteAndPin(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1", IsMuted: true})
	f.open("c1")
	if err := f.m.ToggleMute(); err != nil {
		t.Fatal(err)
	}
	if err := f.m.TogglePin(); err != nil {
		t.Fatal(err)
	}
	mute := prototest.Of[protocol.SetMuteRequest](f.be)
	pin := prototest.Of[protocol.SetPinRequest](f.be)
	if len(mute) != 1 || mute[0].IsMuted {
		t.Errorf("mute = %+v, want unmute", mute)
	}
	if len(pin) != 1 || !pin[0].IsPinned {
		t.Errorf("pin = %+v, want pin", pin)
	}
}
