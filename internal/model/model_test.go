package model

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/dispatch"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/protocol/prototest"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

const acct = "acc"

type fixture struct {
	t   *testing.T
	m   *Model
	be  *prototest.Backend
	bus *bus.Bus
	now time.Time
}

func newFixture(t *testing.T, features protocol.Feature, prefs Preferences) *fixture {
	t.Helper()
	be := prototest.New(acct, features)
	d := dispatch.New(zap.NewNop())
	if err := d.Register(be); err != nil {
		t.Fatal(err)
	}
	f := &fixture{t: t, be: be, bus: bus.New(), now: time.UnixMilli(1_700_000_000_000)}
	f.m = New(d, Options{
		Prefs:  prefs,
		Bus:    f.bus,
		Logger: zap.NewNop(),
		Now:    func() time.Time { return f.now },
	})
	return f
}

func key(chat string) store.Key {
	return store.Key{Account: acct, Chat: chat}
}

func msg(id string, ts int64) protocol.ChatMessage {
	return protocol.ChatMessage{ID: id, SenderID: "peer", Text: "text " + id, TimeSent: ts, IsRead: true}
}

// seq returns n read messages with zero-padded ids, id i sent at base+i.
func seq(n int, base int64) []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, msg(fmt.Sprintf("%03d", i), base+int64(i)))
	}
	return out
}

func (f *fixture) chats(infos ...protocol.ChatInfo) {
	f.t.Helper()
	f.m.Handle(acct, protocol.NewChats{Success: true, Chats: infos})
}

func (f *fixture) deliver(chat string, msgs ...protocol.ChatMessage) {
	f.t.Helper()
	f.m.Handle(acct, protocol.NewMessages{Success: true, ChatID: chat, Messages: msgs})
}

func (f *fixture) open(chat string) {
	f.t.Helper()
	if err := f.m.SelectChat(key(chat)); err != nil {
		f.t.Fatal(err)
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want store.Key
		ok   bool
	}{
		{"wa/123@s.whatsapp.net", store.Key{Account: "wa", Chat: "123@s.whatsapp.net"}, true},
		{"tg/a/b", store.Key{Account: "tg", Chat: "a/b"}, true},
		{"nochat", store.Key{}, false},
		{"/chat", store.Key{}, false},
		{"acc/", store.Key{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseKey(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseKey(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMutedTimeIsStable(t *testing.T) {
	k := key("c1")
	a, b := mutedTime(k), mutedTime(k)
	if a != b {
		t.Errorf("mutedTime not stable: %d vs %d", a, b)
	}
	if a < 0 || a >= 1_000_000 {
		t.Errorf("mutedTime = %d, want [0, 1000000)", a)
	}
}

func TestChatOrder(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(
		protocol.ChatInfo{ID: "old", LastMessageTime: 100},
		protocol.ChatInfo{ID: "new", LastMessageTime: 300},
		protocol.ChatInfo{ID: "pinned", LastMessageTime: 50, IsPinned: true, TimePinned: 10},
		protocol.ChatInfo{ID: "b-tie", LastMessageTime: 200},
		protocol.ChatInfo{ID: "a-tie", LastMessageTime: 200},
	)
	got := f.m.ChatKeys()
	want := []store.Key{key("pinned"), key("new"), key("a-tie"), key("b-tie"), key("old")}
	if !slices.Equal(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestForceHideAndMute(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{
		ForceHide: []store.Key{key("spam")},
		ForceMute: []store.Key{key("noisy")},
	})
	f.chats(protocol.ChatInfo{ID: "spam"}, protocol.ChatInfo{ID: "noisy"})

	if _, ok := f.m.Chat(key("spam")); ok {
		t.Error("hidden chat was stored")
	}
	info, ok := f.m.Chat(key("noisy"))
	if !ok || !info.IsMuted {
		t.Errorf("noisy = %+v, %v; want muted", info, ok)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{HistoryWindow: 3})
	f.chats(protocol.ChatInfo{ID: "c1", Name: "Alice"})
	f.m.Handle(acct, protocol.NewContacts{FullSync: true, Contacts: []protocol.Contact{{ID: "peer", Name: "Peer"}}})
	f.deliver("c1", seq(5, 1000)...)
	f.open("c1")
	f.m.SetEntry("draft")

	v := f.m.Snapshot()
	if v.Title != "Alice" {
		t.Errorf("Title = %q, want Alice", v.Title)
	}
	if v.Entry != "draft" {
		t.Errorf("Entry = %q, want draft", v.Entry)
	}
	if len(v.Messages) != 3 || v.Messages[0].ID != "005" {
		t.Fatalf("Messages = %v, want 3 starting at 005", v.Messages)
	}
	if v.Names["peer"] != "Peer" {
		t.Errorf("Names[peer] = %q, want Peer", v.Names["peer"])
	}
	if len(v.Chats) != 1 || v.Chats[0].Name != "Alice" {
		t.Errorf("Chats = %+v", v.Chats)
	}
}

func TestTakeDirty(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})

	select {
	case <-f.m.RefreshCh():
	default:
		t.Fatal("no refresh signal")
	}
	d := f.m.TakeDirty()
	if !d.List {
		t.Error("list not dirty after NewChats")
	}
	if f.m.TakeDirty().Any() {
		t.Error("dirty flags not cleared")
	}
}

func TestQuitIdempotent(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.m.Handle(acct, protocol.AppExitRequested{})
	f.m.Quit()
	select {
	case <-f.m.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestTypingDebounce(t *testing.T) {
	f := newFixture(t, protocol.FeatureTypingTimeout, Preferences{TypingStatusShare: true})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	f.be.Reset()

	f.m.SetEntry("h")
	f.m.SetEntry("he")
	f.now = f.now.Add(6 * time.Second)
	f.m.SetEntry("hel")
	f.m.SetEntry("")

	got := prototest.Of[protocol.SetTypingRequest](f.be)
	want := []bool{true, true, false}
	if len(got) != len(want) {
		t.Fatalf("got %d SetTyping requests, want %d: %+v", len(got), len(want), got)
	}
	for i, r := range got {
		if r.IsTyping != want[i] || r.ChatID != "c1" {
			t.Errorf("request %d = %+v, want IsTyping=%v", i, r, want[i])
		}
	}
}

func TestTypingSharingDisabled(t *testing.T) {
	f := newFixture(t, protocol.FeatureTypingTimeout, Preferences{})
	f.chats(protocol.ChatInfo{ID: "c1"})
	f.open("c1")
	f.m.SetEntry("hello")
	if got := prototest.Of[protocol.SetTypingRequest](f.be); len(got) != 0 {
		t.Errorf("got %d SetTyping requests, want 0", len(got))
	}
}

func TestFlashExpires(t *testing.T) {
	f := newFixture(t, protocol.FeatureNone, Preferences{})
	f.m.mu.Lock()
	f.m.setFlash("hello")
	f.m.mu.Unlock()
	if got := f.m.Flash(); got != "hello" {
		t.Fatalf("Flash = %q, want hello", got)
	}
	f.now = f.now.Add(flashDuration + time.Second)
	f.m.Tick()
	if got := f.m.Flash(); got != "" {
		t.Errorf("Flash after expiry = %q, want empty", got)
	}
}
