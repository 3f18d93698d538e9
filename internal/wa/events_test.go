package wa

import (
	"context"
	"testing"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

type recorder chan protocol.Notification

func (r recorder) sink(_ string, n protocol.Notification) { r <- n }

func next[T protocol.Notification](t *testing.T, r recorder) T {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case n := <-r:
			if v, ok := n.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T notification", zero)
			return zero
		}
	}
}

// newTestBackend returns a backend without a whatsmeow client, wired to a
// recording sink.
func newTestBackend(t *testing.T) (*Backend, recorder) {
	t.Helper()
	b := New("wa", t.TempDir(), nil, zap.NewNop())
	r := make(recorder, 64)
	b.sink = r.sink
	return b, r
}

// walkTo transitions the machine through the given phases sequentially.
func walkTo(t *testing.T, b *Backend, phases ...Phase) {
	t.Helper()
	for _, p := range phases {
		if err := b.phase.Transition(p); err != nil {
			t.Fatalf("transition to %s failed: %v", p, err)
		}
	}
}

var (
	peer  = types.JID{User: "558592403672", Server: types.DefaultUserServer}
	group = types.JID{User: "120363123456", Server: types.GroupServer}
)

func liveMessage(id string, chat, sender types.JID, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			ID:        id,
			Timestamp: time.Now(),
			PushName:  "Peer",
			MessageSource: types.MessageSource{
				Chat:    chat,
				Sender:  sender,
				IsGroup: chat.Server == types.GroupServer,
			},
		},
		Message: msg,
	}
}

func TestHandleConnectedFromAuthRequired(t *testing.T) {
	b, r := newTestBackend(t)
	walkTo(t, b, AuthRequired)

	b.handleEvent(&events.Connected{})

	if b.Phase() != Syncing {
		t.Errorf("phase = %s, want SYNCING", b.Phase())
	}
	if c := next[protocol.Connected](t, r); !c.Success {
		t.Error("Connected.Success = false")
	}
}

func TestHandleConnectedFromReconnecting(t *testing.T) {
	b, _ := newTestBackend(t)
	walkTo(t, b, Connecting, Syncing, Reconnecting)

	b.handleEvent(&events.Connected{})

	if b.Phase() != Syncing {
		t.Errorf("phase = %s, want SYNCING (reconnect path)", b.Phase())
	}
}

func TestHandleDisconnected(t *testing.T) {
	b, _ := newTestBackend(t)
	walkTo(t, b, Connecting, Syncing, Ready)

	b.handleEvent(&events.Disconnected{})

	if b.Phase() != Reconnecting {
		t.Errorf("phase = %s, want RECONNECTING", b.Phase())
	}
}

func TestHandleLoggedOut(t *testing.T) {
	b, r := newTestBackend(t)
	walkTo(t, b, Connecting, Syncing, Ready)

	b.handleEvent(&events.LoggedOut{})

	if b.Phase() != AuthRequired {
		t.Errorf("phase = %s, want AUTH_REQUIRED", b.Phase())
	}
	if c := next[protocol.Connected](t, r); c.Success {
		t.Error("Connected.Success = true after logout")
	}
}

func TestHandleMessageNewChat(t *testing.T) {
	b, r := newTestBackend(t)
	walkTo(t, b, Connecting, Syncing)

	// Device suffixes are stripped so the chat id is stable.
	chat := types.JID{User: peer.User, Server: peer.Server, Device: 1}
	sender := types.JID{User: peer.User, Server: peer.Server, Device: 3}
	b.handleEvent(liveMessage("m1", chat, sender, &waE2E.Message{Conversation: proto.String("hello")}))

	if b.Phase() != Ready {
		t.Errorf("phase = %s, want READY", b.Phase())
	}
	chats := next[protocol.NewChats](t, r)
	if len(chats.Chats) != 1 || chats.Chats[0].ID != peer.String() || chats.Chats[0].Name != "Peer" {
		t.Errorf("NewChats = %+v", chats.Chats)
	}
	nm := next[protocol.NewMessages](t, r)
	if nm.ChatID != peer.String() || len(nm.Messages) != 1 {
		t.Fatalf("NewMessages = %+v", nm)
	}
	if m := nm.Messages[0]; m.Text != "hello" || m.SenderID != peer.String() || m.IsRead {
		t.Errorf("message = %+v", m)
	}
}

func TestHandleRevokeAndEdit(t *testing.T) {
	b, r := newTestBackend(t)
	b.handleEvent(liveMessage("m1", group, peer, &waE2E.Message{Conversation: proto.String("first")}))
	b.handleEvent(liveMessage("m2", group, peer, &waE2E.Message{Conversation: proto.String("second")}))
	next[protocol.NewMessages](t, r)
	next[protocol.NewMessages](t, r)

	b.handleEvent(liveMessage("e1", group, peer, &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type:          waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(),
		Key:           &waCommon.MessageKey{ID: proto.String("m1")},
		EditedMessage: &waE2E.Message{Conversation: proto.String("edited")},
	}}))
	edited := next[protocol.NewMessages](t, r)
	if edited.Messages[0].ID != "m1" || edited.Messages[0].Text != "edited" {
		t.Errorf("edit = %+v", edited.Messages)
	}

	b.handleEvent(liveMessage("r1", group, peer, &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type: waE2E.ProtocolMessage_REVOKE.Enum(),
		Key:  &waCommon.MessageKey{ID: proto.String("m2")},
	}}))
	if del := next[protocol.MessageDeleted](t, r); del.MsgID != "m2" || !del.Success {
		t.Errorf("MessageDeleted = %+v", del)
	}
}

func TestHandleReaction(t *testing.T) {
	b, r := newTestBackend(t)
	b.handleEvent(liveMessage("m1", peer, peer, &waE2E.Message{Conversation: proto.String("hi")}))
	b.handleEvent(liveMessage("x1", peer, peer, &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{
		Key:  &waCommon.MessageKey{ID: proto.String("m1")},
		Text: proto.String("👍"),
	}}))
	rc := next[protocol.MessageReactionsChanged](t, r)
	if rc.MsgID != "m1" || rc.Reactions.SenderEmojis[peer.String()] != "👍" {
		t.Errorf("reaction = %+v", rc)
	}
	m, _ := b.store.Message(b.key(peer.String()), "m1")
	if m.Reactions.EmojiCounts["👍"] != 1 {
		t.Errorf("stored reactions = %+v", m.Reactions)
	}
}

func TestHandleHistorySync(t *testing.T) {
	b, r := newTestBackend(t)
	walkTo(t, b, Connecting, Syncing)

	ts1, ts2 := uint64(1_700_000_000), uint64(1_700_000_100)
	b.handleEvent(&events.HistorySync{
		Data: &waHistorySync.HistorySync{
			Conversations: []*waHistorySync.Conversation{
				{
					ID:          proto.String("chat@g.us"),
					Name:        proto.String("Team"),
					UnreadCount: proto.Uint32(1),
					Messages: []*waHistorySync.HistorySyncMsg{
						{
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{
									ID:          proto.String("hm1"),
									FromMe:      proto.Bool(false),
									RemoteJID:   proto.String("chat@g.us"),
									Participant: proto.String("111@s.whatsapp.net"),
								},
								MessageTimestamp: &ts1,
								Message:          &waE2E.Message{Conversation: proto.String("older")},
							},
						},
						{
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{
									ID:          proto.String("hm2"),
									FromMe:      proto.Bool(false),
									RemoteJID:   proto.String("chat@g.us"),
									Participant: proto.String("222@s.whatsapp.net"),
								},
								MessageTimestamp: &ts2,
								Message:          &waE2E.Message{Conversation: proto.String("newer")},
							},
						},
					},
				},
			},
		},
	})

	chats := next[protocol.NewChats](t, r)
	if len(chats.Chats) != 1 {
		t.Fatalf("got %d chats, want 1", len(chats.Chats))
	}
	c := chats.Chats[0]
	if c.ID != "chat@g.us" || c.Name != "Team" || !c.IsUnread || c.LastMessageTime != int64(ts2)*1000 {
		t.Errorf("chat = %+v", c)
	}
	nm := next[protocol.NewMessages](t, r)
	if len(nm.Messages) != 2 || nm.Messages[0].ID != "hm2" {
		t.Fatalf("messages = %+v, want newest first", nm.Messages)
	}
	if nm.Messages[0].IsRead || !nm.Messages[1].IsRead {
		t.Error("only the newest message should be unread")
	}
	if nm.Messages[1].SenderID != "111@s.whatsapp.net" {
		t.Errorf("sender = %q", nm.Messages[1].SenderID)
	}
}

func TestHandleHistorySyncNilData(t *testing.T) {
	b, r := newTestBackend(t)
	// Should not panic on nil data.
	b.handleEvent(&events.HistorySync{Data: nil})
	select {
	case n := <-r:
		t.Errorf("unexpected notification: %T", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleReceiptAndPresence(t *testing.T) {
	b, r := newTestBackend(t)
	b.handleEvent(&events.Receipt{
		MessageSource: types.MessageSource{Chat: peer, Sender: peer},
		MessageIDs:    []types.MessageID{"m1", "m2"},
		Type:          types.ReceiptTypeRead,
	})
	first := next[protocol.MessageStatusChanged](t, r)
	second := next[protocol.MessageStatusChanged](t, r)
	if first.MsgID != "m1" || second.MsgID != "m2" || !first.IsRead {
		t.Errorf("status changes = %+v %+v", first, second)
	}

	b.handleEvent(&events.ChatPresence{
		MessageSource: types.MessageSource{Chat: peer, Sender: peer},
		State:         types.ChatPresenceComposing,
	})
	if ut := next[protocol.UserTyping](t, r); !ut.IsTyping || ut.UserID != peer.String() {
		t.Errorf("UserTyping = %+v", ut)
	}

	b.handleEvent(&events.Presence{From: peer, Unavailable: true})
	if up := next[protocol.UserPresence](t, r); up.IsOnline {
		t.Errorf("UserPresence = %+v, want offline", up)
	}
}

func TestHistoryRequest(t *testing.T) {
	b, r := newTestBackend(t)
	for i, id := range []string{"a", "b", "c", "d"} {
		msg := liveMessage(id, peer, peer, &waE2E.Message{Conversation: proto.String(id)})
		msg.Info.Timestamp = time.Unix(int64(1000+i), 0)
		b.handleEvent(msg)
	}
	for len(r) > 0 {
		<-r
	}

	b.handle(context.Background(), protocol.GetChatHistoryRequest{ChatID: peer.String(), Limit: 2})
	first := next[protocol.NewMessages](t, r)
	if len(first.Messages) != 2 || first.Messages[0].ID != "d" || first.Messages[1].ID != "c" {
		t.Fatalf("first page = %+v", first.Messages)
	}
	b.handle(context.Background(), protocol.GetChatHistoryRequest{ChatID: peer.String(), FromMsgID: "c", Limit: 5})
	rest := next[protocol.NewMessages](t, r)
	if len(rest.Messages) != 2 || rest.Messages[0].ID != "b" || rest.FromMsgID != "c" {
		t.Errorf("second page = %+v", rest.Messages)
	}
	b.handle(context.Background(), protocol.GetChatHistoryRequest{ChatID: peer.String(), FromMsgID: "zzz", Limit: 5})
	if unknown := next[protocol.NewMessages](t, r); len(unknown.Messages) != 0 {
		t.Errorf("unknown anchor returned %d messages", len(unknown.Messages))
	}
}

func TestLocalChatRequests(t *testing.T) {
	b, r := newTestBackend(t)
	ctx := context.Background()

	b.handle(ctx, protocol.CreateChatRequest{UserID: "+55 85 9240-3672"})
	cc := next[protocol.ChatCreated](t, r)
	if !cc.Success || cc.Chat.ID != peer.String() {
		t.Fatalf("ChatCreated = %+v", cc)
	}
	b.handle(ctx, protocol.SetMuteRequest{ChatID: peer.String(), IsMuted: true})
	if mc := next[protocol.MuteChanged](t, r); !mc.Success {
		t.Error("mute failed")
	}
	b.handle(ctx, protocol.SetPinRequest{ChatID: peer.String(), IsPinned: true})
	if pc := next[protocol.PinChanged](t, r); !pc.Success || pc.TimePinned == 0 {
		t.Errorf("PinChanged = %+v", pc)
	}
	b.handle(ctx, protocol.GetChatsRequest{})
	chats := next[protocol.NewChats](t, r)
	if len(chats.Chats) != 1 || !chats.Chats[0].IsMuted || !chats.Chats[0].IsPinned {
		t.Errorf("chats = %+v", chats.Chats)
	}
	b.handle(ctx, protocol.DeleteChatRequest{ChatID: peer.String()})
	if cd := next[protocol.ChatDeleted](t, r); !cd.Success {
		t.Error("delete chat failed")
	}
	b.handle(ctx, protocol.SendMessageRequest{ChatID: peer.String(), ClientID: "c1", FilePath: "/tmp/x"})
	if ms := next[protocol.MessageSent](t, r); ms.Success || ms.ClientID != "c1" {
		t.Errorf("attachment send = %+v, want failure", ms)
	}
}
