package wa

import (
	"context"
	"slices"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// handleEvent is the whatsmeow event handler. It drives the phase machine
// and turns events into notifications.
func (b *Backend) handleEvent(rawEvt any) {
	ctx := context.Background()
	switch evt := rawEvt.(type) {
	case *events.Connected:
		if p := b.phase.Current(); p == AuthRequired || p == Reconnecting {
			_ = b.phase.Transition(Connecting)
		}
		_ = b.phase.Transition(Syncing)
		b.emit(protocol.Connected{Success: true})
	case *events.Disconnected:
		b.logger.Warn("WhatsApp disconnected")
		_ = b.phase.Transition(Reconnecting)
	case *events.LoggedOut:
		b.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = b.phase.Transition(AuthRequired)
		b.emit(protocol.Connected{Success: false})
	case *events.Message:
		if b.phase.Current() == Syncing {
			_ = b.phase.Transition(Ready)
		}
		b.onMessage(ctx, evt)
	case *events.HistorySync:
		b.onHistorySync(ctx, evt)
	case *events.Receipt:
		if evt.Type != types.ReceiptTypeRead {
			return
		}
		chat := b.normalize(ctx, evt.Chat).String()
		for _, id := range evt.MessageIDs {
			b.mu.Lock()
			b.store.UpdateMessage(b.key(chat), id, func(m *protocol.ChatMessage) { m.IsRead = true })
			b.mu.Unlock()
			b.emit(protocol.MessageStatusChanged{ChatID: chat, MsgID: id, IsRead: true})
		}
	case *events.ChatPresence:
		b.emit(protocol.UserTyping{
			ChatID:   b.normalize(ctx, evt.Chat).String(),
			UserID:   b.normalize(ctx, evt.Sender).String(),
			IsTyping: evt.State == types.ChatPresenceComposing,
		})
	case *events.Presence:
		b.emit(protocol.UserPresence{
			UserID:   b.normalize(ctx, evt.From).String(),
			IsOnline: !evt.Unavailable,
		})
	}
}

func (b *Backend) key(chat string) store.Key {
	return store.Key{Account: b.id, Chat: chat}
}

func (b *Backend) sender(ctx context.Context, fromMe bool, jid types.JID) string {
	if fromMe {
		return b.SelfID()
	}
	return b.normalize(ctx, jid).String()
}

func (b *Backend) onMessage(ctx context.Context, evt *events.Message) {
	chat := b.normalize(ctx, evt.Info.Chat).String()
	k := b.key(chat)
	sender := b.sender(ctx, evt.Info.IsFromMe, evt.Info.Sender)

	if pm := protocolMessage(evt.Message); pm != nil {
		b.onProtocolMessage(chat, pm)
		return
	}
	if rm := evt.Message.GetReactionMessage(); rm != nil {
		delta := protocol.Reactions{SenderEmojis: map[string]string{sender: rm.GetText()}}
		msgID := rm.GetKey().GetID()
		b.mu.Lock()
		b.store.UpdateMessage(k, msgID, func(m *protocol.ChatMessage) { m.Reactions = m.Reactions.Apply(delta) })
		b.mu.Unlock()
		b.emit(protocol.MessageReactionsChanged{ChatID: chat, MsgID: msgID, Reactions: delta})
		return
	}

	m := parseMessage(evt.Info, evt.Message)
	m.SenderID = sender
	if m.QuotedSender != "" {
		m.QuotedSender = b.normalizeString(ctx, m.QuotedSender)
	}

	b.mu.Lock()
	isNewChat := !b.store.HasChat(k)
	if isNewChat {
		name := ""
		if !evt.Info.IsGroup && !evt.Info.IsFromMe {
			name = evt.Info.PushName
		}
		b.store.UpsertChat(b.id, protocol.ChatInfo{ID: chat, Name: name})
	}
	b.store.UpdateChat(k, func(c *protocol.ChatInfo) {
		c.LastMessageTime = max(c.LastMessageTime, m.TimeSent)
	})
	b.store.UpsertMessage(k, m)
	b.store.Reindex(k)
	info, _ := b.store.Chat(k)
	b.mu.Unlock()

	if isNewChat {
		b.emit(protocol.NewChats{Success: true, Chats: []protocol.ChatInfo{b.named(info)}})
	}
	b.emit(protocol.NewMessages{Success: true, ChatID: chat, Messages: []protocol.ChatMessage{m}})
}

func (b *Backend) onProtocolMessage(chat string, pm *waE2E.ProtocolMessage) {
	k := b.key(chat)
	msgID := pm.GetKey().GetID()
	switch pm.GetType() {
	case waE2E.ProtocolMessage_REVOKE:
		b.mu.Lock()
		ok := b.store.DeleteMessage(k, msgID)
		b.mu.Unlock()
		if ok {
			b.emit(protocol.MessageDeleted{Success: true, ChatID: chat, MsgID: msgID})
		}
	case waE2E.ProtocolMessage_MESSAGE_EDIT:
		text := extractTextBody(pm.GetEditedMessage())
		var edited protocol.ChatMessage
		b.mu.Lock()
		ok := b.store.UpdateMessage(k, msgID, func(m *protocol.ChatMessage) {
			m.Text = text
			edited = m.Clone()
		})
		b.mu.Unlock()
		if ok {
			b.emit(protocol.NewMessages{Success: true, ChatID: chat, Messages: []protocol.ChatMessage{edited}})
		}
	}
}

func (b *Backend) onHistorySync(ctx context.Context, evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}
	now := time.Now().Unix()

	var chats []protocol.ChatInfo
	batches := make(map[string][]protocol.ChatMessage)
	for _, conv := range data.GetConversations() {
		chat := b.normalizeString(ctx, conv.GetID())
		if chat == "" {
			continue
		}
		info := protocol.ChatInfo{
			ID:              chat,
			Name:            conv.GetName(),
			IsUnread:        conv.GetUnreadCount() > 0,
			IsPinned:        conv.GetPinned() > 0,
			TimePinned:      int64(conv.GetPinned()) * 1000,
			IsMuted:         int64(conv.GetMuteEndTime()) > now,
			LastMessageTime: int64(conv.GetConversationTimestamp()) * 1000,
		}

		var msgs []protocol.ChatMessage
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			key := wmsg.GetKey()
			participant := key.GetParticipant()
			if participant == "" {
				participant = wmsg.GetParticipant()
			}
			if participant == "" {
				participant = chat
			}
			m := protocol.ChatMessage{
				ID:         key.GetID(),
				Text:       extractTextBody(wmsg.GetMessage()),
				TimeSent:   int64(wmsg.GetMessageTimestamp()) * 1000,
				IsOutgoing: key.GetFromMe(),
				IsRead:     true,
			}
			if m.IsOutgoing {
				m.SenderID = b.SelfID()
			} else {
				m.SenderID = b.normalizeString(ctx, participant)
			}
			quote(&m, wmsg.GetMessage())
			attach(&m, wmsg.GetMessage())
			msgs = append(msgs, m)
			info.LastMessageTime = max(info.LastMessageTime, m.TimeSent)
		}
		slices.SortStableFunc(msgs, store.NewestFirst)
		markUnread(msgs, int(conv.GetUnreadCount()))

		b.mu.Lock()
		b.store.UpsertChat(b.id, info)
		k := b.key(chat)
		for _, m := range msgs {
			b.store.UpsertMessage(k, m)
		}
		b.store.Reindex(k)
		b.mu.Unlock()

		chats = append(chats, b.named(info))
		if len(msgs) > 0 {
			batches[chat] = msgs
		}
	}

	b.logger.Info("history batch received", zap.Int("chats", len(chats)), zap.Int("with_messages", len(batches)))
	if len(chats) > 0 {
		b.emit(protocol.NewChats{Success: true, Chats: chats})
	}
	for chat, msgs := range batches {
		b.emit(protocol.NewMessages{Success: true, ChatID: chat, Messages: msgs})
	}
}

// markUnread flags the newest n inbound messages of a newest-first slice.
func markUnread(msgs []protocol.ChatMessage, n int) {
	for i := range msgs {
		if n <= 0 {
			return
		}
		if !msgs[i].IsOutgoing {
			msgs[i].IsRead = false
			n--
		}
	}
}

// named fills a missing chat name from the contact list.
func (b *Backend) named(info protocol.ChatInfo) protocol.ChatInfo {
	if info.Name != "" {
		return info
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	info.Name = b.contacts[info.ID]
	return info
}
