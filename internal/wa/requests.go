package wa

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

func (b *Backend) handle(ctx context.Context, req protocol.Request) {
	switch r := req.(type) {
	case protocol.GetContactsRequest:
		b.emit(protocol.NewContacts{FullSync: true, Contacts: b.loadContacts(ctx)})
	case protocol.GetChatsRequest:
		b.emit(protocol.NewChats{Success: true, Chats: b.chatInfos(r.ChatIDs)})
	case protocol.GetChatHistoryRequest:
		b.emit(b.history(r))
	case protocol.SendMessageRequest:
		b.emit(b.sendText(ctx, r))
	case protocol.EditMessageRequest:
		b.edit(ctx, r)
	case protocol.DeleteMessageRequest:
		err := b.revoke(ctx, r)
		b.failed("delete message", err)
		b.emit(protocol.MessageDeleted{Success: err == nil, ChatID: r.ChatID, MsgID: r.MsgID})
	case protocol.SendReactionRequest:
		b.react(ctx, r)
	case protocol.MarkReadRequest:
		err := b.markRead(ctx, r)
		b.failed("mark read", err)
		b.emit(protocol.MarkReadResult{Success: err == nil, ChatID: r.ChatID, MsgID: r.MsgID})
	case protocol.SetTypingRequest:
		err := b.setTyping(ctx, r)
		b.failed("set typing", err)
		b.emit(protocol.TypingSent{Success: err == nil})
	case protocol.SetStatusRequest:
		err := b.setStatus(ctx, r.IsOnline)
		b.failed("set status", err)
		b.emit(protocol.StatusSet{Success: err == nil})
	case protocol.CreateChatRequest:
		b.createChat(r)
	case protocol.DeleteChatRequest:
		// Chats are removed locally; WhatsApp keeps them on the phone.
		b.mu.Lock()
		ok := b.store.DeleteChat(b.key(r.ChatID))
		b.mu.Unlock()
		b.emit(protocol.ChatDeleted{Success: ok, ChatID: r.ChatID})
	case protocol.SetMuteRequest:
		b.mu.Lock()
		ok := b.store.UpdateChat(b.key(r.ChatID), func(c *protocol.ChatInfo) { c.IsMuted = r.IsMuted })
		b.mu.Unlock()
		b.emit(protocol.MuteChanged{Success: ok, ChatID: r.ChatID, IsMuted: r.IsMuted})
	case protocol.SetPinRequest:
		var pinned int64
		if r.IsPinned {
			pinned = time.Now().UnixMilli()
		}
		b.mu.Lock()
		ok := b.store.UpdateChat(b.key(r.ChatID), func(c *protocol.ChatInfo) {
			c.IsPinned, c.TimePinned = r.IsPinned, pinned
		})
		b.mu.Unlock()
		b.emit(protocol.PinChanged{Success: ok, ChatID: r.ChatID, IsPinned: r.IsPinned, TimePinned: pinned})
	case protocol.SetCurrentChatRequest:
		b.mu.Lock()
		b.current = r.ChatID
		b.mu.Unlock()
	case protocol.FindMessageRequest:
		b.emit(protocol.FindMessageResult{ChatID: r.ChatID})
	case protocol.GetAvailableReactionsRequest:
		b.emit(protocol.AvailableReactions{ChatID: r.ChatID, MsgID: r.MsgID})
	default:
		b.logger.Warn("unhandled request", zap.String("type", fmt.Sprintf("%T", req)))
	}
}

func (b *Backend) failed(op string, err error) {
	if err != nil {
		b.logger.Warn("whatsapp request failed", zap.String("op", op), zap.Error(err))
	}
}

func (b *Backend) loadContacts(ctx context.Context) []protocol.Contact {
	if b.client == nil {
		return nil
	}
	all, err := b.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		b.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	self := b.SelfID()
	contacts := make([]protocol.Contact, 0, len(all))
	names := make(map[string]string, len(all))
	for jid, info := range all {
		jid = jid.ToNonAD()
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		c := protocol.Contact{ID: jid.String(), Name: name, IsSelf: jid.String() == self}
		if jid.Server == types.DefaultUserServer {
			c.Phone = "+" + jid.User
		}
		contacts = append(contacts, c)
		names[c.ID] = name
	}
	b.mu.Lock()
	b.contacts = names
	b.mu.Unlock()
	return contacts
}

func (b *Backend) chatInfos(ids []string) []protocol.ChatInfo {
	b.mu.Lock()
	refs := b.store.Chats()
	b.mu.Unlock()
	var out []protocol.ChatInfo
	for _, ref := range refs {
		if ref.Key.Account != b.id || (len(ids) > 0 && !slices.Contains(ids, ref.Key.Chat)) {
			continue
		}
		out = append(out, b.named(ref.Info))
	}
	return out
}

// history pages the in-memory history. Batches are not marked Sequence:
// history sync can leave gaps.
func (b *Backend) history(r protocol.GetChatHistoryRequest) protocol.NewMessages {
	k := b.key(r.ChatID)
	b.mu.Lock()
	defer b.mu.Unlock()
	n := protocol.NewMessages{Success: true, ChatID: r.ChatID, FromMsgID: r.FromMsgID}
	from := 0
	if r.FromMsgID != "" {
		i := b.store.IndexOf(k, r.FromMsgID)
		if i < 0 {
			return n
		}
		from = i + 1
	}
	n.Messages = b.store.Window(k, from, r.Limit)
	return n
}

func (b *Backend) sendText(ctx context.Context, r protocol.SendMessageRequest) protocol.MessageSent {
	res := protocol.MessageSent{ChatID: r.ChatID, ClientID: r.ClientID}
	if r.FilePath != "" || r.FileInfo != "" {
		b.logger.Warn("whatsapp attachments are not supported", zap.String("chat", r.ChatID))
		return res
	}
	to, err := types.ParseJID(r.ChatID)
	if err != nil {
		b.failed("send message", fmt.Errorf("parse JID: %w", err))
		return res
	}
	msg := &waE2E.Message{Conversation: proto.String(r.Text)}
	if r.QuotedID != "" {
		msg = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(r.Text),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID:      proto.String(r.QuotedID),
				Participant:   proto.String(r.QuotedSender),
				QuotedMessage: &waE2E.Message{Conversation: proto.String(r.QuotedText)},
			},
		}}
	}
	resp, err := b.client.SendMessage(ctx, to, msg)
	if err != nil {
		b.failed("send message", err)
		return res
	}

	m := protocol.ChatMessage{
		ID:           resp.ID,
		SenderID:     b.SelfID(),
		Text:         r.Text,
		QuotedID:     r.QuotedID,
		QuotedText:   r.QuotedText,
		QuotedSender: r.QuotedSender,
		TimeSent:     time.Now().UnixMilli(),
		IsOutgoing:   true,
		IsRead:       true,
	}
	k := b.key(r.ChatID)
	b.mu.Lock()
	b.store.UpsertMessage(k, m)
	b.store.Reindex(k)
	b.store.UpdateChat(k, func(c *protocol.ChatInfo) { c.LastMessageTime = m.TimeSent })
	b.mu.Unlock()
	res.Success = true
	res.Message = m
	return res
}

func messageKey(chat, msgID, sender string, fromMe bool) *waCommon.MessageKey {
	key := &waCommon.MessageKey{
		RemoteJID: proto.String(chat),
		FromMe:    proto.Bool(fromMe),
		ID:        proto.String(msgID),
	}
	if !fromMe && strings.HasSuffix(chat, "@"+types.GroupServer) {
		key.Participant = proto.String(sender)
	}
	return key
}

func (b *Backend) edit(ctx context.Context, r protocol.EditMessageRequest) {
	to, err := types.ParseJID(r.ChatID)
	if err == nil {
		_, err = b.client.SendMessage(ctx, to, &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
			Key:           messageKey(r.ChatID, r.Message.ID, r.Message.SenderID, true),
			Type:          waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(),
			EditedMessage: &waE2E.Message{Conversation: proto.String(r.Message.Text)},
		}})
	}
	if err != nil {
		b.failed("edit message", err)
		return
	}
	var edited protocol.ChatMessage
	b.mu.Lock()
	ok := b.store.UpdateMessage(b.key(r.ChatID), r.Message.ID, func(m *protocol.ChatMessage) {
		m.Text = r.Message.Text
		edited = m.Clone()
	})
	b.mu.Unlock()
	if ok {
		b.emit(protocol.NewMessages{Success: true, ChatID: r.ChatID, Messages: []protocol.ChatMessage{edited}})
	}
}

func (b *Backend) revoke(ctx context.Context, r protocol.DeleteMessageRequest) error {
	to, err := types.ParseJID(r.ChatID)
	if err != nil {
		return err
	}
	fromMe := r.SenderID == b.SelfID()
	_, err = b.client.SendMessage(ctx, to, &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Key:  messageKey(r.ChatID, r.MsgID, r.SenderID, fromMe),
		Type: waE2E.ProtocolMessage_REVOKE.Enum(),
	}})
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.store.DeleteMessage(b.key(r.ChatID), r.MsgID)
	b.mu.Unlock()
	return nil
}

func (b *Backend) react(ctx context.Context, r protocol.SendReactionRequest) {
	to, err := types.ParseJID(r.ChatID)
	if err == nil {
		self := b.SelfID()
		_, err = b.client.SendMessage(ctx, to, &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{
			Key:               messageKey(r.ChatID, r.MsgID, r.SenderID, r.SenderID == self),
			Text:              proto.String(r.Emoji),
			SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
		}})
	}
	if err != nil {
		b.failed("send reaction", err)
		return
	}
	delta := protocol.Reactions{SenderEmojis: map[string]string{b.SelfID(): r.Emoji}}
	b.mu.Lock()
	b.store.UpdateMessage(b.key(r.ChatID), r.MsgID, func(m *protocol.ChatMessage) { m.Reactions = m.Reactions.Apply(delta) })
	b.mu.Unlock()
	b.emit(protocol.MessageReactionsChanged{ChatID: r.ChatID, MsgID: r.MsgID, Reactions: delta})
}

func (b *Backend) markRead(ctx context.Context, r protocol.MarkReadRequest) error {
	chat, err := types.ParseJID(r.ChatID)
	if err != nil {
		return err
	}
	var sender types.JID
	if r.SenderID != "" && chat.Server == types.GroupServer {
		if sender, err = types.ParseJID(r.SenderID); err != nil {
			return err
		}
	}
	if err := b.client.MarkRead(ctx, []types.MessageID{r.MsgID}, time.Now(), chat, sender); err != nil {
		return err
	}
	b.mu.Lock()
	b.store.UpdateMessage(b.key(r.ChatID), r.MsgID, func(m *protocol.ChatMessage) { m.IsRead = true })
	b.mu.Unlock()
	return nil
}

func (b *Backend) setTyping(ctx context.Context, r protocol.SetTypingRequest) error {
	chat, err := types.ParseJID(r.ChatID)
	if err != nil {
		return err
	}
	state := types.ChatPresencePaused
	if r.IsTyping {
		state = types.ChatPresenceComposing
	}
	return b.client.SendChatPresence(ctx, chat, state, types.ChatPresenceMediaText)
}

func (b *Backend) setStatus(ctx context.Context, online bool) error {
	presence := types.PresenceUnavailable
	if online {
		presence = types.PresenceAvailable
	}
	return b.client.SendPresence(ctx, presence)
}

func (b *Backend) createChat(r protocol.CreateChatRequest) {
	jid, err := userJID(r.UserID)
	if err != nil {
		b.failed("create chat", err)
		b.emit(protocol.ChatCreated{})
		return
	}
	info := protocol.ChatInfo{ID: jid.ToNonAD().String(), LastMessageTime: time.Now().UnixMilli()}
	b.mu.Lock()
	if existing, ok := b.store.Chat(b.key(info.ID)); ok {
		info = existing
	} else {
		b.store.UpsertChat(b.id, info)
	}
	b.mu.Unlock()
	b.emit(protocol.ChatCreated{Success: true, Chat: b.named(info)})
}
