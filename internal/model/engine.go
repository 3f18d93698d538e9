package model

import (
	"fmt"
	"slices"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

// Handle applies one backend notification. It matches protocol.Sink and
// is safe to call from any goroutine.
func (m *Model) Handle(accountID string, n protocol.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch n := n.(type) {
	case protocol.Connected:
		m.onConnected(accountID, n)
	case protocol.NewContacts:
		m.store.SetContacts(accountID, n.Contacts, n.FullSync)
		m.contactsAt[accountID] = m.now()
		m.markDirty(regionList, regionHistory, regionStatus)
	case protocol.NewChats:
		m.onNewChats(accountID, n)
	case protocol.NewMessages:
		m.onNewMessages(accountID, n)
	case protocol.MessageSent:
		m.onMessageSent(accountID, n)
	case protocol.MarkReadResult:
		if !m.ok(accountID, "mark read", n.Success) {
			return
		}
		m.setMessage(store.Key{Account: accountID, Chat: n.ChatID}, n.MsgID, func(msg *protocol.ChatMessage) {
			msg.IsRead = true
		})
	case protocol.MessageDeleted:
		m.onMessageDeleted(accountID, n)
	case protocol.TypingSent:
		m.ok(accountID, "set typing", n.Success)
	case protocol.StatusSet:
		m.ok(accountID, "set status", n.Success)
	case protocol.MessageStatusChanged:
		m.setMessage(store.Key{Account: accountID, Chat: n.ChatID}, n.MsgID, func(msg *protocol.ChatMessage) {
			msg.IsRead = n.IsRead
		})
	case protocol.MessageFileChanged:
		m.setMessage(store.Key{Account: accountID, Chat: n.ChatID}, n.MsgID, func(msg *protocol.ChatMessage) {
			msg.FileInfo = n.FileInfo
			msg.FileStatus = n.FileStatus
		})
	case protocol.MessageReactionsChanged:
		m.setMessage(store.Key{Account: accountID, Chat: n.ChatID}, n.MsgID, func(msg *protocol.ChatMessage) {
			msg.Reactions = msg.Reactions.Apply(n.Reactions)
		})
	case protocol.UserTyping:
		k := store.Key{Account: accountID, Chat: n.ChatID}
		if m.typing.setRemote(k, n.UserID, n.IsTyping) {
			m.markDirty(regionList, regionStatus)
		}
	case protocol.UserPresence:
		users := m.presence[accountID]
		if users == nil {
			users = make(map[string]bool)
			m.presence[accountID] = users
		}
		if n.IsOnline {
			users[n.UserID] = true
		} else {
			delete(users, n.UserID)
		}
		if m.cur.Key == (store.Key{Account: accountID, Chat: n.UserID}) {
			m.markDirty(regionStatus)
		}
	case protocol.ChatCreated:
		m.onChatCreated(accountID, n)
	case protocol.ChatDeleted:
		if !m.ok(accountID, "delete chat", n.Success) {
			return
		}
		m.removeChat(store.Key{Account: accountID, Chat: n.ChatID})
	case protocol.MuteChanged:
		if !m.ok(accountID, "set mute", n.Success) {
			return
		}
		k := store.Key{Account: accountID, Chat: n.ChatID}
		if m.store.UpdateChat(k, func(c *protocol.ChatInfo) { c.IsMuted = n.IsMuted || m.muted[k] }) {
			m.updateDerived(k)
			m.resort()
			m.markDirty(regionList)
		}
	case protocol.PinChanged:
		if !m.ok(accountID, "set pin", n.Success) {
			return
		}
		k := store.Key{Account: accountID, Chat: n.ChatID}
		if m.store.UpdateChat(k, func(c *protocol.ChatInfo) {
			c.IsPinned = n.IsPinned
			c.TimePinned = n.TimePinned
		}) {
			m.resort()
			m.markDirty(regionList)
		}
	case protocol.UIControlRequested:
		m.control = n.Take
		m.logger.Info("terminal control changed", zap.String("account", accountID), zap.Bool("backend", n.Take))
		m.markAllDirty()
	case protocol.AppExitRequested:
		m.logger.Info("backend requested exit", zap.String("account", accountID))
		m.Quit()
	case protocol.AvailableReactions:
		ref := msgRef{key: store.Key{Account: accountID, Chat: n.ChatID}, id: n.MsgID}
		m.reactions[ref] = slices.Clone(n.Emojis)
		for _, ch := range m.reactWait[ref] {
			close(ch)
		}
		delete(m.reactWait, ref)
	case protocol.FindMessageResult:
		m.onFindResult(accountID, n)
	default:
		m.logger.Warn("unhandled notification", zap.String("account", accountID), zap.String("kind", fmt.Sprintf("%T", n)))
	}
}

// ok logs a failed backend operation and reports whether it succeeded.
func (m *Model) ok(accountID, op string, success bool) bool {
	if !success {
		m.logger.Warn("backend operation failed", zap.String("account", accountID), zap.String("op", op))
	}
	return success
}

func (m *Model) onConnected(accountID string, n protocol.Connected) {
	c := m.conn(accountID)
	if !n.Success {
		m.logger.Warn("account connection failed", zap.String("account", accountID))
		_ = c.Transition(status.Failed)
		m.setFlash(accountID + ": connection failed")
		return
	}
	if c.Current() != status.Online {
		_ = c.Transition(status.Online)
	}
	m.connectedAt[accountID] = m.now()
	if !m.out.SupportsFeature(accountID, protocol.FeatureAutoGetChatsOnLogin) {
		m.out.Send(accountID, protocol.GetChatsRequest{})
	}
	m.out.Send(accountID, protocol.GetContactsRequest{})
	if m.prefs.OnlineStatusShare {
		m.out.Send(accountID, protocol.SetStatusRequest{IsOnline: true})
	}
	m.markDirty(regionStatus, regionList)
}

func (m *Model) onNewChats(accountID string, n protocol.NewChats) {
	if !m.ok(accountID, "get chats", n.Success) {
		return
	}
	for _, c := range n.Chats {
		k := store.Key{Account: accountID, Chat: c.ID}
		if m.hidden[k] {
			if m.store.DeleteChat(k) && m.cur.Key == k {
				m.leaveCurrent()
			}
			continue
		}
		if m.muted[k] {
			c.IsMuted = true
		}
		delete(m.metaReq, k)
		m.noteTime(k, c.LastMessageTime)
		if newest, ok := m.newestTime(k); ok {
			m.noteTime(k, newest)
		}
		c.LastMessageTime = m.derivedTime(k, c)
		if k == m.cur.Key {
			c.IsUnread = false
		}
		m.store.UpsertChat(accountID, c)
	}
	m.resort()
	m.markDirty(regionList, regionStatus)
	m.prefetch()
}

// newestTime returns the TimeSent of the newest non-sponsored message.
func (m *Model) newestTime(k store.Key) (int64, bool) {
	n := m.store.HistoryLen(k)
	for i := range n {
		id, _ := m.store.IDAt(k, i)
		if msg, ok := m.store.Message(k, id); ok && !msg.IsSponsored {
			return msg.TimeSent, true
		}
	}
	return 0, false
}

func (m *Model) onNewMessages(accountID string, n protocol.NewMessages) {
	k := store.Key{Account: accountID, Chat: n.ChatID}
	if !n.Success {
		m.ok(accountID, "get chat history", false)
		m.pager.complete(k, n.FromMsgID)
		return
	}

	info, known := m.store.Chat(k)
	unread := info.IsUnread
	connected := m.connectedAt[accountID]
	everyUnread := m.out.SupportsFeature(accountID, protocol.FeatureNotifyEveryUnread)
	var alerts []protocol.ChatMessage
	becameUnread := false

	for _, msg := range n.Messages {
		isNew := m.store.UpsertMessage(k, msg)
		if n.Sequence {
			m.pager.trackOldest(k, msg)
		}
		if !msg.IsSponsored {
			m.noteTime(k, msg.TimeSent)
		}
		if !isNew || msg.IsOutgoing || msg.IsRead {
			continue
		}
		if !unread || everyUnread {
			if !n.Cached && !connected.IsZero() && msg.TimeSent > connected.UnixMilli() {
				alerts = append(alerts, msg)
			}
		}
		if !unread {
			becameUnread = true
		}
		unread = true
	}
	m.store.Reindex(k)
	m.pager.complete(k, n.FromMsgID)

	if known {
		current := k == m.cur.Key
		m.store.UpdateChat(k, func(c *protocol.ChatInfo) {
			if becameUnread && !current {
				c.IsUnread = true
			}
		})
		m.updateDerived(k)
		m.resort()
	} else if !m.metaReq[k] {
		m.metaReq[k] = true
		m.out.Send(accountID, protocol.GetChatsRequest{ChatIDs: []string{n.ChatID}})
	}
	// Metadata may not have arrived yet, so the policy sets are checked
	// as well as the stored flag.
	if m.hidden[k] || ((info.IsMuted || m.muted[k]) && !m.prefs.MutedNotify) {
		alerts = nil
	}

	for _, msg := range alerts {
		m.publish(bus.KindAlertMessage, bus.Alert{
			AccountID: accountID,
			ChatID:    n.ChatID,
			ChatName:  m.chatName(k),
			SenderID:  msg.SenderID,
			Sender:    m.displayName(accountID, msg.SenderID),
			Text:      msg.Text,
		})
	}

	if k == m.cur.Key {
		m.resolveSelection()
		m.retryJump()
		m.prefetch()
		m.markVisibleRead()
		m.markDirty(regionHistory)
	} else if next, ok := m.nextKey(); ok && next == k {
		m.pager.fetch(k)
	}
	m.markDirty(regionList)
}

func (m *Model) onMessageSent(accountID string, n protocol.MessageSent) {
	if !m.ok(accountID, "send message", n.Success) {
		return
	}
	k := store.Key{Account: accountID, Chat: n.ChatID}
	msg := n.Message
	msg.IsOutgoing = true
	msg.IsRead = true
	m.store.UpsertMessage(k, msg)
	m.store.Reindex(k)
	if !msg.IsSponsored {
		m.noteTime(k, msg.TimeSent)
	}
	m.updateDerived(k)
	m.resort()
	if k == m.cur.Key {
		m.resolveSelection()
		m.markDirty(regionHistory)
	}
}

func (m *Model) onMessageDeleted(accountID string, n protocol.MessageDeleted) {
	if !m.ok(accountID, "delete message", n.Success) {
		return
	}
	k := store.Key{Account: accountID, Chat: n.ChatID}
	msg, _ := m.store.Message(k, n.MsgID)
	if !m.store.DeleteMessage(k, n.MsgID) {
		return
	}
	delete(m.readSent, msgRef{key: k, id: n.MsgID})
	if !msg.IsSponsored && msg.TimeSent >= m.lastReal[k] {
		m.lastReal[k] = 0
		if newest, ok := m.newestTime(k); ok {
			m.lastReal[k] = newest
		}
		if m.updateDerived(k) {
			m.resort()
		}
	}
	if k == m.cur.Key {
		m.resolveSelection()
		m.markDirty(regionHistory)
	}
}

func (m *Model) onChatCreated(accountID string, n protocol.ChatCreated) {
	if !m.ok(accountID, "create chat", n.Success) {
		return
	}
	k := store.Key{Account: accountID, Chat: n.Chat.ID}
	c := n.Chat
	if m.muted[k] {
		c.IsMuted = true
	}
	m.noteTime(k, c.LastMessageTime)
	c.LastMessageTime = m.derivedTime(k, c)
	m.store.UpsertChat(accountID, c)
	m.resort()
	m.switchTo(k)
}

func (m *Model) onFindResult(accountID string, n protocol.FindMessageResult) {
	k := store.Key{Account: accountID, Chat: n.ChatID}
	if k != m.cur.Key {
		return
	}
	if !n.Success || n.MsgID == "" {
		m.setFlash(ReasonNotFound)
		return
	}
	if err := m.jumpTo(n.MsgID); err != nil {
		m.logger.Debug("find result jump failed", zap.Error(err))
	}
}

// setMessage applies fn to a stored message and redraws if it is shown.
func (m *Model) setMessage(k store.Key, id string, fn func(msg *protocol.ChatMessage)) {
	if !m.store.UpdateMessage(k, id, fn) {
		m.logger.Debug("update for unknown message", zap.String("chat", k.String()), zap.String("msg_id", id))
		return
	}
	if k == m.cur.Key {
		m.markDirty(regionHistory)
	}
}

// removeChat forgets a chat and moves the cursor off it.
func (m *Model) removeChat(k store.Key) {
	m.store.DeleteChat(k)
	m.pager.drop(k)
	delete(m.entries, k)
	delete(m.typing.remote, k)
	delete(m.lastReal, k)
	idx := m.cur.Index
	wasCurrent := m.cur.Key == k
	m.resort()
	if wasCurrent {
		m.leaveCurrent()
		if len(m.sorted) > 0 {
			m.switchTo(m.sorted[min(max(idx, 0), len(m.sorted)-1)])
		}
	}
	m.markDirty(regionList)
}

// leaveCurrent unsets the current chat.
func (m *Model) leaveCurrent() {
	m.resetMode()
	m.typing.own = store.Key{}
	m.cur = Cursor{Index: -1}
	m.markAllDirty()
}
