package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

// Backend decorates a protocol backend with the cache. It records every
// notification the backend emits and answers older history, chat list and
// find requests from disk before the backend is asked.
type Backend struct {
	protocol.Backend
	db     *DB
	logger *zap.Logger

	mu   sync.Mutex
	sink protocol.Sink
	wg   sync.WaitGroup
}

// Wrap returns b backed by db.
func Wrap(b protocol.Backend, db *DB, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		Backend: b,
		db:      db,
		logger:  logger.With(zap.String("account", b.ProfileID())),
	}
}

func (b *Backend) Login(ctx context.Context, sink protocol.Sink) error {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
	return b.Backend.Login(ctx, func(accountID string, n protocol.Notification) {
		b.record(n)
		sink(accountID, n)
	})
}

// Logout logs the backend out and waits for pending cached replies.
func (b *Backend) Logout() error {
	err := b.Backend.Logout()
	b.wg.Wait()
	return err
}

// Send answers from disk where it can. Reads run off the caller's
// goroutine; a miss is forwarded from there.
func (b *Backend) Send(req protocol.Request) error {
	switch r := req.(type) {
	case protocol.GetChatHistoryRequest:
		// The newest page is always refreshed from the backend.
		if r.FromMsgID != "" {
			b.async(func() { b.history(r) })
			return nil
		}
	case protocol.GetChatsRequest:
		if len(r.ChatIDs) == 0 {
			b.async(b.replayChats)
		}
	case protocol.FindMessageRequest:
		if r.FromMsgID != "" && r.FindText != "" {
			b.async(func() { b.find(r) })
			return nil
		}
	}
	return b.Backend.Send(req)
}

func (b *Backend) history(r protocol.GetChatHistoryRequest) {
	msgs, err := b.db.ListContiguousBefore(b.ProfileID(), r.ChatID, r.FromMsgID, r.Limit)
	if err != nil {
		b.logger.Warn("cache history read failed", zap.String("chat", r.ChatID), zap.Error(err))
	}
	if len(msgs) > 0 {
		b.emit(protocol.NewMessages{
			Success:   true,
			ChatID:    r.ChatID,
			FromMsgID: r.FromMsgID,
			Messages:  msgs,
			Cached:    true,
			Sequence:  true,
		})
		return
	}
	if !b.forward(r) {
		b.emit(protocol.NewMessages{ChatID: r.ChatID, FromMsgID: r.FromMsgID})
	}
}

func (b *Backend) replayChats() {
	chats, err := b.db.ListChats(b.ProfileID())
	if err != nil {
		b.logger.Warn("cache chat read failed", zap.Error(err))
	}
	if len(chats) > 0 {
		b.emit(protocol.NewChats{Success: true, Chats: chats})
	}
}

func (b *Backend) find(r protocol.FindMessageRequest) {
	msg, ok, err := b.db.FindContiguous(b.ProfileID(), r.ChatID, r.FromMsgID, r.FindText)
	if err != nil {
		b.logger.Warn("cache search failed", zap.String("chat", r.ChatID), zap.Error(err))
	}
	if ok {
		b.emit(protocol.FindMessageResult{Success: true, ChatID: r.ChatID, MsgID: msg.ID})
		return
	}
	if !b.forward(r) {
		b.emit(protocol.FindMessageResult{ChatID: r.ChatID})
	}
}

func (b *Backend) forward(req protocol.Request) bool {
	if err := b.Backend.Send(req); err != nil {
		b.logger.Error("backend rejected request", zap.String("chat", req.Chat()),
			zap.String("kind", fmt.Sprintf("%T", req)), zap.Error(err))
		return false
	}
	return true
}

// async runs fn on a tracked goroutine; Send must not call the sink.
func (b *Backend) async(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *Backend) emit(n protocol.Notification) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		sink(b.ProfileID(), n)
	}
}

func (b *Backend) record(n protocol.Notification) {
	account := b.ProfileID()
	var err error
	switch n := n.(type) {
	case protocol.NewChats:
		if n.Success {
			err = b.db.UpsertChats(account, n.Chats)
		}
	case protocol.ChatCreated:
		if n.Success {
			err = b.db.UpsertChats(account, []protocol.ChatInfo{n.Chat})
		}
	case protocol.NewContacts:
		err = b.db.UpsertContacts(account, n.Contacts, n.FullSync)
	case protocol.NewMessages:
		if n.Success && !n.Cached {
			err = b.db.UpsertMessages(account, n.ChatID, n.Messages)
		}
	case protocol.MessageSent:
		if n.Success {
			err = b.db.UpsertMessages(account, n.ChatID, []protocol.ChatMessage{n.Message})
		}
	case protocol.MessageDeleted:
		if n.Success {
			err = b.db.DeleteMessage(account, n.ChatID, n.MsgID)
		}
	case protocol.ChatDeleted:
		if n.Success {
			err = b.db.DeleteChat(account, n.ChatID)
		}
	case protocol.MarkReadResult:
		if n.Success {
			err = b.db.SetRead(account, n.ChatID, n.MsgID, true)
		}
	case protocol.MessageStatusChanged:
		err = b.db.SetRead(account, n.ChatID, n.MsgID, n.IsRead)
	case protocol.MessageFileChanged:
		err = b.db.SetFile(account, n.ChatID, n.MsgID, n.FileInfo, n.FileStatus)
	case protocol.MessageReactionsChanged:
		err = b.db.ApplyReactions(account, n.ChatID, n.MsgID, n.Reactions)
	case protocol.MuteChanged:
		if n.Success {
			err = b.db.SetMuted(account, n.ChatID, n.IsMuted)
		}
	case protocol.PinChanged:
		if n.Success {
			err = b.db.SetPinned(account, n.ChatID, n.IsPinned, n.TimePinned)
		}
	}
	if err != nil {
		b.logger.Error("cache write failed", zap.Error(err))
	}
}

// recordMessages stores a batch. A gap free page links each message to the
// next older one, and the anchor it was requested from to the newest.
func (b *Backend) recordMessages(account string, n protocol.NewMessages) error {
	if err := b.db.UpsertMessages(account, n.ChatID, n.Messages); err != nil {
		return err
	}
	if !n.Sequence || len(n.Messages) == 0 {
		return nil
	}
	page := slices.Clone(n.Messages)
	slices.SortStableFunc(page, store.NewestFirst)
	links := make([]string, 0, len(page))
	if n.FromMsgID != "" {
		links = append(links, n.FromMsgID)
	}
	for _, m := range page[:len(page)-1] {
		links = append(links, m.ID)
	}
	return b.db.LinkMessages(account, n.ChatID, links)
}
