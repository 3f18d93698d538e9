// Package loopback is an in-process backend with seeded demo chats. It
// answers every request asynchronously and echoes sent messages back as
// replies from the peer.
package loopback

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"go.uber.org/zap"
)

// Features is what the loopback backend supports: everything.
const Features = protocol.FeatureAutoGetChatsOnLogin |
	protocol.FeatureTypingTimeout |
	protocol.FeatureEditMessagesWithinTwoDays |
	protocol.FeatureReactions |
	protocol.FeatureDeleteMessages |
	protocol.FeatureFindMessages

const selfID = "me"

// ErrNotLoggedIn is returned by Send before Login.
var ErrNotLoggedIn = errors.New("loopback: not logged in")

// Reactions are the emojis offered for every message.
var Reactions = []string{"👍", "❤️", "😂", "🎉"}

// Options tunes the demo data and reply timing.
type Options struct {
	// HistoryDepth is the number of seeded messages per chat.
	HistoryDepth int
	// ReplyDelay is how long the peer "types" before echoing.
	ReplyDelay time.Duration
	// Empty starts without seeded chats.
	Empty bool
	Now   func() time.Time
}

type chat struct {
	info    protocol.ChatInfo
	members []string
	// msgs holds the history newest first.
	msgs []protocol.ChatMessage
}

// Backend is the loopback account.
type Backend struct {
	id     string
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	sink     protocol.Sink
	chats    map[string]*chat
	contacts []protocol.Contact
	current  string
	nextID   int64
	queue    []protocol.Request
	wake     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a loopback backend for account id.
func New(id string, opts Options, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = 200
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := &Backend{
		id:     id,
		opts:   opts,
		logger: logger.With(zap.String("account", id)),
		chats:  make(map[string]*chat),
		wake:   make(chan struct{}, 1),
	}
	if !opts.Empty {
		b.seed()
	}
	return b
}

func (b *Backend) ProfileID() string { return b.id }
func (b *Backend) SelfID() string    { return selfID }

func (b *Backend) SupportsFeature(f protocol.Feature) bool {
	return Features.Has(f)
}

// Login starts the request worker and announces the account.
func (b *Backend) Login(ctx context.Context, sink protocol.Sink) error {
	b.mu.Lock()
	if b.sink != nil {
		b.mu.Unlock()
		return errors.New("loopback: already logged in")
	}
	b.sink = sink
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(ctx)

	b.emit(protocol.Connected{Success: true})
	b.emit(protocol.NewChats{Success: true, Chats: b.chatInfos(nil)})
	b.emit(protocol.UserPresence{UserID: "alice", IsOnline: true})
	b.logger.Info("loopback logged in", zap.Int("chats", len(b.chats)))
	return nil
}

// Logout stops the worker. Pending requests are dropped.
func (b *Backend) Logout() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
	b.mu.Lock()
	b.sink = nil
	b.queue = nil
	b.mu.Unlock()
	return nil
}

// Send queues req for the worker.
func (b *Backend) Send(req protocol.Request) error {
	b.mu.Lock()
	if b.sink == nil {
		b.mu.Unlock()
		return ErrNotLoggedIn
	}
	b.queue = append(b.queue, req)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *Backend) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			req := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			b.handle(ctx, req)
		}
	}
}

func (b *Backend) emit(n protocol.Notification) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		sink(b.id, n)
	}
}

func (b *Backend) now() int64 { return b.opts.Now().UnixMilli() }

// newID returns the next decimal message id; ids grow with time.
func (b *Backend) newID() string {
	b.nextID++
	return fmt.Sprintf("%d", b.nextID)
}

func (b *Backend) chatInfos(ids []string) []protocol.ChatInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []protocol.ChatInfo
	for id, c := range b.chats {
		if len(ids) > 0 && !slices.Contains(ids, id) {
			continue
		}
		out = append(out, c.info)
	}
	slices.SortFunc(out, func(a, c protocol.ChatInfo) int { return strings.Compare(a.ID, c.ID) })
	return out
}

func (b *Backend) handle(ctx context.Context, req protocol.Request) {
	switch r := req.(type) {
	case protocol.GetContactsRequest:
		b.mu.Lock()
		contacts := slices.Clone(b.contacts)
		b.mu.Unlock()
		b.emit(protocol.NewContacts{FullSync: true, Contacts: contacts})
	case protocol.GetChatsRequest:
		b.emit(protocol.NewChats{Success: true, Chats: b.chatInfos(r.ChatIDs)})
	case protocol.GetChatHistoryRequest:
		b.emit(b.history(r))
	case protocol.SendMessageRequest:
		b.send(ctx, r)
	case protocol.EditMessageRequest:
		b.edit(r)
	case protocol.DeleteMessageRequest:
		ok := b.update(r.ChatID, r.MsgID, nil)
		if ok {
			b.mu.Lock()
			c := b.chats[r.ChatID]
			c.msgs = slices.DeleteFunc(c.msgs, func(m protocol.ChatMessage) bool { return m.ID == r.MsgID })
			b.mu.Unlock()
		}
		b.emit(protocol.MessageDeleted{Success: ok, ChatID: r.ChatID, MsgID: r.MsgID})
	case protocol.DeleteChatRequest:
		b.mu.Lock()
		_, ok := b.chats[r.ChatID]
		delete(b.chats, r.ChatID)
		b.mu.Unlock()
		b.emit(protocol.ChatDeleted{Success: ok, ChatID: r.ChatID})
	case protocol.MarkReadRequest:
		ok := b.update(r.ChatID, r.MsgID, func(m *protocol.ChatMessage) { m.IsRead = true })
		b.mu.Lock()
		if c := b.chats[r.ChatID]; c != nil {
			c.info.IsUnread = false
		}
		b.mu.Unlock()
		b.emit(protocol.MarkReadResult{Success: ok, ChatID: r.ChatID, MsgID: r.MsgID})
	case protocol.SetTypingRequest:
		b.emit(protocol.TypingSent{Success: true})
	case protocol.SetStatusRequest:
		b.emit(protocol.StatusSet{Success: true})
	case protocol.CreateChatRequest:
		b.create(r)
	case protocol.GetAvailableReactionsRequest:
		b.emit(protocol.AvailableReactions{ChatID: r.ChatID, MsgID: r.MsgID, Emojis: slices.Clone(Reactions)})
	case protocol.SendReactionRequest:
		delta := protocol.Reactions{SenderEmojis: map[string]string{selfID: r.Emoji}}
		if b.update(r.ChatID, r.MsgID, func(m *protocol.ChatMessage) { m.Reactions = m.Reactions.Apply(delta) }) {
			b.emit(protocol.MessageReactionsChanged{ChatID: r.ChatID, MsgID: r.MsgID, Reactions: delta})
		}
	case protocol.FindMessageRequest:
		b.emit(b.find(r))
	case protocol.SetCurrentChatRequest:
		b.mu.Lock()
		b.current = r.ChatID
		b.mu.Unlock()
	case protocol.SetMuteRequest:
		ok := b.setChat(r.ChatID, func(c *protocol.ChatInfo) { c.IsMuted = r.IsMuted })
		b.emit(protocol.MuteChanged{Success: ok, ChatID: r.ChatID, IsMuted: r.IsMuted})
	case protocol.SetPinRequest:
		var pinned int64
		if r.IsPinned {
			pinned = b.now()
		}
		ok := b.setChat(r.ChatID, func(c *protocol.ChatInfo) {
			c.IsPinned = r.IsPinned
			c.TimePinned = pinned
		})
		b.emit(protocol.PinChanged{Success: ok, ChatID: r.ChatID, IsPinned: r.IsPinned, TimePinned: pinned})
	default:
		b.logger.Warn("unhandled request", zap.String("type", fmt.Sprintf("%T", req)))
	}
}

func (b *Backend) history(r protocol.GetChatHistoryRequest) protocol.NewMessages {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := protocol.NewMessages{ChatID: r.ChatID, FromMsgID: r.FromMsgID, Sequence: true}
	c := b.chats[r.ChatID]
	if c == nil {
		return n
	}
	n.Success = true
	start := 0
	if r.FromMsgID != "" {
		start = slices.IndexFunc(c.msgs, func(m protocol.ChatMessage) bool { return m.ID == r.FromMsgID }) + 1
		if start == 0 {
			return n
		}
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 50
	}
	end := min(start+limit, len(c.msgs))
	for _, m := range c.msgs[start:end] {
		n.Messages = append(n.Messages, m.Clone())
	}
	return n
}

func (b *Backend) send(ctx context.Context, r protocol.SendMessageRequest) {
	b.mu.Lock()
	c := b.chats[r.ChatID]
	if c == nil {
		b.mu.Unlock()
		b.emit(protocol.MessageSent{ChatID: r.ChatID, ClientID: r.ClientID})
		return
	}
	text := r.Text
	if r.FilePath != "" && text == "" {
		text = "[file] " + r.FilePath
	}
	m := protocol.ChatMessage{
		ID:           b.newID(),
		SenderID:     selfID,
		Text:         text,
		QuotedID:     r.QuotedID,
		QuotedText:   r.QuotedText,
		QuotedSender: r.QuotedSender,
		FileInfo:     r.FileInfo,
		TimeSent:     b.now(),
		IsOutgoing:   true,
		IsRead:       true,
	}
	if r.FilePath != "" {
		m.FileInfo = r.FilePath
		m.FileStatus = protocol.FileStatusDownloaded
	}
	c.msgs = slices.Insert(c.msgs, 0, m)
	c.info.LastMessageTime = m.TimeSent
	peer := c.members[0]
	b.mu.Unlock()

	b.emit(protocol.MessageSent{Success: true, ChatID: r.ChatID, ClientID: r.ClientID, Message: m})
	b.echo(ctx, r.ChatID, peer, m)
}

// echo replies to m from peer after the configured delay.
func (b *Backend) echo(ctx context.Context, chatID, peer string, m protocol.ChatMessage) {
	b.emit(protocol.UserTyping{ChatID: chatID, UserID: peer, IsTyping: true})
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.opts.ReplyDelay):
		}
		b.mu.Lock()
		c := b.chats[chatID]
		if c == nil {
			b.mu.Unlock()
			return
		}
		reply := protocol.ChatMessage{
			ID:           b.newID(),
			SenderID:     peer,
			Text:         "echo: " + m.Text,
			QuotedID:     m.ID,
			QuotedText:   m.Text,
			QuotedSender: m.SenderID,
			TimeSent:     b.now(),
			IsRead:       b.current == chatID,
		}
		c.msgs = slices.Insert(c.msgs, 0, reply)
		c.info.LastMessageTime = reply.TimeSent
		if !reply.IsRead {
			c.info.IsUnread = true
		}
		b.mu.Unlock()

		b.emit(protocol.UserTyping{ChatID: chatID, UserID: peer, IsTyping: false})
		b.emit(protocol.NewMessages{Success: true, ChatID: chatID, Messages: []protocol.ChatMessage{reply}})
	}()
}

func (b *Backend) edit(r protocol.EditMessageRequest) {
	var edited protocol.ChatMessage
	ok := b.update(r.ChatID, r.Message.ID, func(m *protocol.ChatMessage) {
		if m.IsOutgoing {
			m.Text = r.Message.Text
		}
		edited = m.Clone()
	})
	if ok {
		b.emit(protocol.NewMessages{Success: true, ChatID: r.ChatID, Messages: []protocol.ChatMessage{edited}})
	}
}

func (b *Backend) create(r protocol.CreateChatRequest) {
	b.mu.Lock()
	idx := slices.IndexFunc(b.contacts, func(c protocol.Contact) bool { return c.ID == r.UserID })
	if idx < 0 {
		b.mu.Unlock()
		b.emit(protocol.ChatCreated{})
		return
	}
	c := b.chats[r.UserID]
	if c == nil {
		c = &chat{
			info:    protocol.ChatInfo{ID: r.UserID, Name: b.contacts[idx].Name, LastMessageTime: b.now()},
			members: []string{r.UserID},
		}
		b.chats[r.UserID] = c
	}
	info := c.info
	b.mu.Unlock()
	b.emit(protocol.ChatCreated{Success: true, Chat: info})
}

func (b *Backend) find(r protocol.FindMessageRequest) protocol.FindMessageResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	res := protocol.FindMessageResult{ChatID: r.ChatID}
	c := b.chats[r.ChatID]
	if c == nil {
		return res
	}
	start := 0
	if r.FromMsgID != "" {
		start = slices.IndexFunc(c.msgs, func(m protocol.ChatMessage) bool { return m.ID == r.FromMsgID }) + 1
	}
	needle := strings.ToLower(r.FindText)
	for _, m := range c.msgs[start:] {
		if (r.TargetMsgID != "" && m.ID == r.TargetMsgID) ||
			(needle != "" && strings.Contains(strings.ToLower(m.Text), needle)) {
			res.Success = true
			res.MsgID = m.ID
			return res
		}
	}
	return res
}

// update applies fn to a stored message; a nil fn only checks existence.
func (b *Backend) update(chatID, msgID string, fn func(m *protocol.ChatMessage)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.chats[chatID]
	if c == nil {
		return false
	}
	i := slices.IndexFunc(c.msgs, func(m protocol.ChatMessage) bool { return m.ID == msgID })
	if i < 0 {
		return false
	}
	if fn != nil {
		fn(&c.msgs[i])
	}
	return true
}

func (b *Backend) setChat(chatID string, fn func(c *protocol.ChatInfo)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.chats[chatID]
	if c == nil {
		return false
	}
	fn(&c.info)
	return true
}
