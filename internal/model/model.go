// Package model is the client core: it owns the chat and message store,
// applies backend notifications to it, tracks pagination and the
// interaction mode, and issues outbound requests through a Sender.
//
// A single mutex guards all state. Every exported method takes it for its
// whole duration, except the interactive commands that must wait on the
// user; those snapshot their target, release the lock while blocked, and
// re-validate the target after re-acquiring it.
package model

import (
	"errors"
	"hash/fnv"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when a command targets a chat or message
	// that is no longer in the store.
	ErrNotFound = errors.New("not found")
	// ErrNoChat is returned by commands that need a current chat.
	ErrNoChat = errors.New("no chat selected")
)

// Sender routes requests to backends. dispatch.Dispatcher implements it.
type Sender interface {
	Send(accountID string, req protocol.Request) bool
	SupportsFeature(accountID string, f protocol.Feature) bool
	SelfID(accountID string) string
}

// Preferences are the user settings the core consults.
type Preferences struct {
	MutedPositionByTimestamp bool
	MutedNotify              bool
	OnlineStatusShare        bool
	TypingStatusShare        bool
	HistoryWindow            int
	ForceHide                []store.Key
	ForceMute                []store.Key
}

// Options configure a Model.
type Options struct {
	Prefs  Preferences
	Bus    *bus.Bus
	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

const defaultWindow = 20

// Cursor identifies the current chat and its position in the sorted list.
// Index is -1 when no chat is current.
type Cursor struct {
	Key   store.Key
	Index int
}

// Model is the synchronized client state.
type Model struct {
	mu     sync.Mutex
	store  *store.Store
	out    Sender
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
	prefs  Preferences
	hidden map[store.Key]bool
	muted  map[store.Key]bool

	sorted   []store.Key
	cur      Cursor
	lastReal map[store.Key]int64
	metaReq  map[store.Key]bool

	pager      *Pager
	mode       *status.Machine[Mode]
	selectedID string
	editID     string
	findReturn Mode
	lastFind   string
	entries    map[store.Key]string
	help       int

	typing      typingState
	presence    map[string]map[string]bool
	connectedAt map[string]time.Time
	conns       map[string]*status.Machine[status.Connection]
	contactsAt  map[string]time.Time

	reactions map[msgRef][]string
	reactWait map[msgRef][]chan struct{}
	readSent  map[msgRef]bool

	control bool
	flash   Flash
	dirty   Dirty

	refreshCh chan struct{}
	done      chan struct{}
	quitOnce  sync.Once
}

type msgRef struct {
	key store.Key
	id  string
}

// New creates a Model that sends requests through out.
func New(out Sender, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	window := opts.Prefs.HistoryWindow
	if window <= 0 {
		window = defaultWindow
	}
	opts.Prefs.HistoryWindow = window

	m := &Model{
		store:       store.New(),
		out:         out,
		bus:         opts.Bus,
		logger:      logger,
		now:         now,
		prefs:       opts.Prefs,
		hidden:      keySet(opts.Prefs.ForceHide),
		muted:       keySet(opts.Prefs.ForceMute),
		cur:         Cursor{Index: -1},
		lastReal:    make(map[store.Key]int64),
		metaReq:     make(map[store.Key]bool),
		entries:     make(map[store.Key]string),
		typing:      newTypingState(),
		presence:    make(map[string]map[string]bool),
		connectedAt: make(map[string]time.Time),
		conns:       make(map[string]*status.Machine[status.Connection]),
		contactsAt:  make(map[string]time.Time),
		reactions:   make(map[msgRef][]string),
		reactWait:   make(map[msgRef][]chan struct{}),
		readSent:    make(map[msgRef]bool),
		refreshCh:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	m.flash.now = now
	m.pager = newPager(m.store, out, window)
	m.mode = status.NewMachine(ModeNormal, modeTransitions, m.onModeChange)
	return m
}

func keySet(keys []store.Key) map[store.Key]bool {
	set := make(map[store.Key]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// ParseKey splits "account/chat" into a Key. The chat id may itself
// contain slashes.
func ParseKey(s string) (store.Key, bool) {
	account, chat, ok := strings.Cut(s, "/")
	if !ok || account == "" || chat == "" {
		return store.Key{}, false
	}
	return store.Key{Account: account, Chat: chat}, true
}

// RefreshCh returns the channel that signals the UI to redraw.
func (m *Model) RefreshCh() <-chan struct{} {
	return m.refreshCh
}

func (m *Model) signalRefresh() {
	select {
	case m.refreshCh <- struct{}{}:
	default:
	}
}

// Done is closed once the session should end.
func (m *Model) Done() <-chan struct{} {
	return m.done
}

// Quit ends the session. It is safe to call more than once.
func (m *Model) Quit() {
	m.quitOnce.Do(func() {
		m.logger.Info("quit requested")
		close(m.done)
	})
}

// Current returns the current chat cursor.
func (m *Model) Current() Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Mode returns the interaction mode.
func (m *Model) Mode() Mode {
	return m.mode.Current()
}

// Chat returns the stored metadata of a chat.
func (m *Model) Chat(k store.Key) (protocol.ChatInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Chat(k)
}

// Message returns one stored message.
func (m *Model) Message(k store.Key, id string) (protocol.ChatMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Message(k, id)
}

// History returns the ordered message ids of a chat, newest first.
func (m *Model) History(k store.Key) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.store.HistoryLen(k)
	ids := make([]string, 0, n)
	for i := range n {
		id, _ := m.store.IDAt(k, i)
		ids = append(ids, id)
	}
	return ids
}

// ChatKeys returns the sorted chat list.
func (m *Model) ChatKeys() []store.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sorted)
}

// Selected returns the selected message id, or "" outside selection.
func (m *Model) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedID
}

// Offset returns the pagination offset of the current chat.
func (m *Model) Offset() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.Key.IsZero() {
		return 0
	}
	return m.pager.state(m.cur.Key).offset
}

// SetWindow changes how many messages fit on screen.
func (m *Model) SetWindow(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pager.window == n {
		return
	}
	m.pager.window = n
	m.prefetch()
	m.markVisibleRead()
}

// TerminalControlled reports whether a backend currently owns the terminal.
func (m *Model) TerminalControlled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.control
}

// Connection returns the connection state of an account.
func (m *Model) Connection(accountID string) status.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[accountID]; ok {
		return c.Current()
	}
	return status.Offline
}

func (m *Model) conn(accountID string) *status.Machine[status.Connection] {
	c, ok := m.conns[accountID]
	if !ok {
		c = status.NewConnection(func(from, to status.Connection) {
			m.logger.Info("connection state changed",
				zap.String("account", accountID),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
			)
			m.publish(bus.KindConnection, bus.ConnectionChange{AccountID: accountID, State: string(to)})
		})
		m.conns[accountID] = c
	}
	return c
}

func (m *Model) online(accountID string) bool {
	c, ok := m.conns[accountID]
	return ok && c.Current() == status.Online
}

// MarkConnecting records that a backend login started.
func (m *Model) MarkConnecting(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.conn(accountID)
	if c.Can(status.Connecting) {
		_ = c.Transition(status.Connecting)
	}
	m.markDirty(regionStatus)
}

func (m *Model) publish(kind string, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(bus.Event{Kind: kind, Timestamp: m.now(), Payload: payload})
}

// mutedTime is the low, stable sort time of a muted chat.
func mutedTime(k store.Key) int64 {
	h := fnv.New32a()
	h.Write([]byte(k.String()))
	return int64(h.Sum32() % 1_000_000)
}

// derivedTime is the LastMessageTime a chat sorts by.
func (m *Model) derivedTime(k store.Key, info protocol.ChatInfo) int64 {
	if info.IsMuted && !m.prefs.MutedPositionByTimestamp {
		return mutedTime(k)
	}
	return m.lastReal[k]
}

// noteTime raises the real newest-message time of a chat.
func (m *Model) noteTime(k store.Key, t int64) {
	if t > m.lastReal[k] {
		m.lastReal[k] = t
	}
}

// resort rebuilds the chat order and returns true if it changed.
func (m *Model) resort() bool {
	refs := m.store.Chats()
	slices.SortFunc(refs, func(a, b store.ChatRef) int {
		if a.Info.IsPinned != b.Info.IsPinned {
			if a.Info.IsPinned {
				return -1
			}
			return 1
		}
		if a.Info.IsPinned && a.Info.TimePinned != b.Info.TimePinned {
			if a.Info.TimePinned > b.Info.TimePinned {
				return -1
			}
			return 1
		}
		if a.Info.LastMessageTime != b.Info.LastMessageTime {
			if a.Info.LastMessageTime > b.Info.LastMessageTime {
				return -1
			}
			return 1
		}
		if c := strings.Compare(a.Key.Account, b.Key.Account); c != 0 {
			return c
		}
		return strings.Compare(a.Key.Chat, b.Key.Chat)
	})
	keys := make([]store.Key, len(refs))
	for i, r := range refs {
		keys[i] = r.Key
	}
	changed := !slices.Equal(keys, m.sorted)
	m.sorted = keys
	m.cur.Index = slices.Index(keys, m.cur.Key)
	if changed {
		m.markDirty(regionList)
	}
	return changed
}

// updateDerived recomputes a chat's LastMessageTime. Returns true if it
// moved.
func (m *Model) updateDerived(k store.Key) bool {
	moved := false
	m.store.UpdateChat(k, func(c *protocol.ChatInfo) {
		t := m.derivedTime(k, *c)
		moved = t != c.LastMessageTime
		c.LastMessageTime = t
	})
	return moved
}

// nextKey returns the chat after the current one in list order.
func (m *Model) nextKey() (store.Key, bool) {
	if m.cur.Index < 0 || m.cur.Index+1 >= len(m.sorted) {
		return store.Key{}, false
	}
	return m.sorted[m.cur.Index+1], true
}

// displayName resolves a user id to a contact name.
func (m *Model) displayName(account, userID string) string {
	if c, ok := m.store.Contact(account, userID); ok && c.Name != "" {
		return c.Name
	}
	return userID
}

// chatName resolves a chat's display name.
func (m *Model) chatName(k store.Key) string {
	if info, ok := m.store.Chat(k); ok && info.Name != "" {
		return info.Name
	}
	return m.displayName(k.Account, k.Chat)
}
