package model

import (
	"context"
	"errors"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
)

const (
	// fetchAllLimit is the page size used while loading a whole history.
	fetchAllLimit = 200
	// maxFetchAllRounds bounds JumpToStart against backends that keep
	// returning new ids forever.
	maxFetchAllRounds = 10_000
)

type pageState struct {
	offset int
	// stack holds the deltas applied by PageUp, most recent last.
	stack     []int
	requested map[string]bool
	completed map[string]bool
	waiters   map[string][]chan struct{}

	// oldest message seen through sequence deliveries.
	oldestID   string
	oldestTime int64

	// pendingJump is a message id to select once it is loaded.
	pendingJump string
}

// Pager decides when to fetch older history and keeps each chat's
// scroll offset. It is guarded by the Model lock.
type Pager struct {
	store  *store.Store
	out    Sender
	window int
	states map[store.Key]*pageState
}

func newPager(s *store.Store, out Sender, window int) *Pager {
	return &Pager{
		store:  s,
		out:    out,
		window: window,
		states: make(map[store.Key]*pageState),
	}
}

func (p *Pager) state(k store.Key) *pageState {
	st, ok := p.states[k]
	if !ok {
		st = &pageState{
			requested: make(map[string]bool),
			completed: make(map[string]bool),
			waiters:   make(map[string][]chan struct{}),
		}
		p.states[k] = st
	}
	return st
}

// drop forgets a chat, waking anything waiting on it.
func (p *Pager) drop(k store.Key) {
	st, ok := p.states[k]
	if !ok {
		return
	}
	for _, chans := range st.waiters {
		for _, ch := range chans {
			close(ch)
		}
	}
	delete(p.states, k)
}

// anchor returns the id older pages are requested from and how many
// history entries lie at or above it.
func (p *Pager) anchor(k store.Key) (string, int) {
	st := p.state(k)
	if st.oldestID != "" {
		if i := p.store.IndexOf(k, st.oldestID); i >= 0 {
			return st.oldestID, i + 1
		}
	}
	if id, ok := p.store.Oldest(k); ok {
		return id, p.store.HistoryLen(k)
	}
	return "", 0
}

// needed is how many more messages the current offset requires.
func (p *Pager) needed(k store.Key) int {
	_, size := p.anchor(k)
	return p.state(k).offset + 1 + p.window - size
}

// fetch requests older history for k if the offset needs it and the
// anchor was not requested before. Returns true if a request went out.
func (p *Pager) fetch(k store.Key) bool {
	if k.IsZero() {
		return false
	}
	needed := p.needed(k)
	if needed <= 0 {
		return false
	}
	anchor, _ := p.anchor(k)
	st := p.state(k)
	if st.requested[anchor] {
		return false
	}
	st.requested[anchor] = true
	p.out.Send(k.Account, protocol.GetChatHistoryRequest{ChatID: k.Chat, FromMsgID: anchor, Limit: needed})
	return true
}

// awaitOlder issues a bulk fetch from the current anchor and returns a
// channel closed when the answer arrives, or nil once the anchor was
// already answered, meaning the history is complete.
func (p *Pager) awaitOlder(k store.Key) <-chan struct{} {
	anchor, _ := p.anchor(k)
	st := p.state(k)
	if st.completed[anchor] {
		return nil
	}
	ch := make(chan struct{})
	st.waiters[anchor] = append(st.waiters[anchor], ch)
	if !st.requested[anchor] {
		st.requested[anchor] = true
		if !p.out.Send(k.Account, protocol.GetChatHistoryRequest{ChatID: k.Chat, FromMsgID: anchor, Limit: fetchAllLimit}) {
			p.complete(k, anchor)
		}
	}
	return ch
}

// complete marks a fetch from anchor as answered.
func (p *Pager) complete(k store.Key, anchor string) {
	st := p.state(k)
	st.completed[anchor] = true
	for _, ch := range st.waiters[anchor] {
		close(ch)
	}
	delete(st.waiters, anchor)
}

// trackOldest folds a sequence-delivered message into the anchor.
func (p *Pager) trackOldest(k store.Key, msg protocol.ChatMessage) {
	st := p.state(k)
	if st.oldestID == "" || msg.TimeSent < st.oldestTime ||
		(msg.TimeSent == st.oldestTime && store.CompareIDs(msg.ID, st.oldestID) < 0) {
		st.oldestID = msg.ID
		st.oldestTime = msg.TimeSent
	}
}

// visibleFrom is the index of the newest message on screen.
func (p *Pager) visibleFrom(k store.Key) int {
	offset := p.state(k).offset
	if offset < p.window {
		return 0
	}
	return offset - p.window + 1
}

// reset scrolls a chat back to the newest message.
func (p *Pager) reset(k store.Key) {
	st := p.state(k)
	st.offset = 0
	st.stack = nil
	st.pendingJump = ""
}

// prefetch runs the fetch decision for the current chat and the next one.
func (m *Model) prefetch() {
	if m.cur.Key.IsZero() {
		return
	}
	m.pager.fetch(m.cur.Key)
	if next, ok := m.nextKey(); ok {
		m.pager.fetch(next)
	}
}

// selectAt moves the selection to index i of the current chat.
func (m *Model) selectAt(i int) {
	k := m.cur.Key
	id, ok := m.store.IDAt(k, i)
	if !ok {
		return
	}
	if m.mode.Current() == ModeNormal {
		if err := m.mode.Transition(ModeSelecting); err != nil {
			return
		}
	}
	m.pager.state(k).offset = i
	m.selectedID = id
	m.markDirty(regionHistory)
}

// resolveSelection re-finds the selected message after the index changed.
// A deleted selection falls back to the message now at the same offset.
func (m *Model) resolveSelection() {
	k := m.cur.Key
	if k.IsZero() {
		return
	}
	st := m.pager.state(k)
	n := m.store.HistoryLen(k)
	if m.selectedID == "" {
		st.offset = min(st.offset, max(n-1, 0))
		return
	}
	if i := m.store.IndexOf(k, m.selectedID); i >= 0 {
		st.offset = i
		return
	}
	if n == 0 {
		st.offset = 0
		st.stack = nil
		if m.mode.Current() == ModeSelecting {
			m.resetMode()
		}
		return
	}
	st.offset = min(st.offset, n-1)
	m.selectedID, _ = m.store.IDAt(k, st.offset)
}

// retryJump selects a pending jump target once loaded, or asks for more
// history until it is.
func (m *Model) retryJump() {
	k := m.cur.Key
	st := m.pager.state(k)
	if st.pendingJump == "" {
		return
	}
	if i := m.store.IndexOf(k, st.pendingJump); i >= 0 {
		st.pendingJump = ""
		m.selectAt(i)
		return
	}
	anchor, _ := m.pager.anchor(k)
	if st.requested[anchor] {
		if st.completed[anchor] {
			st.pendingJump = ""
			m.setFlash(ReasonNotFound)
		}
		return
	}
	st.requested[anchor] = true
	m.out.Send(k.Account, protocol.GetChatHistoryRequest{
		ChatID:    k.Chat,
		FromMsgID: anchor,
		Limit:     m.pager.window,
	})
}

// SelectUp moves the selection one message older, entering selection at
// the newest message from Normal.
func (m *Model) SelectUp() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	switch m.mode.Current() {
	case ModeNormal:
		if m.store.HistoryLen(k) == 0 {
			return nil
		}
		m.selectAt(0)
	case ModeSelecting:
		st := m.pager.state(k)
		if st.offset+1 < m.store.HistoryLen(k) {
			m.selectAt(st.offset + 1)
		}
	default:
		return m.reject("select", m.busyReason())
	}
	m.prefetch()
	return nil
}

// SelectDown moves the selection one message newer. Moving past the
// newest message leaves selection.
func (m *Model) SelectDown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	if m.mode.Current() != ModeSelecting {
		return nil
	}
	st := m.pager.state(k)
	if st.offset > 0 {
		m.selectAt(st.offset - 1)
		return nil
	}
	m.leaveSelection()
	return nil
}

func (m *Model) leaveSelection() {
	m.pager.reset(m.cur.Key)
	m.resetMode()
	m.markVisibleRead()
	m.markDirty(regionHistory)
}

// PageUp scrolls one window older and remembers the step.
func (m *Model) PageUp() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	if mode := m.mode.Current(); mode == ModeEditing || mode == ModeFinding {
		return m.reject("page up", m.busyReason())
	}
	st := m.pager.state(k)
	n := m.store.HistoryLen(k)
	delta := min(m.pager.window, n-1-st.offset)
	if delta > 0 {
		st.stack = append(st.stack, delta)
		m.selectAt(st.offset + delta)
	}
	m.prefetch()
	return nil
}

// PageDown undoes the most recent PageUp, or scrolls one window newer
// when there is none.
func (m *Model) PageDown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	if m.mode.Current() != ModeSelecting {
		return nil
	}
	st := m.pager.state(k)
	delta := m.pager.window
	if len(st.stack) > 0 {
		delta = st.stack[len(st.stack)-1]
		st.stack = st.stack[:len(st.stack)-1]
	}
	m.selectAt(max(st.offset-delta, 0))
	return nil
}

// JumpToEnd returns to the newest message and leaves selection.
func (m *Model) JumpToEnd() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.Key.IsZero() {
		return ErrNoChat
	}
	if m.mode.Current() == ModeEditing {
		return m.reject("jump", m.busyReason())
	}
	m.leaveSelection()
	return nil
}

// JumpToStart loads the whole history of the current chat and selects
// its oldest message. It blocks until every page arrived or ctx ends, and
// does not hold the lock while waiting.
func (m *Model) JumpToStart(ctx context.Context) error {
	m.mu.Lock()
	k := m.cur.Key
	if k.IsZero() {
		m.mu.Unlock()
		return ErrNoChat
	}
	if m.mode.Current() == ModeEditing || m.mode.Current() == ModeFinding {
		defer m.mu.Unlock()
		return m.reject("jump", m.busyReason())
	}
	m.mu.Unlock()

	for range maxFetchAllRounds {
		m.mu.Lock()
		if m.cur.Key != k {
			m.mu.Unlock()
			return ErrNotFound
		}
		ch := m.pager.awaitOlder(k)
		m.mu.Unlock()
		if ch == nil {
			break
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur.Key != k {
		return ErrNotFound
	}
	n := m.store.HistoryLen(k)
	if n == 0 {
		return nil
	}
	st := m.pager.state(k)
	if m.mode.Current() == ModeNormal {
		m.selectAt(0)
	}
	for st.offset < n-1 {
		delta := min(m.pager.window, n-1-st.offset)
		st.stack = append(st.stack, delta)
		st.offset += delta
	}
	m.selectAt(st.offset)
	return nil
}

// JumpToMessage selects a message of the current chat by id. An id that
// is not loaded yet becomes a pending target pursued as history arrives.
func (m *Model) JumpToMessage(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jumpTo(id)
}

func (m *Model) jumpTo(id string) error {
	k := m.cur.Key
	if k.IsZero() {
		return ErrNoChat
	}
	if id == "" {
		return errors.New("jump: empty message id")
	}
	if i := m.store.IndexOf(k, id); i >= 0 {
		m.selectAt(i)
		return nil
	}
	m.pager.state(k).pendingJump = id
	m.retryJump()
	return nil
}
