package model

import (
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
)

// typingRefresh is how often an ongoing typing state is re-announced to
// backends whose typing indication times out.
const typingRefresh = 5 * time.Second

type typingState struct {
	// remote holds the users currently typing in each chat.
	remote map[store.Key]map[string]bool
	// own is the chat we last announced typing in, zero when idle.
	own     store.Key
	ownSent time.Time
}

func newTypingState() typingState {
	return typingState{remote: make(map[store.Key]map[string]bool)}
}

func (t *typingState) setRemote(k store.Key, user string, typing bool) bool {
	users := t.remote[k]
	if typing {
		if users[user] {
			return false
		}
		if users == nil {
			users = make(map[string]bool)
			t.remote[k] = users
		}
		users[user] = true
		return true
	}
	if !users[user] {
		return false
	}
	delete(users, user)
	if len(users) == 0 {
		delete(t.remote, k)
	}
	return true
}

// entryChanged announces typing for the current chat as the compose
// buffer changes.
func (m *Model) entryChanged(k store.Key, text string) {
	if !m.prefs.TypingStatusShare || k.IsZero() {
		return
	}
	if text == "" {
		m.stopTyping()
		return
	}
	if m.typing.own != k {
		m.stopTyping()
		m.sendTyping(k, true)
		return
	}
	if m.out.SupportsFeature(k.Account, protocol.FeatureTypingTimeout) &&
		m.now().Sub(m.typing.ownSent) >= typingRefresh {
		m.sendTyping(k, true)
	}
}

// stopTyping withdraws our typing announcement, if any.
func (m *Model) stopTyping() {
	k := m.typing.own
	if k.IsZero() {
		return
	}
	m.typing.own = store.Key{}
	m.out.Send(k.Account, protocol.SetTypingRequest{ChatID: k.Chat, IsTyping: false})
}

func (m *Model) sendTyping(k store.Key, typing bool) {
	m.typing.own = k
	m.typing.ownSent = m.now()
	m.out.Send(k.Account, protocol.SetTypingRequest{ChatID: k.Chat, IsTyping: typing})
}

// Tick refreshes time-based state. The UI calls it about once a second.
func (m *Model) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flash.clearExpired() {
		m.markDirty(regionStatus)
	}
	if k := m.typing.own; !k.IsZero() && k == m.cur.Key {
		m.entryChanged(k, m.entries[k])
	}
}
