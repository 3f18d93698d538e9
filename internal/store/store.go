// Package store is the in-memory model of chats, messages and contacts for
// all accounts. It does no locking; the owner serializes access.
package store

import (
	"github.com/matheus3301/mchat/internal/protocol"
)

// Key identifies one chat of one account.
type Key struct {
	Account string
	Chat    string
}

func (k Key) String() string { return k.Account + "/" + k.Chat }

// IsZero reports whether k is the unset key.
func (k Key) IsZero() bool { return k.Account == "" && k.Chat == "" }

// ChatRef is a chat together with its key.
type ChatRef struct {
	Key  Key
	Info protocol.ChatInfo
}

type history struct {
	msgs map[string]*protocol.ChatMessage
	// index holds message ids newest first once Reindex has run.
	index []string
}

// Store holds per-account chat metadata, per-chat message sets with their
// ordered history index, and per-account contacts.
type Store struct {
	chats    map[string]map[string]*protocol.ChatInfo
	history  map[Key]*history
	contacts map[string]map[string]protocol.Contact
}

// New creates an empty store.
func New() *Store {
	return &Store{
		chats:    make(map[string]map[string]*protocol.ChatInfo),
		history:  make(map[Key]*history),
		contacts: make(map[string]map[string]protocol.Contact),
	}
}

func (s *Store) hist(k Key, create bool) *history {
	h := s.history[k]
	if h == nil && create {
		h = &history{msgs: make(map[string]*protocol.ChatMessage)}
		s.history[k] = h
	}
	return h
}
