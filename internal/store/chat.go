package store

import "github.com/matheus3301/mchat/internal/protocol"

// UpsertChat inserts or replaces chat metadata. Returns true if the chat
// was not known before.
func (s *Store) UpsertChat(account string, c protocol.ChatInfo) bool {
	byID := s.chats[account]
	if byID == nil {
		byID = make(map[string]*protocol.ChatInfo)
		s.chats[account] = byID
	}
	if cur, ok := byID[c.ID]; ok {
		*cur = c
		return false
	}
	cp := c
	byID[c.ID] = &cp
	return true
}

// Chat returns the metadata of a chat.
func (s *Store) Chat(k Key) (protocol.ChatInfo, bool) {
	c, ok := s.chats[k.Account][k.Chat]
	if !ok {
		return protocol.ChatInfo{}, false
	}
	return *c, true
}

// HasChat reports whether the chat is known.
func (s *Store) HasChat(k Key) bool {
	_, ok := s.chats[k.Account][k.Chat]
	return ok
}

// UpdateChat applies fn to a known chat. Returns false if it is unknown.
func (s *Store) UpdateChat(k Key, fn func(c *protocol.ChatInfo)) bool {
	c, ok := s.chats[k.Account][k.Chat]
	if !ok {
		return false
	}
	fn(c)
	return true
}

// DeleteChat removes a chat with its messages and history index.
func (s *Store) DeleteChat(k Key) bool {
	_, hadChat := s.chats[k.Account][k.Chat]
	_, hadHistory := s.history[k]
	if hadChat {
		delete(s.chats[k.Account], k.Chat)
	}
	delete(s.history, k)
	return hadChat || hadHistory
}

// Chats returns all chats of all accounts in no particular order.
func (s *Store) Chats() []ChatRef {
	var refs []ChatRef
	for account, byID := range s.chats {
		for id, c := range byID {
			refs = append(refs, ChatRef{Key: Key{Account: account, Chat: id}, Info: *c})
		}
	}
	return refs
}

// SetContacts merges contacts into an account's table, or replaces the
// table when replace is set.
func (s *Store) SetContacts(account string, contacts []protocol.Contact, replace bool) {
	table := s.contacts[account]
	if table == nil || replace {
		table = make(map[string]protocol.Contact, len(contacts))
		s.contacts[account] = table
	}
	for _, c := range contacts {
		table[c.ID] = c
	}
}

// Contact returns one contact.
func (s *Store) Contact(account, id string) (protocol.Contact, bool) {
	c, ok := s.contacts[account][id]
	return c, ok
}

// Contacts returns all contacts of an account in no particular order.
func (s *Store) Contacts(account string) []protocol.Contact {
	out := make([]protocol.Contact, 0, len(s.contacts[account]))
	for _, c := range s.contacts[account] {
		out = append(out, c)
	}
	return out
}
