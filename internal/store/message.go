package store

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matheus3301/mchat/internal/protocol"
)

// UpsertMessage inserts a message or overwrites the stored fields of an
// already known id. Returns true if the id was new. The history index is
// extended but not resorted; call Reindex after a batch.
func (s *Store) UpsertMessage(k Key, m protocol.ChatMessage) bool {
	h := s.hist(k, true)
	if cur, ok := h.msgs[m.ID]; ok {
		*cur = m.Clone()
		return false
	}
	cp := m.Clone()
	h.msgs[m.ID] = &cp
	h.index = append(h.index, m.ID)
	return true
}

// Message returns one message.
func (s *Store) Message(k Key, id string) (protocol.ChatMessage, bool) {
	h := s.hist(k, false)
	if h == nil {
		return protocol.ChatMessage{}, false
	}
	m, ok := h.msgs[id]
	if !ok {
		return protocol.ChatMessage{}, false
	}
	return m.Clone(), true
}

// UpdateMessage applies fn to a stored message. Returns false if unknown.
func (s *Store) UpdateMessage(k Key, id string, fn func(m *protocol.ChatMessage)) bool {
	h := s.hist(k, false)
	if h == nil {
		return false
	}
	m, ok := h.msgs[id]
	if !ok {
		return false
	}
	fn(m)
	return true
}

// DeleteMessage removes a message from the set and the index.
func (s *Store) DeleteMessage(k Key, id string) bool {
	h := s.hist(k, false)
	if h == nil {
		return false
	}
	if _, ok := h.msgs[id]; !ok {
		return false
	}
	delete(h.msgs, id)
	if i := slices.Index(h.index, id); i >= 0 {
		h.index = slices.Delete(h.index, i, i+1)
	}
	return true
}

// Reindex sorts the history index newest first. Messages sharing a
// TimeSent are ordered by descending id (numeric when both ids are
// decimal integers), so the result is the same on every run.
func (s *Store) Reindex(k Key) {
	h := s.hist(k, false)
	if h == nil {
		return
	}
	slices.SortStableFunc(h.index, func(a, b string) int {
		return NewestFirst(*h.msgs[a], *h.msgs[b])
	})
}

// NewestFirst is the history order as a comparison function: it is
// negative when a sorts before (is newer than) b.
func NewestFirst(a, b protocol.ChatMessage) int {
	if a.TimeSent != b.TimeSent {
		if a.TimeSent > b.TimeSent {
			return -1
		}
		return 1
	}
	return -CompareIDs(a.ID, b.ID)
}

// HistoryLen returns the number of indexed messages of a chat.
func (s *Store) HistoryLen(k Key) int {
	h := s.hist(k, false)
	if h == nil {
		return 0
	}
	return len(h.index)
}

// IDAt returns the message id at position i of the index (0 = newest).
func (s *Store) IDAt(k Key, i int) (string, bool) {
	h := s.hist(k, false)
	if h == nil || i < 0 || i >= len(h.index) {
		return "", false
	}
	return h.index[i], true
}

// IndexOf returns the position of id in the index, or -1.
func (s *Store) IndexOf(k Key, id string) int {
	h := s.hist(k, false)
	if h == nil {
		return -1
	}
	return slices.Index(h.index, id)
}

// Oldest returns the id at the end of the index.
func (s *Store) Oldest(k Key) (string, bool) {
	return s.IDAt(k, s.HistoryLen(k)-1)
}

// Window returns copies of up to n messages starting at index position
// from, newest first.
func (s *Store) Window(k Key, from, n int) []protocol.ChatMessage {
	h := s.hist(k, false)
	if h == nil || from < 0 || from >= len(h.index) || n <= 0 {
		return nil
	}
	end := min(from+n, len(h.index))
	out := make([]protocol.ChatMessage, 0, end-from)
	for _, id := range h.index[from:end] {
		out = append(out, h.msgs[id].Clone())
	}
	return out
}

// CompareIDs orders message ids. Decimal ids sort before all other ids
// and compare by numeric value, with leading zeros breaking ties; any
// other pair compares as strings.
func CompareIDs(a, b string) int {
	da, db := isDecimal(a), isDecimal(b)
	switch {
	case da && db:
		ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if c := cmp.Compare(len(ta), len(tb)); c != 0 {
			return c
		}
		if c := strings.Compare(ta, tb); c != 0 {
			return c
		}
	case da:
		return -1
	case db:
		return 1
	}
	return strings.Compare(a, b)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
