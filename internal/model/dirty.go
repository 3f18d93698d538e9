package model

import (
	"slices"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
)

// Dirty reports which screen regions need a redraw.
type Dirty struct {
	List    bool
	Status  bool
	History bool
	Help    bool
	Entry   bool
}

// Any reports whether any region is dirty.
func (d Dirty) Any() bool {
	return d.List || d.Status || d.History || d.Help || d.Entry
}

type region int

const (
	regionList region = iota
	regionStatus
	regionHistory
	regionHelp
	regionEntry
)

func (m *Model) markDirty(regions ...region) {
	for _, r := range regions {
		switch r {
		case regionList:
			m.dirty.List = true
		case regionStatus:
			m.dirty.Status = true
		case regionHistory:
			m.dirty.History = true
		case regionHelp:
			m.dirty.Help = true
		case regionEntry:
			m.dirty.Entry = true
		}
	}
	m.signalRefresh()
}

func (m *Model) markAllDirty() {
	m.markDirty(regionList, regionStatus, regionHistory, regionHelp, regionEntry)
}

// TakeDirty returns and clears the dirty flags.
func (m *Model) TakeDirty() Dirty {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.dirty
	m.dirty = Dirty{}
	return d
}

// ChatRow is one line of the chat list.
type ChatRow struct {
	Key       store.Key
	Name      string
	IsUnread  bool
	IsMuted   bool
	IsPinned  bool
	Typing    bool
	LastTime  int64
	Connected bool
}

// View is a copy of everything the renderer draws.
type View struct {
	Chats      []ChatRow
	Current    Cursor
	Title      string
	Messages   []protocol.ChatMessage
	Names      map[string]string
	Selected   string
	EditingID  string
	Mode       Mode
	Entry      string
	Typing     []string
	PeerOnline bool
	Flash      string
	HelpPage   int
	Control    bool
}

// Snapshot copies the state needed to draw the screen. The message window
// holds up to the pager window of messages, newest first, and always
// contains the selected message.
func (m *Model) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Current:   m.cur,
		Selected:  m.selectedID,
		EditingID: m.editID,
		Mode:      m.mode.Current(),
		Flash:     m.flash.Get(),
		HelpPage:  m.help,
		Control:   m.control,
		Names:     make(map[string]string),
	}
	for _, k := range m.sorted {
		info, _ := m.store.Chat(k)
		v.Chats = append(v.Chats, ChatRow{
			Key:       k,
			Name:      m.chatName(k),
			IsUnread:  info.IsUnread,
			IsMuted:   info.IsMuted,
			IsPinned:  info.IsPinned,
			Typing:    len(m.typing.remote[k]) > 0,
			LastTime:  info.LastMessageTime,
			Connected: m.online(k.Account),
		})
	}
	if m.cur.Key.IsZero() {
		return v
	}
	k := m.cur.Key
	v.Title = m.chatName(k)
	v.Entry = m.entries[k]
	v.Messages = m.store.Window(k, m.pager.visibleFrom(k), m.pager.window)
	for _, msg := range v.Messages {
		if _, ok := v.Names[msg.SenderID]; !ok {
			v.Names[msg.SenderID] = m.displayName(k.Account, msg.SenderID)
		}
	}
	for user := range m.typing.remote[k] {
		v.Typing = append(v.Typing, m.displayName(k.Account, user))
	}
	slices.Sort(v.Typing)
	v.PeerOnline = m.presence[k.Account][k.Chat]
	return v
}
