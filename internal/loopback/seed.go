package loopback

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
)

var seedChats = []struct {
	id      string
	name    string
	members []string
	muted   bool
	unread  bool
}{
	{"alice", "Alice", []string{"alice"}, false, true},
	{"bob", "Bob", []string{"bob"}, false, false},
	{"team", "Team", []string{"alice", "bob", "carol"}, false, false},
	{"news", "News", []string{"newsbot"}, true, false},
}

var seedLines = []string{
	"hey, how is it going?",
	"did you see the release notes",
	"lunch at noon?",
	"sure, sounds good",
	"pushed the fix, can you take a look",
	"the build is green again",
	"see you tomorrow",
	"ok",
}

func (b *Backend) seed() {
	b.contacts = []protocol.Contact{
		{ID: selfID, Name: "Me", IsSelf: true},
		{ID: "alice", Name: "Alice", Phone: "+1 555 0101"},
		{ID: "bob", Name: "Bob", Phone: "+1 555 0102"},
		{ID: "carol", Name: "Carol", Phone: "+1 555 0103"},
		{ID: "dave", Name: "Dave", Phone: "+1 555 0104"},
		{ID: "newsbot", Name: "Newsbot"},
	}

	depth := b.opts.HistoryDepth
	start := b.opts.Now().Add(-time.Duration(depth) * time.Minute)
	// Messages of all chats interleave so ids grow with time across chats.
	for _, sc := range seedChats {
		b.chats[sc.id] = &chat{
			info:    protocol.ChatInfo{ID: sc.id, Name: sc.name, IsMuted: sc.muted},
			members: sc.members,
		}
	}
	for i := range depth {
		ts := start.Add(time.Duration(i) * time.Minute).UnixMilli()
		for ci, sc := range seedChats {
			c := b.chats[sc.id]
			sender := sc.members[(i+ci)%len(sc.members)]
			outgoing := (i+ci)%3 == 0
			if outgoing {
				sender = selfID
			}
			m := protocol.ChatMessage{
				ID:         b.newID(),
				SenderID:   sender,
				Text:       fmt.Sprintf("%s (#%d)", seedLines[(i+ci)%len(seedLines)], i+1),
				TimeSent:   ts + int64(ci),
				IsOutgoing: outgoing,
				IsRead:     true,
			}
			if i > 0 && i%25 == 0 {
				prev := c.msgs[len(c.msgs)-1]
				m.QuotedID, m.QuotedText, m.QuotedSender = prev.ID, prev.Text, prev.SenderID
			}
			c.msgs = append(c.msgs, m)
			c.info.LastMessageTime = m.TimeSent
		}
	}
	for _, sc := range seedChats {
		c := b.chats[sc.id]
		slices.Reverse(c.msgs)
		if sc.unread && len(c.msgs) > 0 {
			newest := &c.msgs[0]
			newest.SenderID = sc.members[0]
			newest.IsOutgoing = false
			newest.IsRead = false
			c.info.IsUnread = true
		}
	}
}
