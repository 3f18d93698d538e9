package protocol

// Contact is a user known to one account.
type Contact struct {
	ID     string
	Name   string
	Phone  string
	IsSelf bool
}

// ChatInfo is the metadata of one conversation.
type ChatInfo struct {
	ID              string
	Name            string
	IsUnread        bool
	IsMuted         bool
	IsPinned        bool
	TimePinned      int64
	LastMessageTime int64 // epoch ms
}

// FileStatus tracks the download state of an attachment.
type FileStatus int

const (
	FileStatusNone FileStatus = iota
	FileStatusNotDownloaded
	FileStatusDownloading
	FileStatusDownloaded
	FileStatusFailed
)

func (s FileStatus) String() string {
	switch s {
	case FileStatusNotDownloaded:
		return "not_downloaded"
	case FileStatusDownloading:
		return "downloading"
	case FileStatusDownloaded:
		return "downloaded"
	case FileStatusFailed:
		return "failed"
	default:
		return "none"
	}
}

// Reactions summarizes the emoji reactions on a message.
type Reactions struct {
	// SenderEmojis maps sender id to the emoji it reacted with.
	SenderEmojis map[string]string
	// EmojiCounts maps emoji to number of senders, for backends that only
	// report aggregate counts.
	EmojiCounts map[string]int
	// Replace means SenderEmojis is the complete set rather than a delta.
	// In a delta an empty emoji removes that sender's reaction.
	Replace bool
}

// Empty reports whether no reaction is recorded.
func (r Reactions) Empty() bool {
	return len(r.SenderEmojis) == 0 && len(r.EmojiCounts) == 0
}

// Clone returns a deep copy.
func (r Reactions) Clone() Reactions {
	c := Reactions{Replace: r.Replace}
	if r.SenderEmojis != nil {
		c.SenderEmojis = make(map[string]string, len(r.SenderEmojis))
		for k, v := range r.SenderEmojis {
			c.SenderEmojis[k] = v
		}
	}
	if r.EmojiCounts != nil {
		c.EmojiCounts = make(map[string]int, len(r.EmojiCounts))
		for k, v := range r.EmojiCounts {
			c.EmojiCounts[k] = v
		}
	}
	return c
}

// Apply returns r updated by upd. A replacing update overwrites; a delta
// merges per-sender emojis and recomputes the counts from them. A delta
// without senders only adjusts counts.
func (r Reactions) Apply(upd Reactions) Reactions {
	if upd.Replace {
		out := upd.Clone()
		out.Replace = false
		return out
	}
	out := r.Clone()
	if len(upd.SenderEmojis) > 0 {
		if out.SenderEmojis == nil {
			out.SenderEmojis = make(map[string]string)
		}
		for sender, emoji := range upd.SenderEmojis {
			if emoji == "" {
				delete(out.SenderEmojis, sender)
				continue
			}
			out.SenderEmojis[sender] = emoji
		}
		out.EmojiCounts = make(map[string]int)
		for _, emoji := range out.SenderEmojis {
			out.EmojiCounts[emoji]++
		}
		return out
	}
	if out.EmojiCounts == nil {
		out.EmojiCounts = make(map[string]int)
	}
	for emoji, count := range upd.EmojiCounts {
		if count <= 0 {
			delete(out.EmojiCounts, emoji)
			continue
		}
		out.EmojiCounts[emoji] = count
	}
	return out
}

// ChatMessage is one message within a chat.
type ChatMessage struct {
	ID           string
	SenderID     string
	Text         string
	QuotedID     string
	QuotedText   string
	QuotedSender string
	FileInfo     string // opaque, backend encoded
	FileStatus   FileStatus
	Reactions    Reactions
	TimeSent     int64 // epoch ms
	IsOutgoing   bool
	IsRead       bool
	HasMention   bool
	IsSponsored  bool
}

// Clone returns a copy that shares no maps with m.
func (m ChatMessage) Clone() ChatMessage {
	m.Reactions = m.Reactions.Clone()
	return m
}
