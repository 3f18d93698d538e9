package protocol

// Notification is an inbound event emitted by a backend. The set of
// notification types is closed.
type Notification interface {
	notification()
}

type base struct{}

func (base) notification() {}

type Connected struct {
	base
	Success bool
}

type NewContacts struct {
	base
	FullSync bool
	Contacts []Contact
}

type NewChats struct {
	base
	Success bool
	Chats   []ChatInfo
}

// NewMessages delivers a batch for one chat. FromMsgID echoes the anchor
// of the GetChatHistory request it answers, if any. Sequence means the
// batch is gap free and extends the known history toward older messages.
type NewMessages struct {
	base
	Success   bool
	ChatID    string
	FromMsgID string
	Messages  []ChatMessage
	Cached    bool
	Sequence  bool
}

type MessageSent struct {
	base
	Success  bool
	ChatID   string
	ClientID string
	Message  ChatMessage
}

type MarkReadResult struct {
	base
	Success bool
	ChatID  string
	MsgID   string
}

type MessageDeleted struct {
	base
	Success bool
	ChatID  string
	MsgID   string
}

type TypingSent struct {
	base
	Success bool
}

type StatusSet struct {
	base
	Success bool
}

type MessageStatusChanged struct {
	base
	ChatID string
	MsgID  string
	IsRead bool
}

type MessageFileChanged struct {
	base
	ChatID     string
	MsgID      string
	FileInfo   string
	FileStatus FileStatus
}

type MessageReactionsChanged struct {
	base
	ChatID    string
	MsgID     string
	Reactions Reactions
}

type UserTyping struct {
	base
	ChatID   string
	UserID   string
	IsTyping bool
}

type UserPresence struct {
	base
	UserID   string
	IsOnline bool
}

type ChatCreated struct {
	base
	Success bool
	Chat    ChatInfo
}

type ChatDeleted struct {
	base
	Success bool
	ChatID  string
}

type MuteChanged struct {
	base
	Success bool
	ChatID  string
	IsMuted bool
}

type PinChanged struct {
	base
	Success    bool
	ChatID     string
	IsPinned   bool
	TimePinned int64
}

// UIControlRequested asks for (Take) or returns exclusive use of the
// terminal, e.g. for an interactive login flow.
type UIControlRequested struct {
	base
	Take bool
}

type AppExitRequested struct{ base }

type AvailableReactions struct {
	base
	ChatID string
	MsgID  string
	Emojis []string
}

type FindMessageResult struct {
	base
	Success bool
	ChatID  string
	MsgID   string
}
