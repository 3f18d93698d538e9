package protocol

// Request is an outbound command for one backend. The set of request
// types is closed; backends switch on the concrete type.
type Request interface {
	request()
	// Chat returns the chat the request targets, or "" for account-wide
	// requests.
	Chat() string
}

type accountRequest struct{}

func (accountRequest) request()     {}
func (accountRequest) Chat() string { return "" }

type GetContactsRequest struct{ accountRequest }

// GetChatsRequest asks for chat metadata. Empty ChatIDs means all chats.
type GetChatsRequest struct {
	accountRequest
	ChatIDs []string
}

// GetChatHistoryRequest asks for up to Limit messages older than
// FromMsgID. An empty FromMsgID means the newest messages.
type GetChatHistoryRequest struct {
	ChatID    string
	FromMsgID string
	Limit     int
}

type SendMessageRequest struct {
	ChatID string
	// ClientID correlates the MessageSent notification with this send.
	ClientID     string
	Text         string
	QuotedID     string
	QuotedText   string
	QuotedSender string
	FilePath     string
	FileInfo     string // forwarded attachment, same account only
}

// EditMessageRequest carries the original message with only Text replaced.
type EditMessageRequest struct {
	ChatID  string
	Message ChatMessage
}

type DeleteMessageRequest struct {
	ChatID   string
	MsgID    string
	SenderID string
}

type DeleteChatRequest struct{ ChatID string }

type MarkReadRequest struct {
	ChatID   string
	MsgID    string
	SenderID string
}

type SetTypingRequest struct {
	ChatID   string
	IsTyping bool
}

type SetStatusRequest struct {
	accountRequest
	IsOnline bool
}

type CreateChatRequest struct {
	accountRequest
	UserID string
}

type GetAvailableReactionsRequest struct {
	ChatID string
	MsgID  string
}

type SendReactionRequest struct {
	ChatID    string
	MsgID     string
	SenderID  string
	Emoji     string // empty removes the own reaction
	PrevEmoji string
}

// FindMessageRequest searches older than FromMsgID for either FindText or
// the message TargetMsgID. LastMsgID is the oldest id the client knows.
type FindMessageRequest struct {
	ChatID      string
	FromMsgID   string
	LastMsgID   string
	FindText    string
	TargetMsgID string
}

type SetCurrentChatRequest struct{ ChatID string }

type SetMuteRequest struct {
	ChatID  string
	IsMuted bool
}

type SetPinRequest struct {
	ChatID   string
	IsPinned bool
}

func (GetChatHistoryRequest) request()              {}
func (SendMessageRequest) request()                 {}
func (EditMessageRequest) request()                 {}
func (DeleteMessageRequest) request()               {}
func (DeleteChatRequest) request()                  {}
func (MarkReadRequest) request()                    {}
func (SetTypingRequest) request()                   {}
func (GetAvailableReactionsRequest) request()       {}
func (SendReactionRequest) request()                {}
func (FindMessageRequest) request()                 {}
func (SetCurrentChatRequest) request()              {}
func (SetMuteRequest) request()                     {}
func (SetPinRequest) request()                      {}
func (r GetChatHistoryRequest) Chat() string        { return r.ChatID }
func (r SendMessageRequest) Chat() string           { return r.ChatID }
func (r EditMessageRequest) Chat() string           { return r.ChatID }
func (r DeleteMessageRequest) Chat() string         { return r.ChatID }
func (r DeleteChatRequest) Chat() string            { return r.ChatID }
func (r MarkReadRequest) Chat() string              { return r.ChatID }
func (r SetTypingRequest) Chat() string             { return r.ChatID }
func (r GetAvailableReactionsRequest) Chat() string { return r.ChatID }
func (r SendReactionRequest) Chat() string          { return r.ChatID }
func (r FindMessageRequest) Chat() string           { return r.ChatID }
func (r SetCurrentChatRequest) Chat() string        { return r.ChatID }
func (r SetMuteRequest) Chat() string               { return r.ChatID }
func (r SetPinRequest) Chat() string                { return r.ChatID }
