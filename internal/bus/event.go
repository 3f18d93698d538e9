package bus

import "time"

// Event kinds published by the client core.
const (
	KindAlertMessage = "alert.message"
	KindModeChanged  = "ui.mode_changed"
	KindConnection   = "account.connection"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Alert is the payload of KindAlertMessage: an inbound message that should
// ring the bell and raise a desktop notification.
type Alert struct {
	AccountID string
	ChatID    string
	ChatName  string
	SenderID  string
	Sender    string
	Text      string
}

// ConnectionChange is the payload of KindConnection.
type ConnectionChange struct {
	AccountID string
	State     string
}

// ModeChange is the payload of KindModeChanged.
type ModeChange struct {
	From string
	To   string
}
