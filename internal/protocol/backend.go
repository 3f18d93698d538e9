// Package protocol defines the contract between the client core and the
// protocol backends: typed requests, typed notifications and features.
package protocol

import "context"

// Sink receives notifications from a backend. It may be called from any
// goroutine and may block while the client applies the notification.
type Sink func(accountID string, n Notification)

// Backend is one connected account of some messaging protocol.
//
// Send is called with the client's model lock held, so implementations
// must never invoke the Sink synchronously from inside Send. Replies are
// delivered later from the backend's own goroutines.
type Backend interface {
	ProfileID() string
	SelfID() string
	SupportsFeature(f Feature) bool
	Login(ctx context.Context, sink Sink) error
	Logout() error
	Send(req Request) error
}
