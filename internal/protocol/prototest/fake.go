// Package prototest provides a recording backend for tests.
package prototest

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/mchat/internal/protocol"
)

// ErrRejected is returned by Send when Reject is set.
var ErrRejected = errors.New("rejected")

// Backend records every request it receives and never replies on its own.
// Tests drive replies by calling Emit.
type Backend struct {
	ID       string
	Self     string
	Features protocol.Feature
	Reject   bool

	mu       sync.Mutex
	requests []protocol.Request
	sink     protocol.Sink
}

// New creates a fake backend for accountID with the given features.
func New(accountID string, features protocol.Feature) *Backend {
	return &Backend{ID: accountID, Self: "self", Features: features}
}

func (b *Backend) ProfileID() string { return b.ID }
func (b *Backend) SelfID() string    { return b.Self }

func (b *Backend) SupportsFeature(f protocol.Feature) bool {
	return b.Features.Has(f)
}

func (b *Backend) Login(_ context.Context, sink protocol.Sink) error {
	b.mu.Lock()
	b.sink = sink
	b.mu.Unlock()
	return nil
}

func (b *Backend) Logout() error { return nil }

func (b *Backend) Send(req protocol.Request) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Reject {
		return ErrRejected
	}
	b.requests = append(b.requests, req)
	return nil
}

// Emit delivers n to the sink registered by Login.
func (b *Backend) Emit(n protocol.Notification) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		sink(b.ID, n)
	}
}

// Requests returns a copy of all recorded requests.
func (b *Backend) Requests() []protocol.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Request(nil), b.requests...)
}

// Reset forgets recorded requests.
func (b *Backend) Reset() {
	b.mu.Lock()
	b.requests = nil
	b.mu.Unlock()
}

// Of returns the recorded requests of type T.
func Of[T protocol.Request](b *Backend) []T {
	var out []T
	for _, r := range b.Requests() {
		if t, ok := r.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
