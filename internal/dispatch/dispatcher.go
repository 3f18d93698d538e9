// Package dispatch routes outbound requests to the backend owning an
// account.
package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/matheus3301/mchat/internal/protocol"
	"go.uber.org/zap"
)

// Dispatcher maps account ids to backends. It forwards each request at
// most once and never queues or retries.
type Dispatcher struct {
	mu       sync.RWMutex
	backends map[string]protocol.Backend
	logger   *zap.Logger
}

// New creates an empty dispatcher.
func New(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		backends: make(map[string]protocol.Backend),
		logger:   logger,
	}
}

// Register adds a backend under its profile id.
func (d *Dispatcher) Register(b protocol.Backend) error {
	id := b.ProfileID()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.backends[id]; ok {
		return fmt.Errorf("account %q already registered", id)
	}
	d.backends[id] = b
	return nil
}

// Backend returns the backend for accountID.
func (d *Dispatcher) Backend(accountID string) (protocol.Backend, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.backends[accountID]
	return b, ok
}

// Accounts returns the registered account ids in sorted order.
func (d *Dispatcher) Accounts() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.backends))
	for id := range d.backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SupportsFeature reports whether the account's backend has f. Unknown
// accounts support nothing.
func (d *Dispatcher) SupportsFeature(accountID string, f protocol.Feature) bool {
	b, ok := d.Backend(accountID)
	return ok && b.SupportsFeature(f)
}

// SelfID returns the account's own user id, or "" for unknown accounts.
func (d *Dispatcher) SelfID(accountID string) string {
	if b, ok := d.Backend(accountID); ok {
		return b.SelfID()
	}
	return ""
}

// Send forwards req to the account's backend. It returns false when the
// account is unknown or the backend rejected the request; both are logged
// and otherwise ignored.
func (d *Dispatcher) Send(accountID string, req protocol.Request) bool {
	b, ok := d.Backend(accountID)
	if !ok {
		d.logger.Warn("dropping request for unknown account",
			zap.String("account", accountID),
			zap.String("kind", fmt.Sprintf("%T", req)))
		return false
	}
	if err := b.Send(req); err != nil {
		d.logger.Error("backend rejected request", zap.Error(err),
			zap.String("account", accountID),
			zap.String("chat", req.Chat()),
			zap.String("kind", fmt.Sprintf("%T", req)))
		return false
	}
	return true
}
