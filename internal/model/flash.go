package model

import (
	"sync"
	"time"
)

const flashDuration = 4 * time.Second

// Flash holds a transient status-bar message.
type Flash struct {
	mu      sync.RWMutex
	message string
	expires time.Time
	now     func() time.Time
}

func (f *Flash) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

// Set stores a flash message that expires after the given duration.
func (f *Flash) Set(msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.expires = f.clock().Add(d)
}

// Get returns the current flash message, or empty if expired.
func (f *Flash) Get() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.clock().After(f.expires) {
		return ""
	}
	return f.message
}

// clearExpired drops an expired message. Returns true if one was dropped.
func (f *Flash) clearExpired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.message == "" || !f.clock().After(f.expires) {
		return false
	}
	f.message = ""
	return true
}

// setFlash shows msg in the status bar.
func (m *Model) setFlash(msg string) {
	m.flash.Set(msg, flashDuration)
	m.markDirty(regionStatus)
}

// Flash returns the active flash message, if any.
func (m *Model) Flash() string {
	return m.flash.Get()
}
