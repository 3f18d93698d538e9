package model

import (
	"fmt"

	"github.com/matheus3301/mchat/internal/bus"
	"go.uber.org/zap"
)

// Mode is the process-wide interaction mode.
type Mode string

const (
	ModeNormal    Mode = "NORMAL"
	ModeSelecting Mode = "SELECTING"
	ModeEditing   Mode = "EDITING"
	ModeFinding   Mode = "FINDING"
)

var modeTransitions = map[Mode][]Mode{
	ModeNormal:    {ModeSelecting, ModeFinding},
	ModeSelecting: {ModeNormal, ModeEditing, ModeFinding},
	ModeEditing:   {ModeNormal},
	ModeFinding:   {ModeNormal, ModeSelecting},
}

// Policy rejection reasons.
const (
	ReasonNotSupported = "not supported"
	ReasonNotSelecting = "not selecting"
	ReasonEditing      = "already editing"
	ReasonFinding      = "finding"
	ReasonNotOutgoing  = "not outgoing"
	ReasonTooOld       = "too old"
	ReasonNoSelection  = "no message selected"
	ReasonNotFound     = "not found"
)

// PolicyError reports a command the current state does not allow.
type PolicyError struct {
	Op     string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// reject records a policy rejection as a flash message and returns it.
func (m *Model) reject(op, reason string) error {
	err := &PolicyError{Op: op, Reason: reason}
	m.logger.Debug("command rejected", zap.String("op", op), zap.String("reason", reason))
	m.setFlash(err.Error())
	return err
}

// busyReason names the compound mode blocking a command.
func (m *Model) busyReason() string {
	if m.mode.Current() == ModeFinding {
		return ReasonFinding
	}
	return ReasonEditing
}

func (m *Model) onModeChange(from, to Mode) {
	m.help = 0
	m.logger.Debug("mode changed", zap.String("from", string(from)), zap.String("to", string(to)))
	m.publish(bus.KindModeChanged, bus.ModeChange{From: string(from), To: string(to)})
	m.markDirty(regionStatus, regionHelp, regionHistory, regionEntry)
}

// setMode moves to the given mode if it differs from the current one.
func (m *Model) setMode(to Mode) error {
	if m.mode.Current() == to {
		return nil
	}
	return m.mode.Transition(to)
}

// resetMode returns to Normal, dropping selection, an edit in progress
// and find state.
func (m *Model) resetMode() {
	switch m.mode.Current() {
	case ModeEditing:
		delete(m.entries, m.cur.Key)
	}
	if err := m.setMode(ModeNormal); err != nil {
		m.logger.Error("mode reset failed", zap.Error(err))
	}
	m.selectedID = ""
	m.editID = ""
}

// Help overlay paging.

// HelpNext advances the help overlay by one page.
func (m *Model) HelpNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.help++
	m.markDirty(regionHelp)
}

// HelpPrev moves the help overlay back by one page.
func (m *Model) HelpPrev() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.help > 0 {
		m.help--
		m.markDirty(regionHelp)
	}
}

// HelpPage returns the help overlay page.
func (m *Model) HelpPage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.help
}
