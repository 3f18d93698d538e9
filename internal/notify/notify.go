// Package notify turns alert events from the bus into a terminal bell and
// desktop notifications.
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/matheus3301/mchat/internal/bus"
	"go.uber.org/zap"
)

const bodyLen = 100

// Options selects which alerts are raised.
type Options struct {
	TerminalBell  bool
	DesktopNotify bool
	// Bell rings the terminal bell. The UI sets it once the screen exists.
	Bell func()
	// Desktop shows a desktop notification. Defaults to beeep.
	Desktop func(title, body string) error
}

// Notifier subscribes to "alert." events on the bus.
type Notifier struct {
	bus    *bus.Bus
	opts   Options
	logger *zap.Logger

	mu     sync.Mutex
	bell   func()
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a notifier.
func New(b *bus.Bus, opts Options, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Desktop == nil {
		opts.Desktop = func(title, body string) error {
			return beeep.Notify(title, body, "")
		}
	}
	return &Notifier{bus: b, opts: opts, logger: logger, bell: opts.Bell}
}

// SetBell replaces the bell function.
func (n *Notifier) SetBell(bell func()) {
	n.mu.Lock()
	n.bell = bell
	n.mu.Unlock()
}

// Start begins consuming alerts until ctx is done or Stop is called.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	ch, unsub := n.bus.Subscribe("alert.", 64)

	go func() {
		defer close(n.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				n.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the notifier and waits for it to exit.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
		<-n.done
	}
}

func (n *Notifier) handleEvent(evt bus.Event) {
	alert, ok := evt.Payload.(bus.Alert)
	if evt.Kind != bus.KindAlertMessage || !ok {
		return
	}
	if n.opts.TerminalBell {
		n.mu.Lock()
		bell := n.bell
		n.mu.Unlock()
		if bell != nil {
			bell()
		}
	}
	if n.opts.DesktopNotify {
		title, body := Format(alert)
		if err := n.opts.Desktop(title, body); err != nil {
			n.logger.Warn("desktop notification failed", zap.Error(err), zap.String("chat", alert.ChatID))
		}
	}
}

// Format returns the notification title and body for an alert.
func Format(a bus.Alert) (title, body string) {
	title = a.ChatName
	if title == "" {
		title = a.ChatID
	}
	body = truncate(a.Text, bodyLen)
	if a.Sender != "" && a.Sender != title {
		body = a.Sender + ": " + body
	}
	return title, body
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}
