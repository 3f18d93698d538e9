// Package wa is the WhatsApp backend, built on whatsmeow. Message history
// arrives through history sync and live events and is kept in memory to
// answer GetChatHistory.
package wa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/status"
	"github.com/matheus3301/mchat/internal/store"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Features of the WhatsApp backend.
const Features = protocol.FeatureEditMessagesWithinFifteenMins |
	protocol.FeatureReactions |
	protocol.FeatureDeleteMessages |
	protocol.FeatureNotifyEveryUnread

var errNotConnected = errors.New("whatsapp: not connected")

// Backend is one linked WhatsApp device.
type Backend struct {
	id     string
	dir    string
	out    io.Writer
	logger *zap.Logger
	phase  *status.Machine[Phase]

	client    *whatsmeow.Client
	container *sqlstore.Container

	mu       sync.Mutex
	sink     protocol.Sink
	store    *store.Store
	contacts map[string]string
	current  string
	queue    []protocol.Request
	wake     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates the backend for account id. dir holds the whatsmeow device
// store; pairing QR codes are written to out.
func New(id, dir string, out io.Writer, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	logger = logger.With(zap.String("account", id))
	return &Backend{
		id:     id,
		dir:    dir,
		out:    out,
		logger: logger,
		phase: status.NewMachine(Disconnected, phaseTransitions, func(from, to Phase) {
			logger.Info("whatsapp phase changed", zap.String("from", string(from)), zap.String("to", string(to)))
		}),
		store:    store.New(),
		contacts: make(map[string]string),
		wake:     make(chan struct{}, 1),
	}
}

func (b *Backend) ProfileID() string { return b.id }

func (b *Backend) SelfID() string {
	if b.client == nil || b.client.Store.ID == nil {
		return ""
	}
	return b.client.Store.ID.ToNonAD().String()
}

func (b *Backend) SupportsFeature(f protocol.Feature) bool {
	return Features.Has(f)
}

// Phase returns the connection phase.
func (b *Backend) Phase() Phase {
	return b.phase.Current()
}

func (b *Backend) open(ctx context.Context) error {
	if err := os.MkdirAll(b.dir, 0700); err != nil {
		return fmt.Errorf("create account dir: %w", err)
	}
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("mchat", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(b.dir, "whatsmeow.db")),
		nil,
	)
	if err != nil {
		return fmt.Errorf("create device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device store: %w", err)
	}
	b.container = container
	b.client = whatsmeow.NewClient(device, nil)
	return nil
}

// Login opens the device store and connects. An unlinked device starts the
// QR pairing flow, which takes over the terminal until it ends.
func (b *Backend) Login(ctx context.Context, sink protocol.Sink) error {
	if err := b.open(ctx); err != nil {
		return err
	}
	b.client.AddEventHandler(b.handleEvent)

	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.sink = sink
	b.cancel = cancel
	b.mu.Unlock()
	b.wg.Add(1)
	go b.run(ctx)

	if b.client.Store.ID == nil {
		_ = b.phase.Transition(AuthRequired)
		qrChan, err := b.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("get QR channel: %w", err)
		}
		b.wg.Add(1)
		go b.pair(ctx, qrChan)
		return nil
	}
	_ = b.phase.Transition(Connecting)
	b.logger.Info("connecting to WhatsApp")
	return b.client.Connect()
}

// Logout disconnects. The device stays linked.
func (b *Backend) Logout() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if b.client != nil {
		b.logger.Info("disconnecting from WhatsApp")
		b.client.Disconnect()
	}
	b.wg.Wait()
	return nil
}

// Send queues req; a worker goroutine talks to WhatsApp.
func (b *Backend) Send(req protocol.Request) error {
	b.mu.Lock()
	if b.sink == nil {
		b.mu.Unlock()
		return errNotConnected
	}
	b.queue = append(b.queue, req)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *Backend) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
		for {
			b.mu.Lock()
			if len(b.queue) == 0 {
				b.mu.Unlock()
				break
			}
			req := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			b.handle(ctx, req)
		}
	}
}

func (b *Backend) emit(n protocol.Notification) {
	b.mu.Lock()
	sink := b.sink
	b.mu.Unlock()
	if sink != nil {
		sink(b.id, n)
	}
}
