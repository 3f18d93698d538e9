// Package app assembles the client from its parts with fx.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/matheus3301/mchat/internal/bus"
	"github.com/matheus3301/mchat/internal/cache"
	"github.com/matheus3301/mchat/internal/config"
	"github.com/matheus3301/mchat/internal/dispatch"
	"github.com/matheus3301/mchat/internal/lock"
	"github.com/matheus3301/mchat/internal/logging"
	"github.com/matheus3301/mchat/internal/loopback"
	"github.com/matheus3301/mchat/internal/model"
	"github.com/matheus3301/mchat/internal/notify"
	"github.com/matheus3301/mchat/internal/profile"
	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
	"github.com/matheus3301/mchat/internal/tui"
	"github.com/matheus3301/mchat/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Params holds the command line options passed to the fx module.
type Params struct {
	Profile    string // --profile; empty uses the config default
	Demo       bool   // run a single loopback account without the cache
	Debug      bool
	ConfigPath string // optional override for testing; empty = use default
}

// ProfileName is the resolved, validated profile.
type ProfileName string

// Backends are the configured accounts, wrapped with the cache when it is
// enabled.
type Backends []protocol.Backend

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("mchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideProfile,
			provideLogger,
			provideLock,
			provideBus,
			provideDispatcher,
			provideModel,
			provideCache,
			provideBackends,
			provideNotifier,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if p.Demo {
		cfg.Accounts = []config.Account{{ID: "demo", Protocol: config.ProtocolLoopback}}
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

func provideProfile(p Params, cfg *config.Config) (ProfileName, error) {
	name, err := profile.Resolve(p.Profile, cfg)
	if err != nil {
		return "", err
	}
	if err := profile.EnsureDir(name); err != nil {
		return "", err
	}
	return ProfileName(name), nil
}

func provideLogger(p Params, name ProfileName) (*zap.Logger, error) {
	return logging.New(profile.LogPath(string(name)), string(name), p.Debug)
}

func provideLock(name ProfileName, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", string(name)))
	l, err := lock.Acquire(profile.Dir(string(name)))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideDispatcher(logger *zap.Logger) *dispatch.Dispatcher {
	return dispatch.New(logger)
}

// preferences maps the [ui] and [chats] config sections onto the model.
func preferences(cfg *config.Config, logger *zap.Logger) model.Preferences {
	return model.Preferences{
		MutedPositionByTimestamp: cfg.UI.MutedPositionByTimestamp,
		MutedNotify:              cfg.UI.MutedNotify,
		OnlineStatusShare:        cfg.UI.OnlineStatusShare,
		TypingStatusShare:        cfg.UI.TypingStatusShare,
		HistoryWindow:            cfg.UI.HistoryWindow,
		ForceHide:                parseKeys(cfg.Chats.ForceHide, logger),
		ForceMute:                parseKeys(cfg.Chats.ForceMute, logger),
	}
}

func parseKeys(raw []string, logger *zap.Logger) []store.Key {
	var keys []store.Key
	for _, s := range raw {
		k, ok := model.ParseKey(s)
		if !ok {
			logger.Warn("ignoring invalid chat key", zap.String("key", s))
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func provideModel(cfg *config.Config, d *dispatch.Dispatcher, b *bus.Bus, logger *zap.Logger) *model.Model {
	return model.New(d, model.Options{
		Prefs:  preferences(cfg, logger),
		Bus:    b,
		Logger: logger,
	})
}

// provideCache opens the profile cache. It returns nil when the cache is
// disabled.
func provideCache(cfg *config.Config, name ProfileName, logger *zap.Logger) (*cache.DB, error) {
	if !cfg.Cache.Enabled {
		logger.Info("cache disabled")
		return nil, nil
	}
	path := profile.CachePath(string(name))
	db, err := cache.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", path))
	return db, nil
}

func provideBackends(cfg *config.Config, name ProfileName, db *cache.DB, logger *zap.Logger) (Backends, error) {
	var out Backends
	for _, acct := range cfg.Accounts {
		var b protocol.Backend
		switch acct.Protocol {
		case config.ProtocolLoopback:
			b = loopback.New(acct.ID, loopback.Options{}, logger)
		case config.ProtocolWhatsApp:
			b = wa.New(acct.ID, profile.AccountDir(string(name), acct.ID), os.Stdout, logger)
		default:
			return nil, fmt.Errorf("account %q: unknown protocol %q", acct.ID, acct.Protocol)
		}
		if db != nil {
			b = cache.Wrap(b, db, logger)
		}
		out = append(out, b)
	}
	return out, nil
}

func provideNotifier(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *notify.Notifier {
	return notify.New(b, notify.Options{
		TerminalBell:  cfg.UI.TerminalBell,
		DesktopNotify: cfg.UI.DesktopNotify,
	}, logger)
}

func provideTUI(name ProfileName, backends Backends, m *model.Model, logger *zap.Logger) *tui.App {
	accounts := make([]string, 0, len(backends))
	for _, b := range backends {
		accounts = append(accounts, b.ProfileID())
	}
	return tui.New(m, tui.Options{
		Profile:  string(name),
		Accounts: accounts,
		Logger:   logger,
	})
}

// loginAll registers every backend and logs them in concurrently. A failed
// login is reported to the model as a failed connection. The returned group
// finishes once every Login call has returned; the backends keep running
// under ctx.
func loginAll(ctx context.Context, backends Backends, d *dispatch.Dispatcher, m *model.Model, logger *zap.Logger) (*errgroup.Group, error) {
	for _, b := range backends {
		if err := d.Register(b); err != nil {
			return nil, err
		}
	}
	var g errgroup.Group
	for _, b := range backends {
		id := b.ProfileID()
		m.MarkConnecting(id)
		g.Go(func() error {
			if err := b.Login(ctx, m.Handle); err != nil {
				logger.Error("login failed", zap.String("account", id), zap.Error(err))
				m.Handle(id, protocol.Connected{Success: false})
				return fmt.Errorf("login %s: %w", id, err)
			}
			logger.Info("login started", zap.String("account", id))
			return nil
		})
	}
	return &g, nil
}

func registerLifecycle(lc fx.Lifecycle, sh fx.Shutdowner, ui *tui.App, m *model.Model, d *dispatch.Dispatcher, backends Backends, notifier *notify.Notifier, db *cache.DB, lk *lock.Lock, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	uiDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			notifier.SetBell(ui.Bell)
			notifier.Start(ctx)

			g, err := loginAll(ctx, backends, d, m, logger)
			if err != nil {
				cancel()
				return err
			}
			go func() {
				if err := g.Wait(); err != nil {
					logger.Warn("not every account logged in", zap.Error(err))
				}
			}()

			// Run the UI in background; quitting it stops the app.
			go func() {
				defer close(uiDone)
				if err := ui.Run(); err != nil {
					logger.Error("ui error", zap.Error(err))
				}
				if err := sh.Shutdown(); err != nil {
					logger.Warn("shutdown request failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			ui.Stop()
			select {
			case <-uiDone:
			case <-stopCtx.Done():
			}
			for _, b := range backends {
				if err := b.Logout(); err != nil {
					logger.Warn("logout failed", zap.String("account", b.ProfileID()), zap.Error(err))
				}
			}
			cancel()
			notifier.Stop()
			if db != nil {
				if err := db.Close(); err != nil {
					logger.Warn("error closing cache", zap.Error(err))
				}
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
