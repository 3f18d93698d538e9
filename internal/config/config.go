// Package config loads and saves the global ~/.mchat/config.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Protocols a configured account may use.
const (
	ProtocolLoopback = "loopback"
	ProtocolWhatsApp = "whatsapp"
)

// Config represents the global ~/.mchat/config.toml.
type Config struct {
	DefaultProfile string    `toml:"default_profile"`
	UI             UI        `toml:"ui"`
	Chats          Chats     `toml:"chats"`
	Cache          Cache     `toml:"cache"`
	Accounts       []Account `toml:"accounts"`
}

// UI holds presentation and alert preferences.
type UI struct {
	MutedPositionByTimestamp bool `toml:"muted_position_by_timestamp"`
	MutedNotify              bool `toml:"muted_notify"`
	DesktopNotify            bool `toml:"desktop_notify"`
	TerminalBell             bool `toml:"terminal_bell"`
	OnlineStatusShare        bool `toml:"online_status_share"`
	TypingStatusShare        bool `toml:"typing_status_share"`
	HistoryWindow            int  `toml:"history_window"`
}

// Chats lists chats forced hidden or muted, as "account/chat".
type Chats struct {
	ForceHide []string `toml:"force_hide"`
	ForceMute []string `toml:"force_mute"`
}

type Cache struct {
	Enabled bool `toml:"enabled"`
}

// Account is one backend instance.
type Account struct {
	ID       string `toml:"id"`
	Protocol string `toml:"protocol"`
}

// Default returns the configuration written on first start.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		UI: UI{
			DesktopNotify:     true,
			TerminalBell:      true,
			OnlineStatusShare: true,
			TypingStatusShare: true,
			HistoryWindow:     20,
		},
		Cache:    Cache{Enabled: true},
		Accounts: []Account{{ID: "loopback", Protocol: ProtocolLoopback}},
	}
}

// Load reads config from the given path. Keys missing from the file keep
// their Default values. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.Accounts = nil
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if !md.IsDefined("accounts") {
		cfg.Accounts = Default().Accounts
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, cfg.Validate()
}

// LoadOrCreate loads path, writing Default there first if it does not exist.
func LoadOrCreate(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		return cfg, Save(path, cfg)
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Validate checks accounts and chat keys.
func (c *Config) Validate() error {
	if c.UI.HistoryWindow < 0 {
		return fmt.Errorf("ui.history_window must not be negative, got %d", c.UI.HistoryWindow)
	}
	if len(c.Accounts) == 0 {
		return errors.New("no accounts configured")
	}
	seen := make(map[string]bool)
	for _, a := range c.Accounts {
		if a.ID == "" || strings.Contains(a.ID, "/") {
			return fmt.Errorf("invalid account id %q", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true
		switch a.Protocol {
		case ProtocolLoopback, ProtocolWhatsApp:
		default:
			return fmt.Errorf("account %q: unknown protocol %q", a.ID, a.Protocol)
		}
	}
	for _, list := range [][]string{c.Chats.ForceHide, c.Chats.ForceMute} {
		for _, k := range list {
			if acct, chat, ok := strings.Cut(k, "/"); !ok || acct == "" || chat == "" {
				return fmt.Errorf("invalid chat key %q, want account/chat", k)
			}
		}
	}
	return nil
}
