// Package profile resolves the active profile and the files that belong
// to it under ~/.mchat.
package profile

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "MCHAT_HOME"

// BaseDir returns $MCHAT_HOME or ~/.mchat.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mchat")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Dir returns the profile directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// CachePath returns the message cache database of a profile.
func CachePath(name string) string {
	return filepath.Join(Dir(name), "cache.db")
}

// AccountDir returns the directory a backend keeps its own state in.
func AccountDir(name, account string) string {
	return filepath.Join(Dir(name), "accounts", account)
}

func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the log file of a profile.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "mchat.log")
}

// EnsureDir creates the profile directory tree with owner-only permissions.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
