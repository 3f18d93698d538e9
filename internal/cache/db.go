// Package cache persists chats, messages and contacts of every account in a
// per-profile SQLite database and serves history from it.
package cache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the cache database of one profile.
type DB struct {
	*sql.DB
}

// Open connects to the SQLite file at path in WAL mode.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	return &DB{db}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
