package cache

import (
	"slices"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
)

// A run is a stretch of cached history known to have no gaps. Every row of
// a run except its oldest is linked to the next older row; rows written
// from live updates or unordered batches start unlinked.

// LinkMessages marks msgIDs as linked to their next older row.
func (db *DB) LinkMessages(account, chatID string, msgIDs []string) error {
	if len(msgIDs) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range msgIDs {
		if _, err := tx.Exec(`UPDATE messages SET linked = 1 WHERE account = ? AND chat_id = ? AND msg_id = ?`,
			account, chatID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// runFloor returns the oldest message of the run holding from: the newest
// unlinked row at or older than from. ok is false when every older row is
// linked.
func (db *DB) runFloor(account, chatID string, from protocol.ChatMessage) (protocol.ChatMessage, bool, error) {
	ties, err := db.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND linked = 0 AND time_sent = ?`,
		account, chatID, from.TimeSent)
	if err != nil {
		return protocol.ChatMessage{}, false, err
	}
	ties = slices.DeleteFunc(ties, func(m protocol.ChatMessage) bool {
		return store.NewestFirst(m, from) < 0
	})
	if len(ties) > 0 {
		return slices.MinFunc(ties, store.NewestFirst), true, nil
	}

	older, err := db.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND linked = 0 AND time_sent = (
			SELECT MAX(time_sent) FROM messages
			WHERE account = ? AND chat_id = ? AND linked = 0 AND time_sent < ?)`,
		account, chatID, account, chatID, from.TimeSent)
	if err != nil || len(older) == 0 {
		return protocol.ChatMessage{}, false, err
	}
	return slices.MinFunc(older, store.NewestFirst), true, nil
}

// ListContiguousBefore is ListMessagesBefore cut at the first gap below
// fromID. It returns nothing when fromID starts a gap.
func (db *DB) ListContiguousBefore(account, chatID, fromID string, limit int) ([]protocol.ChatMessage, error) {
	from, ok, err := db.Message(account, chatID, fromID)
	if err != nil || !ok {
		return nil, err
	}
	floor, bounded, err := db.runFloor(account, chatID, from)
	if err != nil {
		return nil, err
	}
	msgs, err := db.ListMessagesBefore(account, chatID, fromID, limit)
	if err != nil || !bounded {
		return msgs, err
	}
	if i := slices.IndexFunc(msgs, func(m protocol.ChatMessage) bool {
		return store.NewestFirst(m, floor) > 0
	}); i >= 0 {
		msgs = msgs[:i]
	}
	return msgs, nil
}

// FindContiguous is FindOlder restricted to the run holding fromID.
func (db *DB) FindContiguous(account, chatID, fromID, text string) (protocol.ChatMessage, bool, error) {
	if fromID == "" {
		return protocol.ChatMessage{}, false, nil
	}
	found, ok, err := db.FindOlder(account, chatID, fromID, text)
	if err != nil || !ok {
		return protocol.ChatMessage{}, false, err
	}
	from, ok, err := db.Message(account, chatID, fromID)
	if err != nil || !ok {
		return protocol.ChatMessage{}, false, err
	}
	floor, bounded, err := db.runFloor(account, chatID, from)
	if err != nil {
		return protocol.ChatMessage{}, false, err
	}
	if bounded && store.NewestFirst(found, floor) > 0 {
		return protocol.ChatMessage{}, false, nil
	}
	return found, true, nil
}

// unlinkNewer clears the link of the row just newer than m, so deleting an
// unlinked m does not join its run to the gap below it.
func (db *DB) unlinkNewer(account, chatID string, m protocol.ChatMessage) error {
	newer, err := db.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND time_sent >= ? AND msg_id != ?
		ORDER BY time_sent ASC
		LIMIT 64`, account, chatID, m.TimeSent, m.ID)
	if err != nil {
		return err
	}
	newer = slices.DeleteFunc(newer, func(n protocol.ChatMessage) bool {
		return store.NewestFirst(n, m) >= 0
	})
	if len(newer) == 0 {
		return nil
	}
	next := slices.MaxFunc(newer, store.NewestFirst)
	_, err = db.Exec(`UPDATE messages SET linked = 0 WHERE account = ? AND chat_id = ? AND msg_id = ?`,
		account, chatID, next.ID)
	return err
}
