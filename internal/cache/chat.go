package cache

import (
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
)

// UpsertChats inserts or updates chat metadata of one account.
func (db *DB) UpsertChats(account string, chats []protocol.ChatInfo) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, c := range chats {
		_, err := tx.Exec(`
			INSERT INTO chats (account, chat_id, name, is_unread, is_muted, is_pinned, time_pinned, last_message_time, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account, chat_id) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
				is_unread = excluded.is_unread,
				is_muted = excluded.is_muted,
				is_pinned = excluded.is_pinned,
				time_pinned = excluded.time_pinned,
				last_message_time = MAX(chats.last_message_time, excluded.last_message_time),
				updated_at = excluded.updated_at`,
			account, c.ID, c.Name, boolInt(c.IsUnread), boolInt(c.IsMuted), boolInt(c.IsPinned), c.TimePinned, c.LastMessageTime, now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListChats returns the cached chats of an account, newest activity first.
func (db *DB) ListChats(account string) ([]protocol.ChatInfo, error) {
	rows, err := db.Query(`
		SELECT chat_id, name, is_unread, is_muted, is_pinned, time_pinned, last_message_time
		FROM chats
		WHERE account = ?
		ORDER BY last_message_time DESC, chat_id`, account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chats []protocol.ChatInfo
	for rows.Next() {
		var c protocol.ChatInfo
		if err := rows.Scan(&c.ID, &c.Name, &c.IsUnread, &c.IsMuted, &c.IsPinned, &c.TimePinned, &c.LastMessageTime); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// SetMuted records the mute flag of a chat.
func (db *DB) SetMuted(account, chatID string, muted bool) error {
	_, err := db.Exec(`UPDATE chats SET is_muted = ? WHERE account = ? AND chat_id = ?`,
		boolInt(muted), account, chatID)
	return err
}

// SetPinned records the pin state of a chat.
func (db *DB) SetPinned(account, chatID string, pinned bool, timePinned int64) error {
	_, err := db.Exec(`UPDATE chats SET is_pinned = ?, time_pinned = ? WHERE account = ? AND chat_id = ?`,
		boolInt(pinned), timePinned, account, chatID)
	return err
}

// DeleteChat removes a chat and all of its messages.
func (db *DB) DeleteChat(account, chatID string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(`DELETE FROM messages WHERE account = ? AND chat_id = ?`, account, chatID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM chats WHERE account = ? AND chat_id = ?`, account, chatID); err != nil {
		return err
	}
	return tx.Commit()
}
