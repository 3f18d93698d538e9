package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
)

const messageColumns = `msg_id, sender_id, text, quoted_id, quoted_text, quoted_sender,
	file_info, file_status, reactions, time_sent, is_outgoing, is_read, has_mention`

// UpsertMessages inserts or updates messages of one chat (idempotent on
// account + chat_id + msg_id).
func (db *DB) UpsertMessages(account, chatID string, msgs []protocol.ChatMessage) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for _, m := range msgs {
		reactions, err := encodeReactions(m.Reactions)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO messages (account, chat_id, `+messageColumns+`, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account, chat_id, msg_id) DO UPDATE SET
				text = excluded.text,
				quoted_id = excluded.quoted_id,
				quoted_text = excluded.quoted_text,
				quoted_sender = excluded.quoted_sender,
				file_info = excluded.file_info,
				file_status = excluded.file_status,
				reactions = excluded.reactions,
				is_read = MAX(messages.is_read, excluded.is_read),
				has_mention = excluded.has_mention`,
			account, chatID, m.ID, m.SenderID, m.Text, m.QuotedID, m.QuotedText, m.QuotedSender,
			m.FileInfo, int(m.FileStatus), reactions, m.TimeSent,
			boolInt(m.IsOutgoing), boolInt(m.IsRead), boolInt(m.HasMention), now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Message returns one cached message.
func (db *DB) Message(account, chatID, msgID string) (protocol.ChatMessage, bool, error) {
	row := db.QueryRow(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND msg_id = ?`, account, chatID, msgID)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return protocol.ChatMessage{}, false, nil
	}
	if err != nil {
		return protocol.ChatMessage{}, false, err
	}
	return m, true, nil
}

// ListMessagesBefore returns up to limit messages older than fromID, newest
// first, in the same order the in-memory history uses. An empty fromID
// lists the newest messages. An unknown fromID lists nothing.
func (db *DB) ListMessagesBefore(account, chatID, fromID string, limit int) ([]protocol.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if fromID == "" {
		return db.queryMessages(`SELECT `+messageColumns+` FROM messages
			WHERE account = ? AND chat_id = ?
			ORDER BY time_sent DESC
			LIMIT ?`, account, chatID, limit)
	}

	from, ok, err := db.Message(account, chatID, fromID)
	if err != nil || !ok {
		return nil, err
	}
	// Ties on time_sent are ordered by id in Go; SQLite cannot compare
	// numeric ids stored as text.
	ties, err := db.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND time_sent = ? AND msg_id != ?`,
		account, chatID, from.TimeSent, fromID)
	if err != nil {
		return nil, err
	}
	older, err := db.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND time_sent < ?
		ORDER BY time_sent DESC
		LIMIT ?`, account, chatID, from.TimeSent, limit)
	if err != nil {
		return nil, err
	}

	out := slices.DeleteFunc(ties, func(m protocol.ChatMessage) bool {
		return store.NewestFirst(m, from) < 0
	})
	out = append(out, older...)
	slices.SortStableFunc(out, store.NewestFirst)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetRead records the read flag of a message.
func (db *DB) SetRead(account, chatID, msgID string, read bool) error {
	_, err := db.Exec(`UPDATE messages SET is_read = ? WHERE account = ? AND chat_id = ? AND msg_id = ?`,
		boolInt(read), account, chatID, msgID)
	return err
}

// SetFile records the attachment state of a message.
func (db *DB) SetFile(account, chatID, msgID, fileInfo string, status protocol.FileStatus) error {
	_, err := db.Exec(`UPDATE messages SET file_info = ?, file_status = ? WHERE account = ? AND chat_id = ? AND msg_id = ?`,
		fileInfo, int(status), account, chatID, msgID)
	return err
}

// ApplyReactions merges upd into the stored reactions of a message.
func (db *DB) ApplyReactions(account, chatID, msgID string, upd protocol.Reactions) error {
	m, ok, err := db.Message(account, chatID, msgID)
	if err != nil || !ok {
		return err
	}
	reactions, err := encodeReactions(m.Reactions.Apply(upd))
	if err != nil {
		return err
	}
	_, err = db.Exec(`UPDATE messages SET reactions = ? WHERE account = ? AND chat_id = ? AND msg_id = ?`,
		reactions, account, chatID, msgID)
	return err
}

// DeleteMessage removes one message. A deleted run floor moves up to the
// next newer row.
func (db *DB) DeleteMessage(account, chatID, msgID string) error {
	m, ok, err := db.Message(account, chatID, msgID)
	if err != nil || !ok {
		return err
	}
	var linked bool
	if err := db.QueryRow(`SELECT linked FROM messages WHERE account = ? AND chat_id = ? AND msg_id = ?`,
		account, chatID, msgID).Scan(&linked); err != nil {
		return err
	}
	if !linked {
		if err := db.unlinkNewer(account, chatID, m); err != nil {
			return err
		}
	}
	_, err = db.Exec(`DELETE FROM messages WHERE account = ? AND chat_id = ? AND msg_id = ?`,
		account, chatID, msgID)
	return err
}

func (db *DB) queryMessages(query string, args ...any) ([]protocol.ChatMessage, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []protocol.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (protocol.ChatMessage, error) {
	var (
		m          protocol.ChatMessage
		fileStatus int
		reactions  string
	)
	err := s.Scan(&m.ID, &m.SenderID, &m.Text, &m.QuotedID, &m.QuotedText, &m.QuotedSender,
		&m.FileInfo, &fileStatus, &reactions, &m.TimeSent, &m.IsOutgoing, &m.IsRead, &m.HasMention)
	if err != nil {
		return m, err
	}
	m.FileStatus = protocol.FileStatus(fileStatus)
	if reactions != "" {
		if err := json.Unmarshal([]byte(reactions), &m.Reactions); err != nil {
			return m, err
		}
	}
	return m, nil
}

func encodeReactions(r protocol.Reactions) (string, error) {
	if r.Empty() {
		return "", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
