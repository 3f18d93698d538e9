package cache

import (
	"strings"

	"github.com/matheus3301/mchat/internal/protocol"
	"github.com/matheus3301/mchat/internal/store"
)

// SearchResult is one message matched by SearchMessages.
type SearchResult struct {
	ChatID  string
	Message protocol.ChatMessage
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

// SearchMessages returns messages of account whose text contains query,
// newest first. An empty chatID searches every chat of the account.
// Matching is case-insensitive for ASCII.
func (db *DB) SearchMessages(account, query, chatID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT chat_id, ` + messageColumns + ` FROM messages
		WHERE account = ? AND text LIKE ? ESCAPE '\'`
	args := []any{account, likePattern(query)}
	if chatID != "" {
		q += " AND chat_id = ?"
		args = append(args, chatID)
	}
	q += " ORDER BY time_sent DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m, err := scanMessage(prefixed{rows, &r.ChatID})
		if err != nil {
			return nil, err
		}
		r.Message = m
		results = append(results, r)
	}
	return results, rows.Err()
}

// prefixed scans one leading column before the message columns.
type prefixed struct {
	s    scanner
	head *string
}

func (p prefixed) Scan(dest ...any) error {
	return p.s.Scan(append([]any{p.head}, dest...)...)
}

// FindOlder returns the newest message of a chat older than fromID whose
// text contains text. An empty fromID searches from the newest message.
func (db *DB) FindOlder(account, chatID, fromID, text string) (protocol.ChatMessage, bool, error) {
	if text == "" {
		return protocol.ChatMessage{}, false, nil
	}
	if fromID == "" {
		found, err := db.SearchMessages(account, text, chatID, 1)
		if err != nil || len(found) == 0 {
			return protocol.ChatMessage{}, false, err
		}
		return found[0].Message, true, nil
	}

	from, ok, err := db.Message(account, chatID, fromID)
	if err != nil || !ok {
		return protocol.ChatMessage{}, false, err
	}
	candidates, err := db.queryMessages(`SELECT `+messageColumns+` FROM messages
		WHERE account = ? AND chat_id = ? AND time_sent <= ? AND msg_id != ?
		AND text LIKE ? ESCAPE '\'
		ORDER BY time_sent DESC
		LIMIT 64`, account, chatID, from.TimeSent, fromID, likePattern(text))
	if err != nil {
		return protocol.ChatMessage{}, false, err
	}
	var best protocol.ChatMessage
	found := false
	for _, m := range candidates {
		if store.NewestFirst(m, from) <= 0 {
			continue
		}
		if !found || store.NewestFirst(m, best) < 0 {
			best, found = m, true
		}
	}
	return best, found, nil
}
