package cache

import (
	"time"

	"github.com/matheus3301/mchat/internal/protocol"
)

// UpsertContacts stores contacts of an account. A full sync replaces the
// account's contact list.
func (db *DB) UpsertContacts(account string, contacts []protocol.Contact, fullSync bool) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if fullSync {
		if _, err := tx.Exec(`DELETE FROM contacts WHERE account = ?`, account); err != nil {
			return err
		}
	}
	now := time.Now().UnixMilli()
	for _, c := range contacts {
		_, err := tx.Exec(`
			INSERT INTO contacts (account, contact_id, name, phone, is_self, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(account, contact_id) DO UPDATE SET
				name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
				phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE contacts.phone END,
				is_self = excluded.is_self,
				updated_at = excluded.updated_at`,
			account, c.ID, c.Name, c.Phone, boolInt(c.IsSelf), now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListContacts returns the cached contacts of an account ordered by name.
func (db *DB) ListContacts(account string) ([]protocol.Contact, error) {
	rows, err := db.Query(`
		SELECT contact_id, name, phone, is_self
		FROM contacts
		WHERE account = ?
		ORDER BY name COLLATE NOCASE, contact_id`, account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []protocol.Contact
	for rows.Next() {
		var c protocol.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.IsSelf); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
