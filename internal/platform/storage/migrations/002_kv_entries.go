package migrations

import (
	"gorm.io/gorm"
)

// Migration002KVEntries adds the key/value table used for settings and the offline queue.
type Migration002KVEntries struct{}

func (m *Migration002KVEntries) Version() string {
	return "002_kv_entries"
}

func (m *Migration002KVEntries) Description() string {
	return "Create key/value table for settings and the offline queue"
}

func (m *Migration002KVEntries) Up(db *gorm.DB) error {
	return db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_entries (
			key VARCHAR(255) PRIMARY KEY,
			value JSON NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`).Error
}

func (m *Migration002KVEntries) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS kv_entries`).Error
}
