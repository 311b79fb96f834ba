package migrations

import (
	"gorm.io/gorm"
)

// Migration003HistoryShareID promotes share_id out of the metadata column so
// remote sync can skip records it already has.
type Migration003HistoryShareID struct{}

func (m *Migration003HistoryShareID) Version() string {
	return "003_history_share_id"
}

func (m *Migration003HistoryShareID) Description() string {
	return "Add indexed share_id column to history"
}

func (m *Migration003HistoryShareID) Up(db *gorm.DB) error {
	if err := db.Exec(`ALTER TABLE history ADD COLUMN share_id VARCHAR(255)`).Error; err != nil {
		return err
	}
	if err := db.Exec(`
		UPDATE history
		SET share_id = json_extract(metadata, '$.share_id')
		WHERE metadata IS NOT NULL AND json_extract(metadata, '$.share_id') IS NOT NULL
	`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_share_id ON history(share_id)`).Error
}

func (m *Migration003HistoryShareID) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP INDEX IF EXISTS idx_history_share_id`).Error; err != nil {
		return err
	}
	return db.Exec(`ALTER TABLE history DROP COLUMN share_id`).Error
}
