package migrations

import (
	"gorm.io/gorm"
)

// Migration001Initial creates the saved translations table.
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001_initial"
}

func (m *Migration001Initial) Description() string {
	return "Create history table for saved translations"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename VARCHAR(1024) NOT NULL,
			explanation TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0,
			tone VARCHAR(32),
			metadata JSON,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`).Error; err != nil {
		return err
	}
	return nil
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS history`).Error
}
