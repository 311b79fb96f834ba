package storage

import (
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dogtranslator/internal/platform/errors"
)

// Open opens the SQLite database at dsn and brings its schema up to date.
// dsn is either a file path or a "file:" URI such as an in-memory database.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New(errors.KindStorage, "storage.open", "database path is required")
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.KindStorage, "storage.mkdir", "failed to create data directory", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "storage.open", "failed to open database", err)
	}

	if err := Migrate(db); err != nil {
		Close(db)
		return nil, err
	}
	return db, nil
}

// Migrate applies DefaultMigrations.
func Migrate(db *gorm.DB) error {
	manager := NewMigrationManager(db)
	for _, m := range DefaultMigrations() {
		manager.AddMigration(m)
	}
	return manager.RunMigrations()
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
