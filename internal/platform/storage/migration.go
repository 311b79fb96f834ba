package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"dogtranslator/internal/platform/errors"
	"dogtranslator/internal/platform/storage/migrations"
)

// Migration is one versioned schema change.
type Migration interface {
	Version() string
	Description() string
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// MigrationRecord is a row of the schema_migrations table.
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationRecord) TableName() string {
	return "schema_migrations"
}

// DefaultMigrations lists the application schema in order.
func DefaultMigrations() []Migration {
	return []Migration{
		&migrations.Migration001Initial{},
		&migrations.Migration002KVEntries{},
		&migrations.Migration003HistoryShareID{},
	}
}

// MigrationManager applies migrations once each, inside a transaction.
type MigrationManager struct {
	db         *gorm.DB
	migrations []Migration
}

func NewMigrationManager(db *gorm.DB) *MigrationManager {
	return &MigrationManager{
		db:         db,
		migrations: []Migration{},
	}
}

func (m *MigrationManager) AddMigration(migration Migration) {
	m.migrations = append(m.migrations, migration)
}

func (m *MigrationManager) applied() (map[string]bool, error) {
	if err := m.db.AutoMigrate(&MigrationRecord{}); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.create_table", "failed to create migration table", err)
	}
	var versions []string
	if err := m.db.Model(&MigrationRecord{}).Pluck("version", &versions).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.get_applied", "failed to get applied migrations", err)
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

// Pending returns the versions not applied yet.
func (m *MigrationManager) Pending() ([]string, error) {
	applied, err := m.applied()
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, migration := range m.migrations {
		if !applied[migration.Version()] {
			pending = append(pending, migration.Version())
		}
	}
	return pending, nil
}

// RunMigrations applies every pending migration in registration order.
func (m *MigrationManager) RunMigrations() error {
	applied, err := m.applied()
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if applied[migration.Version()] {
			continue
		}

		tx := m.db.Begin()
		if tx.Error != nil {
			return errors.Wrap(errors.KindStorage, "migration.begin_tx", "failed to begin transaction", tx.Error)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return errors.Wrap(errors.KindStorage, "migration.up",
				fmt.Sprintf("failed to run migration %s", migration.Version()), err)
		}

		record := &MigrationRecord{
			Version:   migration.Version(),
			Name:      migration.Description(),
			AppliedAt: time.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(errors.KindStorage, "migration.record", "failed to record migration", err)
		}

		if err := tx.Commit().Error; err != nil {
			return errors.Wrap(errors.KindStorage, "migration.commit", "failed to commit migration", err)
		}
	}
	return nil
}

// RollbackMigration reverts one applied migration.
func (m *MigrationManager) RollbackMigration(version string) error {
	var record MigrationRecord
	if err := m.db.Where("version = ?", version).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.New(errors.KindStorage, "migration.not_found", fmt.Sprintf("migration %s not found", version))
		}
		return errors.Wrap(errors.KindStorage, "migration.find_record", "failed to find migration record", err)
	}

	var target Migration
	for _, migration := range m.migrations {
		if migration.Version() == version {
			target = migration
			break
		}
	}
	if target == nil {
		return errors.New(errors.KindStorage, "migration.not_registered", fmt.Sprintf("migration %s not registered", version))
	}

	tx := m.db.Begin()
	if tx.Error != nil {
		return errors.Wrap(errors.KindStorage, "migration.rollback_begin_tx", "failed to begin rollback transaction", tx.Error)
	}
	if err := target.Down(tx); err != nil {
		tx.Rollback()
		return errors.Wrap(errors.KindStorage, "migration.down", fmt.Sprintf("failed to rollback migration %s", version), err)
	}
	if err := tx.Delete(&record).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(errors.KindStorage, "migration.delete_record", "failed to delete migration record", err)
	}
	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(errors.KindStorage, "migration.rollback_commit", "failed to commit rollback", err)
	}
	return nil
}

// GetMigrationHistory lists applied migrations, newest first.
func (m *MigrationManager) GetMigrationHistory() ([]MigrationRecord, error) {
	var records []MigrationRecord
	if err := m.db.Order("applied_at DESC").Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "migration.history", "failed to get migration history", err)
	}
	return records, nil
}
