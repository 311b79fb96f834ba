package kv

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Names accepted for storage.kv.driver.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// ErrUnknownDriver reports a storage.kv.driver value New cannot open.
var ErrUnknownDriver = errors.New("kv: unknown driver")

// Dependencies are handles owned by the caller and shared with a store.
type Dependencies struct {
	// SQLiteDB backs the sqlite driver. The store never closes it.
	SQLiteDB *gorm.DB
}

// ParseDriver canonicalises a configured driver name; empty selects memory.
func ParseDriver(name string) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(name)); d {
	case "":
		return DriverMemory, nil
	case DriverMemory, DriverSQLite, DriverRedis:
		return d, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownDriver, name)
	}
}

// New opens the settings and queue store selected by cfg.Driver.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver, err := ParseDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverSQLite:
		if deps.SQLiteDB == nil {
			return nil, errors.New("kv: sqlite driver needs the history database handle")
		}
		return NewSQLite(deps.SQLiteDB)
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return NewMemory(), nil
	}
}
