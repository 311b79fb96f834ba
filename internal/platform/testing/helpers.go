package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"dogtranslator/internal/platform/config"
	"dogtranslator/internal/platform/logging"
	"dogtranslator/internal/platform/storage"
)

var dbSeq int64

// SetupTestConfig returns defaults rooted in a per-test temporary directory.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:0"
	cfg.API.RetryDelay = 0
	cfg.Log.Level = "debug"
	cfg.Log.Dir = ""
	cfg.Storage.DataDir = dir
	cfg.Storage.KV.Driver = "memory"
	cfg.Image.OutputDir = dir + "/tmp"
	cfg.Speech.OutputDir = dir + "/speech"
	return cfg
}

// SetupTestLogger returns a debug logger writing to an in-memory buffer.
func SetupTestLogger(t *testing.T) (*logging.Logger, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	logger, err := logging.New(logging.Config{
		Level:   "debug",
		Console: buf,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger, buf
}

// OpenTestDB opens a migrated in-memory SQLite database private to the test.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test-%d-%d?mode=memory&cache=shared",
		time.Now().UnixNano(), atomic.AddInt64(&dbSeq, 1))
	db, err := storage.Open(dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}
