package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := New(Config{
		Level:    "debug",
		Dir:      tmpDir,
		Filename: "test.log",
		Console:  &bytes.Buffer{},
	})

	assert.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, logger.Close())
}

func TestLogger_WritesFileAndConsole(t *testing.T) {
	tmpDir := t.TempDir()
	console := &bytes.Buffer{}

	logger, err := New(Config{
		Level:    "info",
		Dir:      tmpDir,
		Filename: "info.log",
		Console:  console,
	})
	require.NoError(t, err)

	logger.InfoTag("Upload", "request sent", map[string]any{"status": 200, "method": "POST"})
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(filepath.Join(tmpDir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "[Upload] request sent")
	assert.Contains(t, string(content), `"status":200`)

	assert.Contains(t, console.String(), "[Upload] request sent")
	assert.Contains(t, console.String(), "method=POST")
}

func TestLogger_LevelFiltering(t *testing.T) {
	console := &bytes.Buffer{}
	logger, err := New(Config{Level: "warn", Console: console})
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("hidden info")
	logger.Debug("hidden debug")
	logger.Warn("visible %s", "warning")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "visible warning")
}

func TestFormatLog(t *testing.T) {
	assert.Equal(t, "[Queue] item added", FormatLog("Queue", "item added"))
	assert.Equal(t, "[Other] already tagged", FormatLog("Queue", "[Other] already tagged"))
	assert.Equal(t, "plain", FormatLog("", " plain "))
}

func TestNilAndNopLoggerAreSafe(t *testing.T) {
	var nilLogger *Logger
	nilLogger.InfoTag("Queue", "nothing happens")
	assert.NoError(t, nilLogger.Close())

	Nop().Error("discarded %d", 1)
}
