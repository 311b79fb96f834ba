package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	// Console receives the human readable stream. Defaults to os.Stderr.
	Console io.Writer
}

// Logger writes every record twice: JSON to the log file, coloured text to the console.
type Logger struct {
	level      slog.Level
	jsonLogger *slog.Logger
	textLogger *slog.Logger
	logFile    *os.File
	mu         sync.RWMutex
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a Logger. An empty Dir disables the JSON file output.
func New(cfg Config) (*Logger, error) {
	level := parseLevel(cfg.Level)
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{
		level:      level,
		textLogger: slog.New(&textHandler{writer: console, level: level}),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := cfg.Filename
		if name == "" {
			name = "dogtranslator.log"
		}
		file, err := os.OpenFile(filepath.Join(cfg.Dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.logFile = file
		l.jsonLogger = slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{
		level:      slog.LevelError + 1,
		textLogger: slog.New(&textHandler{writer: io.Discard, level: slog.LevelError + 1}),
	}
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		err := l.logFile.Close()
		l.logFile = nil
		l.jsonLogger = nil
		return err
	}
	return nil
}

// Slog exposes the console logger for structured integrations.
func (l *Logger) Slog() *slog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.textLogger
}

func (l *Logger) log(level slog.Level, msg string, fields ...any) {
	if l == nil || level < l.level {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	var attrs []slog.Attr
	if len(fields) > 0 && fields[0] != nil {
		if fieldsMap, ok := fields[0].(map[string]any); ok {
			keys := make([]string, 0, len(fieldsMap))
			for k := range fieldsMap {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				attrs = append(attrs, slog.Any(k, fieldsMap[k]))
			}
		} else {
			attrs = append(attrs, slog.Any("fields", fields[0]))
		}
	}

	ctx := context.Background()
	if l.jsonLogger != nil {
		l.jsonLogger.LogAttrs(ctx, level, msg, attrs...)
	}
	l.textLogger.LogAttrs(ctx, level, msg, attrs...)
}

// emit accepts either printf style arguments or a single map of fields.
func (l *Logger) emit(level slog.Level, msg string, args ...any) {
	if len(args) > 0 && strings.Contains(msg, "%") {
		l.log(level, fmt.Sprintf(msg, args...))
		return
	}
	l.log(level, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) { l.emit(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.emit(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.emit(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.emit(slog.LevelError, msg, args...) }

// FormatLog prefixes message with a single category tag: FormatLog("Upload", "sent") -> "[Upload] sent".
// Messages that already start with "[" are returned as they are.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" || strings.HasPrefix(message, "[") {
		return message
	}
	return fmt.Sprintf("[%s] %s", tag, message)
}

func (l *Logger) DebugTag(tag, msg string, args ...any) {
	l.emit(slog.LevelDebug, FormatLog(tag, msg), args...)
}

func (l *Logger) InfoTag(tag, msg string, args ...any) {
	l.emit(slog.LevelInfo, FormatLog(tag, msg), args...)
}

func (l *Logger) WarnTag(tag, msg string, args ...any) {
	l.emit(slog.LevelWarn, FormatLog(tag, msg), args...)
}

func (l *Logger) ErrorTag(tag, msg string, args ...any) {
	l.emit(slog.LevelError, FormatLog(tag, msg), args...)
}
