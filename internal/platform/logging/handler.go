package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tag prefix -> console colour
var tagColors = map[string]string{
	"[Bootstrap]": "\x1b[96m",
	"[Upload]":    "\x1b[95m",
	"[Retry]":     "\x1b[33m",
	"[Offline]":   "\x1b[94m",
	"[Queue]":     "\x1b[94m",
	"[Image]":     "\x1b[36m",
	"[Normalize]": "\x1b[34m",
	"[History]":   "\x1b[92m",
	"[Session]":   "\x1b[97m",
	"[TTS]":       "\x1b[95m",
}

// textHandler renders "[time] [LEVEL] message { k=v }" lines for terminals.
type textHandler struct {
	writer io.Writer
	level  slog.Level
	mu     sync.Mutex
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeStr := r.Time.Format("2006-01-02 15:04:05.000")

	var levelStr, levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelStr, levelColor = "ERROR", colorError
	case r.Level >= slog.LevelWarn:
		levelStr, levelColor = "WARN", colorWarn
	case r.Level >= slog.LevelInfo:
		levelStr, levelColor = "INFO", colorInfo
	default:
		levelStr, levelColor = "DEBUG", colorDebug
	}

	msg := r.Message
	msgColor := ""
	for prefix, color := range tagColors {
		if strings.HasPrefix(msg, prefix) {
			msgColor = color
			break
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]%s %s[%s]%s ", colorTime, timeStr, colorReset, levelColor, levelStr, colorReset)
	if msgColor != "" {
		fmt.Fprintf(&b, "%s%s%s", msgColor, msg, colorReset)
	} else {
		b.WriteString(msg)
	}

	if r.NumAttrs() > 0 {
		b.WriteString(" {")
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		b.WriteString(" }")
	}
	b.WriteString("\n")

	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *textHandler) WithAttrs(_ []slog.Attr) slog.Handler {
	return h
}

func (h *textHandler) WithGroup(_ string) slog.Handler {
	return h
}
