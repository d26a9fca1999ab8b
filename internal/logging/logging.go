// Package logging builds the slog loggers shared by the scheduler
// server, the worker, and the CLI. Components derive their own child
// via logger.With("component", ...).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a logger for the given level and format ("text"
// or "json"; anything else falls back to text). Logs go to stderr:
// the CLI prints task listings and stats on stdout, and the worker
// pipes task payloads through child process stdio, so stdout stays
// clean for both.
func NewLogger(level slog.Level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter is NewLogger with an explicit destination.
// Tests use it to capture output or discard it.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps the log_level config value to a slog.Level,
// defaulting to info for anything it does not recognize.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
