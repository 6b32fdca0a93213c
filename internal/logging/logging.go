// Package logging provides structured logging for agora sessions. It wraps
// log/slog with a JSON handler so session runs leave a machine-readable
// trace alongside the exported reports.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger wraps slog with session-scoped attributes. Safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	file   *os.File
}

// New creates a Logger writing JSON lines to w.
func New(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{logger: slog.New(handler)}
}

// NewFile creates a Logger writing to {dir}/session.log, creating dir if
// needed.
func NewFile(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: creating session directory: %w", err)
	}
	path := filepath.Join(dir, "session.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: opening log file: %w", err)
	}
	l := New(f, level)
	l.file = f
	return l, nil
}

// Discard returns a Logger that drops everything. Useful default for
// components whose caller did not wire a logger.
func Discard() *Logger {
	return New(io.Discard, "ERROR")
}

// With returns a Logger carrying additional persistent attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), file: l.file}
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Close releases the underlying file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
