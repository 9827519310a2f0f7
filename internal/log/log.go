// Package log provides structured logging for go-targetlink.
// It wraps slog; every package takes a component logger from here.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// ParseLevel maps a level name to a slog level.
// Valid levels: "debug", "info", "warn", "error". Anything else is info.
func ParseLevel(level string) slog.Level {
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

// jsonOutput reports whether logs should be JSON lines. Set
// TARGETLINK_LOG_FORMAT=json (or GO_ENV=production) on the robot so the
// log shipper can parse them.
func jsonOutput(getenv func(string) string) bool {
	switch strings.ToLower(getenv("TARGETLINK_LOG_FORMAT")) {
	case "json":
		return true
	case "text":
		return false
	}
	return getenv("GO_ENV") == "production"
}

// Init initializes the global logger with the specified level.
// Only the first call has any effect.
func Init(level string) {
	once.Do(func() {
		logger = newLogger(os.Stdout, ParseLevel(level), jsonOutput(os.Getenv))
		slog.SetDefault(logger)
	})
}

func newLogger(w io.Writer, lvl slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Component returns a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	return L().With("component", name)
}

// Debug logs at debug level on the global logger.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}
