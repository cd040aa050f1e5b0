// Package log holds the process-wide structured logger. Records are JSON
// lines on stdout; every component logger carries a "component" attribute.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Setup installs the process logger at the given level name. Extra key/value
// pairs (for example the service name) are attached to every record.
func Setup(level string, attrs ...any) {
	SetupWriter(os.Stdout, level, attrs...)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, attrs ...any) {
	l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
	if len(attrs) > 0 {
		l = l.With(attrs...)
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// ParseLevel maps a config level name onto a slog level. Unknown names are INFO.
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

// Get returns the process logger, installing an INFO logger on first use.
func Get() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Setup("info")
	return Get()
}

// WithComponent returns a logger tagged with component=name.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}
