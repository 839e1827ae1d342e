// Package logging configures the process-wide zerolog logger.
//
// Output always goes to stderr; stdout belongs to the MCP protocol when the
// binary runs as a stdio server.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init installs the global logger. level is a zerolog level name ("trace",
// "debug", "info", "warn", "error"); unknown names fall back to info. format
// "json" writes JSON lines, anything else a human-readable console format.
func Init(level, format string) {
	InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the global logger.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

// Discard silences all logging. Tests use it to keep output clean.
func Discard() {
	mu.Lock()
	logger = zerolog.Nop()
	mu.Unlock()
}
