// Package logging configures zerolog for the library services.
//
// Binaries call Setup once from their environment configuration and hand
// component loggers built with NewLogger to the constructors they call.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as given in LOG_LEVEL.
type LogLevel string

// Levels used by the services. Anything zerolog.ParseLevel accepts works.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to a human-readable console format.
	Pretty bool

	// Output receives the log lines. Nil means stderr.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs the process-wide logger and returns it. Call it once at
// startup, before any component logger is derived with NewLogger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	logger := zerolog.New(writer(cfg)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// writer resolves the sink for cfg.
func writer(cfg Config) io.Writer {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out
}

// parseLevel accepts any level name zerolog knows, case-insensitively,
// plus "warning". Empty or unknown names fall back to info.
func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(string(level)))
	if name == "warning" {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// Component names used across the services.
const (
	ComponentProxy   = "library-proxy"
	ComponentCLI     = "bookcachectl"
	ComponentCache   = "bookcache"
	ComponentRelated = "related"
	ComponentCatalog = "catalog"
	ComponentRecent  = "recent"
)

// NewLogger derives a logger tagged with component from the global one.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache hit/miss with reason (not_found, expired, malformed, other_book)
//   - Snapshot writes (book count, viewport count, encoded bytes)
//   - Store check failures
//
// Info: Normal operation events
//   - Server startup/shutdown
//   - Cache cleared on request
//
// Warn: Conditions that don't prevent operation
//   - Malformed snapshot discarded
//   - Storage quota exceeded (snapshot cleared)
//   - Catalog retry attempts
//   - Related books served from cache after a catalog failure
//
// Error: Conditions requiring attention
//   - Catalog requests failed after retries with no cached fallback
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package or binary
//   - cache_key: snapshot key (e.g. bookCache_v1)
//   - current_book / book_id: book the view was built for
//   - books, viewport, bytes: snapshot shape
//   - resource, status_code, error_class: catalog requests
//   - attempt, backoff: retries
