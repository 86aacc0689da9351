// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs attempts, pacing changes and skipped pages.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs crawl progress.
	LevelInfo LogLevel = "info"

	// LevelWarn logs rate limiting and challenge pages.
	LevelWarn LogLevel = "warn"

	// LevelError logs artifact failures only.
	LevelError LogLevel = "error"

	// LevelDisabled silences all output.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: true,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(string(cfg.Level)))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level.
// Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "disabled", "off", "none":
		return true
	}
	return false
}

// NewLogger creates a child of the global logger tagged with a component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Log Level Guidelines:
//
// Debug:
//   - every fetch attempt and connection failure
//   - pacing changes (old and new pause)
//   - pages skipped because an artifact exists
//
// Info:
//   - URL about to be fetched
//   - page captured ("page N of M")
//   - target finished, with its stop reason
//
// Warn:
//   - HTTP 503 from the site (page will be retried)
//   - challenge page detected
//   - Redis mirror failures
//
// Error:
//   - artifact write failures
//   - configuration errors
//
// Context Fields:
//   - id: product identifier
//   - domain: site locale segment
//   - page: page number
//   - last_page: highest page index discovered so far
//   - status: HTTP status code
//   - attempt: connection attempt number
//   - pause: current pacing delay in seconds
//   - url: request URL
//   - reason: stop reason of a target
