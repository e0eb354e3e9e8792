// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentService     = "catalog-service"
	ComponentCoordinator = "coordinator"
	ComponentPageCache   = "page-cache"
	ComponentPageFetcher = "page-fetcher"
	ComponentImageLoader = "image-loader"
	ComponentClient      = "upstream-client"
	ComponentWorkerPool  = "worker-pool"
	ComponentQuota       = "quota-tracker"
	ComponentHTTP        = "http"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level name from flags or config files.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a logger from the global logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return WithComponent(log.Logger, component)
}

// WithComponent derives a logger tagged with component.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache hits and evictions (page, resident count)
//   - Callers joining an in-flight page load
//   - Image loads, next page URL discovery
//
// Info: Normal operation events
//   - Page load complete (items, thumbnails, duration)
//   - Service created/closed
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Thumbnail skipped
//   - Worker pool rejections
//   - Quota throttling, retry attempts
//
// Error: Error conditions requiring attention
//   - Page load failed
//   - Critical quota blocks
//   - Configuration errors
//
// Context Fields:
//   - component: emitting component (see Component constants)
//   - page: zero-based page number
//   - offset / index: item position in page / global index
//   - url: upstream URL
//   - status: upstream HTTP status
//   - error_class: client, server, rate_limit, network, overloaded
//   - remaining: upstream quota left
