// Package log provides a structured logging interface for the Bechdel
// modeling pipeline and its estimators.
//
// This package defines a minimal, slog-compatible logging interface so the
// backend can be swapped without touching call sites. The default backend is
// zerolog; tests use TestLogger to capture output in memory.
//
// Key features:
//   - slog-compatible interface
//   - ML and pipeline attribute keys (operation, data shape, metrics, stage)
//   - Context-aware logging with field chaining
//   - Test-friendly with configurable output destinations
//
// Example usage:
//
//	logger := log.GetLoggerWithName("model_selection").With(
//	    log.ModelNameKey, "knn_classifier",
//	    log.RunIDKey, runID,
//	)
//	logger.Info("Candidate scored",
//	    log.OperationKey, log.OperationScore,
//	    log.SamplesKey, 1000,
//	)

package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// The interface supports method chaining through the With method, allowing
// for creation of contextual loggers with pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional key-value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key-value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key-value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If the first field is an error, it is recorded under ErrAttrKey
	// together with its stack trace when the backend supports it.
	//
	// Example:
	//   logger.Error("Stage failed",
	//       err,
	//       log.StageKey, "merge",
	//   )
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a configuration string into a Level.
// Unknown names fall back to LevelInfo and report ok=false.
func ParseLevel(s string) (level Level, ok bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// LoggerProvider defines an interface for creating and configuring loggers.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
