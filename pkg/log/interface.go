// Package log provides the structured logging interface used by dermnet.
//
// The interface is slog-shaped (message plus alternating key/value fields) and
// is backed by zerolog in production and by TestLogger in tests. Pipeline
// stages receive a Logger explicitly; GetLogger returns the process default
// for code that has no logger threaded through.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ComponentKey, "dataset",
//	    log.StageKey, log.StageBalance,
//	)
//	logger.Info("balanced classes",
//	    log.SamplesKey, 3500,
//	    log.ClassesKey, 7,
//	)
package log

import (
	"context"
	"sync"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Error values are rendered with their
// message and, when they carry one, a stack trace under StacktraceKey.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, fields ...any)

	// Info logs an info-level message.
	//
	// Example:
	//   logger.Info("epoch finished",
	//       log.EpochKey, 3,
	//       log.AccuracyKey, 0.71,
	//   )
	Info(msg string, fields ...any)

	// Warn logs a warning-level message.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. Pass the error as a field value,
	// conventionally under ErrAttrKey.
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every subsequent record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
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

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewNopLogger()
)

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the process-wide default logger.
func SetLogger(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if l == nil {
		l = NewNopLogger()
	}
	defaultLogger = l
}

// Component returns the default logger tagged with ComponentKey.
func Component(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}
