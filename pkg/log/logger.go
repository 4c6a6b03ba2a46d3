package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	dnerrors "github.com/YuminosukeSato/dermnet/pkg/errors"
)

// ZerologLogger implements Logger on top of zerolog.
type ZerologLogger struct {
	zl     zerolog.Logger
	fields []any
}

// NewZerologLogger creates a JSON logger writing to w at the given level.
func NewZerologLogger(w io.Writer, level Level) *ZerologLogger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &ZerologLogger{zl: zl}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *ZerologLogger {
	return &ZerologLogger{zl: zerolog.Nop()}
}

// Debug implements Logger.Debug.
func (z *ZerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *ZerologLogger) Info(msg string, fields ...any) {
	z.emit(z.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *ZerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (z *ZerologLogger) Error(msg string, fields ...any) {
	z.emit(z.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (z *ZerologLogger) With(fields ...any) Logger {
	merged := make([]any, 0, len(z.fields)+len(fields))
	merged = append(merged, z.fields...)
	merged = append(merged, fields...)
	return &ZerologLogger{zl: z.zl, fields: merged}
}

// Enabled implements Logger.Enabled.
func (z *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return z.zl.GetLevel() <= toZerologLevel(level)
}

func (z *ZerologLogger) emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	addFields(e, z.fields)
	addFields(e, fields)
	e.Msg(msg)
}

func addFields(e *zerolog.Event, fields []any) {
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			e.Interface("!BADKEY", fields[i])
			return
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			e.Str(key, v.Error())
			var obj zerolog.LogObjectMarshaler
			if errors.As(v, &obj) {
				e.Object(key+".detail", obj)
			}
			if st := extractStacktrace(v); st != "" {
				e.Str(StacktraceKey, st)
			}
		case string:
			e.Str(key, v)
		case int:
			e.Int(key, v)
		case int64:
			e.Int64(key, v)
		case float64:
			e.Float64(key, v)
		case bool:
			e.Bool(key, v)
		case time.Duration:
			e.Dur(key, v)
		case []int:
			e.Ints(key, v)
		case []string:
			e.Strs(key, v)
		default:
			e.Interface(key, v)
		}
	}
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// ParseLevel converts "debug", "info", "warn" or "error" to a Level.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, dnerrors.NewValidationError("log-level", "must be one of debug, info, warn, error", level)
	}
}

// SetupLogger builds the process logger, installs it as the default and routes
// pkg/errors warnings through it. format is "json" or "console".
func SetupLogger(level, format string) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	switch format {
	case "json", "":
	case "console":
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	default:
		return nil, dnerrors.NewValidationError("log-format", "must be json or console", format)
	}

	logger := NewZerologLogger(w, lvl)
	SetLogger(logger)
	dnerrors.SetZerologWarnFunc(func(warning error) {
		e := logger.zl.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			e = e.EmbedObject(obj)
		}
		e.Msg(warning.Error())
	})
	return logger, nil
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
