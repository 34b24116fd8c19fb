// Package log wires structured logging for the pipeline: a JSON slog handler
// with a stacktrace-expanding wrapper for cockroachdb errors, and a zerolog
// sink for estimator warnings.
package log

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/rs/zerolog"

	pkgerrors "github.com/edustats/dropout/pkg/errors"
)

// Setup installs the default slog logger and routes estimator warnings
// through zerolog. Call once at process start.
func Setup(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(os.Stderr, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))

	warnLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	pkgerrors.SetZerologWarnFunc(func(warning error) {
		ev := warnLogger.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(obj)
		}
		ev.Msg(warning.Error())
	})
}

// ToLogLevel converts a level name to a slog.Level. Unknown names panic: a
// bad -log-level flag is a startup bug, not a runtime condition.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
