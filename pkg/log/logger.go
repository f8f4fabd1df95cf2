package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/YuminosukeSato/carprice/pkg/errors"
)

// SetupLogger configures process-wide logging.
//
// The slog default logger writes JSON to stdout through ErrFmtHandler so that
// fatal errors carry their cockroachdb/errors stack trace. The package-level
// zerolog provider used by the pipeline is replaced with one at the same
// level, and errors.Warn is routed to it.
func SetupLogger(loglevel, format string) {
	setupLogger(os.Stdout, loglevel, format)
}

func setupLogger(w io.Writer, loglevel, format string) {
	level := ToLogLevel(loglevel)
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{
					Key:   "severity",
					Value: attr.Value,
				}
			case slog.MessageKey:
				attr = slog.Attr{
					Key:   "message",
					Value: attr.Value,
				}
			}
			return attr
		},
	}
	handler := slog.NewJSONHandler(w, &ops)
	errFmtHandler := WrapByErrFmtHandler(handler)
	slog.SetDefault(slog.New(errFmtHandler))

	provider := NewZerologProvider(level, WithWriter(w), WithConsole(format == "console"))
	SetProvider(provider)

	warnLogger := provider.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(warning error) {
		warnLogger.Warn(warning.Error(), "warning", warning)
	})
}

// ToLogLevel converts a configuration string into a slog level.
// It panics on unknown values; configuration is validated with ValidLevel first.
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

// ValidLevel reports whether ToLogLevel accepts level.
func ValidLevel(level string) bool {
	switch level {
	case "info", "debug", "warn", "error":
		return true
	}
	return false
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
