package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ZerologProvider implements LoggerProvider on top of zerolog.
// All loggers it hands out share one writer and one level.
type ZerologProvider struct {
	mu     sync.RWMutex
	base   zerolog.Logger
	level  zerolog.Level
	writer io.Writer
}

// ProviderOption configures a ZerologProvider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	writer  io.Writer
	console bool
}

// WithWriter sets the destination of log records (default os.Stderr).
func WithWriter(w io.Writer) ProviderOption {
	return func(c *providerConfig) {
		c.writer = w
	}
}

// WithConsole switches from JSON lines to zerolog's human readable console format.
func WithConsole(console bool) ProviderOption {
	return func(c *providerConfig) {
		c.console = console
	}
}

// NewZerologProvider creates a provider emitting records at level and above.
//
// Example:
//
//	provider := log.NewZerologProvider(log.ToLogLevel("info"))
//	logger := provider.GetLoggerWithName("pipeline")
func NewZerologProvider(level slog.Level, opts ...ProviderOption) *ZerologProvider {
	cfg := providerConfig{writer: os.Stderr}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := cfg.writer
	if cfg.console {
		w = zerolog.ConsoleWriter{Out: cfg.writer, TimeFormat: time.RFC3339}
	}

	return &ZerologProvider{
		base:   zerolog.New(w).With().Timestamp().Logger(),
		level:  toZerologLevel(Level(level)),
		writer: w,
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.Level(p.level)}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return p.GetLogger().With(ComponentKey, name)
}

// SetLevel implements LoggerProvider.SetLevel.
// Loggers already handed out keep the level they were created with.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = toZerologLevel(level)
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

// zerologLogger adapts zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	emit(l.zl.Info(), msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	e := l.zl.Error()
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			addField(e, ErrAttrKey, err)
			fields = fields[1:]
		}
	}
	emit(e, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if err, ok := fields[i+1].(error); ok {
			ctx = ctx.Str(key, err.Error())
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= l.zl.GetLevel()
}

// emit writes the key-value pairs into e. A disabled level yields a nil
// event, on which zerolog methods are no-ops.
func emit(e *zerolog.Event, msg string, fields []any) {
	if e == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		addField(e, fmt.Sprint(fields[i]), fields[i+1])
	}
	e.Msg(msg)
}

func addField(e *zerolog.Event, key string, value any) {
	switch v := value.(type) {
	case error:
		e.AnErr(key, v)
		var m zerolog.LogObjectMarshaler
		if errors.As(v, &m) {
			e.Object(key+"_detail", m)
		}
	case zerolog.LogObjectMarshaler:
		e.Object(key, v)
	case time.Duration:
		e.Dur(key, v)
	default:
		e.Interface(key, v)
	}
}

var (
	providerMu     sync.RWMutex
	globalProvider LoggerProvider = NewZerologProvider(slog.LevelInfo)
)

// SetProvider replaces the package-level provider used by GetLogger and GetLoggerWithName.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = p
}

// GetLogger returns the default logger of the package-level provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider.GetLogger()
}

// GetLoggerWithName returns a component logger from the package-level provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return globalProvider.GetLoggerWithName(name)
}
