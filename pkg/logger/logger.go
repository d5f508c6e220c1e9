// Package logger is a context-carrying wrapper over zerolog. Fields attached
// with WithField and friends ride on the context, so any code handed the
// context logs with the request, product and operation it belongs to.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/env"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"

	defaultMaxSizeMB = 100
)

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
	// Format is json or console. Empty falls back to LOG_FORMAT.
	Format string
	// FilePath, when set and Output is nil, routes entries to a size-rotated file.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
}

type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

type ctxKey struct{}

func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}
	output := opts.Output
	if output == nil {
		output = fileOrStdout(opts)
	}
	format := opts.Format
	if format == "" {
		format = env.Get("LOG_FORMAT", FormatJSON)
	}
	if strings.EqualFold(format, FormatConsole) {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05.000"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(opts.Level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()
	return &Logger{base: base, warnStack: opts.WarnStack}
}

func fileOrStdout(opts Options) io.Writer {
	path := strings.TrimSpace(opts.FilePath)
	if path == "" {
		return os.Stdout
	}
	size := opts.MaxSizeMB
	if size <= 0 {
		size = defaultMaxSizeMB
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    size,
		MaxBackups: opts.MaxBackups,
		Compress:   true,
	}
}

// ParseLevel is lenient: empty or unknown values mean info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) from(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
			return entry
		}
	}
	return &l.base
}

func (l *Logger) with(ctx context.Context, apply func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	entry := apply(l.from(ctx).With()).Logger()
	return context.WithValue(ctx, ctxKey{}, &entry)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Fields(fields)
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", requestID)
	})
}

// WithProductID tags every entry written from ctx with the product under mutation.
func (l *Logger) WithProductID(ctx context.Context, productID uint) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Uint("product_id", productID)
	})
}

func (l *Logger) WithOperation(ctx context.Context, op string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("op", op)
	})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.from(ctx).Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.from(ctx).Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	emit(l.from(ctx).Warn(), nil, l.warnStack, msg)
}

// WarnErr logs a non-fatal failure with its cause attached.
func (l *Logger) WarnErr(ctx context.Context, msg string, err error) {
	emit(l.from(ctx).Warn(), err, l.warnStack, msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	emit(l.from(ctx).Error(), err, true, msg)
}

func emit(event *zerolog.Event, err error, withStack bool, msg string) {
	if event == nil {
		return
	}
	if err != nil {
		event = event.Err(err)
	}
	if withStack {
		event = event.Str("stack", strings.TrimSpace(string(debug.Stack())))
	}
	event.Msg(msg)
}
