// Package logger is the structured logger shared by the storefront binaries.
// Fields attached to a context.Context (request, user, cart, merge policy)
// follow that context into every entry written with it.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log formats accepted by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Field names used across the cart service, middleware and sweeper.
const (
	FieldRequestID     = "request_id"
	FieldUserID        = "user_id"
	FieldCartID        = "cart_id"
	FieldMergeStrategy = "merge_strategy"
	FieldResolution    = "resolution_policy"
	fieldStack         = "stack"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	// Format is FormatJSON (default) or FormatConsole.
	Format    string
	WarnStack bool
	Output    io.Writer
}

// Logger wraps zerolog and carries per-request fields through context.Context.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type scopedKey struct{}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatConsole) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	root := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger()

	return &Logger{root: root, warnStack: opts.WarnStack}
}

// ParseLevel maps a config value to a zerolog level, falling back to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (l *Logger) scoped(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if scoped, ok := ctx.Value(scopedKey{}).(zerolog.Logger); ok {
			return scoped
		}
	}
	return l.root
}

func (l *Logger) with(ctx context.Context, build func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopedKey{}, build(l.scoped(ctx).With()).Logger())
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
		return c.Str(FieldRequestID, requestID)
	})
}

func (l *Logger) WithUserID(ctx context.Context, userID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str(FieldUserID, userID)
	})
}

func (l *Logger) WithCartID(ctx context.Context, cartID string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str(FieldCartID, cartID)
	})
}

// WithMergePolicy tags entries with the strategy and resolution policy a
// merge runs under.
func (l *Logger) WithMergePolicy(ctx context.Context, strategy, resolution string) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str(FieldMergeStrategy, strategy).Str(FieldResolution, resolution)
	})
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	scoped := l.scoped(ctx)
	scoped.Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	scoped := l.scoped(ctx)
	scoped.Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	scoped := l.scoped(ctx)
	event := scoped.Warn()
	if l.warnStack {
		event = event.Str(fieldStack, stackTrace())
	}
	event.Msg(msg)
}

// Error always records the stack of the caller.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	scoped := l.scoped(ctx)
	scoped.Error().Err(err).Str(fieldStack, stackTrace()).Msg(msg)
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
