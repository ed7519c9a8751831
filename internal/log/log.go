package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	level         slog.LevelVar
	defaultLogger = newLogger(os.Stderr)
)

func init() {
	level.Set(slog.LevelInfo)
}

// logs go to stderr; the CLI writes results to stdout
func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     &level,
	}))
}

type contextKey struct{}

// Ctx returns the logger stored in ctx, or the default logger
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a copy of ctx carrying logger
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// SetOutput redirects the default logger
func SetOutput(w io.Writer) {
	defaultLogger = newLogger(w)
}

func SetDefaultLogLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel accepts debug, info, warn or error in any case
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}
