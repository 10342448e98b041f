package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
)

// New returns a structured logger writing to stdout.
// format "text" selects a human-readable handler for local use; anything else is JSON.
// No business logic should depend on logging implementation details.
func New(appEnv, format string) *slog.Logger {
	return NewWithWriter(appEnv, format, os.Stdout)
}

func NewWithWriter(appEnv, format string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	if strings.EqualFold(strings.TrimSpace(format), "text") {
		pretty := charmLog.NewWithOptions(w, charmLog.Options{
			Level:           charmLevel(level),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Formatter:       charmLog.TextFormatter,
		})
		return slog.New(pretty)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

func charmLevel(level slog.Level) charmLog.Level {
	if level <= slog.LevelDebug {
		return charmLog.DebugLevel
	}
	return charmLog.InfoLevel
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
