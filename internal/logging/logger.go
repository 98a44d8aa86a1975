// Package logging defines a minimal structured-logging interface used across
// the project, with slog and zap implementations.
package logging

import (
	"context"
	"fmt"
	"os"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "refresh token rotated", "user_id", id, "ip", ip)
type Logger interface {
	// Debug logs diagnostic detail that is off in production.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// Supported values for the server's log format option.
const (
	FormatSlog = "slog"
	FormatZap  = "zap"
)

// New builds the logger selected by format, writing JSON to stdout.
func New(format string) (Logger, error) {
	switch format {
	case "", FormatSlog:
		return NewSlogJSONLogger(os.Stdout), nil
	case FormatZap:
		return NewZapProductionLogger()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
