// Package logging defines the structured, context-aware logger used across
// the service.  The default implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger.  Variadic args are
// key/value pairs:
//
//	log.Info(ctx, "borrow created", "borrow_id", id, "reader_id", readerID)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
