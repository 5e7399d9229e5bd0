package logger

import (
	"context"
	"log/slog"
)

type scopedKey struct{}

// Into attaches l to ctx. A nil logger leaves ctx as it was.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, scopedKey{}, l)
}

// With scopes the context's logger with extra attributes, so everything
// logged further down the call carries them.
func With(ctx context.Context, attrs ...any) context.Context {
	return Into(ctx, From(ctx).With(attrs...))
}

// From is the logger scoped to ctx, falling back to the process logger.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(scopedKey{}).(*slog.Logger); ok {
		return l
	}
	return LoggerWrapper()
}
