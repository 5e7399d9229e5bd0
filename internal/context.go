package internal

import (
	"context"
	"time"
)

// WithTimeout returns a context with timeout, defaulting to 15 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 15 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}

type traceKey struct{}

// WithTraceID tags ctx with the id that follows a request to the remote
// service.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
