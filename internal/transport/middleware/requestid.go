package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/pkg/logger"
)

const TraceHeader = "X-Trace-ID"

// RequestID tags the request with a trace id, reusing the caller's when it
// sent one. Remote calls made while serving it carry the same id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := internal.WithTraceID(r.Context(), traceID)
		ctx = logger.With(ctx, "trace_id", traceID)

		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
