package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/launchdash/idgen"
	"github.com/hazyhaar/launchdash/kit"
)

// TraceID assigns a trace ID to each request and injects it into the
// context (kit.TraceIDKey), the X-Trace-ID response header and a
// per-request logger stored under LoggerKey.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := idgen.Trace()

		ctx := kit.WithTraceID(r.Context(), traceID)
		w.Header().Set("X-Trace-ID", traceID)

		logger := slog.Default().With(
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
