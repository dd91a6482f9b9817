package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hazyhaar/framecap/idgen"
	"github.com/hazyhaar/framecap/kit"
)

// TraceHeader carries the trace ID in both directions.
const TraceHeader = "X-Trace-ID"

var traceIDs = idgen.NanoID(8)

// TraceID tags each request with a trace ID and a request-scoped logger.
// A well-formed X-Trace-ID sent by the caller is reused so a client can
// correlate its capture with framecap's logs; otherwise a fresh one is
// generated. The ID is echoed in the response header.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if !validTraceID(traceID) {
			traceID = traceIDs()
		}
		ip := ExtractIP(r)

		ctx := kit.WithTraceID(r.Context(), traceID)
		ctx = kit.WithTransport(ctx, "http")
		ctx = kit.WithRemoteAddr(ctx, ip)
		w.Header().Set(TraceHeader, traceID)

		logger := slog.Default().With("trace_id", traceID, "client", ip)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Debug("shield: request", "method", r.Method, "path", r.URL.Path)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validTraceID accepts 1 to 64 ASCII letters, digits, '-' and '_'.
func validTraceID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// GetLogger returns the request logger set by TraceID, or slog.Default().
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
