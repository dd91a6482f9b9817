// Package shield provides the HTTP middleware stack of the framecap API:
// security headers, request body limits, request tracing, rate limiting and
// HEAD method handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(1<<20) {
//	    r.Use(mw)
//	}
//	r.With(shield.NewRateLimiter(rules).Middleware).Post("/api/capture", h)
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// APIStack returns the standard middleware stack for the JSON API.
// Middleware is ordered: HeadToGet → SecurityHeaders → MaxBody → TraceID.
func APIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
		TraceID,
	}
}
