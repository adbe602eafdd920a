package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per IP
// address to the specified number per minute. Uses a sliding window
// algorithm.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.LimitByIP(requestsPerMinute, time.Minute)
}

// RateLimitByBearer returns an HTTP middleware that limits requests by
// the Authorization header value, giving each API key its own window.
// Unauthenticated requests fall into a shared bucket and are cut off
// by the auth middleware anyway.
func RateLimitByBearer(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return r.Header.Get("Authorization"), nil
		}),
	)
}
