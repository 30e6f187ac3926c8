package api

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RequireAPIKey rejects requests lacking the configured key. An empty
// key disables the check (development setups). Health and metrics
// stay open for probes and scrapers.
func RequireAPIKey(key string, next http.Handler) http.Handler {
	if key == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != key {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit applies one token bucket across all callers. The burst is
// sized to the sustained rate so short spikes pass.
func RateLimit(perSecond float64, next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "request rate exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
