package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Throttle caps the total request rate across all clients with a token
// bucket. It sits in front of the per-client limiter and protects the
// process itself. rps <= 0 disables it.
func Throttle(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				log.Warn().Str("path", r.URL.Path).Msg("global throttle engaged")
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
					"error":      "Too many requests",
					"retryAfter": 1,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
