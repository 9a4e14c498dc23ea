package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"mediagate/internal/metrics"
	"mediagate/internal/middleware"
	"mediagate/internal/service"
	"mediagate/internal/video"

	"github.com/rs/zerolog"
)

const msgInvalidURL = "Invalid YouTube URL"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// gate runs the per-client rate limit for one route.
type gate struct {
	route   string
	limiter *service.Limiter
	metrics *metrics.Registry
}

// admit records the request against the caller's window and sets the
// X-RateLimit headers. It reports whether the limiter was consulted
// successfully; on failure a 500 has already been written. A limited caller
// is signalled through d.Allowed so validation errors can take precedence.
func (g gate) admit(w http.ResponseWriter, r *http.Request) (service.Decision, bool) {
	if g.metrics != nil {
		g.metrics.Requests.WithLabelValues(g.route).Inc()
	}
	client := middleware.ClientFromContext(r.Context())
	d, err := g.limiter.CheckAndRecord(r.Context(), client)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("client", client).Msg("rate limit evaluation error")
		writeUnexpected(w)
		return d, false
	}

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	return d, true
}

// limited writes the 429 response when d denies the request.
func (g gate) limited(w http.ResponseWriter, r *http.Request, d service.Decision) bool {
	if d.Allowed {
		return false
	}
	if g.metrics != nil {
		g.metrics.RateLimited.Inc()
	}
	zerolog.Ctx(r.Context()).Info().
		Str("client", middleware.ClientFromContext(r.Context())).
		Int64("retry_after", d.RetryAfterSeconds).
		Msg("rate limited")
	w.Header().Set("Retry-After", strconv.FormatInt(d.RetryAfterSeconds, 10))
	writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
		"error":      "Too many requests",
		"retryAfter": d.RetryAfterSeconds,
	})
	return true
}

func writeUnexpected(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"message": service.ErrUnexpected.Message,
	})
}

// writeSourceError maps video source failures for the metadata and download
// routes. Details stay in the log.
func writeSourceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, video.ErrInvalidURL):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgInvalidURL})
	case errors.Is(err, video.ErrUnavailable):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Video is unavailable or private"})
	case errors.Is(err, service.ErrNoFormat):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "No suitable format found"})
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("video lookup failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Failed to fetch video info",
			"message": service.ErrUnexpected.Message,
		})
	}
}
