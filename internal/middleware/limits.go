package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// MaxResolveBody limits /resolve request bodies to 64KB.
const MaxResolveBody = 64 * 1024

// RequestSizeLimit enforces maximum request body size.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				log.Warn().
					Int64("content_length", r.ContentLength).
					Int64("max_size", maxBytes).
					Str("client", ClientFromContext(r.Context())).
					Msg("request body too large")
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
