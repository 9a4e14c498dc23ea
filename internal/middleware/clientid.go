package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey int

const (
	clientKey ctxKey = iota
	subjectKey
)

// UnknownClient is the identifier used when nothing can be derived from the request.
const UnknownClient = "unknown"

// ClientID derives the rate limit identity of each request and stores it in
// the request context. Forwarding headers are honoured only when trustForwarded
// is set, i.e. when the service runs behind a proxy that overwrites them.
func ClientID(trustForwarded bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ClientIP(r, trustForwarded)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey, id)))
		})
	}
}

// ClientFromContext returns the identifier stored by ClientID, or "unknown".
func ClientFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(clientKey).(string); ok && id != "" {
		return id
	}
	return UnknownClient
}

// ClientIP attempts to extract the remote IP address: first hop of
// X-Forwarded-For, then Client-IP, then the connection's remote host.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("Client-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host = strings.TrimSpace(host); host == "" {
		return UnknownClient
	}
	return host
}
