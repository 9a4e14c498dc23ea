package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the role claim required on the admin surface.
const AdminRole = "admin"

// Claims extends RegisteredClaims with the caller's role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTMiddleware returns a middleware that validates JWT tokens signed with HMAC.
// It checks the signing method, the token expiration, the issuer (`iss`) when
// expectedIssuer is set and the role claim when requiredRole is set.
// On success the token subject is available through SubjectFromContext.
func NewJWTMiddleware(secret []byte, expectedIssuer, requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeUnauthorized(w, "missing Authorization header")
				return
			}
			parts := strings.Fields(auth)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, "invalid Authorization header format")
				return
			}

			var claims Claims
			token, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				writeUnauthorized(w, "invalid token")
				return
			}

			if claims.ExpiresAt == nil {
				writeUnauthorized(w, "token missing exp claim")
				return
			}
			if time.Now().After(claims.ExpiresAt.Time) {
				writeUnauthorized(w, "token is expired")
				return
			}
			if expectedIssuer != "" && claims.Issuer != expectedIssuer {
				writeUnauthorized(w, "invalid token issuer")
				return
			}
			if requiredRole != "" && claims.Role != requiredRole {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden", "message": "insufficient role"})
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated token subject, if any.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": msg})
}
