// Package middleware holds the HTTP middleware chain: API-key gatekeeping and
// request logging with request IDs.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/iotnet/mqtt-auth/pkg/httputil"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// APIKeyMiddleware guards the management and decision routes with a shared key
// presented in the Authorization header, either raw or as a Bearer scheme.
type APIKeyMiddleware struct {
	key    string
	logger *observability.Logger
}

// NewAPIKeyMiddleware creates the middleware. An empty key denies every request:
// failing closed beats running an open auth backend.
func NewAPIKeyMiddleware(key string, logger *observability.Logger) *APIKeyMiddleware {
	return &APIKeyMiddleware{key: key, logger: logger}
}

// Handler wraps next with the API-key check.
func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))

		if m.key == "" || !authorized(header, m.key) {
			m.logger.WithField("path", r.URL.Path).Debug("unauthorized request")
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authorized(header, expected string) bool {
	if keyEqual(header, expected) {
		return true
	}

	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return keyEqual(parts[1], expected)
	}

	return false
}

// keyEqual compares presented and configured keys in constant time so timing
// differences never leak key prefixes.
func keyEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
