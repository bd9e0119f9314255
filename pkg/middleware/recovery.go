package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/iotnet/mqtt-auth/pkg/httputil"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// Recovery converts handler panics into opaque 500 responses. The auth backend
// sits in the broker's connect path, so one bad request must never take the
// process down.
type Recovery struct {
	logger *observability.Logger
}

// NewRecovery creates the panic recovery middleware.
func NewRecovery(logger *observability.Logger) *Recovery {
	return &Recovery{logger: logger}
}

// Handler wraps next with panic recovery.
func (m *Recovery) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.logger.WithFields(map[string]interface{}{
					"panic": rec,
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				}).Error("panic recovered in handler")
				httputil.WriteInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
