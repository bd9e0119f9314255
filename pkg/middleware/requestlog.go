package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// RequestLogger tags each request with a generated request ID and logs method,
// path, status, and duration on completion.
type RequestLogger struct {
	logger *observability.Logger
}

// NewRequestLogger creates the logging middleware.
func NewRequestLogger(logger *observability.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

// Handler wraps next with request logging.
func (m *RequestLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		ctx := observability.WithRequestID(r.Context(), requestID)
		ctx = observability.WithLogger(ctx, m.logger)
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		m.logger.WithFields(map[string]interface{}{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"duration":   time.Since(start).String(),
		}).Info("request completed")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
