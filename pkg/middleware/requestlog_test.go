package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotnet/mqtt-auth/pkg/observability"
)

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)

	var ctxRequestID string
	handler := NewRequestLogger(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxRequestID = observability.GetRequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/mqtt/check", nil))

	headerID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, headerID)
	assert.Equal(t, headerID, ctxRequestID)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, headerID, entry["request_id"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/mqtt/check", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
}

func TestRequestLoggerUniqueIDs(t *testing.T) {
	logger := testLogger()
	handler := NewRequestLogger(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))

	assert.NotEqual(t, first.Header().Get("X-Request-ID"), second.Header().Get("X-Request-ID"))
}
