// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every endpoint writes. Result carries the broker-hook
// verdict ("allow"/"deny") on decision routes and is omitted elsewhere.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Result  string      `json:"result,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

// WriteSuccess writes a 200 envelope with optional data.
func WriteSuccess(w http.ResponseWriter, message string, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteCreated writes a 201 envelope.
func WriteCreated(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: message,
	})
}

// WriteDecision writes a 200 envelope carrying an allow/deny verdict.
func WriteDecision(w http.ResponseWriter, message, result string, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Result:  result,
	})
}

// WriteError writes an error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, Response{
		Success: false,
		Message: message,
	})
}

// WriteErrorWithResult writes an error envelope carrying a deny verdict, used on
// decision routes so the broker hook always sees a result field.
func WriteErrorWithResult(w http.ResponseWriter, status int, message, result string, details interface{}) error {
	return WriteJSON(w, status, Response{
		Success: false,
		Message: message,
		Result:  result,
		Details: details,
	})
}

// WriteValidationErrors writes a 400 envelope enumerating every violated field.
func WriteValidationErrors(w http.ResponseWriter, result string, details interface{}) error {
	return WriteJSON(w, http.StatusBadRequest, Response{
		Success: false,
		Message: "Validation error",
		Result:  result,
		Details: details,
	})
}

// WriteUnauthorized writes a 401 envelope.
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusUnauthorized, message)
}

// WriteInternalError writes a 500 envelope with a generic message; internal
// detail never reaches untrusted callers.
func WriteInternalError(w http.ResponseWriter) error {
	return WriteError(w, http.StatusInternalServerError, "internal server error")
}
