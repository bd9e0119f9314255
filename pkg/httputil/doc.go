// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
// Every endpoint writes the shared Response envelope:
//
//	httputil.WriteSuccess(w, "mqtt users retrieved", users)
//	httputil.WriteCreated(w, "mqtt user created")
//	httputil.WriteDecision(w, "authentication successful", "allow", data)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusConflict, "mqtt user already exists")
//	httputil.WriteErrorWithResult(w, http.StatusNotFound, msg, "deny", nil)
//	httputil.WriteValidationErrors(w, "deny", violations)
//	httputil.WriteInternalError(w) // always the opaque message
//
// # Request Parsing
//
//	var req createRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	username := httputil.PathVar(r, "username")
package httputil
