// Package api provides the HTTP surface of the MQTT authentication backend.
//
// # Overview
//
// This package binds the credential and decision services to REST endpoints
// consumed by the broker's auth hook and by provisioning tooling. Request
// parsing, status-code mapping, and the response envelope live here; every
// allow/deny decision is made in pkg/decision and pkg/credentials.
//
// # Endpoints
//
// Public:
//
//	GET    /                           - liveness check
//
// API-key protected (Authorization header, raw key or Bearer scheme):
//
//	POST   /mqtt/create                - create an mqtt user
//	POST   /mqtt/check                 - authenticate (credentials or jwt method)
//	POST   /mqtt/acl                   - authorize topic access
//	GET    /mqtt/credentials/{username} - retrieve decrypted credentials (reversible mode only)
//	DELETE /mqtt/{username}            - delete an mqtt user
//	GET    /mqtt                       - list mqtt users (secrets omitted)
//
// The separate health listener (see Server.HealthHandler) exposes /healthz,
// which pings the authoritative store, and /metrics for Prometheus scraping.
//
// # Response Envelope
//
// Every endpoint writes the same JSON envelope:
//
//	{"success": true, "message": "...", "data": {...}, "result": "allow"}
//
// The result field is only present on the decision routes (/mqtt/check and
// /mqtt/acl) so the broker hook can key off a single field. A clean ACL deny
// is a 200 with result "deny"; only faults change the status code. Validation
// failures enumerate every violated field in details.
//
// # Status Mapping
//
//	400 - validation failure or malformed JSON
//	401 - missing/wrong API key, or invalid credentials on /mqtt/check
//	404 - unknown mqtt user
//	409 - username already exists
//	429 - rate limit exceeded
//	500 - backend fault (always the opaque "internal server error")
package api
