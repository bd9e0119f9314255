// Package middleware provides the HTTP middleware chain for the auth backend.
//
// # Overview
//
// This package implements request processing middleware: panic recovery,
// request logging with request IDs, API-key gatekeeping, and per-client rate
// limiting on the decision routes.
//
// # Middleware Components
//
// Recovery: converts handler panics into opaque 500 responses
//
//	router.Use(middleware.NewRecovery(logger).Handler)
//
// RequestLogger: tags each request with a generated ID and logs completion
//
//	router.Use(middleware.NewRequestLogger(logger).Handler)
//
// APIKeyMiddleware: shared-key gate for the /mqtt subtree
//
//	gate := middleware.NewAPIKeyMiddleware(key, logger)
//	mqtt.Use(gate.Handler)
//
// RateLimitMiddleware: in-memory token bucket keyed by client IP. Its idle
// buckets are reaped by a background goroutine; call Stop on shutdown.
//
//	throttle := middleware.NewRateLimitMiddleware(cfg, logger)
//	mqtt.Use(throttle.Handler)
//	defer throttle.Stop()
//
// # Ordering
//
// Recovery runs outermost so a panic anywhere in the chain still produces a
// well-formed response. The API-key gate runs before the rate limiter, so
// unauthenticated requests are rejected without consuming rate budget.
package middleware
