// Package observability provides structured logging and Prometheus metrics.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("server started")
//
// Context fields:
//
//	logger.WithField("username", name).WithError(err).Warn("lookup failed")
//
// Request-scoped logging flows through context: the request-logging middleware
// stores a request ID and the logger, and handlers recover both with
// FromContext.
//
// # Prometheus Metrics
//
// Initialize and register:
//
//	metrics := observability.NewMetrics(nil)
//	metrics.AuthDecisionsTotal.WithLabelValues("credentials", "granted").Inc()
//
// Handler() exposes the registry for scraping and InstrumentHandler wraps
// routes with request counting and timing.
package observability
