// Package api binds the decision and credential services to their HTTP surface.
// Status-code mapping and request parsing live here; every decision lives in the
// service layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/iotnet/mqtt-auth/pkg/credentials"
	"github.com/iotnet/mqtt-auth/pkg/decision"
	"github.com/iotnet/mqtt-auth/pkg/middleware"
	"github.com/iotnet/mqtt-auth/pkg/observability"
)

// Server is the HTTP front of the auth backend.
type Server struct {
	router   *mux.Router
	creds    *credentials.Service
	auth     *decision.AuthService
	acl      *decision.ACLService
	store    credentials.Store
	throttle *middleware.RateLimitMiddleware
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewServer wires the router: a public health check at the root and the API-key
// protected /mqtt subtree for management and decision routes.
func NewServer(
	creds *credentials.Service,
	auth *decision.AuthService,
	acl *decision.ACLService,
	store credentials.Store,
	apiKey string,
	rateLimit middleware.RateLimitConfig,
	logger *observability.Logger,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		creds:   creds,
		auth:    auth,
		acl:     acl,
		store:   store,
		logger:  logger,
		metrics: metrics,
	}

	s.router.Use(middleware.NewRecovery(logger).Handler)
	s.router.Use(middleware.NewRequestLogger(logger).Handler)

	s.router.HandleFunc("/", s.healthcheck).Methods("GET")

	apiKeyGate := middleware.NewAPIKeyMiddleware(apiKey, logger)
	s.throttle = middleware.NewRateLimitMiddleware(rateLimit, logger)
	mqtt := s.router.PathPrefix("/mqtt").Subrouter()
	mqtt.Use(apiKeyGate.Handler)
	mqtt.Use(s.throttle.Handler)

	mqtt.HandleFunc("/create", s.createCredential).Methods("POST")
	mqtt.HandleFunc("/check", s.authenticate).Methods("POST")
	mqtt.HandleFunc("/acl", s.authorize).Methods("POST")
	mqtt.HandleFunc("/credentials/{username}", s.getCredentials).Methods("GET")
	mqtt.HandleFunc("/{username}", s.deleteCredential).Methods("DELETE")
	mqtt.HandleFunc("", s.listCredentials).Methods("GET")

	return s
}

// Close releases the server's background resources, currently the rate
// limiter's bucket reaper. Safe to call more than once.
func (s *Server) Close() {
	s.throttle.Stop()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.InstrumentHandler(r.URL.Path, s.router).ServeHTTP(w, r)
		return
	}
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HealthHandler returns the handler for the separate health/metrics listener:
// a readiness probe that pings the authoritative store, plus the metrics
// endpoint.
func (s *Server) HealthHandler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := s.store.HealthCheck(ctx); err != nil {
			s.logger.WithError(err).Warn("health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	return router
}
