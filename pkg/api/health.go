package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/autoscaler/pkg/log"
	"github.com/cuemby/autoscaler/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthServer provides the HTTP health and metrics endpoints
type HealthServer struct {
	router    chi.Router
	readiness *metrics.Readiness
	server    *http.Server
}

// HealthResponse is the fixed liveness body
type HealthResponse struct {
	Health string `json:"health"`
}

// NewHealthServer creates the router. readiness may be nil, in which
// case /ready is not served.
func NewHealthServer(readiness *metrics.Readiness) *HealthServer {
	hs := &HealthServer{
		router:    chi.NewRouter(),
		readiness: readiness,
	}

	hs.router.Use(middleware.RealIP)
	hs.router.Use(middleware.Recoverer)
	hs.router.MethodNotAllowed(methodNotAllowed)

	hs.router.Get("/health", hs.healthHandler)
	hs.router.Method(http.MethodGet, "/metrics", metrics.Handler())
	if readiness != nil {
		hs.router.Get("/ready", readiness.ReadyHandler())
	}

	return hs
}

// Start serves on addr until Shutdown is called
func (hs *HealthServer) Start(addr string) error {
	hs.server = &http.Server{
		Addr:         addr,
		Handler:      hs.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Logger.Info().Str("addr", addr).Msg("Health server listening")
	if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (hs *HealthServer) Shutdown(ctx context.Context) error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) Handler() http.Handler {
	return hs.router
}

// healthHandler is a static liveness check
func (hs *HealthServer) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Health: "OK"})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
