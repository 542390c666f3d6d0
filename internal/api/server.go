// Package api serves the optional status endpoint for long stress runs:
// /healthz, /v1/stats with a live progress snapshot, and /metrics for
// Prometheus scrapes. It runs alongside the harness and never affects the
// run itself.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/seantiz/ballast/internal/harness"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Server wraps the chi router and the counters it reports on.
type Server struct {
	router   *chi.Mux
	counters *harness.Counters
	logger   *slog.Logger
	http     *http.Server
}

// NewServer creates and configures the status server.
func NewServer(addr string, counters *harness.Counters, logger *slog.Logger) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		counters: counters,
		logger:   logger,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(metricsMiddleware)

	srv.routes()

	srv.http = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())
	s.router.Get("/v1/stats", s.handleGetStats)
}

// Router returns the chi router, exposed for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins serving in the background. The server's lifetime is the
// run's, not the process's, so listen errors are logged rather than fatal.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server", "error", err)
		}
	}()
}

// Shutdown stops the server, waiting up to shutdownTimeout for in-flight
// requests.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		s.logger.Error("status server shutdown", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}
