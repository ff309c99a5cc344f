// Package diag exposes an optional diagnostics endpoint while a run is in
// flight: Prometheus metrics and a liveness probe. It is a localhost scrape
// target, deliberately tiny, and never on the load path.
package diag

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Server wraps the chi router and the diagnostics HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type healthResponse struct {
	Status string `json:"status"`
}

// NewServer builds the diagnostics server on addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
			logger.Error("encode healthz response", "error", err)
		}
	})
	router.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: logger,
	}
}

// Start begins serving in the background. Listen failures are logged, not
// fatal: diagnostics are best-effort instrumentation.
func (s *Server) Start() {
	go func() {
		s.logger.Info("diagnostics listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("diagnostics server error", "error", err)
		}
	}()
}

// Stop shuts the listener down, bounding the wait for in-flight scrapes.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("diagnostics shutdown", "error", err)
	}
}
