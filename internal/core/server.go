// Package core is the HTTP chassis shared by the API entry points. It builds a
// chi router, applies the cross-cutting middleware (recovery, request IDs,
// logging, metrics, compression, auth) and writes the standard response
// envelopes. Domain handlers mount themselves through V1RouteRegistrars.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pantrynotify/internal/config"
)

// Server holds the router and everything the middleware chain needs.
// Optional fields left nil disable the corresponding middleware.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	HealthProbes  []HealthProbe
	// MetricsHandler is served at GET /metrics when set.
	MetricsHandler http.Handler

	V1RouteRegistrars []func(r chi.Router)

	closers []func()
	router  *chi.Mux
}

// NewServer validates the mandatory dependencies and prepares an empty
// router. Call MountRoutes after populating the optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi mux for tests and custom mounting.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in reverse order of
// registration.
func (s *Server) OnShutdown(fn func()) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases resources registered with OnShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
