package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout bounds a request when the server config does not.
// The manual trigger endpoint runs a whole job, so this sits above the
// default RUN_DEADLINE.
const defaultRequestTimeout = 6 * time.Minute

var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes installs the middleware chain and the top-level routes.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, errNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, errMethodNotAllowed)
	})
}

// registerGlobalMiddleware applies middleware outermost first:
//
//  1. Recoverer        catches panics from everything below.
//  2. ContextTimeout   bounds the request.
//  3. RequestID        correlation ID for logs and the error envelope.
//  4. SecurityHeaders
//  5. RequestLogger    redacts credentials.
//  6. CORS
//  7. Metrics
//  8. Compression      gzip for clients that accept it.
//  9. Auth             resolves the Actor for /v1 routes.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(CompressionMiddleware)
	s.router.Use(s.AuthMiddleware)
}

func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if s.Config != nil && s.Config.Job.RunDeadline > 0 {
		return s.Config.Job.RunDeadline + time.Minute
	}
	return defaultRequestTimeout
}

func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}
