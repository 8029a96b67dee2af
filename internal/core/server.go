// Package core provides the HTTP chassis for the signup service: a chi
// router with cross-cutting middleware (panic recovery, request IDs,
// structured request logging, Prometheus metrics), JSON response helpers,
// a health endpoint, and the static-asset fallback for unmatched GETs.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subsignup/internal/config"
)

// Server encapsulates the router and shared dependencies for the API,
// allowing injection during testing.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// RouteRegistrars are invoked by MountRoutes to bind domain handler
	// routes. The indirection keeps core free of handler imports.
	RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer initializes the router and shared dependencies. The caller is
// responsible for appending RouteRegistrars and calling MountRoutes.
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

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
