// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pronoundb/pronoundb/internal/lookup"
	"github.com/pronoundb/pronoundb/internal/oauth"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/middleware"
	"github.com/pronoundb/pronoundb/internal/users/account"
	"github.com/pronoundb/pronoundb/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. It answers 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. It answers 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Metrics exposes the Prometheus registry.
	Metrics http.Handler

	// Auth handles session routes (logout).
	Auth *auth.Handler

	// Account serves the self-service endpoints of the signed-in user.
	Account *account.Handler

	// OAuth runs the third-party login and account linking flows.
	OAuth *oauth.Handler

	// Lookup serves the public read API.
	Lookup *lookup.Handler
}

// Options tunes the server outside of its handlers.
type Options struct {
	Port     string
	Verifier middleware.TokenVerifier
	Limiter  *middleware.RateLimiter
	Proxies  *middleware.ProxyTrust
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(log *slog.Logger, options Options, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log, options.Proxies))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	if options.Limiter != nil {
		r.Use(options.Limiter.Middleware)
	}
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(options.Verifier))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health checks for container orchestration and scraping.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// # Browser Flows
	r.Mount("/auth", h.Auth.Routes())
	r.Mount("/oauth", h.OAuth.Routes())
	r.Mount("/shields", h.Lookup.ShieldRoutes())

	// # Application API
	r.Mount("/api/v1", h.Lookup.LegacyRoutes())
	r.Route("/api/v2", func(api chi.Router) {
		api.With(middleware.RequireAuth).Mount("/me", h.Account.Routes())
		api.Mount("/", h.Lookup.Routes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + options.Port,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
