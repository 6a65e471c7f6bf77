// Package controller wires the HTTP API: routes, middleware and the server lifecycle.
package controller

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hubcredo/internal/config"
	"hubcredo/internal/controller/handlers"
	"hubcredo/internal/controller/middleware"
)

// Deps are the services the API is built on.
type Deps struct {
	Store      handlers.StoreFactory
	Loops      handlers.LoopRegistry
	Automation handlers.Automation
	Metrics    http.Handler
	Logger     *slog.Logger
}

// Server is the HTTP server for the hubcredo API.
type Server struct {
	httpServer *http.Server
}

// New creates a new API server listening on addr.
func New(addr string, cfg *config.Config, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewHandler(cfg, deps),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// NewHandler builds the routed and wrapped handler tree.
func NewHandler(cfg *config.Config, deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := handlers.New(deps.Store, deps.Loops, deps.Automation, log,
		handlers.WithAllowedOrigin(cfg.FrontendURL))
	authMW := middleware.AuthMiddleware(deps.Store)
	limitMW := middleware.NewRateLimiter(middleware.WithLimit(cfg.RateLimit, cfg.RateLimitBurst)).Middleware()

	authed := func(fn http.HandlerFunc) http.Handler {
		return authMW(fn)
	}
	limited := func(fn http.HandlerFunc) http.Handler {
		return authMW(limitMW(fn))
	}

	mux := http.NewServeMux()

	// Probes
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	// Accounts
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.Handle("GET /api/auth/profile", authed(h.Profile))

	// Background loops
	mux.Handle("POST /api/loop/start", limited(h.StartLoop))
	mux.Handle("POST /api/loop/stop", authed(h.StopLoop))
	mux.Handle("GET /api/loop/status/{loopId}", authed(h.LoopStatus))
	mux.Handle("GET /api/loop/all", authed(h.ListLoops))
	mux.Handle("GET /api/loop/active", authed(h.ListActiveLoops))
	mux.Handle("GET /api/loop/stream", authed(h.StreamLoops))

	// Manual batches
	mux.Handle("POST /api/automation/start-loop", limited(h.RunAutomation))
	mux.Handle("GET /api/automation/logs", authed(h.ListAutomationLogs))
	mux.HandleFunc("POST /api/automation/test-webhook", h.TestWebhook)

	// Dashboard
	mux.Handle("GET /api/analytics/stats", authed(h.Stats))
	mux.Handle("GET /api/analytics/user-stats", authed(h.UserStats))

	// Operator endpoints
	// Disabled unless an admin secret is configured.
	if cfg.AdminSecret != "" {
		adminMW := middleware.RequireAdmin(cfg.AdminSecret)
		mux.Handle("GET /api/admin/loops", adminMW(http.HandlerFunc(h.AdminListLoops)))
	}

	return middleware.RequestLogger(log)(middleware.CORS(cfg.FrontendURL)(mux))
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
