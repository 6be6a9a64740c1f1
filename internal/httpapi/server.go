package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/service"
)

// HealthFunc reports per-component health for /api/v1/status.
type HealthFunc func(ctx context.Context) map[string]string

// Server hosts the REST API.
type Server struct {
	backend service.Backend
	gate    *authGate
	health  HealthFunc
	logger  *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithHealth installs the component health reporter.
func WithHealth(fn HealthFunc) Option {
	return func(s *Server) { s.health = fn }
}

// New builds the API server over a backend.
func New(backend service.Backend, auth config.AuthConfig, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend: backend,
		gate:    newAuthGate(auth.APIKey, auth.RateLimitPerMinute),
		logger:  logger.With("component", "httpapi"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateAuth applies live config changes to the gate.
func (s *Server) UpdateAuth(auth config.AuthConfig) {
	s.gate.Update(auth.APIKey, auth.RateLimitPerMinute)
}

// Router assembles the chi route tree. /health is open; everything under
// /api/v1 passes the auth and rate gate.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.gate.middleware)

		r.Get("/status", s.handleStatus)
		r.Get("/help", s.handleHelp)

		r.Post("/crawl", s.handleCrawl)
		r.Post("/crawl/store", s.handleCrawlStore)
		r.Post("/crawl/temp", s.handleCrawlTemp)
		r.Post("/crawl/deep/store", s.handleDeepCrawlStore)

		r.Post("/search", s.handleSearch)
		r.Post("/search/target", s.handleTargetSearch)

		r.Get("/memory", s.handleListMemory)
		r.Delete("/memory", s.handleForgetURL)
		r.Delete("/memory/temp", s.handleClearTemp)

		r.Get("/stats", s.handleStats)
		r.Get("/db/stats", s.handleSyncStatus)
		r.Get("/domains", s.handleListDomains)

		r.Get("/blocked-domains", s.handleListBlocked)
		r.Post("/blocked-domains", s.handleBlockDomain)
		r.Delete("/blocked-domains", s.handleUnblockDomain)
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
