package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/swiftlink/swiftlink/internal/auth"
	"github.com/swiftlink/swiftlink/internal/config"
	"github.com/swiftlink/swiftlink/internal/httpx"
	"github.com/swiftlink/swiftlink/internal/link"
	"github.com/swiftlink/swiftlink/internal/redirect"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	links    *link.Handler
	redirect *redirect.Handler
	verifier auth.Verifier
	checks   map[string]HealthChecker
	server   *http.Server
}

// New creates a new Server instance. checks maps dependency names to their
// health probes; nil is allowed.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	links *link.Handler,
	redirectHandler *redirect.Handler,
	verifier auth.Verifier,
	checks map[string]HealthChecker,
) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		links:    links,
		redirect: redirectHandler,
		verifier: verifier,
		checks:   checks,
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := s.setupRoutes()
	handler := s.applyMiddleware(mux)
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			if closeErr := s.server.Close(); closeErr != nil {
				return fmt.Errorf("failed to close server: %w", closeErr)
			}
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		s.logger.Info("server stopped gracefully")
		return nil
	}
}

// setupRoutes configures all HTTP routes. The redirect and health endpoints
// are public; everything under /api requires a verified principal.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /x/health", s.healthCheckHandler)
	mux.HandleFunc("GET /r/{code}", s.redirect.Redirect)

	authed := auth.Middleware(s.verifier, s.logger)
	mux.Handle("POST /api/links", authed(http.HandlerFunc(s.links.Create)))
	mux.Handle("GET /api/links", authed(http.HandlerFunc(s.links.List)))
	mux.Handle("DELETE /api/links/{id}", authed(http.HandlerFunc(s.links.Delete)))
	mux.Handle("GET /api/clicks", authed(http.HandlerFunc(s.links.Clicks)))

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.CORS(nil),          // CORS headers (allow all in dev)
	)(handler)
}

// healthCheckHandler reports service liveness and per-dependency status.
// Degraded dependencies flip the status but the endpoint still answers 200:
// redirects can keep working on cache while the accumulator is down.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	deps := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check.HealthCheck(r.Context()); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	body := map[string]any{"status": status}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
