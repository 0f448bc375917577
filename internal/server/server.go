// Package server is the Pagecast HTTP server: it owns the worker pool
// lifecycle and exposes the conversion job API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pagecast/pagecast/internal/api"
	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/home"
	"github.com/pagecast/pagecast/internal/jobs"
	"github.com/pagecast/pagecast/internal/jobstore"
	"github.com/pagecast/pagecast/internal/pipeline"
	"github.com/pagecast/pagecast/internal/server/endpoints"
	"github.com/pagecast/pagecast/internal/svcctx"
	"github.com/pagecast/pagecast/web"
)

// Server is the main Pagecast HTTP server. It starts the worker pool on
// Start and drains it on shutdown.
type Server struct {
	httpServer   *http.Server
	orchestrator *pipeline.Orchestrator
	store        jobstore.Store
	pool         *jobs.Pool
	configMgr    *config.Manager
	homeDir      *home.Dir
	logger       *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Orchestrator runs conversion jobs.
	Orchestrator *pipeline.Orchestrator
	// Store is the job event store.
	Store jobstore.Store
	// Pool is the worker pool the orchestrator dispatches to.
	Pool *jobs.Pool
	// ConfigManager provides configuration with hot-reload support.
	ConfigManager *config.Manager
	// Home is the pagecast home directory.
	Home *home.Dir
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Orchestrator == nil {
		return nil, errors.New("server requires an orchestrator")
	}
	if cfg.Store == nil {
		return nil, errors.New("server requires a job store")
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		store:        cfg.Store,
		pool:         cfg.Pool,
		configMgr:    cfg.ConfigManager,
		homeDir:      cfg.Home,
		logger:       cfg.Logger,
	}

	s.services = &svcctx.Services{
		Orchestrator: s.orchestrator,
		JobStore:     s.store,
		Pool:         s.pool,
		ConfigMgr:    s.configMgr,
		Logger:       s.logger,
		Home:         s.homeDir,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux)

	// Embedded status page at the root.
	if dist, err := web.DistFS(); err == nil {
		mux.Handle("GET /", http.FileServer(http.FS(dist)))
	}

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// withServices attaches the core services to every request context.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), s.services)))
	})
}

// Start starts the worker pool and the HTTP server. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	poolCtx, poolCancel := context.WithCancel(ctx)
	defer poolCancel()
	if s.pool != nil {
		go s.pool.Start(poolCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and closes the
// job store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("job store close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Handler returns the fully wired HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
