package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/liftwise/coachgate/engine/cache"
	infracache "github.com/liftwise/coachgate/engine/infra/cache"
	"github.com/liftwise/coachgate/engine/infra/monitoring"
	"github.com/liftwise/coachgate/engine/infra/server/appstate"
	"github.com/liftwise/coachgate/engine/knowledge/namespace"
	"github.com/liftwise/coachgate/engine/knowledge/rag"
	"github.com/liftwise/coachgate/engine/knowledge/retriever"
	"github.com/liftwise/coachgate/engine/ratelimit"
	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
)

// Run sets up the server, serves until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) Run() error {
	if err := s.Setup(); err != nil {
		return err
	}
	defer s.cleanup()
	return s.startAndRunServer()
}

func (s *Server) setupDependencies() (*appstate.State, error) {
	ctx := s.ctx
	cfg := s.cfg
	log := logger.FromContext(ctx)

	s.monitoring = monitoring.NewMonitoringServiceWithFallback(ctx, &cfg.Monitoring)
	if s.monitoring.IsInitialized() {
		s.monitoring.SetAsGlobal()
		mon := s.monitoring
		s.addCleanup(func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), monitoringShutdownTimeout)
			defer cancel()
			if err := mon.Shutdown(shutdownCtx); err != nil {
				log.Error("Failed to shutdown monitoring", "error", err)
			}
		})
	}

	store, closeStore, err := infracache.SetupCache(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to setup store: %w", err)
	}
	s.addCleanup(closeStore)

	manager, err := cache.NewManager(store.Adapter,
		cache.WithPrefix(cfg.Cache.Prefix),
		cache.WithOperationTimeout(cfg.Cache.OperationTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache manager: %w", err)
	}
	caches, err := cache.NewCaches(manager, &cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create caches: %w", err)
	}

	limiter, err := ratelimit.NewLimiter(store.Adapter, &cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	orch, err := setupOrchestrator(cfg, caches)
	if err != nil {
		return nil, err
	}
	log.Info("Dependencies ready",
		"store_mode", cfg.Redis.Mode,
		"knowledge_backend", cfg.Knowledge.Backend,
		"rate_limit_enabled", cfg.RateLimit.Enabled,
	)
	return appstate.NewState(cfg, store, caches, limiter, orch)
}

func setupOrchestrator(cfg *config.Config, caches *cache.Caches) (*rag.Orchestrator, error) {
	registry, err := namespace.RegistryFromConfig(cfg.Selector.Namespaces)
	if err != nil {
		return nil, fmt.Errorf("failed to build namespace registry: %w", err)
	}
	selector, err := namespace.NewSelector(registry, &cfg.Selector)
	if err != nil {
		return nil, fmt.Errorf("failed to create namespace selector: %w", err)
	}
	backend, err := retriever.New(&cfg.Knowledge)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval backend: %w", err)
	}
	orch, err := rag.New(backend, selector, caches.RAGContext, &cfg.Knowledge)
	if err != nil {
		return nil, fmt.Errorf("failed to create context orchestrator: %w", err)
	}
	return orch, nil
}

func (s *Server) startAndRunServer() error {
	srv := s.createHTTPServer()
	s.httpServer = srv
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logStartupBanner()
	return s.handleGracefulShutdown(srv, errCh)
}

func (s *Server) createHTTPServer() *http.Server {
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	logger.FromContext(s.ctx).Info("Starting HTTP server", "address", fmt.Sprintf("http://%s", addr))
	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  httpIdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.ctx },
	}
}

func (s *Server) handleGracefulShutdown(srv *http.Server, errCh <-chan error) error {
	log := logger.FromContext(s.ctx)
	sigCtx, stop := signal.NotifyContext(s.ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error("Server failed to start", "error", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-sigCtx.Done():
	}
	log.Debug("Received shutdown signal, initiating graceful shutdown")
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server shutdown completed successfully")
	return nil
}
