package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/infra/monitoring"
	"github.com/liftwise/coachgate/engine/infra/server/appstate"
	"github.com/liftwise/coachgate/pkg/config"
)

const (
	statusNotReady            = "not_ready"
	statusReady               = "ready"
	readinessProbeTimeout     = time.Second
	monitoringShutdownTimeout = 5 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	httpIdleTimeout           = 60 * time.Second
	hostAny                   = "0.0.0.0"
	hostLoopback              = "127.0.0.1"
)

type Server struct {
	cfg          *config.Config
	ctx          context.Context
	cancel       context.CancelFunc
	router       *gin.Engine
	httpServer   *http.Server
	monitoring   *monitoring.Service
	state        *appstate.State
	cleanupMu    sync.Mutex
	cleanups     []func()
	shutdownOnce sync.Once
}

// NewServer reads its configuration from ctx; see config.ContextWithConfig.
func NewServer(ctx context.Context) (*Server, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, fmt.Errorf("configuration missing from context")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		cfg:    cfg,
		ctx:    serverCtx,
		cancel: cancel,
	}, nil
}

// Setup builds dependencies and the router without listening.
func (s *Server) Setup() error {
	state, err := s.setupDependencies()
	if err != nil {
		s.cleanup()
		return err
	}
	s.state = state
	if err := s.buildRouter(state); err != nil {
		s.cleanup()
		return fmt.Errorf("failed to build router: %w", err)
	}
	return nil
}

// Handler exposes the router. It is nil before Setup.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		return nil
	}
	return s.router
}

func (s *Server) State() *appstate.State {
	return s.state
}

func (s *Server) addCleanup(fn func()) {
	s.cleanupMu.Lock()
	s.cleanups = append(s.cleanups, fn)
	s.cleanupMu.Unlock()
}

// cleanup runs registered cleanups once, newest first.
func (s *Server) cleanup() {
	s.shutdownOnce.Do(func() {
		s.cancel()
		s.cleanupMu.Lock()
		fns := s.cleanups
		s.cleanups = nil
		s.cleanupMu.Unlock()
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	})
}

// Close releases every dependency. It is safe to call more than once.
func (s *Server) Close() {
	s.cleanup()
}
