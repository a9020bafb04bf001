package appstate

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/cache"
	"github.com/liftwise/coachgate/engine/knowledge/rag"
	"github.com/liftwise/coachgate/engine/ratelimit"
	"github.com/liftwise/coachgate/pkg/config"
)

type contextKey string

const (
	stateKey contextKey = "app_state"
)

// HealthChecker reports whether the shared store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// State carries the request-independent services handlers depend on.
type State struct {
	Config       *config.Config
	Store        HealthChecker
	Caches       *cache.Caches
	Limiter      *ratelimit.Limiter
	Orchestrator *rag.Orchestrator
}

func NewState(
	cfg *config.Config,
	store HealthChecker,
	caches *cache.Caches,
	limiter *ratelimit.Limiter,
	orch *rag.Orchestrator,
) (*State, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if caches == nil {
		return nil, fmt.Errorf("caches are required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if orch == nil {
		return nil, fmt.Errorf("context orchestrator is required")
	}
	return &State{
		Config:       cfg,
		Store:        store,
		Caches:       caches,
		Limiter:      limiter,
		Orchestrator: orch,
	}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
