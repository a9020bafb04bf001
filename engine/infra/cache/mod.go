package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/sethvargo/go-retry"
)

const (
	ModeStandalone  = "standalone"
	ModeDistributed = "distributed"
)

// Cache bundles the store connection and its adapter.
type Cache struct {
	Redis    *Redis
	Adapter  *RedisAdapter
	embedded *MiniredisEmbedded
}

// SetupCache connects to the store selected by cfg.Mode. The returned cleanup
// releases every resource and is safe to call once the server has stopped.
func SetupCache(ctx context.Context, cfg *config.RedisConfig) (*Cache, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("cache config cannot be nil")
	}
	switch cfg.Mode {
	case ModeStandalone, "":
		return setupStandalone(ctx)
	case ModeDistributed:
		return setupDistributed(ctx, cfg)
	default:
		return nil, nil, fmt.Errorf("unsupported redis mode %q", cfg.Mode)
	}
}

func setupStandalone(ctx context.Context) (*Cache, func(), error) {
	mr, err := NewMiniredisEmbedded(ctx)
	if err != nil {
		return nil, nil, err
	}
	r := NewRedisFromClient(ctx, mr.Client())
	adapter, err := NewRedisAdapter(r)
	if err != nil {
		_ = mr.Close(ctx)
		return nil, nil, err
	}
	c := &Cache{Redis: r, Adapter: adapter, embedded: mr}
	cleanup := func() {
		if err := mr.Close(ctx); err != nil {
			logger.FromContext(ctx).Warn("Failed to stop embedded Redis", "error", err)
		}
	}
	return c, cleanup, nil
}

func setupDistributed(ctx context.Context, cfg *config.RedisConfig) (*Cache, func(), error) {
	var r *Redis
	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var dialErr error
		r, dialErr = NewRedis(ctx, cfg)
		if dialErr != nil {
			logger.FromContext(ctx).Warn("Redis not reachable yet", "error", dialErr)
			return retry.RetryableError(dialErr)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	adapter, err := NewRedisAdapter(r)
	if err != nil {
		_ = r.Close()
		return nil, nil, err
	}
	cleanup := func() { _ = r.Close() }
	return &Cache{Redis: r, Adapter: adapter}, cleanup, nil
}

// HealthCheck pings the store.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if c == nil || c.Redis == nil {
		return fmt.Errorf("cache not initialized")
	}
	return c.Redis.HealthCheck(ctx)
}
