package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisInterface is the client surface the adapter needs. redis.Client,
// *Redis and test doubles all satisfy it.
type RedisInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	Close() error
}

// Redis owns a go-redis client shared by the limiter and every cache domain.
type Redis struct {
	redis.UniversalClient
	log       logger.Logger
	closeOnce sync.Once
	closeErr  error
}

const defaultPingTimeout = 3 * time.Second

// NewRedis dials the configured server and fails unless it answers a ping
// within cfg.PingTimeout.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	opt, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping %s (timeout=%s): %w", opt.Addr, timeout, err)
	}
	log := logger.FromContext(ctx).With("component", "store")
	log.Info("Connected to Redis",
		"addr", opt.Addr,
		"db", opt.DB,
		"pool_size", opt.PoolSize,
		"tls", opt.TLSConfig != nil,
	)
	return &Redis{UniversalClient: client, log: log}, nil
}

// NewRedisFromClient wraps a client that is already connected, such as the
// embedded server's.
func NewRedisFromClient(ctx context.Context, client redis.UniversalClient) *Redis {
	return &Redis{
		UniversalClient: client,
		log:             logger.FromContext(ctx).With("component", "store"),
	}
}

// redisOptions resolves cfg.URL when set, otherwise host and port. Pool and
// timeout settings apply to either form.
func redisOptions(cfg *config.RedisConfig) (*redis.Options, error) {
	var opt *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opt.MinIdleConns = cfg.MinIdleConns
	}
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	opt.MaxRetries = cfg.MaxRetries
	if cfg.TLSEnabled && opt.TLSConfig == nil {
		host, _, err := net.SplitHostPort(opt.Addr)
		if err != nil {
			host = cfg.Host
		}
		opt.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return opt, nil
}

// Close releases the connection pool. Repeated calls return the first result.
func (r *Redis) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.UniversalClient.Close()
		if r.closeErr != nil {
			r.log.Error("Closing Redis failed", "error", r.closeErr)
			return
		}
		r.log.Debug("Redis connection closed")
	})
	return r.closeErr
}

// HealthCheck pings the server.
func (r *Redis) HealthCheck(ctx context.Context) error {
	if err := r.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
