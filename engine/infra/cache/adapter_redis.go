package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisAdapter implements the KV and counter contracts consumed by the cache
// manager and the rate limiter on top of a RedisInterface client.
type RedisAdapter struct {
	client RedisInterface
}

func NewRedisAdapter(client RedisInterface) (*RedisAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisAdapter{client: client}, nil
}

// --------------------
// KV
// --------------------

func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := a.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.client.Set(ctx, key, value, ttl).Err()
}

func (a *RedisAdapter) Del(ctx context.Context, keys ...string) (int64, error) {
	return a.client.Del(ctx, keys...).Result()
}

func (a *RedisAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// --------------------
// Atomic counter
// --------------------

// luaIncrWithExpiry increments a counter and arms its expiry in one round
// trip. The expiry is set on the first increment, or re-armed when a key is
// found without one.
//
// KEYS[1]: counter key
// ARGV[1]: window in milliseconds
//
// Returns: {count, pttl_ms}
const luaIncrWithExpiry = `
local count = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if count == 1 or ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// IncrementWithExpiry atomically increments key and returns the post-increment
// count and the key's remaining lifetime. The first increment of a key sets
// its TTL to window.
func (a *RedisAdapter) IncrementWithExpiry(
	ctx context.Context,
	key string,
	window time.Duration,
) (int64, time.Duration, error) {
	res, err := a.client.Eval(ctx, luaIncrWithExpiry, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		logger.FromContext(ctx).With(
			"component", "cache_adapter",
			"cache_driver", "redis",
			"key", key,
			"window_ms", window.Milliseconds(),
		).Debug("atomic increment with expiry failed", "error", err)
		return 0, 0, err
	}
	vals, ok := res.([]any)
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("%w: %T", ErrUnexpectedType, res)
	}
	count, ok := vals[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: count %T", ErrUnexpectedType, vals[0])
	}
	ttlMs, ok := vals[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("%w: ttl %T", ErrUnexpectedType, vals[1])
	}
	return count, time.Duration(ttlMs) * time.Millisecond, nil
}
