// Package cache implements the JSON cache manager over the shared key-value
// store and the four cache domains built on it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liftwise/coachgate/engine/core"
	infracache "github.com/liftwise/coachgate/engine/infra/cache"
	"github.com/liftwise/coachgate/pkg/logger"
)

const (
	defaultPrefix  = "coachgate:cache:"
	defaultTimeout = 100 * time.Millisecond
	maxKeyLength   = 512
)

// KV is the store contract. infra/cache.RedisAdapter implements it; Get must
// return infracache.ErrNotFound for a missing key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
}

type envelope struct {
	Value     json.RawMessage `json:"v"`
	CreatedAt time.Time       `json:"created_at"`
}

// Manager stores JSON values under TTLs. Every store call is bounded by the
// operation timeout and store faults never escape as anything but
// ErrStoreUnavailable.
type Manager struct {
	kv      KV
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Manager)

func WithPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.prefix = prefix
		}
	}
}

func WithOperationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(kv KV, opts ...Option) (*Manager, error) {
	if kv == nil {
		return nil, fmt.Errorf("cache store cannot be nil")
	}
	m := &Manager{kv: kv, prefix: defaultPrefix, timeout: defaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Key builds `<prefix><domain>:<sha256 of parts>`.
func (m *Manager) Key(domain string, parts ...any) string {
	return m.prefix + domain + ":" + core.Fingerprint(parts...)
}

// RawKey builds `<prefix><domain>:<id>` for domains keyed by an identifier.
func (m *Manager) RawKey(domain, id string) string {
	return m.prefix + domain + ":" + id
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > maxKeyLength || strings.ContainsAny(key, "\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

// Get decodes the entry at key into dest. A missing or undecodable entry is a
// miss; undecodable entries are deleted.
func (m *Manager) Get(ctx context.Context, key string, dest any) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	opCtx, cancel := m.opContext(ctx)
	raw, err := m.kv.Get(opCtx, key)
	cancel()
	if errors.Is(err, infracache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get %s: %v", ErrStoreUnavailable, key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Value) > 0 {
		err = json.Unmarshal(env.Value, dest)
		if err == nil {
			return true, nil
		}
	}
	logger.FromContext(ctx).Warn("Dropping undecodable cache entry", "key", key)
	if err := m.Delete(ctx, key); err != nil {
		logger.FromContext(ctx).Debug("Failed to drop undecodable cache entry", "key", key, "error", err)
	}
	return false, nil
}

// Set stores value under key for ttl. A non-positive ttl skips the write so
// that nothing is ever stored without an expiry.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{Value: payload, CreatedAt: m.now().UTC()})
	if err != nil {
		return fmt.Errorf("cache: encode envelope %s: %w", key, err)
	}
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	if err := m.kv.Set(opCtx, key, raw, ttl); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	opCtx, cancel := m.opContext(ctx)
	defer cancel()
	if _, err := m.kv.Del(opCtx, key); err != nil {
		return fmt.Errorf("%w: delete %s: %v", ErrStoreUnavailable, key, err)
	}
	return nil
}

// GetOrSet returns the cached value at key or computes and stores it. There
// is no lock: racing callers on a missing key may both run compute, which
// must therefore be side-effect free. Compute errors are returned and
// nothing is cached; a failed write is logged and the value still returned.
func GetOrSet[T any](
	ctx context.Context,
	m *Manager,
	key string,
	ttl time.Duration,
	compute func(context.Context) (T, error),
) (T, error) {
	var cached T
	hit, err := m.Get(ctx, key, &cached)
	if err != nil && !errors.Is(err, ErrStoreUnavailable) {
		var zero T
		return zero, err
	}
	if err != nil {
		logger.FromContext(ctx).Debug("Cache read failed, computing", "key", key, "error", err)
	}
	if hit {
		return cached, nil
	}
	value, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := m.Set(ctx, key, value, ttl); err != nil {
		logger.FromContext(ctx).Warn("Cache write failed", "key", key, "error", err)
	}
	return value, nil
}
