package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	infracache "github.com/liftwise/coachgate/engine/infra/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	adapter, err := infracache.NewRedisAdapter(client)
	require.NoError(t, err)
	m, err := NewManager(adapter, opts...)
	require.NoError(t, err)
	return m, s
}

// failingKV fails every call, or blocks until the context expires when slow.
type failingKV struct {
	slow  bool
	calls atomic.Int32
}

func (f *failingKV) wait(ctx context.Context) error {
	f.calls.Add(1)
	if f.slow {
		<-ctx.Done()
		return ctx.Err()
	}
	return errors.New("connection refused")
}

func (f *failingKV) Get(ctx context.Context, _ string) ([]byte, error) { return nil, f.wait(ctx) }
func (f *failingKV) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	return f.wait(ctx)
}
func (f *failingKV) Del(ctx context.Context, _ ...string) (int64, error) { return 0, f.wait(ctx) }

func TestManager_RoundTrip(t *testing.T) {
	ctx := t.Context()

	t.Run("Should return a stored value before its TTL", func(t *testing.T) {
		m, _ := newTestManager(t)
		key := m.Key("test", "a")
		require.NoError(t, m.Set(ctx, key, payload{Name: "squat", Count: 3}, time.Minute))

		var got payload
		hit, err := m.Get(ctx, key, &got)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, payload{Name: "squat", Count: 3}, got)
	})

	t.Run("Should miss after delete", func(t *testing.T) {
		m, _ := newTestManager(t)
		key := m.Key("test", "b")
		require.NoError(t, m.Set(ctx, key, payload{Name: "x"}, time.Minute))
		require.NoError(t, m.Delete(ctx, key))
		var got payload
		hit, err := m.Get(ctx, key, &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("Should miss after TTL expiry", func(t *testing.T) {
		m, s := newTestManager(t)
		key := m.Key("test", "c")
		require.NoError(t, m.Set(ctx, key, payload{Name: "x"}, time.Minute))
		s.FastForward(time.Minute + time.Second)
		var got payload
		hit, err := m.Get(ctx, key, &got)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("Should store entries in an envelope with a creation time", func(t *testing.T) {
		fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		m, s := newTestManager(t, WithClock(func() time.Time { return fixed }), WithPrefix("p:"))
		key := m.RawKey("test", "env")
		assert.Equal(t, "p:test:env", key)
		require.NoError(t, m.Set(ctx, key, payload{Name: "x"}, time.Minute))
		raw, err := s.Get(key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":{"name":"x","count":0},"created_at":"2026-03-01T12:00:00Z"}`, raw)
		assert.Equal(t, time.Minute, s.TTL(key))
	})

	t.Run("Should drop undecodable entries and report a miss", func(t *testing.T) {
		m, s := newTestManager(t)
		key := m.Key("test", "garbage")
		require.NoError(t, s.Set(key, "not json"))
		var got payload
		hit, err := m.Get(ctx, key, &got)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.False(t, s.Exists(key))
	})

	t.Run("Should skip writes without a positive TTL", func(t *testing.T) {
		m, s := newTestManager(t)
		key := m.Key("test", "nottl")
		require.NoError(t, m.Set(ctx, key, payload{}, 0))
		assert.False(t, s.Exists(key))
	})

	t.Run("Should reject invalid keys", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Get(ctx, " ", &payload{})
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.ErrorIs(t, m.Set(ctx, "a\nb", payload{}, time.Minute), ErrInvalidKey)
	})
}

func TestManager_StoreFailures(t *testing.T) {
	ctx := t.Context()

	t.Run("Should report store errors as ErrStoreUnavailable", func(t *testing.T) {
		m, err := NewManager(&failingKV{})
		require.NoError(t, err)
		hit, err := m.Get(ctx, "k", &payload{})
		assert.False(t, hit)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorIs(t, m.Set(ctx, "k", payload{}, time.Minute), ErrStoreUnavailable)
		assert.ErrorIs(t, m.Delete(ctx, "k"), ErrStoreUnavailable)
	})

	t.Run("Should bound every call by the operation timeout", func(t *testing.T) {
		m, err := NewManager(&failingKV{slow: true}, WithOperationTimeout(20*time.Millisecond))
		require.NoError(t, err)
		start := time.Now()
		_, err = m.Get(ctx, "k", &payload{})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestGetOrSet(t *testing.T) {
	ctx := t.Context()

	t.Run("Should compute once and serve later calls from cache", func(t *testing.T) {
		m, _ := newTestManager(t)
		var calls int
		compute := func(context.Context) (payload, error) {
			calls++
			return payload{Name: "deadlift", Count: calls}, nil
		}
		first, err := GetOrSet(ctx, m, "k", time.Minute, compute)
		require.NoError(t, err)
		second, err := GetOrSet(ctx, m, "k", time.Minute, compute)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, first, second)
	})

	t.Run("Should not cache compute errors", func(t *testing.T) {
		m, s := newTestManager(t)
		_, err := GetOrSet(ctx, m, "k", time.Minute, func(context.Context) (payload, error) {
			return payload{}, errors.New("boom")
		})
		assert.EqualError(t, err, "boom")
		assert.False(t, s.Exists("k"))
	})

	t.Run("Should compute when the store is down", func(t *testing.T) {
		kv := &failingKV{}
		m, err := NewManager(kv)
		require.NoError(t, err)
		got, err := GetOrSet(ctx, m, "k", time.Minute, func(context.Context) (payload, error) {
			return payload{Name: "bench"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "bench", got.Name)
		assert.Equal(t, int32(2), kv.calls.Load())
	})
}
