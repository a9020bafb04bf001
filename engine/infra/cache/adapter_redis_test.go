package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t testing.TB) (*RedisAdapter, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ad, err := NewRedisAdapter(client)
	require.NoError(t, err)
	return ad, s
}

func TestRedisAdapter_KV(t *testing.T) {
	ctx := t.Context()

	t.Run("Should set, get and delete keys", func(t *testing.T) {
		a, _ := newTestAdapter(t)
		require.NoError(t, a.Set(ctx, "a", []byte("1"), 0))

		v, err := a.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)

		require.NoError(t, a.Set(ctx, "x", []byte("x"), 0))
		require.NoError(t, a.Set(ctx, "y", []byte("y"), 0))
		n, err := a.Del(ctx, "x", "y", "missing")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("Should map missing keys to ErrNotFound", func(t *testing.T) {
		a, _ := newTestAdapter(t)
		_, err := a.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Should expire keys after their TTL", func(t *testing.T) {
		a, s := newTestAdapter(t)
		require.NoError(t, a.Set(ctx, "ttl", []byte("v"), time.Hour))
		s.FastForward(time.Hour + time.Second)
		_, err := a.Get(ctx, "ttl")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Should reject a nil client", func(t *testing.T) {
		_, err := NewRedisAdapter(nil)
		assert.Error(t, err)
	})
}

func TestRedisAdapter_IncrementWithExpiry(t *testing.T) {
	ctx := t.Context()

	t.Run("Should count and arm the window on first increment", func(t *testing.T) {
		a, s := newTestAdapter(t)
		count, ttl, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, time.Minute, ttl)
		assert.Equal(t, time.Minute, s.TTL("k"))
	})

	t.Run("Should not extend the window on later increments", func(t *testing.T) {
		a, s := newTestAdapter(t)
		_, _, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		s.FastForward(20 * time.Second)
		count, ttl, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.Equal(t, 40*time.Second, ttl)
	})

	t.Run("Should re-arm a counter found without expiry", func(t *testing.T) {
		a, s := newTestAdapter(t)
		require.NoError(t, s.Set("k", "5"))
		count, ttl, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(6), count)
		assert.Equal(t, time.Minute, ttl)
	})

	t.Run("Should start over once the window expires", func(t *testing.T) {
		a, s := newTestAdapter(t)
		for range 3 {
			_, _, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
			require.NoError(t, err)
		}
		s.FastForward(time.Minute + time.Millisecond)
		count, _, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Should surface store errors", func(t *testing.T) {
		a, s := newTestAdapter(t)
		s.Close()
		_, _, err := a.IncrementWithExpiry(ctx, "k", time.Minute)
		assert.Error(t, err)
	})
}
