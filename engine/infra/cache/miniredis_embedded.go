package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// clockTick is how often the embedded server's clock is advanced. miniredis
// only expires keys when its clock moves.
const clockTick = time.Second

// MiniredisEmbedded runs an in-process Redis-compatible server for
// standalone deployments.
type MiniredisEmbedded struct {
	server    *miniredis.Miniredis
	client    *redis.Client
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func NewMiniredisEmbedded(ctx context.Context) (*MiniredisEmbedded, error) {
	server := miniredis.NewMiniRedis()
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("starting embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		server.Close()
		return nil, fmt.Errorf("pinging embedded redis: %w", err)
	}
	m := &MiniredisEmbedded{
		server: server,
		client: client,
		stop:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.advanceClock()
	logger.FromContext(ctx).Info("Embedded Redis started", "cache_driver", "miniredis", "addr", server.Addr())
	return m, nil
}

func (m *MiniredisEmbedded) advanceClock() {
	defer m.wg.Done()
	ticker := time.NewTicker(clockTick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			m.server.FastForward(now.Sub(last))
			last = now
		case <-m.stop:
			return
		}
	}
}

// Client returns a go-redis client connected to the embedded server.
func (m *MiniredisEmbedded) Client() *redis.Client {
	return m.client
}

// Close stops the clock, the client and the server. Safe to call twice.
func (m *MiniredisEmbedded) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		close(m.stop)
		m.wg.Wait()
		m.closeErr = m.client.Close()
		m.server.Close()
		logger.FromContext(ctx).Debug("Embedded Redis stopped")
	})
	return m.closeErr
}
