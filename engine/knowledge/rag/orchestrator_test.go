package rag_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liftwise/coachgate/engine/cache"
	infracache "github.com/liftwise/coachgate/engine/infra/cache"
	"github.com/liftwise/coachgate/engine/knowledge/namespace"
	"github.com/liftwise/coachgate/engine/knowledge/rag"
	"github.com/liftwise/coachgate/engine/knowledge/retriever"
	"github.com/liftwise/coachgate/engine/profile"
	"github.com/liftwise/coachgate/pkg/config"
)

const testEndpoint = "/api/v1/ai/shoulder-check"

// countingBackend returns TopK chunks per namespace and records each query.
type countingBackend struct {
	calls atomic.Int32
	fail  func(ns string) bool
	mu    sync.Mutex
	topK  map[string]int
}

func (b *countingBackend) Search(_ context.Context, q retriever.Query) ([]retriever.Chunk, error) {
	b.calls.Add(1)
	b.mu.Lock()
	if b.topK == nil {
		b.topK = make(map[string]int)
	}
	b.topK[q.Namespace] = q.TopK
	b.mu.Unlock()
	if b.fail != nil && b.fail(q.Namespace) {
		return nil, fmt.Errorf("%w: boom", retriever.ErrRetrievalUnavailable)
	}
	out := make([]retriever.Chunk, q.TopK)
	for i := range out {
		out[i] = retriever.Chunk{
			Text:      fmt.Sprintf("%s-%d", q.Namespace, i),
			Namespace: q.Namespace,
			Score:     1 - 0.1*float64(i),
			Metadata:  map[string]any{"source": fmt.Sprintf("%s-doc-%d", q.Namespace, i)},
		}
	}
	return out, nil
}

type harness struct {
	orch        *rag.Orchestrator
	backend     *countingBackend
	transforms  *atomic.Int32
	redisServer *miniredis.Miniredis
}

func newHarness(t *testing.T, contextCache rag.ContextCache) *harness {
	t.Helper()
	h := &harness{backend: &countingBackend{}, transforms: &atomic.Int32{}}
	if contextCache == nil {
		h.redisServer = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: h.redisServer.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		adapter, err := infracache.NewRedisAdapter(client)
		require.NoError(t, err)
		m, err := cache.NewManager(adapter)
		require.NoError(t, err)
		cfg := config.Default().Cache
		caches, err := cache.NewCaches(m, &cfg)
		require.NoError(t, err)
		contextCache = caches.RAGContext
	}
	reg := rag.DefaultRegistry()
	require.NoError(t, reg.Register(testEndpoint, rag.Transformer{
		KeyFields: []string{"body_part"},
		Transform: func(req gjson.Result, _ *profile.UserContext) namespace.Descriptor {
			h.transforms.Add(1)
			return namespace.Descriptor{
				Goal:      "injury_analysis",
				Hints:     []string{req.Get("body_part").String()},
				QueryText: "shoulder pain",
			}
		},
	}))
	selector, err := namespace.NewSelector(namespace.DefaultRegistry(), nil)
	require.NoError(t, err)
	cfg := config.Default().Knowledge
	cfg.Timeout = time.Second
	h.orch, err = rag.New(h.backend, selector, contextCache, &cfg, rag.WithTransformers(reg))
	require.NoError(t, err)
	return h
}

func shoulderRequest(user *profile.UserContext) rag.Request {
	return rag.Request{
		EndpointPath: testEndpoint,
		Raw:          []byte(`{"body_part":"shoulder","note":"ignored"}`),
		User:         user,
		MaxChunks:    2,
		UseCache:     true,
	}
}

func TestOrchestrator_GetContext(t *testing.T) {
	ctx := context.Background()

	t.Run("Should serve a repeated request from cache without transforming or retrieving", func(t *testing.T) {
		h := newHarness(t, nil)
		first, err := h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.False(t, first.Cached)
		transforms, searches := h.transforms.Load(), h.backend.calls.Load()
		assert.EqualValues(t, 1, transforms)
		assert.EqualValues(t, 4, searches)

		second, err := h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.True(t, second.Cached)
		assert.Equal(t, first.Context, second.Context)
		assert.Equal(t, transforms, h.transforms.Load())
		assert.Equal(t, searches, h.backend.calls.Load())
	})

	t.Run("Should key on extracted fields only", func(t *testing.T) {
		h := newHarness(t, nil)
		_, err := h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		req := shoulderRequest(nil)
		req.Raw = []byte(`{"note":"different","body_part":"shoulder"}`)
		res, err := h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		assert.True(t, res.Cached)

		req.Raw = []byte(`{"body_part":"knee"}`)
		res, err = h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	})

	t.Run("Should share context across users with the same retrieval profile", func(t *testing.T) {
		h := newHarness(t, nil)
		a := &profile.UserContext{UserID: "a", ExperienceLevel: profile.LevelBeginner}
		b := &profile.UserContext{UserID: "b", ExperienceLevel: profile.LevelBeginner}
		c := &profile.UserContext{UserID: "c", ExperienceLevel: profile.LevelAdvanced}
		_, err := h.orch.GetContext(ctx, shoulderRequest(a))
		require.NoError(t, err)
		res, err := h.orch.GetContext(ctx, shoulderRequest(b))
		require.NoError(t, err)
		assert.True(t, res.Cached)
		res, err = h.orch.GetContext(ctx, shoulderRequest(c))
		require.NoError(t, err)
		assert.False(t, res.Cached)
	})

	t.Run("Should split top k by weight and truncate the merged ranking", func(t *testing.T) {
		h := newHarness(t, nil)
		res, err := h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.Equal(t, map[string]int{
			"injury_rehab_protocols": 2,
			"injury_prevention":      2,
			"exercise_technique":     1,
			"mobility_flexibility":   1,
		}, h.backend.topK)
		assert.Equal(t,
			"[injury_rehab_protocols] injury_rehab_protocols-0\n\n[injury_prevention] injury_prevention-0",
			res.Context,
		)
		require.Len(t, res.Namespaces, 4)
		assert.Equal(t, "injury_rehab_protocols", res.Namespaces[0].ID)
	})

	t.Run("Should return chunks with provenance in chunk format", func(t *testing.T) {
		h := newHarness(t, nil)
		req := shoulderRequest(nil)
		req.Format = rag.FormatChunks
		req.MaxChunks = 3
		res, err := h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		assert.Empty(t, res.Context)
		require.Len(t, res.Chunks, 3)
		assert.Equal(t, "injury_rehab_protocols", res.Chunks[0].Namespace)
		assert.InDelta(t, 1.375, res.Chunks[0].Score, 1e-9)
		assert.Equal(t, "injury_prevention", res.Chunks[1].Namespace)
		for i := 1; i < len(res.Chunks); i++ {
			assert.GreaterOrEqual(t, res.Chunks[i-1].Score, res.Chunks[i].Score)
		}
	})

	t.Run("Should keep chunk metadata on a miss and on a cache hit", func(t *testing.T) {
		h := newHarness(t, nil)
		req := shoulderRequest(nil)
		req.Format = rag.FormatChunks
		first, err := h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		require.False(t, first.Cached)
		require.NotEmpty(t, first.Chunks)
		assert.Equal(t, "injury_rehab_protocols-doc-0", first.Chunks[0].Metadata["source"])

		second, err := h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		require.True(t, second.Cached)
		require.Len(t, second.Chunks, len(first.Chunks))
		for i := range first.Chunks {
			assert.Equal(t, first.Chunks[i].Metadata["source"], second.Chunks[i].Metadata["source"])
		}
	})

	t.Run("Should return a neutral degraded result when retrieval fails everywhere", func(t *testing.T) {
		h := newHarness(t, nil)
		h.backend.fail = func(string) bool { return true }
		res, err := h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Empty(t, res.Context)
		assert.Empty(t, res.Chunks)

		before := h.backend.calls.Load()
		res, err = h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Greater(t, h.backend.calls.Load(), before)
	})

	t.Run("Should cache a partial result", func(t *testing.T) {
		h := newHarness(t, nil)
		h.backend.fail = func(ns string) bool { return ns == "injury_prevention" }
		res, err := h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.True(t, res.Partial)
		assert.False(t, res.Degraded)
		assert.NotContains(t, res.Context, "[injury_prevention]")

		res, err = h.orch.GetContext(ctx, shoulderRequest(nil))
		require.NoError(t, err)
		assert.True(t, res.Cached)
		assert.True(t, res.Partial)
	})

	t.Run("Should treat a failing cache as a miss", func(t *testing.T) {
		h := newHarness(t, brokenCache{})
		for range 2 {
			res, err := h.orch.GetContext(ctx, shoulderRequest(nil))
			require.NoError(t, err)
			assert.False(t, res.Cached)
			assert.NotEmpty(t, res.Context)
		}
		assert.EqualValues(t, 2, h.transforms.Load())
	})

	t.Run("Should skip the cache when not requested", func(t *testing.T) {
		h := newHarness(t, nil)
		req := shoulderRequest(nil)
		req.UseCache = false
		for range 2 {
			res, err := h.orch.GetContext(ctx, req)
			require.NoError(t, err)
			assert.False(t, res.Cached)
		}
		assert.Empty(t, h.redisServer.Keys())
	})

	t.Run("Should expire cached context after its ttl", func(t *testing.T) {
		h := newHarness(t, nil)
		req := shoulderRequest(nil)
		req.CacheTTL = time.Minute
		_, err := h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		h.redisServer.FastForward(2 * time.Minute)
		res, err := h.orch.GetContext(ctx, req)
		require.NoError(t, err)
		assert.False(t, res.Cached)
	})

	t.Run("Should reject invalid json and unknown formats", func(t *testing.T) {
		h := newHarness(t, nil)
		req := shoulderRequest(nil)
		req.Raw = []byte(`{"body_part":`)
		_, err := h.orch.GetContext(ctx, req)
		require.ErrorIs(t, err, rag.ErrInvalidRequest)

		req = shoulderRequest(nil)
		req.Format = "xml"
		_, err = h.orch.GetContext(ctx, req)
		require.Error(t, err)
		assert.Zero(t, h.backend.calls.Load())
	})

	t.Run("Should fall back to the default subset for an unknown endpoint", func(t *testing.T) {
		h := newHarness(t, nil)
		res, err := h.orch.GetContext(ctx, rag.Request{
			EndpointPath: "/api/v1/unknown",
			Raw:          []byte(`{"query":"anything"}`),
		})
		require.NoError(t, err)
		assert.Len(t, res.Namespaces, 5)
		assert.Zero(t, h.transforms.Load())
	})
}

type brokenCache struct{}

func (brokenCache) Key(endpoint string, _ map[string]any, fp string) string {
	return endpoint + fp
}

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("store down")
}

func (brokenCache) Set(context.Context, string, any, time.Duration) error {
	return errors.New("store down")
}

func TestNew(t *testing.T) {
	selector, err := namespace.NewSelector(namespace.DefaultRegistry(), nil)
	require.NoError(t, err)
	t.Run("Should require a backend and a selector", func(t *testing.T) {
		_, err := rag.New(nil, selector, nil, nil)
		require.Error(t, err)
		_, err = rag.New(retriever.NewMemoryBackend(nil), nil, nil, nil)
		require.Error(t, err)
	})
	t.Run("Should work without a cache", func(t *testing.T) {
		o, err := rag.New(retriever.NewMemoryBackend(retriever.DefaultCorpus()), selector, nil, nil)
		require.NoError(t, err)
		res, err := o.GetContext(context.Background(), rag.Request{
			EndpointPath: "/api/v1/ai/injury-analysis",
			Raw:          []byte(`{"body_part":"shoulder","description":"shoulder pain when pressing"}`),
			UseCache:     true,
		})
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Contains(t, res.Context, "[injury_rehab_protocols]")
	})
}
