package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv() []string { return nil }

func TestConfig_Default(t *testing.T) {
	t.Run("Should return a valid default configuration", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, Validate(nil, cfg))
		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, int64(60), cfg.RateLimit.Tiers["free"].DefaultPerHour)
		assert.Equal(t, int64(10), cfg.RateLimit.Tiers["free"].ExpensivePerMinute)
		assert.True(t, cfg.RateLimit.Tiers["admin"].Unlimited)
		assert.Equal(t, time.Hour, cfg.Cache.UserContextTTL)
		assert.Equal(t, time.Hour, cfg.Cache.RAGContextTTL)
		assert.Contains(t, cfg.RateLimit.ExemptPaths, "/health")
	})
}

func TestLoader_Load(t *testing.T) {
	t.Run("Should load defaults when no sources are given", func(t *testing.T) {
		cfg, err := Load(WithEnviron(noEnv))
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 50*time.Millisecond, cfg.RateLimit.StoreTimeout)
		assert.Equal(t, int64(1000), cfg.RateLimit.Tiers["premium"].DefaultPerHour)
	})

	t.Run("Should apply environment overrides by section", func(t *testing.T) {
		environ := func() []string {
			return []string{
				"RATELIMIT_ENABLED=false",
				"CACHE_RAG_CONTEXT_TTL=15m",
				"SERVER_PORT=9090",
				"RATELIMIT_EXPENSIVE_ENDPOINTS=/api/v1/ai/*,/api/v1/plan",
				"PATH=/usr/bin",
			}
		}
		cfg, err := Load(WithEnviron(environ))
		require.NoError(t, err)
		assert.False(t, cfg.RateLimit.Enabled)
		assert.Equal(t, 15*time.Minute, cfg.Cache.RAGContextTTL)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, []string{"/api/v1/ai/*", "/api/v1/plan"}, cfg.RateLimit.ExpensiveEndpoints)
	})

	t.Run("Should layer a YAML file and keep untouched defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "coachgate.yaml")
		doc := `
ratelimit:
  tiers:
    free:
      default_per_hour: 30
      expensive_per_minute: 5
selector:
  max_namespaces: 4
  namespaces:
    - id: only_one
      goals: [strength]
      base_weight: 1.0
      default: true
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
		cfg, err := Load(WithFile(path), WithEnviron(noEnv))
		require.NoError(t, err)
		assert.Equal(t, int64(30), cfg.RateLimit.Tiers["free"].DefaultPerHour)
		assert.Equal(t, int64(1000), cfg.RateLimit.Tiers["premium"].DefaultPerHour)
		assert.Equal(t, 4, cfg.Selector.MaxNamespaces)
		require.Len(t, cfg.Selector.Namespaces, 1)
		assert.Equal(t, "only_one", cfg.Selector.Namespaces[0].ID)
		assert.Equal(t, []string{"strength"}, cfg.Selector.Namespaces[0].Goals)
	})

	t.Run("Should give overrides the highest precedence", func(t *testing.T) {
		environ := func() []string { return []string{"SERVER_PORT=9090"} }
		cfg, err := Load(WithEnviron(environ), WithOverrides(map[string]any{"server.port": 7000}))
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.Server.Port)
	})

	t.Run("Should fail on a missing file", func(t *testing.T) {
		_, err := Load(WithFile(filepath.Join(t.TempDir(), "nope.yaml")), WithEnviron(noEnv))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"selector min above max", func(c *Config) { c.Selector.MinNamespaces = 9 }},
		{"tier without limits", func(c *Config) { c.RateLimit.Tiers["free"] = TierConfig{} }},
		{"unknown anonymous tier", func(c *Config) { c.RateLimit.AnonymousTier = "gold" }},
		{"unlimited anonymous tier", func(c *Config) { c.RateLimit.AnonymousTier = "admin" }},
		{"http backend without url", func(c *Config) { c.Knowledge.Backend = "http" }},
		{"unknown redis mode", func(c *Config) { c.Redis.Mode = "cluster" }},
	}
	for _, tc := range cases {
		t.Run("Should reject "+tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, Validate(nil, cfg))
		})
	}
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "cache.rag_context_ttl", transformEnvKey("CACHE_RAG_CONTEXT_TTL"))
	assert.Equal(t, "redis.url", transformEnvKey("REDIS_URL"))
	assert.Equal(t, "", transformEnvKey("HOME"))
	assert.Equal(t, "", transformEnvKey("GOPATH_BIN"))
}

func TestFromContext(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 1234
	ctx := ContextWithConfig(t.Context(), cfg)
	assert.Equal(t, 1234, FromContext(ctx).Server.Port)
	assert.Equal(t, 8080, FromContext(t.Context()).Server.Port)
}
