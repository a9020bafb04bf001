package config

import "time"

// Config represents the complete configuration for the coachgate service.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Redis      RedisConfig      `koanf:"redis"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Cache      CacheConfig      `koanf:"cache"`
	Selector   SelectorConfig   `koanf:"selector"`
	Knowledge  KnowledgeConfig  `koanf:"knowledge"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Log        LogConfig        `koanf:"log"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// RedisConfig contains connection settings for the shared key-value store.
//
// Mode "standalone" starts an embedded miniredis server; "distributed" dials
// URL or Host:Port.
type RedisConfig struct {
	Mode         string        `koanf:"mode"          validate:"oneof=standalone distributed"`
	URL          string        `koanf:"url"`
	Host         string        `koanf:"host"`
	Port         string        `koanf:"port"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"            validate:"min=0"`
	PoolSize     int           `koanf:"pool_size"     validate:"min=0"`
	MinIdleConns int           `koanf:"min_idle_conns" validate:"min=0"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PingTimeout  time.Duration `koanf:"ping_timeout"`
	MaxRetries   int           `koanf:"max_retries"`
	TLSEnabled   bool          `koanf:"tls_enabled"`
}

// TierConfig is one row of the tier limit table.
type TierConfig struct {
	DefaultPerHour     int64 `koanf:"default_per_hour"     validate:"min=0" yaml:"default_per_hour"`
	ExpensivePerMinute int64 `koanf:"expensive_per_minute" validate:"min=0" yaml:"expensive_per_minute"`
	Unlimited          bool  `koanf:"unlimited"                             yaml:"unlimited"`
}

// RateLimitConfig controls the tiered limiter and its middleware.
type RateLimitConfig struct {
	Enabled            bool                  `koanf:"enabled"`
	Prefix             string                `koanf:"prefix"              validate:"required"`
	StoreTimeout       time.Duration         `koanf:"store_timeout"       validate:"gt=0"`
	AnonymousTier      string                `koanf:"anonymous_tier"`
	Tiers              map[string]TierConfig `koanf:"tiers"               validate:"required,min=1,dive"`
	ExpensiveEndpoints []string              `koanf:"expensive_endpoints"`
	ExemptPaths        []string              `koanf:"exempt_paths"`
}

// CacheConfig controls the cache manager and its domains.
type CacheConfig struct {
	Prefix           string        `koanf:"prefix"             validate:"required"`
	OperationTimeout time.Duration `koanf:"operation_timeout"  validate:"gt=0"`
	ExerciseMatchTTL time.Duration `koanf:"exercise_match_ttl" validate:"gte=0"`
	UserContextTTL   time.Duration `koanf:"user_context_ttl"   validate:"gte=0"`
	AIResponseTTL    time.Duration `koanf:"ai_response_ttl"    validate:"gte=0"`
	RAGContextTTL    time.Duration `koanf:"rag_context_ttl"    validate:"gte=0"`
	LocalSize        int           `koanf:"local_size"         validate:"min=0"`
}

// NamespaceConfig describes one knowledge partition in the selector registry.
type NamespaceConfig struct {
	ID           string   `koanf:"id"            yaml:"id"            validate:"required"`
	Goals        []string `koanf:"goals"         yaml:"goals"`
	Hints        []string `koanf:"hints"         yaml:"hints"`
	BaseWeight   float64  `koanf:"base_weight"   yaml:"base_weight"   validate:"gt=0"`
	ContentTypes []string `koanf:"content_types" yaml:"content_types"`
	Default      bool     `koanf:"default"       yaml:"default"`
}

// SelectorConfig tunes namespace selection. An empty Namespaces list keeps
// the built-in registry.
type SelectorConfig struct {
	MaxNamespaces int               `koanf:"max_namespaces"  validate:"min=1"`
	MinNamespaces int               `koanf:"min_namespaces"  validate:"min=1"`
	StepPerSignal int               `koanf:"step_per_signal" validate:"min=0"`
	HintDecay     float64           `koanf:"hint_decay"      validate:"gt=0,lte=1"`
	HintBoost     float64           `koanf:"hint_boost"      validate:"gte=0"`
	Namespaces    []NamespaceConfig `koanf:"namespaces"      validate:"dive"`
}

// KnowledgeConfig controls the retrieval backend and the orchestrator.
type KnowledgeConfig struct {
	Backend          string        `koanf:"backend"            validate:"oneof=memory http"`
	BaseURL          string        `koanf:"base_url"`
	APIKey           string        `koanf:"api_key"`
	Timeout          time.Duration `koanf:"timeout"            validate:"gt=0"`
	MaxRetries       uint64        `koanf:"max_retries"`
	MaxConcurrency   int           `koanf:"max_concurrency"    validate:"min=1"`
	DefaultMaxChunks int           `koanf:"default_max_chunks" validate:"min=1"`
}

// MonitoringConfig controls the Prometheus metrics endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `koanf:"level"  validate:"omitempty,oneof=debug info warn error disabled"`
	JSON   bool   `koanf:"json"`
	Source bool   `koanf:"source"`
}

// Default returns the configuration used before any source is applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Mode:         "standalone",
			Host:         "localhost",
			Port:         "6379",
			PoolSize:     20,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  200 * time.Millisecond,
			WriteTimeout: 200 * time.Millisecond,
			PingTimeout:  3 * time.Second,
			MaxRetries:   -1,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Prefix:        "coachgate:ratelimit:",
			StoreTimeout:  50 * time.Millisecond,
			AnonymousTier: "",
			Tiers: map[string]TierConfig{
				"free":    {DefaultPerHour: 60, ExpensivePerMinute: 10},
				"premium": {DefaultPerHour: 1000, ExpensivePerMinute: 60},
				"admin":   {Unlimited: true},
			},
			ExpensiveEndpoints: []string{
				"/api/v1/ai/*",
				"/api/v1/rag/context",
				"/api/v1/voice/command",
			},
			ExemptPaths: []string{"/", "/health", "/ready", "/docs", "/swagger", "/metrics"},
		},
		Cache: CacheConfig{
			Prefix:           "coachgate:cache:",
			OperationTimeout: 100 * time.Millisecond,
			ExerciseMatchTTL: 7 * 24 * time.Hour,
			UserContextTTL:   time.Hour,
			AIResponseTTL:    24 * time.Hour,
			RAGContextTTL:    time.Hour,
			LocalSize:        2048,
		},
		Selector: SelectorConfig{
			MaxNamespaces: 8,
			MinNamespaces: 1,
			StepPerSignal: 2,
			HintDecay:     0.5,
			HintBoost:     0.25,
		},
		Knowledge: KnowledgeConfig{
			Backend:          "memory",
			Timeout:          800 * time.Millisecond,
			MaxRetries:       1,
			MaxConcurrency:   4,
			DefaultMaxChunks: 8,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
