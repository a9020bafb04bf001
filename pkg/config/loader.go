package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// sections lists the top-level keys environment variables may target.
var sections = map[string]struct{}{
	"server":     {},
	"redis":      {},
	"ratelimit":  {},
	"cache":      {},
	"selector":   {},
	"knowledge":  {},
	"monitoring": {},
	"log":        {},
}

// Loader assembles a Config from defaults, an optional YAML file, the
// environment and explicit overrides, in increasing precedence.
type Loader struct {
	koanf     *koanf.Koanf
	validator *validator.Validate
	file      string
	overrides map[string]any
	environ   func() []string
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithFile layers a YAML file over the defaults.
func WithFile(path string) LoaderOption {
	return func(l *Loader) { l.file = path }
}

// WithOverrides applies dot-path overrides (typically CLI flags) last.
func WithOverrides(values map[string]any) LoaderOption {
	return func(l *Loader) {
		for k, v := range values {
			l.overrides[k] = v
		}
	}
}

// WithEnviron replaces os.Environ, mostly for tests.
func WithEnviron(fn func() []string) LoaderOption {
	return func(l *Loader) { l.environ = fn }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		koanf:     koanf.New("."),
		validator: validator.New(),
		overrides: make(map[string]any),
		environ:   os.Environ,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load is shorthand for NewLoader(opts...).Load().
func Load(opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).Load()
}

func (l *Loader) Load() (*Config, error) {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if l.file != "" {
		if err := l.loadFile(l.file); err != nil {
			return nil, err
		}
	}
	if err := l.loadEnvironment(); err != nil {
		return nil, err
	}
	for key, value := range l.overrides {
		if err := l.koanf.Set(key, value); err != nil {
			return nil, fmt.Errorf("failed to apply override %s: %w", key, err)
		}
	}
	return l.unmarshalAndValidate()
}

func (l *Loader) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	// Set key by key so a partial file keeps the remaining defaults.
	for key, value := range flattenMap("", doc) {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from %s: %w", key, path, err)
		}
	}
	return nil
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: CACHE_RAG_CONTEXT_TTL -> cache.rag_context_ttl. Variables
// outside the known sections map to "" and are skipped.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return r == '_' })
	if len(parts) < 2 {
		return ""
	}
	if _, ok := sections[parts[0]]; !ok {
		return ""
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func (l *Loader) loadEnvironment() error {
	provider := env.Provider(".", env.Opt{
		EnvironFunc: l.environ,
		TransformFunc: func(key string, value string) (string, any) {
			return transformEnvKey(key), value
		},
	})
	if err := l.koanf.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func (l *Loader) unmarshalAndValidate() (*Config, error) {
	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(l.validator, &cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate runs struct-tag validation followed by cross-field checks.
func Validate(v *validator.Validate, cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(cfg); err != nil {
		return err
	}
	return validateCustom(cfg)
}

func validateCustom(cfg *Config) error {
	if cfg.Selector.MinNamespaces > cfg.Selector.MaxNamespaces {
		return fmt.Errorf(
			"selector min_namespaces (%d) exceeds max_namespaces (%d)",
			cfg.Selector.MinNamespaces,
			cfg.Selector.MaxNamespaces,
		)
	}
	limited := 0
	for name, tier := range cfg.RateLimit.Tiers {
		if tier.Unlimited {
			continue
		}
		if tier.DefaultPerHour <= 0 || tier.ExpensivePerMinute <= 0 {
			return fmt.Errorf("tier %q must have positive limits or be unlimited", name)
		}
		limited++
	}
	if limited == 0 {
		return errors.New("at least one rate-limited tier is required")
	}
	if t := cfg.RateLimit.AnonymousTier; t != "" {
		tier, ok := cfg.RateLimit.Tiers[t]
		if !ok {
			return fmt.Errorf("anonymous_tier %q is not a configured tier", t)
		}
		if tier.Unlimited {
			return fmt.Errorf("anonymous_tier %q cannot be unlimited", t)
		}
	}
	if cfg.Knowledge.Backend == "http" && strings.TrimSpace(cfg.Knowledge.BaseURL) == "" {
		return errors.New("knowledge base_url is required for the http backend")
	}
	if cfg.Redis.Mode == "distributed" && cfg.Redis.URL == "" && cfg.Redis.Host == "" {
		return errors.New("redis url or host is required in distributed mode")
	}
	return nil
}

// flattenMap flattens a nested map into dot-notation keys.
func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		result[key] = v
	}
	return result
}
