package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/liftwise/coachgate/engine/profile"
	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
)

const (
	DomainExerciseMatch = "exercise_match"
	DomainUserContext   = "user_context"
	DomainAIResponse    = "ai_response"
	DomainRAGContext    = "rag_context"
)

// domain records metrics around a Manager for one cache family.
type domain struct {
	name string
	m    *Manager
	ttl  time.Duration
}

func (d *domain) get(ctx context.Context, key string, dest any) (bool, error) {
	hit, err := d.m.Get(ctx, key, dest)
	switch {
	case err != nil:
		recordOperation(ctx, d.name, opGet, resultError)
	case hit:
		recordOperation(ctx, d.name, opGet, resultHit)
	default:
		recordOperation(ctx, d.name, opGet, resultMiss)
	}
	return hit, err
}

func (d *domain) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = d.ttl
	}
	if ttl <= 0 {
		recordOperation(ctx, d.name, opSet, resultSkip)
		return nil
	}
	err := d.m.Set(ctx, key, value, ttl)
	recordOperation(ctx, d.name, opSet, outcome(err))
	return err
}

func (d *domain) delete(ctx context.Context, key string) error {
	err := d.m.Delete(ctx, key)
	recordOperation(ctx, d.name, opDelete, outcome(err))
	return err
}

func outcome(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}

// --------------------
// Exercise match
// --------------------

// ExerciseMatch is the resolved catalog entry for a free-text exercise name.
type ExerciseMatch struct {
	ExerciseID string   `json:"exercise_id"`
	Name       string   `json:"name"`
	Confidence float64  `json:"confidence"`
	Aliases    []string `json:"aliases,omitempty"`
}

// ExerciseMatchCache caches query-to-exercise resolutions. The mapping is
// immutable so entries are never invalidated; a process-local LRU fronts the
// shared store.
type ExerciseMatchCache struct {
	domain
	local *expirable.LRU[string, ExerciseMatch]
}

// NormalizeExerciseQuery lowercases and collapses whitespace.
func NormalizeExerciseQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func (c *ExerciseMatchCache) key(query string) string {
	return c.m.Key(DomainExerciseMatch, NormalizeExerciseQuery(query))
}

func (c *ExerciseMatchCache) Get(ctx context.Context, query string) (ExerciseMatch, bool, error) {
	key := c.key(query)
	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			recordOperation(ctx, c.name, opGet, resultLocal)
			return v, true, nil
		}
	}
	var match ExerciseMatch
	hit, err := c.get(ctx, key, &match)
	if hit && c.local != nil {
		c.local.Add(key, match)
	}
	return match, hit, err
}

func (c *ExerciseMatchCache) Set(ctx context.Context, query string, match ExerciseMatch) error {
	key := c.key(query)
	if c.local != nil {
		c.local.Add(key, match)
	}
	return c.set(ctx, key, match, 0)
}

// GetOrResolve returns the cached match for query or resolves and stores it.
func (c *ExerciseMatchCache) GetOrResolve(
	ctx context.Context,
	query string,
	resolve func(context.Context, string) (ExerciseMatch, error),
) (ExerciseMatch, error) {
	match, hit, err := c.Get(ctx, query)
	if hit {
		return match, nil
	}
	if err != nil && !errors.Is(err, ErrStoreUnavailable) {
		return ExerciseMatch{}, err
	}
	match, err = resolve(ctx, NormalizeExerciseQuery(query))
	if err != nil {
		return ExerciseMatch{}, err
	}
	if err := c.Set(ctx, query, match); err != nil {
		logger.FromContext(ctx).Warn("Exercise match cache write failed", "error", err)
	}
	return match, nil
}

// --------------------
// User context
// --------------------

// UserContextCache caches per-user training state by user id. It cannot
// detect staleness on its own: domain code must invalidate it on every
// state-changing event.
type UserContextCache struct {
	domain
}

func (c *UserContextCache) key(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("%w: empty user id", ErrInvalidKey)
	}
	return c.m.RawKey(DomainUserContext, userID), nil
}

func (c *UserContextCache) Get(ctx context.Context, userID string) (*profile.UserContext, bool, error) {
	key, err := c.key(userID)
	if err != nil {
		return nil, false, err
	}
	var uc profile.UserContext
	hit, err := c.get(ctx, key, &uc)
	if !hit {
		return nil, false, err
	}
	return &uc, true, nil
}

// Set stores uc. A positive ttl overrides the domain default.
func (c *UserContextCache) Set(ctx context.Context, uc *profile.UserContext, ttl time.Duration) error {
	if uc == nil {
		return fmt.Errorf("user context cannot be nil")
	}
	key, err := c.key(uc.UserID)
	if err != nil {
		return err
	}
	return c.set(ctx, key, uc, ttl)
}

func (c *UserContextCache) Invalidate(ctx context.Context, userID string) error {
	key, err := c.key(userID)
	if err != nil {
		return err
	}
	return c.delete(ctx, key)
}

// GetOrLoad returns the cached context or loads and stores it.
func (c *UserContextCache) GetOrLoad(
	ctx context.Context,
	userID string,
	load func(context.Context, string) (*profile.UserContext, error),
) (*profile.UserContext, error) {
	key, err := c.key(userID)
	if err != nil {
		return nil, err
	}
	uc, err := GetOrSet(ctx, c.m, key, c.ttl, func(ctx context.Context) (*profile.UserContext, error) {
		return load(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return uc, nil
}

// --------------------
// AI response
// --------------------

// AIQuery identifies a generated response. Personalized queries are keyed by
// user so one user's answer is never served to another.
type AIQuery struct {
	Endpoint     string
	Text         string
	UserID       string
	Personalized bool
}

type AIResponse struct {
	Content string            `json:"content"`
	Model   string            `json:"model,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type AIResponseCache struct {
	domain
}

// Key returns the cache key for q, or ErrTenantRequired for a personalized
// query without a user id.
func (c *AIResponseCache) Key(q AIQuery) (string, error) {
	text := strings.TrimSpace(q.Text)
	if !q.Personalized {
		return c.m.Key(DomainAIResponse, q.Endpoint, text), nil
	}
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return "", ErrTenantRequired
	}
	return c.m.Key(DomainAIResponse, q.Endpoint, userID, text), nil
}

func (c *AIResponseCache) Get(ctx context.Context, q AIQuery) (*AIResponse, bool, error) {
	key, err := c.Key(q)
	if err != nil {
		return nil, false, err
	}
	var resp AIResponse
	hit, err := c.get(ctx, key, &resp)
	if !hit {
		return nil, false, err
	}
	return &resp, true, nil
}

func (c *AIResponseCache) Set(ctx context.Context, q AIQuery, resp *AIResponse) error {
	key, err := c.Key(q)
	if err != nil {
		return err
	}
	return c.set(ctx, key, resp, 0)
}

// --------------------
// RAG context
// --------------------

// RAGContextCache stores assembled retrieval contexts keyed by endpoint and
// the retrieval-relevant request fields.
type RAGContextCache struct {
	domain
}

// Key hashes endpoint, the extracted key fields and the profile fingerprint.
func (c *RAGContextCache) Key(endpoint string, fields map[string]any, profileFingerprint string) string {
	return c.m.Key(DomainRAGContext, endpoint, fields, profileFingerprint)
}

func (c *RAGContextCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	return c.get(ctx, key, dest)
}

// Set stores value. A non-positive ttl falls back to the domain default.
func (c *RAGContextCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.set(ctx, key, value, ttl)
}

func (c *RAGContextCache) TTL() time.Duration {
	return c.ttl
}

// --------------------
// Bundle
// --------------------

// StateEvent names a user state change that invalidates cached context.
type StateEvent string

const (
	EventActivityLogged    StateEvent = "activity_logged"
	EventConditionReported StateEvent = "condition_reported"
	EventPlanChanged       StateEvent = "plan_changed"
)

func (e StateEvent) Valid() bool {
	switch e {
	case EventActivityLogged, EventConditionReported, EventPlanChanged:
		return true
	}
	return false
}

// Caches bundles the four domains over one Manager.
type Caches struct {
	ExerciseMatch *ExerciseMatchCache
	UserContext   *UserContextCache
	AIResponse    *AIResponseCache
	RAGContext    *RAGContextCache
}

func NewCaches(m *Manager, cfg *config.CacheConfig) (*Caches, error) {
	if m == nil {
		return nil, fmt.Errorf("cache manager cannot be nil")
	}
	if cfg == nil {
		def := config.Default().Cache
		cfg = &def
	}
	exercise := &ExerciseMatchCache{domain: domain{name: DomainExerciseMatch, m: m, ttl: cfg.ExerciseMatchTTL}}
	if cfg.LocalSize > 0 {
		exercise.local = expirable.NewLRU[string, ExerciseMatch](cfg.LocalSize, nil, cfg.ExerciseMatchTTL)
	}
	return &Caches{
		ExerciseMatch: exercise,
		UserContext:   &UserContextCache{domain: domain{name: DomainUserContext, m: m, ttl: cfg.UserContextTTL}},
		AIResponse:    &AIResponseCache{domain: domain{name: DomainAIResponse, m: m, ttl: cfg.AIResponseTTL}},
		RAGContext:    &RAGContextCache{domain: domain{name: DomainRAGContext, m: m, ttl: cfg.RAGContextTTL}},
	}, nil
}

// InvalidateUserContext drops the cached context of userID.
func (c *Caches) InvalidateUserContext(ctx context.Context, userID string) error {
	return c.UserContext.Invalidate(ctx, userID)
}

// OnStateChange is the hook domain handlers call after persisting a state
// change for userID.
func (c *Caches) OnStateChange(ctx context.Context, userID string, event StateEvent) error {
	if !event.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	logger.FromContext(ctx).Debug("Invalidating user context", "user_id", userID, "event", event)
	return c.InvalidateUserContext(ctx, userID)
}
