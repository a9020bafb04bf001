// Package ratelimit enforces per-tenant quotas with fixed-window counters
// held in the shared store.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
)

const (
	defaultPrefix       = "coachgate:ratelimit:"
	defaultStoreTimeout = 50 * time.Millisecond
	anonymousTenant     = "anonymous"
)

// Counter is the atomic counter contract. infra/cache.RedisAdapter
// implements it with a single INCR+PEXPIRE script.
type Counter interface {
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	Unlimited  bool
	Degraded   bool
	Limit      int64
	Remaining  int64
	RetryAfter int64
	Tier       string
	Class      Class
	Window     time.Duration
	ResetsAt   time.Time
}

// Err returns ErrQuotaExceeded for a rejected decision.
func (d *Decision) Err() error {
	if d == nil || d.Allowed {
		return nil
	}
	return ErrQuotaExceeded
}

type Limiter struct {
	counter    Counter
	tiers      *Tiers
	classifier *Classifier
	prefix     string
	timeout    time.Duration
	now        func() time.Time
}

type Option func(*Limiter)

// WithClock replaces time.Now for bucket computation.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func NewLimiter(counter Counter, cfg *config.RateLimitConfig, opts ...Option) (*Limiter, error) {
	if counter == nil {
		return nil, fmt.Errorf("rate limit counter cannot be nil")
	}
	if cfg == nil {
		def := config.Default().RateLimit
		cfg = &def
	}
	tiers, err := NewTiers(cfg.Tiers, cfg.AnonymousTier)
	if err != nil {
		return nil, err
	}
	l := &Limiter{
		counter:    counter,
		tiers:      tiers,
		classifier: NewClassifier(cfg.ExpensiveEndpoints),
		prefix:     cfg.Prefix,
		timeout:    cfg.StoreTimeout,
		now:        time.Now,
	}
	if l.prefix == "" {
		l.prefix = defaultPrefix
	}
	if l.timeout <= 0 {
		l.timeout = defaultStoreTimeout
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Limiter) Tiers() *Tiers {
	return l.tiers
}

func (l *Limiter) Classify(path string) Class {
	return l.classifier.Classify(path)
}

// BucketKey returns the counter key for tenant and class at now.
func (l *Limiter) BucketKey(tenantID string, class Class, window time.Duration, now time.Time) string {
	bucket := now.Unix() / int64(window/time.Second)
	var b strings.Builder
	b.WriteString(l.prefix)
	b.WriteString(tenantID)
	b.WriteByte(':')
	b.WriteString(string(class))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(bucket, 10))
	return b.String()
}

// Check counts one request for tenantID against its tier's limit for the
// class of path. On a store fault it returns a degraded, allowed decision
// together with a wrapped ErrStoreUnavailable.
func (l *Limiter) Check(ctx context.Context, tenantID, tierName, path string) (*Decision, error) {
	tier := l.tiers.Resolve(tierName)
	class := l.classifier.Classify(path)
	if tier.Unlimited {
		recordDecision(ctx, tier.Name, class, outcomeUnlimited)
		return &Decision{Allowed: true, Unlimited: true, Tier: tier.Name, Class: class}, nil
	}
	if strings.TrimSpace(tenantID) == "" {
		tenantID = anonymousTenant
	}
	limit, window := tier.Limit(class)
	now := l.now()
	key := l.BucketKey(tenantID, class, window, now)

	opCtx, cancel := context.WithTimeout(ctx, l.timeout)
	count, ttl, err := l.counter.IncrementWithExpiry(opCtx, key, window)
	cancel()
	if err != nil {
		recordDecision(ctx, tier.Name, class, outcomeDegraded)
		return &Decision{
			Allowed:  true,
			Degraded: true,
			Limit:    limit,
			Tier:     tier.Name,
			Class:    class,
			Window:   window,
		}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	wait := untilReset(now, window, ttl)
	d := &Decision{
		Allowed:  count <= limit,
		Limit:    limit,
		Tier:     tier.Name,
		Class:    class,
		Window:   window,
		ResetsAt: now.Add(wait),
	}
	if d.Allowed {
		d.Remaining = limit - count
		recordDecision(ctx, tier.Name, class, outcomeAllowed)
		logger.FromContext(ctx).Debug("Rate limit check passed",
			"tenant", tenantID, "tier", tier.Name, "class", class, "remaining", d.Remaining)
		return d, nil
	}
	d.RetryAfter = retryAfterSeconds(wait, window)
	recordDecision(ctx, tier.Name, class, outcomeRejected)
	logger.FromContext(ctx).Debug("Rate limit exceeded",
		"tenant", tenantID, "tier", tier.Name, "class", class, "count", count, "limit", limit)
	return d, nil
}

// untilReset is the shorter of the key's remaining lifetime and the time to
// the end of the current bucket.
func untilReset(now time.Time, window, ttl time.Duration) time.Duration {
	w := int64(window / time.Second)
	end := time.Unix((now.Unix()/w+1)*w, 0)
	toEnd := end.Sub(now)
	if ttl > 0 && ttl < toEnd {
		return ttl
	}
	return toEnd
}

// retryAfterSeconds rounds wait up to whole seconds within [1, window].
func retryAfterSeconds(wait, window time.Duration) int64 {
	secs := int64(math.Ceil(wait.Seconds()))
	maxSecs := int64(window / time.Second)
	if secs < 1 {
		return 1
	}
	if secs > maxSecs {
		return maxSecs
	}
	return secs
}
