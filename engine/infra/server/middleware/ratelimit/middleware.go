// Package ratelimit wires the tiered limiter into gin.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/auth/identity"
	limiter "github.com/liftwise/coachgate/engine/ratelimit"
	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderTier       = "X-RateLimit-Tier"
	HeaderDegraded   = "X-RateLimit-Degraded"
	HeaderRetryAfter = "Retry-After"

	valueUnlimited = "unlimited"
	valueUnknown   = "unknown"
)

// Checker is the limiter contract used by the middleware.
type Checker interface {
	Check(ctx context.Context, tenantID, tierName, path string) (*limiter.Decision, error)
}

// ErrorResponse is the 429 body.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int64  `json:"retry_after"`
	Tier       string `json:"tier"`
	Endpoint   string `json:"endpoint"`
	Remaining  int64  `json:"remaining"`
}

type Middleware struct {
	checker       Checker
	enabled       bool
	exempt        []string
	anonymousTier string
}

func New(checker Checker, cfg *config.RateLimitConfig) (*Middleware, error) {
	if checker == nil {
		return nil, fmt.Errorf("rate limit checker cannot be nil")
	}
	if cfg == nil {
		def := config.Default().RateLimit
		cfg = &def
	}
	return &Middleware{
		checker:       checker,
		enabled:       cfg.Enabled,
		exempt:        cfg.ExemptPaths,
		anonymousTier: cfg.AnonymousTier,
	}, nil
}

// IsExempt reports whether path skips rate limiting. `/` matches only
// itself; other entries also cover their sub-paths.
func (m *Middleware) IsExempt(path string) bool {
	for _, p := range m.exempt {
		if p == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if limiter.MatchSegmentPrefix(path, strings.TrimSuffix(p, "/")) {
			return true
		}
	}
	return false
}

// Handler resolves the caller identity, stores it on the request context
// and counts the request before the next handler runs. Requests are counted
// even if the client disconnects later. The limiter failing never blocks a
// request.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		id, idErr := identity.FromRequest(c.Request, c.ClientIP())
		ctx := identity.WithIdentity(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		if !m.enabled || m.IsExempt(path) {
			c.Next()
			return
		}
		log := logger.FromContext(ctx)
		if idErr != nil && !errors.Is(idErr, identity.ErrMissingToken) {
			log.Debug("Unusable bearer token, applying the anonymous tier", "client_ip", id.ClientIP, "error", idErr)
		}
		tierName := id.Tier
		if id.Anonymous {
			tierName = m.anonymousTier
		}
		d, err := m.checker.Check(ctx, id.TenantID, tierName, path)
		if err != nil {
			if d == nil || !d.Degraded {
				log.Error("Rate limit check failed", "error", err, "path", path)
				c.Next()
				return
			}
			log.Warn("Rate limit store unavailable, failing open",
				"tenant", id.TenantID, "tier", d.Tier, "class", d.Class, "error", err)
			writeDegradedHeaders(c, d)
			c.Next()
			return
		}
		if d.Unlimited {
			c.Header(HeaderLimit, valueUnlimited)
			c.Header(HeaderRemaining, valueUnlimited)
			c.Header(HeaderTier, d.Tier)
			c.Next()
			return
		}
		writeHeaders(c, d)
		if !d.Allowed {
			reject(c, d, path)
			return
		}
		c.Next()
	}
}

func writeHeaders(c *gin.Context, d *limiter.Decision) {
	c.Header(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	c.Header(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
	c.Header(HeaderTier, d.Tier)
	if !d.ResetsAt.IsZero() {
		c.Header(HeaderReset, strconv.FormatInt(d.ResetsAt.Unix(), 10))
	}
}

func writeDegradedHeaders(c *gin.Context, d *limiter.Decision) {
	c.Header(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	c.Header(HeaderRemaining, valueUnknown)
	c.Header(HeaderTier, d.Tier)
	c.Header(HeaderDegraded, "true")
}

func reject(c *gin.Context, d *limiter.Decision, path string) {
	route := c.FullPath()
	if route == "" {
		route = path
	}
	IncrementBlockedRequests(c.Request.Context(), route, d.Tier, string(d.Class))
	c.Header(HeaderRetryAfter, strconv.FormatInt(d.RetryAfter, 10))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
		Error: "rate_limit_exceeded",
		Message: fmt.Sprintf(
			"Rate limit of %d requests per %s exceeded for the %s tier. Retry in %d seconds.",
			d.Limit, windowName(d), d.Tier, d.RetryAfter,
		),
		RetryAfter: d.RetryAfter,
		Tier:       d.Tier,
		Endpoint:   path,
		Remaining:  d.Remaining,
	})
}

func windowName(d *limiter.Decision) string {
	if d.Class == limiter.ClassExpensive {
		return "minute"
	}
	return "hour"
}
