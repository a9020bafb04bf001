package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/auth/identity"
	"github.com/liftwise/coachgate/engine/cache"
	"github.com/liftwise/coachgate/engine/infra/server/appstate"
	"github.com/liftwise/coachgate/engine/infra/server/router"
	"github.com/liftwise/coachgate/engine/knowledge/rag"
	"github.com/liftwise/coachgate/engine/profile"
	"github.com/liftwise/coachgate/pkg/logger"
)

func registerAPIRoutes(api *gin.RouterGroup) {
	api.POST("/rag/context", handleRAGContext)
	api.POST("/users/:user_id/events", handleStateEvent)
	api.PUT("/users/:user_id/context", handlePutUserContext)
	api.GET("/ratelimit/me", handleRateLimitMe)
}

func stateOrAbort(c *gin.Context) (*appstate.State, bool) {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode,
			router.ErrMsgAppStateNotInitialized)
		return nil, false
	}
	return state, true
}

// ContextRequest previews the retrieval context an AI endpoint would receive.
type ContextRequest struct {
	Endpoint        string               `json:"endpoint"          binding:"required"`
	Request         json.RawMessage      `json:"request"`
	UserContext     *profile.UserContext `json:"user_context"`
	MaxChunks       int                  `json:"max_chunks"        binding:"gte=0,lte=64"`
	UseCache        *bool                `json:"use_cache"`
	CacheTTLSeconds int                  `json:"cache_ttl_seconds" binding:"gte=0"`
	Format          rag.Format           `json:"format"`
}

func handleRAGContext(c *gin.Context) {
	state, ok := stateOrAbort(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var body ContextRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
		return
	}
	user := resolveUserContext(c, state, body.UserContext)
	useCache := body.UseCache == nil || *body.UseCache
	res, err := state.Orchestrator.GetContext(ctx, rag.Request{
		EndpointPath: body.Endpoint,
		Raw:          body.Request,
		User:         user,
		MaxChunks:    body.MaxChunks,
		UseCache:     useCache,
		CacheTTL:     time.Duration(body.CacheTTLSeconds) * time.Second,
		Format:       body.Format,
	})
	if err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res, "message": "Success"})
}

// resolveUserContext prefers an inline context and caches it for the caller.
// Without one it consults the user-context cache for identified callers.
func resolveUserContext(c *gin.Context, state *appstate.State, inline *profile.UserContext) *profile.UserContext {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	id, _ := identity.FromContext(ctx)
	if inline != nil {
		if inline.UserID == "" && id != nil && !id.Anonymous {
			inline.UserID = id.TenantID
		}
		if inline.UserID != "" {
			if err := state.Caches.UserContext.Set(ctx, inline, 0); err != nil {
				log.Warn("Failed to cache user context", "user_id", inline.UserID, "error", err)
			}
		}
		return inline
	}
	if id == nil || id.Anonymous {
		return nil
	}
	uc, hit, err := state.Caches.UserContext.Get(ctx, id.TenantID)
	if err != nil {
		log.Warn("User context lookup failed", "user_id", id.TenantID, "error", err)
		return nil
	}
	if !hit {
		return nil
	}
	return uc
}

type stateEventRequest struct {
	Event cache.StateEvent `json:"event" binding:"required"`
}

func handleStateEvent(c *gin.Context) {
	state, ok := stateOrAbort(c)
	if !ok {
		return
	}
	userID := strings.TrimSpace(c.Param("user_id"))
	var body stateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
		return
	}
	err := state.Caches.OnStateChange(c.Request.Context(), userID, body.Event)
	switch {
	case errors.Is(err, cache.ErrUnknownEvent):
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrInvalidEventCode, err.Error())
		return
	case errors.Is(err, cache.ErrInvalidKey):
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrBadRequestCode, err.Error())
		return
	case err != nil:
		router.RespondProblemWithCode(c, http.StatusServiceUnavailable, router.ErrServiceUnavailableCode, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"data":    gin.H{"user_id": userID, "event": body.Event, "invalidated": true},
		"message": "Success",
	})
}

func handlePutUserContext(c *gin.Context) {
	state, ok := stateOrAbort(c)
	if !ok {
		return
	}
	userID := strings.TrimSpace(c.Param("user_id"))
	var uc profile.UserContext
	if err := c.ShouldBindJSON(&uc); err != nil {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrInvalidUserContextCode, err.Error())
		return
	}
	if uc.UserID != "" && uc.UserID != userID {
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrInvalidUserContextCode,
			"user_id in body does not match path")
		return
	}
	uc.UserID = userID
	if uc.UpdatedAt.IsZero() {
		uc.UpdatedAt = time.Now().UTC()
	}
	err := state.Caches.UserContext.Set(c.Request.Context(), &uc, 0)
	switch {
	case errors.Is(err, cache.ErrInvalidKey):
		router.RespondProblemWithCode(c, http.StatusBadRequest, router.ErrInvalidUserContextCode, err.Error())
		return
	case err != nil:
		router.RespondProblemWithCode(c, http.StatusServiceUnavailable, router.ErrServiceUnavailableCode, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": uc, "message": "Success"})
}

func handleRateLimitMe(c *gin.Context) {
	state, ok := stateOrAbort(c)
	if !ok {
		return
	}
	id, found := identity.FromContext(c.Request.Context())
	if !found {
		id = identity.Anonymous(c.ClientIP())
	}
	tier := state.Limiter.Tiers().Resolve(id.Tier)
	if id.Anonymous {
		tier = state.Limiter.Tiers().Anonymous()
	}
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"tenant_id":    id.TenantID,
			"anonymous":    id.Anonymous,
			"claimed_tier": id.Tier,
			"tier":         tier.Name,
			"limits": gin.H{
				"default_per_hour":     tier.DefaultPerHour,
				"expensive_per_minute": tier.ExpensivePerMinute,
				"unlimited":            tier.Unlimited,
			},
		},
		"message": "Success",
	})
}
