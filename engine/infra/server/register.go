package server

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/infra/monitoring"
	"github.com/liftwise/coachgate/engine/infra/server/appstate"
	"github.com/liftwise/coachgate/engine/infra/server/middleware/size"
	"github.com/liftwise/coachgate/pkg/logger"
)

const apiBase = "/api/v1"

func RegisterRoutes(ctx context.Context, router *gin.Engine, state *appstate.State) error {
	setupDiagnosticEndpoints(router, monitoring.Version, apiBase, state)
	api := router.Group(apiBase)
	api.Use(size.BodySizeLimiter(size.DefaultLimit))
	registerAPIRoutes(api)
	setupDocs(router)
	logger.FromContext(ctx).Info("Completed route registration", "routes", len(router.Routes()))
	return nil
}
