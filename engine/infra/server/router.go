package server

import (
	"fmt"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/infra/monitoring"
	"github.com/liftwise/coachgate/engine/infra/server/appstate"
	"github.com/liftwise/coachgate/engine/infra/server/middleware/ratelimit"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/mattn/go-isatty"
)

func (s *Server) buildRouter(state *appstate.State) error {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware(logger.FromContext(s.ctx)))
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware(s.ctx))
	}
	r.Use(LoggerMiddleware())
	r.Use(appstate.StateMiddleware(state))
	limitMiddleware, err := ratelimit.New(state.Limiter, &state.Config.RateLimit)
	if err != nil {
		return fmt.Errorf("failed to initialize rate limiting: %w", err)
	}
	r.Use(limitMiddleware.Handler())
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.GET(s.monitoring.Path(), gin.WrapH(s.monitoring.ExporterHandler()))
	}
	if err := RegisterRoutes(s.ctx, r, state); err != nil {
		return err
	}
	s.router = r
	return nil
}

func (s *Server) logStartupBanner() {
	log := logger.FromContext(s.ctx)
	fh := friendlyHost(s.cfg.Server.Host)
	httpURL := fmt.Sprintf("http://%s:%d", fh, s.cfg.Server.Port)
	lines := []string{
		fmt.Sprintf("coachgate %s", monitoring.Version),
		fmt.Sprintf("  API           > %s%s", httpURL, apiBase),
		fmt.Sprintf("  Health        > %s/health", httpURL),
		fmt.Sprintf("  Ready         > %s/ready", httpURL),
		fmt.Sprintf("  Docs          > %s/docs", httpURL),
	}
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		lines = append(lines, fmt.Sprintf("  Metrics       > %s%s", httpURL, s.monitoring.Path()))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		logo := figure.NewFigure("coachgate", "standard", true).String()
		lines = append([]string{strings.TrimRight(logo, "\n")}, lines...)
	}
	log.Info("\n" + strings.Join(lines, "\n"))
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
