package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/liftwise/coachgate/engine/infra/server"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	flagHost      = "host"
	flagPort      = "port"
	flagRedisMode = "redis-mode"
	flagRedisURL  = "redis-url"
	flagBackend   = "knowledge-backend"
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		RunE:  runServe,
	}
	flags := cmd.Flags()
	flags.String(flagHost, "", "Interface to listen on")
	flags.Int(flagPort, 0, "Port to listen on")
	flags.String(flagRedisMode, "", "Store mode: standalone or distributed")
	flags.String(flagRedisURL, "", "Redis URL for distributed mode")
	flags.String(flagBackend, "", "Knowledge backend: memory or http")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := SetupGlobalConfig(cmd, serveOverrides(cmd))
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if logger.ParseLevel(cfg.Log.Level) != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := server.NewServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	if err := srv.Run(); err != nil {
		logger.FromContext(ctx).Error("Server stopped with error", "error", err)
		return err
	}
	return nil
}

// serveOverrides maps explicitly set flags to configuration paths.
func serveOverrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	flags := cmd.Flags()
	strFlags := map[string]string{
		flagHost:      "server.host",
		flagRedisMode: "redis.mode",
		flagRedisURL:  "redis.url",
		flagBackend:   "knowledge.backend",
	}
	for flag, path := range strFlags {
		if !flags.Changed(flag) {
			continue
		}
		if v, err := flags.GetString(flag); err == nil {
			out[path] = v
		}
	}
	if flags.Changed(flagPort) {
		if v, err := flags.GetInt(flagPort); err == nil {
			out["server.port"] = v
		}
	}
	return out
}
