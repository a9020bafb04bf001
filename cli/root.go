package cli

import (
	"context"
	"fmt"

	"github.com/liftwise/coachgate/pkg/config"
	"github.com/liftwise/coachgate/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	flagConfig    = "config"
	flagEnvFile   = "env-file"
	flagLogLevel  = "log-level"
	flagLogJSON   = "log-json"
	flagLogSource = "log-source"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coachgate",
		Short:         "Tiered rate limiting and retrieval context gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.String(flagConfig, "", "Path to a YAML configuration file")
	flags.String(flagEnvFile, defaultEnvFile, "Path to a .env file loaded before configuration")
	flags.String(flagLogLevel, "", "Log level (debug, info, warn, error, disabled)")
	flags.Bool(flagLogJSON, false, "Emit logs as JSON")
	flags.Bool(flagLogSource, false, "Include source locations in logs")

	root.AddCommand(
		ServeCmd(),
		VersionCmd(),
	)
	return root
}

// SetupGlobalConfig loads the env file and configuration, installs the
// logger and attaches both to the command context.
func SetupGlobalConfig(cmd *cobra.Command, overrides map[string]any) (*config.Config, error) {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", flagEnvFile, err)
	}
	if _, err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	configFile, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s flag: %w", flagConfig, err)
	}
	if overrides == nil {
		overrides = make(map[string]any)
	}
	extractLogFlags(cmd, overrides)
	cfg, err := config.Load(config.WithFile(configFile), config.WithOverrides(overrides))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.SetupLogger(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Source)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)
	log.Debug("Configuration loaded", "config_file", configFile, "env_file", envFile)
	return cfg, nil
}

func extractLogFlags(cmd *cobra.Command, overrides map[string]any) {
	flags := cmd.Flags()
	if flags.Changed(flagLogLevel) {
		if v, err := flags.GetString(flagLogLevel); err == nil {
			overrides["log.level"] = v
		}
	}
	if flags.Changed(flagLogJSON) {
		if v, err := flags.GetBool(flagLogJSON); err == nil {
			overrides["log.json"] = v
		}
	}
	if flags.Changed(flagLogSource) {
		if v, err := flags.GetBool(flagLogSource); err == nil {
			overrides["log.source"] = v
		}
	}
}
