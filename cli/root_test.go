package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/liftwise/coachgate/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupGlobalConfig(t *testing.T) {
	t.Run("Should layer the YAML file, then flags, and inject the config", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "coachgate.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("server:\n  port: 9091\nlog:\n  level: warn\n"), 0o600))

		cmd := RootCmd()
		require.NoError(t, cmd.PersistentFlags().Set(flagEnvFile, ""))
		require.NoError(t, cmd.PersistentFlags().Set(flagConfig, cfgPath))
		require.NoError(t, cmd.PersistentFlags().Set(flagLogLevel, "error"))

		require.NoError(t, cmd.ParseFlags(nil))

		cfg, err := SetupGlobalConfig(cmd, map[string]any{"server.host": "127.0.0.1"})
		require.NoError(t, err)
		assert.Equal(t, 9091, cfg.Server.Port)
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, "error", cfg.Log.Level)
		assert.Same(t, cfg, config.FromContext(cmd.Context()))
	})

	t.Run("Should fail on an invalid file", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("redis:\n  mode: clustered\n"), 0o600))
		cmd := RootCmd()
		require.NoError(t, cmd.PersistentFlags().Set(flagEnvFile, ""))
		require.NoError(t, cmd.PersistentFlags().Set(flagConfig, cfgPath))
		require.NoError(t, cmd.ParseFlags(nil))
		_, err := SetupGlobalConfig(cmd, nil)
		require.Error(t, err)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("Should ignore a missing file", func(t *testing.T) {
		path, err := loadEnvFile(filepath.Join(t.TempDir(), ".env"))
		require.NoError(t, err)
		assert.NotEmpty(t, path)
	})

	t.Run("Should load variables from the file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("COACHGATE_TEST_ENV_VALUE=hello\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("COACHGATE_TEST_ENV_VALUE") })
		_, err := loadEnvFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", os.Getenv("COACHGATE_TEST_ENV_VALUE"))
	})

	t.Run("Should reject a directory", func(t *testing.T) {
		_, err := loadEnvFile(t.TempDir())
		require.Error(t, err)
	})
}

func TestServeOverrides(t *testing.T) {
	t.Run("Should map only changed flags", func(t *testing.T) {
		cmd := ServeCmd()
		require.NoError(t, cmd.Flags().Set(flagPort, "7070"))
		require.NoError(t, cmd.Flags().Set(flagRedisMode, "distributed"))
		assert.Equal(t, map[string]any{"server.port": 7070, "redis.mode": "distributed"}, serveOverrides(cmd))
	})
}

func TestVersionCmd(t *testing.T) {
	t.Run("Should print the build version", func(t *testing.T) {
		cmd := VersionCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "coachgate ")
	})
}
