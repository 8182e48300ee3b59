package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	req.NoError(err)
	req.Equal(path, resolved)
	req.Equal(Default(), cfg)

	data, err := os.ReadFile(path)
	req.NoError(err)
	req.Contains(string(data), "eviction_timeout: 2s")
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	req.NoError(os.WriteFile(path, []byte(
		"addr: \":9000\"\n"+
			"eviction_timeout: 750ms\n"+
			"history_limit: 10\n"+
			"metrics_enabled: false\n",
	), 0o600))

	t.Setenv("ICHAT_HISTORY_LIMIT", "25")
	t.Setenv("ICHAT_JWT_SECRET", "from-env")

	cfg, _, err := Load(nil, path)
	req.NoError(err)
	req.Equal(":9000", cfg.Addr)
	req.Equal(750*time.Millisecond, cfg.EvictionTimeout)
	req.Equal(25, cfg.HistoryLimit)
	req.Equal("from-env", cfg.JWTSecret)
	req.False(cfg.MetricsEnabled)
	req.Equal(Default().ClientBuffer, cfg.ClientBuffer)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jwt_secret: \"\"\n"), 0o600))

	_, _, err := Load(nil, path)
	require.Error(t, err)
}

func TestUpdateFromKeepsZeroFields(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", LogLevel: "debug"})

	require.Equal(t, ":1234", cfg.Addr)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, Default().DatabasePath, cfg.DatabasePath)
}
