package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:26657", cfg.RPCURL)
	assert.Equal(t, "qie_1990-1", cfg.ChainID)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.Equal(t, 8*time.Second, cfg.MaxDelay)
	assert.Equal(t, 0.25, cfg.Jitter)
	assert.Equal(t, 60, cfg.SyncMaxPolls)
	assert.Equal(t, 5*time.Second, cfg.SyncPollInterval)
	assert.False(t, cfg.RedisEnvConfig.Enabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("NODE_RPC_URL", "http://10.0.0.5:26657")
	t.Setenv("RETRY_MAX_ATTEMPTS", "6")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("SYNC_POLL_INTERVAL", "1s")
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:26657", cfg.RPCURL)
	assert.Equal(t, 6, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, time.Second, cfg.SyncPollInterval)
	assert.True(t, cfg.RedisEnvConfig.Enabled())
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("NODE_RPC_TIMEOUT", "soon")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestNewIntervalConfig(t *testing.T) {
	assert.Same(t, DevIntervalConfig, NewIntervalConfig("dev"))
	assert.Same(t, TestIntervalConfig, NewIntervalConfig("TEST"))
	assert.Same(t, ProdIntervalConfig, NewIntervalConfig("prod"))
	assert.Same(t, DevIntervalConfig, NewIntervalConfig("staging"))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".qieMainnetNode"), ExpandHome("~/.qieMainnetNode"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/var/lib/qie", ExpandHome("/var/lib/qie"))
}
