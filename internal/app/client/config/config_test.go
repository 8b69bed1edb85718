package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultEnv, cfg.Env)
	assert.Equal(t, defaultServerAddress, cfg.ServerAddress)
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, "token"), cfg.TokenPath)
	assert.Equal(t, filepath.Join(dir, "data.db"), cfg.DataPath)
	assert.Equal(t, filepath.Join(dir, "hammer.log"), cfg.LogPath)
	assert.True(t, cfg.AutoCloseSyncLog)
	assert.Equal(t, defaultWatchDebounce, cfg.WatchDebounce)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.True(t, cfg.IsLocal())
}

func TestLoad_Env(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SERVER_ADDRESS", "sync.example.com")
	t.Setenv("ENABLE_TLS", "true")
	t.Setenv("USER_ID", "42")
	t.Setenv("AUTO_CLOSE_SYNC_LOG", "false")
	t.Setenv("WATCH_DEBOUNCE", "500ms")
	t.Setenv("DATA_PATH", filepath.Join(dir, "custom.db"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "https://sync.example.com", cfg.BaseURL())
	assert.Equal(t, 42, cfg.UserID)
	assert.False(t, cfg.AutoCloseSyncLog)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, filepath.Join(dir, "custom.db"), cfg.DataPath)
}

func TestLoad_InvalidDebounce(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("WATCH_DEBOUNCE", "0s")

	_, err := Load()
	assert.Error(t, err)
}
