package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE", StorageMemory)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, ":8080", cfg.Server.RunAddress)
	assert.Equal(t, AuthModeSession, cfg.Auth.Mode)
	assert.Equal(t, 30*time.Minute, cfg.Sync.SessionTTL.Duration)
	assert.Equal(t, time.Minute, cfg.Sync.GCInterval.Duration)
	assert.Equal(t, "migrations", cfg.DB.Migrations)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	content := `
env = "dev"
storage = "postgres"

[db]
database_uri = "postgres://file"
max_conns = 20

[server]
run_address = ":9000"
cors_origins = ["https://app.example"]

[sync]
session_ttl = "10m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("DATABASE_URI", "postgres://env")
	t.Setenv("SYNC_SESSION_GC_INTERVAL", "15s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, "postgres://env", cfg.DB.DatabaseURI)
	assert.Equal(t, int32(20), cfg.DB.MaxConns)
	assert.Equal(t, ":9000", cfg.Server.RunAddress)
	assert.Equal(t, []string{"https://app.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10*time.Minute, cfg.Sync.SessionTTL.Duration)
	assert.Equal(t, 15*time.Second, cfg.Sync.GCInterval.Duration)
}

func TestLoad_CORSFromEnv(t *testing.T) {
	t.Setenv("STORAGE", StorageMemory)
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without uri", env: map[string]string{"STORAGE": StoragePostgres}},
		{name: "unknown env", env: map[string]string{"STORAGE": StorageMemory, "APP_ENV": "staging"}},
		{name: "jwt without secret", env: map[string]string{"STORAGE": StorageMemory, "AUTH_MODE": AuthModeJWT}},
		{name: "bad duration", env: map[string]string{"STORAGE": StorageMemory, "TOKEN_TTL": "forever"}},
		{name: "unknown storage", env: map[string]string{"STORAGE": "redis"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
