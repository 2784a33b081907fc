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
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.App.Store)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_PostgresWhenDatabaseConfigured(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/progress?sslmode=disable")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("REDIS_LOCK_MAX_WAIT", "2s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.App.Store)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 2*time.Second, cfg.Redis.LockMaxWait)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=9191\nLOG_FORMAT=console\n"), 0o600))

	// Process environment wins over the file.
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("HTTP_PORT")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.HTTP.Port)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := &Config{
		App:           AppConfig{Store: StorePostgres},
		Database:      DatabaseConfig{MaxConns: 0, ConnectAttempts: 0},
		HTTP:          HTTPConfig{Port: 0},
		Events:        EventsConfig{Workers: 1, RetryAttempts: 1},
		Redis:         RedisConfig{Disabled: true},
		Observability: ObservabilityConfig{LogLevel: "loud", LogFormat: "json"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"required for the postgres store",
		"DB_MAX_CONNS",
		"DB_CONNECT_ATTEMPTS",
		"HTTP_PORT",
		"LOG_LEVEL",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_MemoryStoreRejectedInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "memory")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "not allowed in production")
}
