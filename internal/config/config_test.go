package config_test

import (
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/destinations/internal/config"
)

var allKeys = []string{
	"CONFIG_FILE", "DATABASE_URL", "REDIS_URL", "PORT", "MIGRATIONS_DIR", "LOG_LEVEL",
	"CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "JOB_QUEUE_SIZE", "JOB_TIMEOUT", "JOB_RETENTION",
	"JOB_SWEEP_SCHEDULE", "BATCH_MAX_ITEMS", "DB_MAX_CONNS",
}

// clearEnv blanks every key Load reads; empty values are treated as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/destinations")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/destinations", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, 64, cfg.JobQueueSize)
	assert.Equal(t, 5*time.Minute, cfg.JobTimeout)
	assert.Equal(t, time.Hour, cfg.JobRetention)
	assert.Equal(t, "@every 10m", cfg.JobSweepSchedule)
	assert.Equal(t, 1000, cfg.BatchMaxItems)
	assert.Equal(t, 0, cfg.DBMaxConns)
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")
	t.Setenv("BATCH_MAX_ITEMS", "5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 10, cfg.RateLimit)
	assert.Equal(t, 5, cfg.BatchMaxItems)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"JOB_TIMEOUT":           "soon",
		"JOB_QUEUE_SIZE":        "many",
		"RATE_LIMIT_PER_MINUTE": "0",
		"LOG_LEVEL":             "chatty",
		"DB_MAX_CONNS":          "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			setRequired(t)
			t.Setenv(key, val)

			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_DBMaxConnsBounds(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	t.Setenv("DB_MAX_CONNS", "2147483647")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, cfg.DBMaxConns)

	t.Setenv("DB_MAX_CONNS", "2147483648")
	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_MAX_CONNS")
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_url: postgres://file/db
redis_url: redis://file:6379
port: "7070"
cache_ttl: 2m
job_queue_size: 8
job_sweep_schedule: "@every 1m"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "6060")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://file/db", cfg.DatabaseURL)
	assert.Equal(t, "redis://file:6379", cfg.RedisURL)
	assert.Equal(t, "6060", cfg.Port, "environment must win over the file")
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 8, cfg.JobQueueSize)
	assert.Equal(t, "@every 1m", cfg.JobSweepSchedule)
	assert.Equal(t, 1000, cfg.BatchMaxItems, "unset keys keep their defaults")
}

func TestLoad_YAMLFileErrors(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading config file")
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))
		t.Setenv("CONFIG_FILE", path)
		_, err := config.Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing config file")
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := config.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := config.ParseLevel("loud")
	require.Error(t, err)
}
