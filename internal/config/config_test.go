package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"job-dedup-go/internal/dedup"
)

func validConfig() *Config {
	c := DefaultConfig()
	c.Database.Driver = DriverMemory
	return c
}

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Dedup, c.Dedup)
	assert.Equal(t, DriverSupabase, c.Database.Driver)
	assert.Equal(t, 30*time.Minute, c.Lock.TTL)
	assert.Equal(t, 90.0, c.Quality.SourceReliability["linkedin"])
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobdedup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  sqlite_path: /tmp/dedup.db
dedup:
  thresholds:
    high: 90
  workers: 2
lock:
  backend: file
  ttl: 5m
scheduler:
  spec: "@every 1h"
`), 0o644))

	t.Setenv("JOBDEDUP_DEDUP_BATCH_SIZE", "25")
	t.Setenv("SUPABASE_URL", "https://demo.supabase.co")
	t.Setenv("SUPABASE_KEY", "service-key")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	c, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, c.Database.Driver)
	assert.Equal(t, "/tmp/dedup.db", c.Database.SQLitePath)
	assert.Equal(t, 90.0, c.Dedup.Thresholds.High)
	assert.Equal(t, 70.0, c.Dedup.Thresholds.Medium)
	assert.Equal(t, 2, c.Dedup.Workers)
	assert.Equal(t, 25, c.Dedup.BatchSize)
	assert.Equal(t, LockFile, c.Lock.Backend)
	assert.Equal(t, 5*time.Minute, c.Lock.TTL)
	assert.Equal(t, "@every 1h", c.Scheduler.Spec)
	assert.Equal(t, "https://demo.supabase.co", c.Database.SupabaseURL)
	assert.Equal(t, "redis://localhost:6379/0", c.Redis.URL)

	key, err := c.SupabaseKey()
	require.NoError(t, err)
	assert.Equal(t, "service-key", key)

	require.NoError(t, c.Validate())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"cfg.yaml", "cfg.json"} {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			c.Dedup.BatchSize = 42
			c.Lock.TTL = 90 * time.Second

			path := filepath.Join(t.TempDir(), "nested", name)
			require.NoError(t, c.SaveConfig(path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, 42, loaded.Dedup.BatchSize)
			assert.Equal(t, 90*time.Second, loaded.Lock.TTL)
			assert.Equal(t, DriverMemory, loaded.Database.Driver)
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"weights", func(c *Config) { c.Dedup.Weights.Title = 0.5 }, "weights"},
		{"thresholds", func(c *Config) { c.Dedup.Thresholds.Low = 80 }, "thresholds"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }, "Config.Database.Driver"},
		{"log level", func(c *Config) { c.Monitoring.LogLevel = "loud" }, "Config.Monitoring.LogLevel"},
		{"reliability range", func(c *Config) { c.Quality.SourceReliability["manual"] = 120 }, "Config.Quality.SourceReliability[manual]"},
		{"supabase url", func(c *Config) { c.Database.Driver = DriverSupabase }, "database.supabase_url"},
		{"postgres url", func(c *Config) { c.Database.Driver = DriverPostgres }, "database.postgres_url"},
		{"redis lock without url", func(c *Config) { c.Lock.Backend = LockRedis }, "redis.url"},
		{"events without url", func(c *Config) { c.Events.Enabled = true }, "redis.url"},
		{"cron spec", func(c *Config) { c.Scheduler.Spec = "sometimes" }, "scheduler.spec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			var cfgErr *dedup.ConfigError
			require.True(t, errors.As(c.Validate(), &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestScorerOptions(t *testing.T) {
	c := validConfig()
	c.Quality.SourceReliability = map[string]float64{"JSearch": 60}
	c.Quality.DefaultReliability = 40

	assert.Len(t, c.ScorerOptions(), 1)
}
