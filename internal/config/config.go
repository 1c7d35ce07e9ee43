package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"job-dedup-go/internal/dedup"
	"job-dedup-go/internal/quality"
	"job-dedup-go/internal/scheduler"
	"job-dedup-go/internal/secrets"
)

// EnvPrefix prefixes every environment override, e.g. JOBDEDUP_DEDUP_BATCH_SIZE.
const EnvPrefix = "JOBDEDUP"

// Store drivers
const (
	DriverSupabase = "supabase"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Lock backends
const (
	LockRedis = "redis"
	LockFile  = "file"
	LockLocal = "local"
)

// Config holds the application configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database" json:"database" yaml:"database"`
	Redis      RedisConfig      `mapstructure:"redis" json:"redis" yaml:"redis"`
	Dedup      dedup.Options    `mapstructure:"dedup" json:"dedup" yaml:"dedup"`
	Quality    QualityConfig    `mapstructure:"quality" json:"quality" yaml:"quality"`
	Lock       LockConfig       `mapstructure:"lock" json:"lock" yaml:"lock"`
	Events     EventsConfig     `mapstructure:"events" json:"events" yaml:"events"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" json:"scheduler" yaml:"scheduler"`
	Monitoring MonitoringConfig `mapstructure:"monitoring" json:"monitoring" yaml:"monitoring"`
}

// DatabaseConfig selects and configures the store
type DatabaseConfig struct {
	Driver      string      `mapstructure:"driver" json:"driver" yaml:"driver" validate:"oneof=supabase postgres sqlite memory"`
	SupabaseURL string      `mapstructure:"supabase_url" json:"supabase_url" yaml:"supabase_url"`
	SupabaseKey secrets.Ref `mapstructure:"supabase_key" json:"supabase_key" yaml:"supabase_key"`
	PostgresURL string      `mapstructure:"postgres_url" json:"postgres_url" yaml:"postgres_url"`
	SQLitePath  string      `mapstructure:"sqlite_path" json:"sqlite_path" yaml:"sqlite_path"`
	// Migrate creates missing tables on startup (postgres, sqlite).
	Migrate bool `mapstructure:"migrate" json:"migrate" yaml:"migrate"`
}

// RedisConfig is shared by the redis lock and the event publisher
type RedisConfig struct {
	URL string `mapstructure:"url" json:"url" yaml:"url"`
}

// QualityConfig holds quality scoring configuration
type QualityConfig struct {
	SourceReliability  map[string]float64 `mapstructure:"source_reliability" json:"source_reliability" yaml:"source_reliability" validate:"dive,gte=0,lte=100"`
	DefaultReliability float64            `mapstructure:"default_reliability" json:"default_reliability" yaml:"default_reliability" validate:"gte=0,lte=100"`
}

// LockConfig holds run mutual exclusion configuration
type LockConfig struct {
	Backend string        `mapstructure:"backend" json:"backend" yaml:"backend" validate:"oneof=redis file local"`
	Dir     string        `mapstructure:"dir" json:"dir" yaml:"dir"`
	TTL     time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl" validate:"gte=0"`
	Prefix  string        `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

// EventsConfig holds completion event configuration
type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Channel string `mapstructure:"channel" json:"channel" yaml:"channel"`
}

// SchedulerConfig holds periodic detection configuration
type SchedulerConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Spec    string `mapstructure:"spec" json:"spec" yaml:"spec"`
	Scope   string `mapstructure:"scope" json:"scope" yaml:"scope" validate:"required"`
}

// MonitoringConfig holds logging and metrics configuration
type MonitoringConfig struct {
	MetricsInterval time.Duration `mapstructure:"metrics_interval" json:"metrics_interval" yaml:"metrics_interval" validate:"gte=0"`
	LogLevel        string        `mapstructure:"log_level" json:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
	JSON            bool          `mapstructure:"json" json:"json" yaml:"json"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:     DriverSupabase,
			SQLitePath: "data/jobdedup.db",
			Migrate:    true,
		},
		Dedup: dedup.DefaultOptions(),
		Quality: QualityConfig{
			SourceReliability:  quality.DefaultReliabilityTable(),
			DefaultReliability: quality.DefaultReliability,
		},
		Lock: LockConfig{
			Backend: LockLocal,
			Dir:     os.TempDir(),
			TTL:     30 * time.Minute,
			Prefix:  "jobdedup:lock:",
		},
		Events: EventsConfig{
			Enabled: false,
			Channel: "DEDUP_COMPLETED",
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Spec:    scheduler.DefaultSpec,
			Scope:   "all",
		},
		Monitoring: MonitoringConfig{
			MetricsInterval: 1 * time.Minute,
			LogLevel:        "info",
		},
	}
}

// legacyEnv maps config keys to the environment variables the scraper
// deployment already sets.
var legacyEnv = map[string]string{
	"database.supabase_url":       "SUPABASE_URL",
	"database.supabase_key.value": "SUPABASE_KEY",
	"database.postgres_url":       "DATABASE_URL",
	"redis.url":                   "REDIS_URL",
}

// LoadConfig loads configuration from a YAML or JSON file layered over the
// defaults, then applies environment overrides. A missing file is not an error.
func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			v.SetConfigFile(filename)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("database.driver", c.Database.Driver)
	v.SetDefault("database.supabase_url", c.Database.SupabaseURL)
	v.SetDefault("database.supabase_key.value", c.Database.SupabaseKey.Value)
	v.SetDefault("database.supabase_key.file", c.Database.SupabaseKey.File)
	v.SetDefault("database.supabase_key.keyring_account", c.Database.SupabaseKey.KeyringAccount)
	v.SetDefault("database.postgres_url", c.Database.PostgresURL)
	v.SetDefault("database.sqlite_path", c.Database.SQLitePath)
	v.SetDefault("database.migrate", c.Database.Migrate)

	v.SetDefault("redis.url", c.Redis.URL)

	v.SetDefault("dedup.weights.title", c.Dedup.Weights.Title)
	v.SetDefault("dedup.weights.company", c.Dedup.Weights.Company)
	v.SetDefault("dedup.weights.location", c.Dedup.Weights.Location)
	v.SetDefault("dedup.weights.description", c.Dedup.Weights.Description)
	v.SetDefault("dedup.thresholds.high", c.Dedup.Thresholds.High)
	v.SetDefault("dedup.thresholds.medium", c.Dedup.Thresholds.Medium)
	v.SetDefault("dedup.thresholds.low", c.Dedup.Thresholds.Low)
	v.SetDefault("dedup.batch_size", c.Dedup.BatchSize)
	v.SetDefault("dedup.workers", c.Dedup.Workers)
	v.SetDefault("dedup.writes_per_second", c.Dedup.WritesPerSecond)

	v.SetDefault("quality.source_reliability", c.Quality.SourceReliability)
	v.SetDefault("quality.default_reliability", c.Quality.DefaultReliability)

	v.SetDefault("lock.backend", c.Lock.Backend)
	v.SetDefault("lock.dir", c.Lock.Dir)
	v.SetDefault("lock.ttl", c.Lock.TTL)
	v.SetDefault("lock.prefix", c.Lock.Prefix)

	v.SetDefault("events.enabled", c.Events.Enabled)
	v.SetDefault("events.channel", c.Events.Channel)

	v.SetDefault("scheduler.enabled", c.Scheduler.Enabled)
	v.SetDefault("scheduler.spec", c.Scheduler.Spec)
	v.SetDefault("scheduler.scope", c.Scheduler.Scope)

	v.SetDefault("monitoring.metrics_interval", c.Monitoring.MetricsInterval)
	v.SetDefault("monitoring.log_level", c.Monitoring.LogLevel)
	v.SetDefault("monitoring.json", c.Monitoring.JSON)
}

// SaveConfig saves configuration to a file. .yaml and .yml files are written
// as YAML, everything else as JSON.
func (c *Config) SaveConfig(filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		encoder := yaml.NewEncoder(file)
		encoder.SetIndent(2)
		if err := encoder.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		return encoder.Close()
	default:
		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	}

	return nil
}

// Validate validates the configuration. Every failure is a *dedup.ConfigError.
func (c *Config) Validate() error {
	if err := c.Dedup.Validate(); err != nil {
		return err
	}

	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &dedup.ConfigError{
				Field:   fe.Namespace(),
				Message: fmt.Sprintf("failed %q check", fe.Tag()),
				Cause:   err,
			}
		}
		return &dedup.ConfigError{Field: "config", Message: "invalid configuration", Cause: err}
	}

	switch c.Database.Driver {
	case DriverSupabase:
		if c.Database.SupabaseURL == "" {
			return &dedup.ConfigError{Field: "database.supabase_url", Message: "supabase URL is required"}
		}
		if c.Database.SupabaseKey.IsZero() {
			return &dedup.ConfigError{Field: "database.supabase_key", Message: "supabase key is required"}
		}
	case DriverPostgres:
		if c.Database.PostgresURL == "" {
			return &dedup.ConfigError{Field: "database.postgres_url", Message: "postgres URL is required"}
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return &dedup.ConfigError{Field: "database.sqlite_path", Message: "sqlite path is required"}
		}
	}

	if (c.Lock.Backend == LockRedis || c.Events.Enabled) && c.Redis.URL == "" {
		return &dedup.ConfigError{Field: "redis.url", Message: "redis URL is required by the redis lock and events"}
	}
	if c.Lock.Backend == LockFile && c.Lock.Dir == "" {
		return &dedup.ConfigError{Field: "lock.dir", Message: "lock directory is required"}
	}

	if c.Scheduler.Enabled {
		if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
			return &dedup.ConfigError{Field: "scheduler.spec", Message: "invalid cron spec", Cause: err}
		}
	}

	return nil
}

// SupabaseKey resolves the configured Supabase key.
func (c *Config) SupabaseKey() (string, error) {
	return secrets.Resolve(c.Database.SupabaseKey)
}

// ScorerOptions builds the quality scorer options from the config.
func (c *Config) ScorerOptions() []quality.Option {
	return []quality.Option{
		quality.WithReliabilityTable(c.Quality.SourceReliability, c.Quality.DefaultReliability),
	}
}
