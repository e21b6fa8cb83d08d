// Package config loads service settings from an optional .env file, an optional
// YAML file named by CONFIG_FILE, and the process environment, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the service.
type Config struct {
	DatabaseURL      string        `yaml:"database_url"`
	DBMaxConns       int           `yaml:"db_max_conns"`
	RedisURL         string        `yaml:"redis_url"`
	Port             string        `yaml:"port"`
	MigrationsDir    string        `yaml:"migrations_dir"`
	LogLevel         string        `yaml:"log_level"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	RateLimit        int           `yaml:"rate_limit_per_minute"`
	JobQueueSize     int           `yaml:"job_queue_size"`
	JobTimeout       time.Duration `yaml:"job_timeout"`
	JobRetention     time.Duration `yaml:"job_retention"`
	JobSweepSchedule string        `yaml:"job_sweep_schedule"`
	BatchMaxItems    int           `yaml:"batch_max_items"`
}

// Defaults returns the configuration used when nothing overrides a key.
func Defaults() Config {
	return Config{
		Port:             "8080",
		MigrationsDir:    "migrations",
		LogLevel:         "info",
		CacheTTL:         5 * time.Minute,
		RateLimit:        120,
		JobQueueSize:     64,
		JobTimeout:       5 * time.Minute,
		JobRetention:     time.Hour,
		JobSweepSchedule: "@every 10m",
		BatchMaxItems:    1000,
	}
}

// Load builds the Config. A missing .env file is not an error; a CONFIG_FILE that
// cannot be read or parsed is.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.Port, "PORT")
	setString(&cfg.MigrationsDir, "MIGRATIONS_DIR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.JobSweepSchedule, "JOB_SWEEP_SCHEDULE")

	for key, dst := range map[string]*time.Duration{
		"CACHE_TTL":     &cfg.CacheTTL,
		"JOB_TIMEOUT":   &cfg.JobTimeout,
		"JOB_RETENTION": &cfg.JobRetention,
	} {
		if err := setDuration(dst, key); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*int{
		"RATE_LIMIT_PER_MINUTE": &cfg.RateLimit,
		"JOB_QUEUE_SIZE":        &cfg.JobQueueSize,
		"BATCH_MAX_ITEMS":       &cfg.BatchMaxItems,
		"DB_MAX_CONNS":          &cfg.DBMaxConns,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", key, err)
	}
	*dst = n
	return nil
}

func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required configuration missing: %s", strings.Join(missing, ", "))
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit)
	}
	if c.JobQueueSize < 1 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive, got %d", c.JobQueueSize)
	}
	if c.BatchMaxItems < 1 {
		return fmt.Errorf("BATCH_MAX_ITEMS must be positive, got %d", c.BatchMaxItems)
	}
	if c.DBMaxConns < 0 || c.DBMaxConns > math.MaxInt32 {
		return fmt.Errorf("DB_MAX_CONNS must be between 0 and %d, got %d", math.MaxInt32, c.DBMaxConns)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
