package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for the ledger.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Selection SelectionConfig `yaml:"selection"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Sync      SyncConfig      `yaml:"sync"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ledger"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"l10n_ledger"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json or console
	// Debug forces debug level and console output.
	Debug bool `yaml:"debug" env:"DEBUG" env-default:"false"`
}

// SelectionConfig holds the default pair selection parameters.
type SelectionConfig struct {
	SourceLang     string `yaml:"source_lang" env:"SELECTION_SOURCE_LANG" env-default:"en"`
	TargetLang     string `yaml:"target_lang" env:"SELECTION_TARGET_LANG"`
	ModelID        string `yaml:"model_id" env:"SELECTION_MODEL_ID"`
	MaxSuggestions int    `yaml:"max_suggestions" env:"SELECTION_MAX_SUGGESTIONS" env-default:"1"`
	BatchSize      int    `yaml:"batch_size" env:"SELECTION_BATCH_SIZE" env-default:"10"`
}

// RefreshConfig controls latest index refreshes.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" env:"REFRESH_INTERVAL" env-default:"5m"`
	Timeout  time.Duration `yaml:"timeout" env:"REFRESH_TIMEOUT" env-default:"2m"`
}

// SyncConfig controls the localization folder import.
type SyncConfig struct {
	LocalizationFolder string `yaml:"localization_folder" env:"LOCALIZATION_FOLDER"`
	Concurrency        int    `yaml:"concurrency" env:"SYNC_CONCURRENCY" env-default:"8"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" env:"METRICS_ADDR" env-default:""`
}

// Load reads configuration from path with environment variable overrides.
// A missing file is not an error: configuration then comes from the
// environment and defaults only. The version is injected at build time.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", path, statErr)
	}

	cfg.Version = version

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Selection.MaxSuggestions < 0 {
		return fmt.Errorf("selection.max_suggestions must not be negative, got %d", c.Selection.MaxSuggestions)
	}
	if c.Selection.BatchSize <= 0 {
		return fmt.Errorf("selection.batch_size must be positive, got %d", c.Selection.BatchSize)
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be positive, got %d", c.Sync.Concurrency)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.Timeout < 0 {
		return fmt.Errorf("refresh.timeout must not be negative, got %s", c.Refresh.Timeout)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
