package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Cache drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Config represents the global ~/.tgsift/config.toml.
type Config struct {
	DefaultProfile string       `toml:"default_profile" env:"TGSIFT_PROFILE"`
	LogLevel       string       `toml:"log_level"       env:"TGSIFT_LOG_LEVEL"`
	Cache          CacheConfig  `toml:"cache"`
	Sync           SyncConfig   `toml:"sync"`
	Remote         RemoteConfig `toml:"remote"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Driver      string `toml:"driver"       env:"TGSIFT_CACHE_DRIVER"`
	PostgresURL string `toml:"postgres_url" env:"TGSIFT_CACHE_POSTGRES_URL"`
}

// SyncConfig tunes cache reconciliation.
type SyncConfig struct {
	DialogTTL      time.Duration `toml:"dialog_ttl"       env:"TGSIFT_SYNC_DIALOG_TTL"`
	DefaultLimit   int           `toml:"default_limit"    env:"TGSIFT_SYNC_DEFAULT_LIMIT"`
	Oversample     int           `toml:"oversample"       env:"TGSIFT_SYNC_OVERSAMPLE"`
	TopicScanDepth int           `toml:"topic_scan_depth" env:"TGSIFT_SYNC_TOPIC_SCAN_DEPTH"`
}

// RemoteConfig locates the remote source.
type RemoteConfig struct {
	ExportPath string `toml:"export_path" env:"TGSIFT_REMOTE_EXPORT_PATH"`
	MaxRetries int    `toml:"max_retries" env:"TGSIFT_REMOTE_MAX_RETRIES"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Cache:    CacheConfig{Driver: DriverSQLite},
		Sync: SyncConfig{
			DialogTTL:      10 * time.Minute,
			DefaultLimit:   50,
			Oversample:     5,
			TopicScanDepth: 100,
		},
		Remote: RemoteConfig{MaxRetries: 3},
	}
}

// Load reads config from the given path on top of the defaults. Returns an
// error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Effective builds the configuration a process runs with: defaults, then the
// file at path if it exists, then TGSIFT_* environment variables. A non-empty
// dotenv names a .env file whose variables are added to the environment first
// without overriding ones already set.
func Effective(path, dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case DriverSQLite, DriverNone:
	case DriverPostgres:
		if c.Cache.PostgresURL == "" {
			return fmt.Errorf("cache.postgres_url is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown cache.driver %q (want %s, %s or %s)",
			c.Cache.Driver, DriverSQLite, DriverPostgres, DriverNone)
	}
	if c.Sync.DefaultLimit < 0 || c.Sync.Oversample < 0 || c.Sync.TopicScanDepth < 0 || c.Remote.MaxRetries < 0 {
		return fmt.Errorf("sync and remote counts must not be negative")
	}
	return nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
