// Package config loads the process configuration from a YAML file and
// applies defaults for anything left unset.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "config.yaml"

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`   // HTTP listener.
	Database DatabaseConfig `yaml:"database"` // Persistence backend.
	Redis    RedisConfig    `yaml:"redis"`    // Optional shared quota cache.
	Security SecurityConfig `yaml:"security"` // Credential sealing.
	Quota    QuotaConfig    `yaml:"quota"`    // Quota projection tuning.
	Logging  LoggingConfig  `yaml:"logging"`  // Log output and rotation.
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, host:port.
}

// DatabaseConfig holds the persistence settings. The DSN scheme selects
// the dialect: postgres:// for PostgreSQL, anything else is treated as a
// SQLite path.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Connection string or SQLite file path.
}

// RedisConfig holds the optional Redis cache settings. An empty address
// disables Redis and quota projections fall back to a per-process cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`     // host:port; empty disables Redis.
	Password string `yaml:"password"` // Optional password.
	DB       int    `yaml:"db"`       // Logical database index.
}

// SecurityConfig holds credential sealing settings.
type SecurityConfig struct {
	// SealingKey is the hex-encoded 32-byte key protecting provider
	// credentials at rest. When empty a random per-process key is
	// generated; sealed values then do not survive a restart.
	SealingKey string `yaml:"sealing_key"`
}

// QuotaConfig tunes the quota projection cache.
type QuotaConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"` // Projection lifetime; 30s when zero.
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`       // logrus level; info when empty.
	File       string `yaml:"file"`        // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max_size"`    // Rotate after this many megabytes.
	MaxBackups int    `yaml:"max_backups"` // Rotated files to retain.
	MaxAgeDays int    `yaml:"max_age"`     // Days to retain rotated files.
	Compress   bool   `yaml:"compress"`    // Gzip rotated files.
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8317"},
		Database: DatabaseConfig{DSN: "governd.db"},
		Quota:    QuotaConfig{CacheTTL: 30 * time.Second},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}

	raw, errRead := os.ReadFile(path)
	if os.IsNotExist(errRead) {
		return cfg, nil
	}
	if errRead != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	if errDecode := yaml.Unmarshal(raw, &cfg); errDecode != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8317"
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = "governd.db"
	}
	if cfg.Quota.CacheTTL <= 0 {
		cfg.Quota.CacheTTL = 30 * time.Second
	}
	return cfg, nil
}
