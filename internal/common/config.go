// Package common provides shared utilities for FundHub
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for FundHub
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Jobs        JobsConfig     `toml:"jobs"`
	Ingest      IngestConfig   `toml:"ingest"`
	Holdings    HoldingsConfig `toml:"holdings"`
	Clients     ClientsConfig  `toml:"clients"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// JobsConfig holds job subsystem tuning.
type JobsConfig struct {
	WorkerConcurrency int    `toml:"worker_concurrency"`
	LeaseTTL          string `toml:"lease_ttl"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	RecoveryInterval  string `toml:"recovery_interval"`
}

// GetLeaseTTL parses and returns the lease duration
func (c *JobsConfig) GetLeaseTTL() time.Duration {
	d, err := time.ParseDuration(c.LeaseTTL)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// GetHeartbeatInterval parses and returns the heartbeat cadence
func (c *JobsConfig) GetHeartbeatInterval() time.Duration {
	d, err := time.ParseDuration(c.HeartbeatInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRecoveryInterval parses and returns the recovery sweep cadence
func (c *JobsConfig) GetRecoveryInterval() time.Duration {
	d, err := time.ParseDuration(c.RecoveryInterval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// IngestConfig holds workbook ingestion configuration. HeaderSynonyms maps
// lowercased sheet headers to canonical field names (name, isin,
// percentage) and extends the built-in dictionary.
type IngestConfig struct {
	MaxSyncFileSizeMB int               `toml:"max_sync_file_size_mb"`
	HeaderSynonyms    map[string]string `toml:"header_synonyms"`
}

// HoldingsConfig holds ETF holdings fetch configuration.
type HoldingsConfig struct {
	FreshnessTTL string `toml:"freshness_ttl"`
}

// GetFreshnessTTL parses and returns the snapshot freshness window
func (c *HoldingsConfig) GetFreshnessTTL() time.Duration {
	d, err := time.ParseDuration(c.FreshnessTTL)
	if err != nil {
		return FreshnessHoldings
	}
	return d
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Moneycontrol MoneycontrolConfig `toml:"moneycontrol"`
	Gemini       GeminiConfig       `toml:"gemini"`
}

// MoneycontrolConfig holds upstream holdings provider configuration
type MoneycontrolConfig struct {
	BaseURL     string `toml:"base_url"`
	MinInterval string `toml:"min_interval"`
	Timeout     string `toml:"timeout"`
}

// GetMinInterval parses and returns the minimum gap between upstream calls
func (c *MoneycontrolConfig) GetMinInterval() time.Duration {
	d, err := time.ParseDuration(c.MinInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// GetTimeout parses and returns the per-call timeout
func (c *MoneycontrolConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"`
	Outputs    []string `toml:"outputs"`
	FilePath   string   `toml:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "fundhub",
			Database:  "fundhub",
			Username:  "root",
			Password:  "root",
		},
		Jobs: JobsConfig{
			WorkerConcurrency: 5,
			LeaseTTL:          "90s",
			HeartbeatInterval: "30s",
			RecoveryInterval:  "60s",
		},
		Ingest: IngestConfig{
			MaxSyncFileSizeMB: 10,
		},
		Holdings: HoldingsConfig{
			FreshnessTTL: "24h",
		},
		Clients: ClientsConfig{
			Moneycontrol: MoneycontrolConfig{
				BaseURL:     "https://mf.moneycontrol.com",
				MinInterval: "1s",
				Timeout:     "30s",
			},
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/fundhub.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Jobs.WorkerConcurrency < 1 {
		config.Jobs.WorkerConcurrency = 1
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FUNDHUB_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FUNDHUB_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FUNDHUB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FUNDHUB_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("FUNDHUB_SURREALDB_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if ns := os.Getenv("FUNDHUB_SURREALDB_NAMESPACE"); ns != "" {
		config.Storage.Namespace = ns
	}
	if db := os.Getenv("FUNDHUB_SURREALDB_DATABASE"); db != "" {
		config.Storage.Database = db
	}
	if user := os.Getenv("FUNDHUB_SURREALDB_USERNAME"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("FUNDHUB_SURREALDB_PASSWORD"); pass != "" {
		config.Storage.Password = pass
	}

	if n := os.Getenv("FUNDHUB_WORKER_CONCURRENCY"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Jobs.WorkerConcurrency = v
		}
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	} else if v := os.Getenv("FUNDHUB_GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
