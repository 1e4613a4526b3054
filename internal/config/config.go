// Package config loads application configuration from an optional YAML file
// with ESG_* environment overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the effective application configuration. Nothing here is a
// secret: tokens and keys are resolved separately through internal/secrets.
type Config struct {
	// Storage.
	StorageAccount string `yaml:"storage_account"`
	StorageURL     string `yaml:"storage_url"`
	Container      string `yaml:"container"`

	// Carbon Optimization API.
	CarbonURL string `yaml:"carbon_url"`

	// Pipeline limits.
	BatchSize     int `yaml:"batch_size"`
	MaxFileSizeMB int `yaml:"max_file_size_mb"`

	// Batch execution.
	Workers      int     `yaml:"workers"`
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// Schema directory for category overrides; built-ins apply when empty
	// or when a category file is absent.
	SchemaDir string `yaml:"schema_dir"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Container:     "esg-data",
		BatchSize:     1000,
		MaxFileSizeMB: 100,
		Workers:       4,
		RateLimitRPS:  0,
		LogLevel:      "info",
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Fall through to env-only configuration.
		case err != nil:
			return Config{}, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv("ESG_STORAGE_ACCOUNT")); v != "" {
		c.StorageAccount = v
	}
	if v := strings.TrimSpace(os.Getenv("ESG_STORAGE_URL")); v != "" {
		c.StorageURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ESG_CONTAINER")); v != "" {
		c.Container = v
	}
	if v := strings.TrimSpace(os.Getenv("ESG_CARBON_URL")); v != "" {
		c.CarbonURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ESG_SCHEMA_DIR")); v != "" {
		c.SchemaDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ESG_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}

	var err error
	if c.BatchSize, err = envInt("ESG_BATCH_SIZE", c.BatchSize); err != nil {
		return err
	}
	if c.MaxFileSizeMB, err = envInt("ESG_MAX_FILE_SIZE_MB", c.MaxFileSizeMB); err != nil {
		return err
	}
	if c.Workers, err = envInt("ESG_WORKERS", c.Workers); err != nil {
		return err
	}
	if c.RateLimitRPS, err = envFloat("ESG_RATE_LIMIT_RPS", c.RateLimitRPS); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive (got %d)", c.BatchSize)
	}
	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max_file_size_mb must be positive (got %d)", c.MaxFileSizeMB)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive (got %d)", c.Workers)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must be non-negative (got %v)", c.RateLimitRPS)
	}
	return nil
}

// AccountURL returns the storage endpoint: StorageURL verbatim when set,
// otherwise derived from the account name.
func (c Config) AccountURL() string {
	if strings.TrimSpace(c.StorageURL) != "" {
		return strings.TrimSpace(c.StorageURL)
	}
	if strings.TrimSpace(c.StorageAccount) != "" {
		return fmt.Sprintf("https://%s.blob.core.windows.net", strings.TrimSpace(c.StorageAccount))
	}
	return ""
}

// MaxFileBytes converts the size limit to bytes for the loader.
func (c Config) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}

func envFloat(varName string, fallback float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
