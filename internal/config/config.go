//-------------------------------------------------------------------------
//
// martload: retail sales warehouse loader
//
// Copyright (c) 2025 - 2026, the martload authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for martload.
// Configuration is loaded from an optional .env file, a YAML config file,
// and CLI flags. CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for martload.
type Config struct {
	// Connection is the PostgreSQL connection string for the warehouse.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Load holds configuration for the load subcommand.
	Load LoadConfig `mapstructure:"load"`

	// Run holds configuration for the run subcommand.
	Run RunConfig `mapstructure:"run"`

	// Sample holds configuration for the sample subcommand.
	Sample SampleConfig `mapstructure:"sample"`
}

// LoadConfig holds configuration for loading a single extract.
type LoadConfig struct {
	// Source is the path of the CSV extract to load.
	Source string `mapstructure:"source"`

	// Currency is the fallback currency code for rows that omit one.
	Currency string `mapstructure:"currency"`

	// Reload deletes a batch's facts and loads it again even if committed.
	Reload bool `mapstructure:"reload"`

	// DryRun loads into an in-memory store instead of the warehouse.
	DryRun bool `mapstructure:"dry_run"`
}

// RunConfig holds configuration for the interval scheduler.
type RunConfig struct {
	// Source is a file path or glob of CSV extracts to scan each tick.
	Source string `mapstructure:"source"`

	// Interval is how often to rescan the source, in minutes.
	Interval int `mapstructure:"interval"`

	// MetricsAddr exposes Prometheus metrics when set (e.g., ":9187").
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// SampleConfig holds configuration for synthetic extract generation.
type SampleConfig struct {
	// Rows is the number of sales lines to generate.
	Rows int `mapstructure:"rows"`

	// Output is the path of the CSV file to write.
	Output string `mapstructure:"output"`

	// Seed makes generation reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`

	// BadRate is the fraction of rows generated malformed (0.0 - 1.0),
	// useful for exercising the reject path.
	BadRate float64 `mapstructure:"bad_rate"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Load: LoadConfig{
			Currency: "USD",
		},
		Run: RunConfig{
			Interval: 60,
		},
		Sample: SampleConfig{
			Rows:   1000,
			Output: "sales_extract.csv",
		},
	}
}

// Load reads configuration from .env and config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./martload.yaml
// 3. ~/.config/martload/config.yaml
func Load(configFile string) (*Config, error) {
	// .env support mirrors the warehouse's legacy deployment scripts;
	// missing files are fine.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("martload")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "martload"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Connection == "" {
		cfg.Connection = connectionFromEnv()
	}

	return cfg, nil
}

// connectionFromEnv assembles a connection string from DB_* environment
// variables, the convention the previous generation of the pipeline used.
func connectionFromEnv() string {
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}

	user := envOr("DB_USER", "postgres")
	port := envOr("DB_PORT", "5432")
	name := envOr("DB_NAME", "retail_dw")

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, password, host, port, name)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s", user, host, port, name)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidateLoad checks configuration required for the load command.
func (c *Config) ValidateLoad() error {
	if c.Load.Source == "" {
		return fmt.Errorf("source extract path is required")
	}
	if !c.Load.DryRun {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	if c.Load.Reload && c.Load.DryRun {
		return fmt.Errorf("reload and dry-run are mutually exclusive")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Run.Source == "" {
		return fmt.Errorf("source path or glob is required")
	}
	if c.Run.Interval < 1 {
		return fmt.Errorf("interval must be at least 1 minute")
	}
	return nil
}

// ValidateSample checks configuration required for the sample command.
func (c *Config) ValidateSample() error {
	if c.Sample.Rows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}
	if c.Sample.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if c.Sample.BadRate < 0 || c.Sample.BadRate > 1 {
		return fmt.Errorf("bad_rate must be between 0.0 and 1.0")
	}
	return nil
}
