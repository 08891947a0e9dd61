// Package config loads and validates application configuration from Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/coursepulse/ingest/internal/domain"
	"github.com/coursepulse/ingest/internal/logger"
)

// Default configuration values.
const (
	DefaultBaseURL        = "https://www.inflearn.com"
	DefaultCategory       = "it-programming"
	DefaultMaxItems       = 20
	DefaultMaxPages       = 50
	DefaultWorkers        = 4
	DefaultParallelism    = 2
	MaxParallelism        = 4
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultRunTimeout     = 10 * time.Minute
	DefaultOutputDir      = "output"
	DefaultUserAgent      = "CoursePulse-Ingest/1.0"
)

// AppConfig describes the application itself.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// StoreConfig holds the shared course store connection settings.
// ServiceKey is privileged: it must never be logged or written to artifacts.
type StoreConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
}

// SourceConfig describes the external course-listing source.
type SourceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	Category  string `mapstructure:"category"`
	UserAgent string `mapstructure:"user_agent"`
}

// FetcherConfig bounds the fetcher's network behavior.
type FetcherConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Parallelism    int           `mapstructure:"parallelism"`
	MaxPages       int           `mapstructure:"max_pages"`
}

// PipelineConfig bounds a single ingestion run.
type PipelineConfig struct {
	MaxItems   int           `mapstructure:"max_items"`
	Workers    int           `mapstructure:"workers"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	OutputDir  string        `mapstructure:"output_dir"`
	Headless   bool          `mapstructure:"headless"`
}

// Config is the root configuration for the course ingestion CLI.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logger   logger.Config  `mapstructure:"logger"`
	Store    StoreConfig    `mapstructure:"store"`
	Source   SourceConfig   `mapstructure:"source"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// Load unmarshals the global Viper state into a validated Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, &domain.FatalConfigError{Err: fmt.Errorf("failed to unmarshal configuration: %w", err)}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills unset (zero-value) fields that have sensible defaults.
// Explicitly supplied values are left alone, even invalid ones: Validate
// rejects those instead of papering over them.
func (c *Config) applyDefaults() {
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	if c.Source.Category == "" {
		c.Source.Category = DefaultCategory
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = DefaultUserAgent
	}
	if c.Fetcher.RequestTimeout == 0 {
		c.Fetcher.RequestTimeout = DefaultRequestTimeout
	}
	if c.Fetcher.MaxRetries == 0 {
		c.Fetcher.MaxRetries = DefaultMaxRetries
	}
	if c.Fetcher.RetryDelay == 0 {
		c.Fetcher.RetryDelay = DefaultRetryDelay
	}
	if c.Fetcher.Parallelism == 0 {
		c.Fetcher.Parallelism = DefaultParallelism
	}
	if c.Fetcher.MaxPages == 0 {
		c.Fetcher.MaxPages = DefaultMaxPages
	}
	if c.Pipeline.MaxItems == 0 {
		c.Pipeline.MaxItems = DefaultMaxItems
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = DefaultWorkers
	}
	if c.Pipeline.RunTimeout == 0 {
		c.Pipeline.RunTimeout = DefaultRunTimeout
	}
	if c.Pipeline.OutputDir == "" {
		c.Pipeline.OutputDir = DefaultOutputDir
	}
}

// Validate checks the configuration. Violations are FatalConfigErrors: the
// run must abort before any fetch begins.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return &domain.FatalConfigError{Err: errors.New("store URL is required (set STORE_URL)")}
	}
	if c.Store.ServiceKey == "" {
		return &domain.FatalConfigError{Err: errors.New("store service key is required (set STORE_SERVICE_KEY)")}
	}
	if c.Source.Category == "" {
		return &domain.FatalConfigError{Err: errors.New("target category must not be empty")}
	}
	if c.Pipeline.MaxItems <= 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("max items must be positive, got %d", c.Pipeline.MaxItems)}
	}
	if c.Pipeline.Workers <= 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("workers must be positive, got %d", c.Pipeline.Workers)}
	}
	if c.Pipeline.RunTimeout < 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("run timeout must not be negative, got %s", c.Pipeline.RunTimeout)}
	}
	if c.Fetcher.Parallelism <= 0 || c.Fetcher.Parallelism > MaxParallelism {
		return &domain.FatalConfigError{Err: fmt.Errorf(
			"fetch parallelism must be between 1 and %d, got %d", MaxParallelism, c.Fetcher.Parallelism)}
	}
	if c.Fetcher.MaxPages <= 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("max pages must be positive, got %d", c.Fetcher.MaxPages)}
	}
	if c.Fetcher.MaxRetries < 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("max retries must not be negative, got %d", c.Fetcher.MaxRetries)}
	}
	if c.Fetcher.RetryDelay < 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("retry delay must not be negative, got %s", c.Fetcher.RetryDelay)}
	}
	if c.Fetcher.RequestTimeout < 0 {
		return &domain.FatalConfigError{Err: fmt.Errorf("request timeout must not be negative, got %s", c.Fetcher.RequestTimeout)}
	}
	return nil
}
