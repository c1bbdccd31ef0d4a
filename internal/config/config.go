package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/kv"
	"github.com/jonesrussell/docspasta/internal/logger"
)

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// Validate checks the server section.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("server address is required")
	}

	return nil
}

// CrawlConfig holds the server-side crawl limits: the caps requested job
// options may not exceed and the per-invocation wall-clock limit.
type CrawlConfig struct {
	MaxPagesCap     int           `mapstructure:"max_pages_cap" yaml:"max_pages_cap"`
	MaxDepthCap     int           `mapstructure:"max_depth_cap" yaml:"max_depth_cap"`
	MaxWorkersCap   int           `mapstructure:"max_workers_cap" yaml:"max_workers_cap"`
	InvocationLimit time.Duration `mapstructure:"invocation_limit" yaml:"invocation_limit"`
}

// Validate checks the crawl section.
func (c *CrawlConfig) Validate() error {
	if c.MaxPagesCap < 1 || c.MaxDepthCap < 0 || c.MaxWorkersCap < 1 {
		return errors.New("crawl caps must be positive")
	}

	if c.InvocationLimit <= 0 {
		return errors.New("invocation limit must be positive")
	}

	return nil
}

// Caps returns the option caps applied to incoming job requests.
func (c *CrawlConfig) Caps() domain.OptionCaps {
	return domain.OptionCaps{
		MaxPages:   c.MaxPagesCap,
		MaxDepth:   c.MaxDepthCap,
		MaxWorkers: c.MaxWorkersCap,
	}
}

// Config is the root application configuration.
type Config struct {
	Server ServerConfig  `mapstructure:"server" yaml:"server"`
	Redis  kv.Config     `mapstructure:"redis" yaml:"redis"`
	Crawl  CrawlConfig   `mapstructure:"crawl" yaml:"crawl"`
	Logger logger.Config `mapstructure:"logger" yaml:"logger"`
}

// Load unmarshals the configuration viper assembled in Init and validates
// every section.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if c.Redis.Address == "" {
		return fmt.Errorf("redis config: %w", kv.ErrEmptyAddress)
	}

	if err := c.Crawl.Validate(); err != nil {
		return fmt.Errorf("crawl config: %w", err)
	}

	return nil
}
