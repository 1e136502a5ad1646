package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fanout-ai/fanout/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all fanout configuration.
type Config struct {
	DBPath            string           `yaml:"db_path"`
	MaxConcurrency    int              `yaml:"max_concurrency"`
	RequestsPerSecond float64          `yaml:"requests_per_second"`
	MaxRetries        int              `yaml:"max_retries"`
	Retry             RetryConfig      `yaml:"retry"`
	Pool              PoolConfig       `yaml:"pool"`
	Cache             CacheConfig      `yaml:"cache"`
	Providers         []ProviderConfig `yaml:"providers"`
	Routes            []RouteConfig    `yaml:"routes"`
}

// RetryConfig controls backoff between transient-failure retries.
type RetryConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

// PoolConfig controls the backing-store handle pool.
type PoolConfig struct {
	Size           int           `yaml:"size"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// CacheConfig controls the semantic cache.
type CacheConfig struct {
	Enabled             bool    `yaml:"enabled"`
	MaxEntries          int     `yaml:"max_entries"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// ProviderConfig defines an upstream inference provider.
// Type is "openai" (default) or "anthropic". Costs are USD per 1M tokens;
// zero means the per-type default applies.
type ProviderConfig struct {
	Name            string  `yaml:"name"`
	URL             string  `yaml:"url"`
	APIKey          string  `yaml:"api_key"`
	Type            string  `yaml:"type"`
	DefaultModel    string  `yaml:"default_model"`
	InputCostPer1M  float64 `yaml:"input_cost_per_1m"`
	OutputCostPer1M float64 `yaml:"output_cost_per_1m"`
}

// RouteConfig maps a task classification to an ordered list of targets.
type RouteConfig struct {
	Task    models.TaskType `yaml:"task"`
	Targets []RouteTarget   `yaml:"targets"`
}

// RouteTarget identifies a specific provider and model in a fallback chain.
type RouteTarget struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:            "fanout.db",
		MaxConcurrency:    5,
		RequestsPerSecond: 5.0,
		MaxRetries:        2,
		Retry: RetryConfig{
			BaseDelay: 250 * time.Millisecond,
			MaxDelay:  4 * time.Second,
		},
		Pool: PoolConfig{
			Size:           5,
			AcquireTimeout: 2 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:             true,
			MaxEntries:          500,
			SimilarityThreshold: 0.86,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be > 0, got %v", c.RequestsPerSecond)
	}
	if c.Pool.Size < 1 {
		return fmt.Errorf("pool size must be >= 1, got %d", c.Pool.Size)
	}
	return nil
}
