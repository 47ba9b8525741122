// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Search SearchConfig
}

// SearchConfig bounds and defaults the searches the service runs.
type SearchConfig struct {
	// MaxJobs caps the number of parallel jobs of one search.
	MaxJobs int `env:"SEARCH_MAX_JOBS" envDefault:"8"`
	// MaxIterations caps the total iteration budget of one search. It is the
	// only wall-clock control: evaluations are never preempted.
	MaxIterations int `env:"SEARCH_MAX_ITERATIONS" envDefault:"10000"`
	// MaxConcurrent caps the number of searches running at once.
	MaxConcurrent int `env:"SEARCH_MAX_CONCURRENT" envDefault:"4"`
	// DefaultSeed is applied to studies without a seed. Empty leaves such
	// studies unseeded.
	DefaultSeed     string `env:"SEARCH_DEFAULT_SEED"`
	DefaultStrategy string `env:"SEARCH_DEFAULT_STRATEGY" envDefault:"random"`
	BestEffort      bool   `env:"SEARCH_BEST_EFFORT" envDefault:"false"`
	SharedMemory    bool   `env:"SEARCH_SHARED_MEMORY" envDefault:"false"`
}

// Seed parses DefaultSeed.
func (s SearchConfig) Seed() (*int64, error) {
	raw := strings.TrimSpace(s.DefaultSeed)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("SEARCH_DEFAULT_SEED: %w", err)
	}
	return &v, nil
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges that the environment parser cannot.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be in 1..65535, got %d", c.HTTP.Port)
	}
	if c.Search.MaxJobs < 1 {
		return fmt.Errorf("SEARCH_MAX_JOBS must be positive, got %d", c.Search.MaxJobs)
	}
	if c.Search.MaxIterations < 1 {
		return fmt.Errorf("SEARCH_MAX_ITERATIONS must be positive, got %d", c.Search.MaxIterations)
	}
	if c.Search.MaxConcurrent < 1 {
		return fmt.Errorf("SEARCH_MAX_CONCURRENT must be positive, got %d", c.Search.MaxConcurrent)
	}
	if _, err := c.Search.Seed(); err != nil {
		return err
	}
	return nil
}
