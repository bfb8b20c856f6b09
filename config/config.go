// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// TMDBConfig holds metadata provider credentials and tuning.
type TMDBConfig struct {
	BaseURL string        `env:"TMDB_BASE_URL"`
	Bearer  string        `env:"TMDB_BEARER"`
	APIKey  string        `env:"TMDB_API_KEY"`
	Timeout time.Duration `env:"TMDB_TIMEOUT" envDefault:"8s"`
}

// LLMConfig holds the mood-analysis model endpoint settings. An empty URL
// disables the analyze endpoint's model call.
type LLMConfig struct {
	URL     string        `env:"LLM_URL"`
	APIKey  string        `env:"LLM_API_KEY"`
	Model   string        `env:"LLM_MODEL" envDefault:"meta-llama/llama-3.1-8b-instruct"`
	Retries int           `env:"LLM_RETRIES" envDefault:"3"`
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"10s"`
}

// Config holds all application configuration.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogFile         string        `env:"LOG_FILE"`
	DefaultLanguage string        `env:"DEFAULT_LANGUAGE" envDefault:"en-US"`
	DefaultRegion   string        `env:"DEFAULT_REGION" envDefault:"US"`
	CacheMaxEntries int           `env:"CACHE_MAX_ENTRIES" envDefault:"2048"`
	RateLimit       int           `env:"RATE_LIMIT" envDefault:"60"`
	RateWindow      time.Duration `env:"RATE_WINDOW" envDefault:"1m"`
	FrontendOrigins []string      `env:"FRONTEND_ORIGINS" envSeparator:","`

	TMDB TMDBConfig `envPrefix:""`
	LLM  LLMConfig  `envPrefix:""`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be a valid port number, got %d", cfg.Port)
	}
	if cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit)
	}
	return cfg, nil
}

// HasTMDB reports whether metadata provider credentials are present.
func (c *Config) HasTMDB() bool {
	return c.TMDB.Bearer != "" || c.TMDB.APIKey != ""
}

// HasLLM reports whether the mood-analysis model is configured.
func (c *Config) HasLLM() bool {
	return c.LLM.URL != ""
}
