package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration. Values are resolved in
// order: defaults -> config file(s) -> environment -> CLI flags.
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Search      SearchConfig   `toml:"search"`
	Scraper     ScraperConfig  `toml:"scraper"`
	Claude      ClaudeConfig   `toml:"claude"`
	Costs       CostConfig     `toml:"costs"`
	Pipeline    PipelineConfig `toml:"pipeline"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// SearchConfig configures the SERP provider (Gemini grounded search).
type SearchConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
	// Timeout bounds one search call; a timed-out call counts as a query
	// failure, not a phase abort.
	Timeout string `toml:"timeout"`
	// RatePerMinute caps outbound search calls across all jobs.
	RatePerMinute int `toml:"rate_per_minute"`
}

// ScraperConfig configures page fetching.
type ScraperConfig struct {
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`
	// RequestDelay is the minimum delay between requests to one domain.
	RequestDelay     time.Duration `toml:"request_delay"`
	MaxContentLength int           `toml:"max_content_length"` // Bytes of markdown kept per page
}

// ClaudeConfig configures the Anthropic LLM used by extraction and the
// analysis passes.
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// CostConfig holds the pricing knobs behind the cost estimator.
type CostConfig struct {
	SerpPerPage      float64 `toml:"serp_per_page"`      // Cost of one SERP result page
	AvgURLsPerQuery  float64 `toml:"avg_urls_per_query"` // Projected URL yield per query
	ScrapePerURL     float64 `toml:"scrape_per_url"`     // Cost of fetching one URL
	LLMPerExtraction float64 `toml:"llm_per_extraction"` // Cost of one extraction call
}

// PipelineConfig tunes the coordinator and background runner.
type PipelineConfig struct {
	// RunnerEnabled starts the server-side loop that drives jobs to
	// completion; when false the pipeline is purely caller-driven.
	RunnerEnabled bool `toml:"runner_enabled"`
	// AdvanceInterval is the pause between units of work in the runner.
	AdvanceInterval string `toml:"advance_interval"`
	// StaleAfter marks a live job as stalled when no unit of work has
	// completed for this long.
	StaleAfter string `toml:"stale_after"`
	// SweepSchedule is the cron spec for the stale-job resume sweep.
	SweepSchedule string `toml:"sweep_schedule"`
	// DefaultBatchSize applies when a job config omits batch_size.
	DefaultBatchSize int `toml:"default_batch_size"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/nichefinder",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Search: SearchConfig{
			Model:         "gemini-3-flash-preview",
			Timeout:       "2m",
			RatePerMinute: 30,
		},
		Scraper: ScraperConfig{
			UserAgent:        "nichefinder/1.0",
			Timeout:          "30s",
			RequestDelay:     2 * time.Second,
			MaxContentLength: 60000,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			Timeout:   "3m",
			MaxTokens: 8192,
		},
		Costs: CostConfig{
			SerpPerPage:      0.005,
			AvgURLsPerQuery:  6,
			ScrapePerURL:     0.002,
			LLMPerExtraction: 0.01,
		},
		Pipeline: PipelineConfig{
			RunnerEnabled:    true,
			AdvanceInterval:  "500ms",
			StaleAfter:       "10m",
			SweepSchedule:    "@every 5m",
			DefaultBatchSize: 10,
		},
	}
}

// LoadFromFiles loads configuration from TOML files in order, later files
// overriding earlier ones, then applies environment overrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides maps NICHEFINDER_* environment variables onto config
// fields. Secrets are the expected use; everything else normally comes
// from the file.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("NICHEFINDER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("NICHEFINDER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("NICHEFINDER_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("NICHEFINDER_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" && config.Search.APIKey == "" {
		config.Search.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks durations and ranges that would otherwise only fail at
// first use.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"search.timeout":            c.Search.Timeout,
		"scraper.timeout":           c.Scraper.Timeout,
		"claude.timeout":            c.Claude.Timeout,
		"pipeline.advance_interval": c.Pipeline.AdvanceInterval,
		"pipeline.stale_after":      c.Pipeline.StaleAfter,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, v)
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.DefaultBatchSize < 1 {
		return fmt.Errorf("pipeline.default_batch_size must be positive")
	}
	return nil
}

// MustDuration parses a duration that Validate already checked.
func MustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		panic(fmt.Sprintf("invalid duration %q", s))
	}
	return d
}
