// Package config loads crawler settings from a TOML file, .env files and the
// environment, in that order of increasing precedence. Command line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/go-scripts/sectioncrawl/internal/crawl"
	"github.com/go-scripts/sectioncrawl/internal/fetcher"
	"github.com/go-scripts/sectioncrawl/internal/scoring"
)

// Environment variables read by Load.
const (
	EnvAPIKey             = "SECTIONCRAWL_API_KEY"
	EnvOpenAIKey          = "OPENAI_API_KEY"
	EnvClassifierEndpoint = "SECTIONCRAWL_CLASSIFIER_ENDPOINT"
)

const maxWorkers = 16

var reasoningEfforts = []string{"low", "medium", "high", "auto"}

type Config struct {
	Crawl struct {
		Budget            int     `toml:"budget"`
		TimeoutSeconds    int     `toml:"timeout_seconds"` // per fetch attempt
		TopK              int     `toml:"top_k"`
		Workers           int     `toml:"workers"`
		AcceptThreshold   float64 `toml:"accept_threshold"`
		TopNFallback      int     `toml:"top_n_fallback"`
		IncludeZeroScores bool    `toml:"include_zero_scores"`
		GraceSeconds      int     `toml:"grace_seconds"`

		// PrefetchClassifier scores links with the classifier instead of keywords.
		PrefetchClassifier bool `toml:"prefetch_classifier"`
	} `toml:"crawl"`

	Fetch struct {
		UserAgent         string `toml:"user_agent"`
		PolitenessDelayMS int    `toml:"politeness_delay_ms"`
		RespectRobots     bool   `toml:"respect_robots"`
		Render            bool   `toml:"render"`
		ChromePath        string `toml:"chrome_path"`
		SettleMS          int    `toml:"settle_ms"`
		MaxBodyBytes      int64  `toml:"max_body_bytes"`
	} `toml:"fetch"`

	Classifier struct {
		Enabled           bool    `toml:"enabled"`
		Endpoint          string  `toml:"endpoint"`
		APIKey            string  `toml:"api_key"`
		Model             string  `toml:"model"`
		Temperature       float64 `toml:"temperature"`
		ReasoningEffort   string  `toml:"reasoning_effort"`
		MaxRetries        int     `toml:"max_retries"`
		RequestsPerMinute int     `toml:"requests_per_minute"`
		MaxTextChars      int     `toml:"max_text_chars"`
		TimeoutSeconds    int     `toml:"timeout_seconds"`
	} `toml:"classifier"`

	Output struct {
		Path          string `toml:"path"`
		Format        string `toml:"format"` // json or csv
		ScreenshotDir string `toml:"screenshot_dir"`
	} `toml:"output"`
}

// Default returns a config with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.Crawl.Budget = 50
	cfg.Crawl.TimeoutSeconds = 30
	cfg.Crawl.TopK = 5
	cfg.Crawl.Workers = 3
	cfg.Crawl.AcceptThreshold = 0.2
	cfg.Crawl.TopNFallback = 3
	cfg.Crawl.GraceSeconds = 5

	cfg.Fetch.UserAgent = fetcher.DefaultUserAgent
	cfg.Fetch.PolitenessDelayMS = 1000
	cfg.Fetch.RespectRobots = true
	cfg.Fetch.Render = true
	cfg.Fetch.SettleMS = 2000
	cfg.Fetch.MaxBodyBytes = fetcher.DefaultMaxBodyBytes

	cfg.Classifier.Temperature = 0.1
	cfg.Classifier.ReasoningEffort = "low"
	cfg.Classifier.MaxRetries = 3
	cfg.Classifier.MaxTextChars = 4000
	cfg.Classifier.TimeoutSeconds = 60

	cfg.Output.Path = "results.json"
	cfg.Output.Format = "json"
	return cfg
}

// loadEnvFiles loads .env.local then .env. Missing files are ignored and
// variables already set are kept.
func loadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Classifier.APIKey = key
	} else if key := os.Getenv(EnvOpenAIKey); key != "" && c.Classifier.APIKey == "" {
		c.Classifier.APIKey = key
	}
	if endpoint := os.Getenv(EnvClassifierEndpoint); endpoint != "" {
		c.Classifier.Endpoint = endpoint
	}
}

// Save writes cfg as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Crawl.Budget < 1 {
		errs = append(errs, fmt.Errorf("crawl.budget must be at least 1, got %d", c.Crawl.Budget))
	}
	if c.Crawl.Workers < 1 || c.Crawl.Workers > maxWorkers {
		errs = append(errs, fmt.Errorf("crawl.workers must be between 1 and %d, got %d", maxWorkers, c.Crawl.Workers))
	}
	if c.Crawl.TopK < 1 {
		errs = append(errs, fmt.Errorf("crawl.top_k must be at least 1, got %d", c.Crawl.TopK))
	}
	if c.Crawl.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("crawl.timeout_seconds must be at least 1, got %d", c.Crawl.TimeoutSeconds))
	}
	if c.Crawl.AcceptThreshold < 0 || c.Crawl.AcceptThreshold > 1 {
		errs = append(errs, fmt.Errorf("crawl.accept_threshold must be within [0, 1], got %g", c.Crawl.AcceptThreshold))
	}
	if c.Crawl.TopNFallback < 0 {
		errs = append(errs, fmt.Errorf("crawl.top_n_fallback must not be negative, got %d", c.Crawl.TopNFallback))
	}
	if c.Fetch.PolitenessDelayMS < 0 {
		errs = append(errs, fmt.Errorf("fetch.politeness_delay_ms must not be negative, got %d", c.Fetch.PolitenessDelayMS))
	}

	if c.Classifier.Enabled {
		if c.Classifier.Endpoint == "" {
			errs = append(errs, fmt.Errorf("classifier.endpoint is required when the classifier is enabled (or set %s)", EnvClassifierEndpoint))
		}
		if c.Classifier.Temperature < 0 || c.Classifier.Temperature > 2 {
			errs = append(errs, fmt.Errorf("classifier.temperature must be within [0, 2], got %g", c.Classifier.Temperature))
		}
	}
	if e := c.Classifier.ReasoningEffort; e != "" && !slices.Contains(reasoningEfforts, e) {
		errs = append(errs, fmt.Errorf("classifier.reasoning_effort must be one of %s, got %q", strings.Join(reasoningEfforts, ", "), e))
	}

	switch c.Output.Format {
	case "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("output.format must be json or csv, got %q", c.Output.Format))
	}

	return errors.Join(errs...)
}

// CrawlConfig converts the crawl section.
func (c *Config) CrawlConfig() crawl.Config {
	cc := crawl.DefaultConfig()
	cc.Budget = c.Crawl.Budget
	cc.FetchTimeout = time.Duration(c.Crawl.TimeoutSeconds) * time.Second
	cc.TopK = c.Crawl.TopK
	cc.Workers = c.Crawl.Workers
	cc.AcceptThreshold = c.Crawl.AcceptThreshold
	cc.TopNFallback = c.Crawl.TopNFallback
	cc.IncludeZeroScores = c.Crawl.IncludeZeroScores
	cc.GraceTimeout = time.Duration(c.Crawl.GraceSeconds) * time.Second
	return cc
}

// FetchConfig converts the fetch section.
func (c *Config) FetchConfig() fetcher.Config {
	fc := fetcher.DefaultConfig()
	fc.UserAgent = c.Fetch.UserAgent
	fc.PolitenessDelay = time.Duration(c.Fetch.PolitenessDelayMS) * time.Millisecond
	fc.RespectRobots = c.Fetch.RespectRobots
	fc.Render = c.Fetch.Render
	fc.MaxBodyBytes = c.Fetch.MaxBodyBytes
	fc.RenderOptions.ExecPath = c.Fetch.ChromePath
	fc.RenderOptions.SettleWait = time.Duration(c.Fetch.SettleMS) * time.Millisecond
	fc.RenderOptions.Screenshots = c.Output.ScreenshotDir != ""
	return fc
}

// LLMConfig converts the classifier section.
func (c *Config) LLMConfig() scoring.LLMConfig {
	return scoring.LLMConfig{
		Endpoint:          c.Classifier.Endpoint,
		APIKey:            c.Classifier.APIKey,
		Model:             c.Classifier.Model,
		Temperature:       c.Classifier.Temperature,
		ReasoningEffort:   c.Classifier.ReasoningEffort,
		MaxRetries:        c.Classifier.MaxRetries,
		BaseDelay:         time.Second,
		RequestsPerMinute: c.Classifier.RequestsPerMinute,
		MaxTextChars:      c.Classifier.MaxTextChars,
		Timeout:           time.Duration(c.Classifier.TimeoutSeconds) * time.Second,
	}
}
