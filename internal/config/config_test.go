package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sectioncrawl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvAPIKey, EnvOpenAIKey, EnvClassifierEndpoint} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50, cfg.Crawl.Budget)
	assert.Equal(t, 30, cfg.Crawl.TimeoutSeconds)
	assert.True(t, cfg.Fetch.RespectRobots)
}

func TestLoadMergesWithDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[crawl]
budget = 10
workers = 2

[classifier]
enabled = true
endpoint = "http://localhost:8080/v1/chat/completions"
model = "qwen"

[output]
format = "csv"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10, cfg.Crawl.Budget)
	assert.Equal(t, 2, cfg.Crawl.Workers)
	assert.Equal(t, 5, cfg.Crawl.TopK)
	assert.True(t, cfg.Fetch.RespectRobots)
	assert.True(t, cfg.Classifier.Enabled)
	assert.Equal(t, "qwen", cfg.Classifier.Model)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOpenAIKey, "openai-key")
	t.Setenv(EnvClassifierEndpoint, "https://api.example.com/v1/chat/completions")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai-key", cfg.Classifier.APIKey)
	assert.Equal(t, "https://api.example.com/v1/chat/completions", cfg.Classifier.Endpoint)

	t.Setenv(EnvAPIKey, "own-key")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "own-key", cfg.Classifier.APIKey)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "[crawl\nbudget = "))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Zero budget", func(c *Config) { c.Crawl.Budget = 0 }, "crawl.budget"},
		{"Too many workers", func(c *Config) { c.Crawl.Workers = 17 }, "crawl.workers"},
		{"No workers", func(c *Config) { c.Crawl.Workers = 0 }, "crawl.workers"},
		{"Zero top-k", func(c *Config) { c.Crawl.TopK = 0 }, "crawl.top_k"},
		{"Threshold above one", func(c *Config) { c.Crawl.AcceptThreshold = 1.5 }, "crawl.accept_threshold"},
		{"Classifier without endpoint", func(c *Config) { c.Classifier.Enabled = true }, "classifier.endpoint"},
		{"Unknown reasoning effort", func(c *Config) { c.Classifier.ReasoningEffort = "max" }, "classifier.reasoning_effort"},
		{"Unknown format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Crawl.Budget = 0
	cfg.Output.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crawl.budget")
	assert.Contains(t, err.Error(), "output.format")
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Crawl.Budget = 7
	cfg.Fetch.RespectRobots = false
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Crawl.Budget)
	assert.False(t, loaded.Fetch.RespectRobots)
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Crawl.TimeoutSeconds = 12
	cfg.Fetch.PolitenessDelayMS = 250
	cfg.Output.ScreenshotDir = "shots"
	cfg.Classifier.Endpoint = "http://localhost"

	cc := cfg.CrawlConfig()
	assert.Equal(t, 12*time.Second, cc.FetchTimeout)
	assert.Equal(t, 5*time.Second, cc.GraceTimeout)

	fc := cfg.FetchConfig()
	assert.Equal(t, 250*time.Millisecond, fc.PolitenessDelay)
	assert.True(t, fc.RenderOptions.Screenshots)

	lc := cfg.LLMConfig()
	assert.Equal(t, "http://localhost", lc.Endpoint)
	assert.Equal(t, time.Minute, lc.Timeout)
}
