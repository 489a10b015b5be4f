package crawl

import "time"

// Config bounds a crawl.
type Config struct {
	// Budget is the most pages that may be fetched, failures included.
	Budget int
	// FetchTimeout applies to each fetch strategy attempt.
	FetchTimeout time.Duration
	TopK         int
	Workers      int
	// AcceptThreshold is the minimum pre-fetch score for a discovered link.
	AcceptThreshold float64
	// TopNFallback links per page are accepted when none reach the threshold.
	TopNFallback int
	// IncludeZeroScores ranks pages that scored 0 after all others instead of
	// leaving them out.
	IncludeZeroScores bool
	// GraceTimeout is how long in-flight work may run after cancellation.
	GraceTimeout time.Duration
	// ClassifyConcurrency bounds concurrent subsection scoring per page.
	ClassifyConcurrency int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Budget:              50,
		FetchTimeout:        30 * time.Second,
		TopK:                5,
		Workers:             3,
		AcceptThreshold:     0.2,
		TopNFallback:        3,
		GraceTimeout:        5 * time.Second,
		ClassifyConcurrency: 4,
	}
}

// withDefaults replaces unset sizes and durations with defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Budget <= 0 {
		c.Budget = d.Budget
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.AcceptThreshold < 0 {
		c.AcceptThreshold = d.AcceptThreshold
	}
	if c.TopNFallback < 0 {
		c.TopNFallback = 0
	}
	if c.GraceTimeout <= 0 {
		c.GraceTimeout = d.GraceTimeout
	}
	if c.ClassifyConcurrency <= 0 {
		c.ClassifyConcurrency = d.ClassifyConcurrency
	}
	return c
}
