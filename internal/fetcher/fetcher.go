// Package fetcher retrieves pages for the crawl. A DualFetcher tries a
// rendering strategy first and falls back to plain HTTP; failures are
// recorded on the returned page instead of being raised.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/sectioncrawl/internal/frontier"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// DefaultUserAgent identifies the crawler as automated.
const DefaultUserAgent = "Mozilla/5.0 (compatible; sectioncrawl/1.0; +https://github.com/go-scripts/sectioncrawl)"

// Response is what a strategy hands back on success.
type Response struct {
	FinalURL   string
	StatusCode int
	HTML       string
	Screenshot []byte
}

// Strategy is one way of retrieving a page.
type Strategy interface {
	Name() types.FetchStrategy
	Fetch(ctx context.Context, url string) (*Response, error)
}

// availability is implemented by strategies that can switch themselves off.
type availability interface {
	Available() bool
}

// ScreenshotStore persists rendered screenshots and returns a reference.
type ScreenshotStore interface {
	Put(ctx context.Context, pageURL string, png []byte) (string, error)
}

// Config holds the fetch settings shared by all strategies.
type Config struct {
	UserAgent       string
	PolitenessDelay time.Duration
	MaxBodyBytes    int64
	RespectRobots   bool
	// Render enables the headless browser strategy.
	Render        bool
	RenderOptions RenderOptions
}

// DefaultConfig mirrors the crawler's documented defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:       DefaultUserAgent,
		PolitenessDelay: time.Second,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		RespectRobots:   true,
		Render:          true,
		RenderOptions: RenderOptions{
			IdleWindow:  500 * time.Millisecond,
			MaxIdleWait: 10 * time.Second,
			SettleWait:  2 * time.Second,
		},
	}
}

// Option customizes a DualFetcher.
type Option func(*DualFetcher)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(f *DualFetcher) { f.logger = l }
}

// WithScreenshotStore keeps rendered screenshots.
func WithScreenshotStore(s ScreenshotStore) Option {
	return func(f *DualFetcher) { f.screenshots = s }
}

// WithHTTPClient replaces the client used for plain fetches and robots.txt.
func WithHTTPClient(c *http.Client) Option {
	return func(f *DualFetcher) { f.client = c }
}

// WithStrategies replaces the default strategy chain.
func WithStrategies(s ...Strategy) Option {
	return func(f *DualFetcher) { f.strategies = s }
}

// DualFetcher is safe for concurrent use.
type DualFetcher struct {
	cfg         Config
	logger      *log.Logger
	client      *http.Client
	strategies  []Strategy
	throttle    *Throttle
	robots      *RobotsChecker
	screenshots ScreenshotStore
	render      *RenderStrategy
}

// New builds a fetcher. Without WithStrategies the chain is rendering (when
// enabled) followed by plain HTTP.
func New(cfg Config, opts ...Option) *DualFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	f := &DualFetcher{cfg: cfg}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = orDiscard(f.logger)
	if f.client == nil {
		f.client = &http.Client{}
	}
	f.throttle = NewThrottle(cfg.PolitenessDelay)
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(f.client, cfg.UserAgent, 0)
	}

	if f.strategies == nil {
		if cfg.Render {
			ro := cfg.RenderOptions
			ro.UserAgent = cfg.UserAgent
			ro.Screenshots = ro.Screenshots || f.screenshots != nil
			f.render = NewRenderStrategy(ro, f.logger)
			f.strategies = append(f.strategies, f.render)
		}
		f.strategies = append(f.strategies, NewHTTPStrategy(f.client, cfg.UserAgent, cfg.MaxBodyBytes))
	}

	return f
}

// Allowed reports whether robots.txt permits fetching url. It also adopts
// the host's crawl-delay when that is longer than the politeness delay.
func (f *DualFetcher) Allowed(ctx context.Context, url string) bool {
	if f.robots == nil {
		return true
	}
	ok, err := f.robots.IsAllowed(ctx, url)
	if err != nil {
		f.logger.Debug("robots check failed", "url", url, "error", err)
		return true
	}
	if d := f.robots.CrawlDelay(url); d > 0 {
		f.throttle.Raise(frontier.Host(url), d)
	}
	return ok
}

// Fetch tries each strategy in turn with its own timeout. It never returns
// an error; the outcome is on the page.
func (f *DualFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) types.FetchedPage {
	page := types.FetchedPage{URL: url, Outcome: types.OutcomeFailed}
	var lastErr *FetchFailure

	for _, s := range f.strategies {
		if a, ok := s.(availability); ok && !a.Available() {
			continue
		}

		resp, err := f.attempt(ctx, s, url, timeout)
		if err == nil {
			f.fill(ctx, &page, s.Name(), resp)
			return page
		}

		lastErr = newFailure(url, s.Name(), err)
		page.Strategy = s.Name()
		page.StatusCode = lastErr.StatusCode
		f.logger.Debug("Fetch attempt failed", "url", url, "strategy", s.Name(), "error", err)

		if ctx.Err() != nil {
			break
		}
	}

	page.FetchedAt = time.Now()
	if lastErr == nil {
		lastErr = &FetchFailure{URL: url, Kind: FailureUnavailable, Cause: ErrNoStrategy}
	}
	if lastErr.Timeout() {
		page.Outcome = types.OutcomeTimedOut
	}
	page.Err = lastErr.Error()
	return page
}

func (f *DualFetcher) attempt(ctx context.Context, s Strategy, url string, timeout time.Duration) (*Response, error) {
	release, err := f.throttle.Acquire(ctx, frontier.Host(url))
	if err != nil {
		return nil, err
	}
	defer release()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Fetch(ctx, url)
}

func (f *DualFetcher) fill(ctx context.Context, page *types.FetchedPage, strategy types.FetchStrategy, resp *Response) {
	page.Strategy = strategy
	page.StatusCode = resp.StatusCode
	page.FinalURL = resp.FinalURL
	if page.FinalURL == "" {
		page.FinalURL = page.URL
	}
	page.FetchedAt = time.Now()
	page.Outcome = types.OutcomeSuccess

	doc, err := Parse(page.FinalURL, resp.HTML)
	if err != nil {
		f.logger.Warn("Failed to parse page", "url", page.URL, "error", err)
		return
	}
	page.Title = doc.Title
	page.MetaDescription = doc.MetaDescription
	page.Text = doc.Text
	page.WordCount = doc.WordCount
	page.Language = doc.Language
	page.Links = doc.Links

	if f.screenshots != nil && len(resp.Screenshot) > 0 {
		ref, err := f.screenshots.Put(ctx, page.URL, resp.Screenshot)
		if err != nil {
			f.logger.Warn("Failed to store screenshot", "url", page.URL, "error", err)
		} else {
			page.ScreenshotRef = ref
		}
	}
}

// Close releases the browser, if one was started.
func (f *DualFetcher) Close() {
	if f.render != nil {
		f.render.Close()
	}
}

func orDiscard(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New(io.Discard)
}
