package fetcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/sectioncrawl/internal/types"
)

// RenderOptions tunes the headless browser.
type RenderOptions struct {
	UserAgent string
	// ExecPath overrides browser discovery.
	ExecPath string
	// IdleWindow is how long the network must stay quiet before the page
	// counts as loaded.
	IdleWindow time.Duration
	// MaxIdleWait stops waiting for quiet on pages that poll forever.
	MaxIdleWait time.Duration
	// SettleWait is an extra pause after the network goes idle.
	SettleWait time.Duration
	Screenshots bool
}

// RenderStrategy loads pages in headless Chrome so script-built content is
// present in the markup. One browser is shared; each fetch gets its own tab.
type RenderStrategy struct {
	opts   RenderOptions
	logger *log.Logger

	once          sync.Once
	startErr      error
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	disabled      atomic.Bool
}

// NewRenderStrategy returns a strategy whose browser starts on first use.
func NewRenderStrategy(opts RenderOptions, logger *log.Logger) *RenderStrategy {
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = 500 * time.Millisecond
	}
	if opts.MaxIdleWait <= 0 {
		opts.MaxIdleWait = 10 * time.Second
	}
	return &RenderStrategy{opts: opts, logger: orDiscard(logger)}
}

func (r *RenderStrategy) Name() types.FetchStrategy {
	return types.StrategyRendering
}

// Available is false once the browser failed to start.
func (r *RenderStrategy) Available() bool {
	return !r.disabled.Load()
}

func (r *RenderStrategy) start() error {
	r.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
			chromedp.Headless,
			chromedp.WindowSize(1366, 900),
		)
		if r.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(r.opts.UserAgent))
		}
		if r.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
		}

		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)

		// An empty Run starts the browser.
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			r.startErr = fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
			return
		}
		r.allocCancel = allocCancel
		r.browserCtx = browserCtx
		r.browserCancel = browserCancel
	})
	return r.startErr
}

func (r *RenderStrategy) Fetch(ctx context.Context, url string) (*Response, error) {
	if r.disabled.Load() {
		return nil, ErrBrowserUnavailable
	}
	if err := r.start(); err != nil {
		if !r.disabled.Swap(true) {
			r.logger.Warn("Rendering disabled, using plain HTTP only", "error", err)
		}
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
		defer cancelDeadline()
	}

	tracker := newIdleTracker()
	chromedp.ListenTarget(tabCtx, tracker.handle)

	var finalURL, markup string
	var shot []byte
	tasks := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return tracker.waitIdle(ctx, r.opts.IdleWindow, r.opts.MaxIdleWait)
		}),
	}
	if r.opts.SettleWait > 0 {
		tasks = append(tasks, chromedp.Sleep(r.opts.SettleWait))
	}
	tasks = append(tasks,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if r.opts.Screenshots {
		tasks = append(tasks, chromedp.FullScreenshot(&shot, 80))
	}

	if err := chromedp.Run(tabCtx, tasks...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	status := tracker.documentStatus()
	if status >= 400 {
		return nil, &FetchFailure{Kind: FailureStatus, StatusCode: status}
	}

	return &Response{
		FinalURL:   finalURL,
		StatusCode: status,
		HTML:       markup,
		Screenshot: shot,
	}, nil
}

// Close shuts the browser down.
func (r *RenderStrategy) Close() {
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

// idleTracker counts in-flight requests of one tab.
type idleTracker struct {
	mu         sync.Mutex
	inflight   map[network.RequestID]struct{}
	lastChange time.Time
	status     int
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight:   make(map[network.RequestID]struct{}),
		lastChange: time.Now(),
	}
}

func (t *idleTracker) handle(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
		t.lastChange = time.Now()
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
		t.lastChange = time.Now()
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
		t.lastChange = time.Now()
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && t.status == 0 && e.Response != nil {
			t.status = int(e.Response.Status)
		}
	}
}

func (t *idleTracker) idleFor() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.lastChange), len(t.inflight) == 0
}

func (t *idleTracker) documentStatus() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// waitIdle returns once no request has been in flight for window, or after
// limit has passed. It only fails when ctx ends.
func (t *idleTracker) waitIdle(ctx context.Context, window, limit time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	giveUp := time.NewTimer(limit)
	defer giveUp.Stop()

	for {
		if quiet, idle := t.idleFor(); idle && quiet >= window {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-giveUp.C:
			return nil
		case <-ticker.C:
		}
	}
}
