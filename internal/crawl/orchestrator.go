// Package crawl drives a section-relevance crawl: it fetches the seed,
// prioritizes discovered links by pre-fetch relevance, fetches pages with a
// bounded worker pool under a page budget, scores each page against every
// subsection and ranks the results.
package crawl

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/frontier"
	"github.com/go-scripts/sectioncrawl/internal/progress"
	"github.com/go-scripts/sectioncrawl/internal/scoring"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// Fetcher retrieves one page. Failures are reported on the page.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) types.FetchedPage
}

// RobotsPolicy is implemented by fetchers that honor robots.txt.
type RobotsPolicy interface {
	Allowed(ctx context.Context, url string) bool
}

// Orchestrator holds no per-crawl state, so Run may be called concurrently.
type Orchestrator struct {
	catalog  *catalog.Catalog
	fetcher  Fetcher
	scorer   scoring.Scorer
	prefetch scoring.Scorer
	reporter progress.Reporter
	logger   *log.Logger
	cfg      Config
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithReporter receives lifecycle events.
func WithReporter(r progress.Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithPrefetchScorer scores discovered links. The default is keyword scoring.
func WithPrefetchScorer(s scoring.Scorer) Option {
	return func(o *Orchestrator) { o.prefetch = s }
}

// New builds an orchestrator. A nil scorer means keyword scoring.
func New(cat *catalog.Catalog, f Fetcher, s scoring.Scorer, cfg Config, opts ...Option) (*Orchestrator, error) {
	if f == nil {
		return nil, ErrNoFetcher
	}
	if s == nil {
		s = scoring.NewKeywordScorer()
	}

	o := &Orchestrator{
		catalog: cat,
		fetcher: f,
		scorer:  s,
		cfg:     cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.prefetch == nil {
		o.prefetch = scoring.NewKeywordScorer()
	}
	if o.reporter == nil {
		o.reporter = progress.Nop
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}
	return o, nil
}

// run is everything one crawl owns. Only the goroutine executing Run writes
// to it; workers read the immutable fields and the frontier, which locks.
type run struct {
	id        string
	seed      string
	startedAt time.Time
	subs      []*catalog.Subsection
	frontier  *frontier.Frontier

	state       State
	termination types.Termination
	dispatched  int
	inFlight    int
	fetched     int
	failed      int
	rejected    map[string]struct{}
	pages       []classifiedPage
}

type task struct {
	item   frontier.Item
	worker int
}

type pageResult struct {
	task
	page   types.FetchedPage
	scores []types.RelevanceScore
	links  []linkVerdict
}

// Run crawls from seed. It returns an error only when the catalog is
// unusable or the seed cannot be fetched; every later failure is counted
// in the result instead. Cancelling ctx stops dispatch and yields the
// partial result.
func (o *Orchestrator) Run(ctx context.Context, seed string) (*types.CrawlResult, error) {
	r := &run{
		id:        uuid.NewString(),
		seed:      seed,
		startedAt: time.Now(),
		frontier:  frontier.New(),
		rejected:  make(map[string]struct{}),
	}
	o.transition(r, StateInit)

	if o.catalog != nil {
		r.subs = o.catalog.Subsections()
	}
	if len(r.subs) == 0 {
		o.transition(r, StateFailed)
		return nil, &catalog.MalformedCatalogError{Reason: "catalog has no subsections"}
	}

	seedURL, err := frontier.NormalizeURL(seed)
	if err != nil {
		o.transition(r, StateFailed)
		return nil, &SeedUnreachableError{URL: seed, Cause: err}
	}
	r.seed = seedURL
	r.frontier.Claim(seedURL)

	seedTask := task{item: frontier.Item{Candidate: types.LinkCandidate{URL: seedURL}, Score: 1}}
	o.emit(r, progress.Event{Kind: progress.EventPageDispatched, URL: seedURL})
	page := o.fetcher.Fetch(ctx, seedURL, o.cfg.FetchTimeout)
	r.dispatched = 1
	if !page.OK() {
		r.failed++
		o.emit(r, progress.Event{Kind: progress.EventPageFailed, URL: seedURL, Reason: page.Err})
		o.transition(r, StateFailed)
		return nil, &SeedUnreachableError{URL: seedURL, Cause: errors.New(page.Err)}
	}

	o.transition(r, StateDiscovering)
	o.merge(r, o.process(ctx, r, seedTask, page))

	o.fetchLoop(ctx, r)

	if r.state == StateFetching {
		o.transition(r, StateClassifying)
	}
	if r.state != StateCancelled {
		o.transition(r, StateAggregating)
	}
	result := o.aggregate(r)
	if r.state != StateCancelled {
		o.transition(r, StateDone)
	}
	result.Stats.FinalState = string(r.state)

	o.logger.Info("Crawl finished",
		"id", r.id,
		"fetched", result.Stats.PagesFetched,
		"failed", result.Stats.PagesFailed,
		"rejected", result.Stats.PagesRejected,
		"termination", result.Stats.Termination,
		"elapsed", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	return result, nil
}

// fetchLoop dispatches frontier items to the worker pool until the budget
// is used, the frontier runs dry with nothing in flight, or ctx is
// cancelled and the grace period has elapsed.
func (o *Orchestrator) fetchLoop(ctx context.Context, r *run) {
	if ctx.Err() != nil {
		o.cancel(r)
		return
	}
	o.transition(r, StateFetching)

	workers := o.cfg.Workers
	results := make(chan pageResult, workers)
	queues := make([]chan task, workers)

	// In-flight work outlives ctx by up to GraceTimeout.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	idle := make([]int, 0, workers)
	for i := workers - 1; i >= 0; i-- {
		queues[i] = make(chan task, 1)
		idle = append(idle, i)
		wg.Add(1)
		go func(q <-chan task) {
			defer wg.Done()
			for t := range q {
				results <- o.work(workCtx, r, t)
			}
		}(queues[i])
	}

	done := ctx.Done()
	var grace <-chan time.Time
	abandoned := false

loop:
	for {
		if r.state == StateFetching && ctx.Err() == nil {
			for len(idle) > 0 && r.dispatched < o.cfg.Budget && ctx.Err() == nil {
				item, ok := r.frontier.Pop()
				if !ok {
					break
				}
				id := idle[len(idle)-1]
				idle = idle[:len(idle)-1]
				r.dispatched++
				r.inFlight++
				o.emit(r, progress.Event{Kind: progress.EventPageDispatched, URL: item.Candidate.URL, Worker: id, Score: item.Score})
				queues[id] <- task{item: item, worker: id}
			}
			if r.dispatched >= o.cfg.Budget {
				r.termination = types.TerminationBudgetExceeded
				o.transition(r, StateClassifying)
			}
		}

		if r.inFlight == 0 {
			if ctx.Err() != nil && r.state != StateCancelled {
				o.cancel(r)
			}
			break
		}

		select {
		case res := <-results:
			r.inFlight--
			idle = append(idle, res.worker)
			o.merge(r, res)
		case <-done:
			done = nil
			o.cancel(r)
			timer := time.NewTimer(o.cfg.GraceTimeout)
			defer timer.Stop()
			grace = timer.C
		case <-grace:
			o.logger.Warn("Abandoning in-flight pages after grace period", "in_flight", r.inFlight)
			abandoned = true
			break loop
		}
	}

	for _, q := range queues {
		close(q)
	}
	if abandoned {
		cancelWork()
		return
	}
	wg.Wait()

	if r.termination == "" {
		r.termination = types.TerminationFrontierExhausted
	}
}

func (o *Orchestrator) cancel(r *run) {
	r.termination = types.TerminationCancelled
	o.transition(r, StateCancelled)
}

// work runs on a pool goroutine.
func (o *Orchestrator) work(ctx context.Context, r *run, t task) pageResult {
	page := o.fetcher.Fetch(ctx, t.item.Candidate.URL, o.cfg.FetchTimeout)
	return o.process(ctx, r, t, page)
}

// process scores a fetched page against every subsection and judges its
// outbound links. The page's subsection scores are complete before it is
// returned.
func (o *Orchestrator) process(ctx context.Context, r *run, t task, page types.FetchedPage) pageResult {
	page.Order = t.item.Candidate.Order
	res := pageResult{task: t, page: page}
	if !page.OK() {
		return res
	}

	subject := types.Subject{Kind: types.SubjectPage, URL: page.URL, Text: pageText(page)}
	res.scores = make([]types.RelevanceScore, len(r.subs))

	var g errgroup.Group
	g.SetLimit(o.cfg.ClassifyConcurrency)
	for i, sub := range r.subs {
		g.Go(func() error {
			res.scores[i] = o.scorer.Score(ctx, subject, sub)
			return nil
		})
	}
	_ = g.Wait()

	res.links = o.judgeLinks(ctx, r, page)
	return res
}

// judgeLinks pre-scores the page's unseen same-site links and selects the
// ones to enqueue. Selected links that robots.txt forbids are turned down.
func (o *Orchestrator) judgeLinks(ctx context.Context, r *run, page types.FetchedPage) []linkVerdict {
	var verdicts []linkVerdict
	for i, l := range page.Links {
		u, err := frontier.NormalizeURL(l.URL)
		if err != nil || !frontier.SameSite(r.seed, u) || r.frontier.Seen(u) {
			continue
		}
		l.URL = u
		l.SourceURL = page.URL
		l.Order = page.Order.Child(i)

		subject := types.Subject{Kind: types.SubjectLink, URL: u, Text: linkText(l)}
		best := 0.0
		for _, sub := range r.subs {
			best = max(best, o.prefetch.Score(ctx, subject, sub).Score)
		}
		verdicts = append(verdicts, linkVerdict{candidate: l, score: best})
	}

	selectCandidates(verdicts, o.cfg.AcceptThreshold, o.cfg.TopNFallback)

	if policy, ok := o.fetcher.(RobotsPolicy); ok {
		for i := range verdicts {
			if verdicts[i].accepted && !policy.Allowed(ctx, verdicts[i].candidate.URL) {
				verdicts[i].accepted = false
				verdicts[i].reason = "disallowed by robots.txt"
			}
		}
	}
	return verdicts
}

// merge folds a worker's result into the run. Only Run's goroutine calls it.
func (o *Orchestrator) merge(r *run, res pageResult) {
	url := res.item.Candidate.URL
	r.pages = append(r.pages, classifiedPage{page: res.page, scores: res.scores})
	if res.page.OK() {
		r.fetched++
		o.emit(r, progress.Event{Kind: progress.EventPageFetched, URL: url, Worker: res.worker})
	} else {
		r.failed++
		o.emit(r, progress.Event{Kind: progress.EventPageFailed, URL: url, Worker: res.worker, Reason: res.page.Err})
	}

	for _, v := range res.links {
		u := v.candidate.URL
		if !v.accepted {
			if !r.frontier.Seen(u) {
				r.rejected[u] = struct{}{}
				o.emit(r, progress.Event{Kind: progress.EventCandidateRejected, URL: u, Score: v.score, Reason: v.reason})
			}
			continue
		}
		if r.frontier.Push(v.candidate, v.score) {
			delete(r.rejected, u)
			o.emit(r, progress.Event{Kind: progress.EventCandidateAccepted, URL: u, Score: v.score})
		}
	}
}

func (o *Orchestrator) aggregate(r *run) *types.CrawlResult {
	discoveryOrder(r.seed, r.pages)
	sort.SliceStable(r.pages, func(a, b int) bool {
		return r.pages[a].page.Order.Compare(r.pages[b].page.Order) < 0
	})

	result := &types.CrawlResult{
		ID:          r.id,
		Seed:        r.seed,
		StartedAt:   r.startedAt,
		Subsections: make([]string, len(r.subs)),
		Rankings:    rank(r.pages, r.subs, o.cfg.TopK, o.cfg.IncludeZeroScores),
		Pages:       make([]types.FetchedPage, len(r.pages)),
		Stats: types.CrawlStats{
			PagesFetched:  r.fetched,
			PagesFailed:   r.failed,
			PagesRejected: len(r.rejected),
			Unfetched:     r.frontier.Len(),
			Termination:   r.termination,
		},
	}
	for i, sub := range r.subs {
		result.Subsections[i] = sub.ID()
	}
	for i, cp := range r.pages {
		result.Pages[i] = cp.page
	}
	result.FinishedAt = time.Now()
	return result
}

// discoveryOrder rekeys pages by a breadth-first walk of the fetched link
// graph from seed. The key a page got while crawling depends on which of
// its referrers finished first; the walk gives every page its smallest key
// over all fetched referrers, so the order only depends on which pages were
// fetched.
func discoveryOrder(seed string, pages []classifiedPage) {
	byURL := make(map[string]*types.FetchedPage, len(pages))
	for i := range pages {
		byURL[pages[i].page.URL] = &pages[i].page
	}
	root, ok := byURL[seed]
	if !ok {
		return
	}

	keyed := map[string]bool{seed: true}
	root.Order = types.DiscoveryKey{}
	queue := []*types.FetchedPage{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for i, l := range p.Links {
			u, err := frontier.NormalizeURL(l.URL)
			if err != nil || keyed[u] {
				continue
			}
			child, ok := byURL[u]
			if !ok {
				continue
			}
			keyed[u] = true
			child.Order = p.Order.Child(i)
			queue = append(queue, child)
		}
	}
}

func (o *Orchestrator) transition(r *run, next State) {
	if r.state != "" && !r.state.CanTransition(next) {
		o.logger.Error("Illegal state transition", "from", r.state, "to", next)
		return
	}
	o.logger.Debug("State transition", "id", r.id, "from", r.state, "to", next)
	r.state = next
	o.emit(r, progress.Event{Kind: progress.EventStateChanged})
}

func (o *Orchestrator) emit(r *run, e progress.Event) {
	e.Time = time.Now()
	e.State = string(r.state)
	e.Fetched = r.fetched
	e.Failed = r.failed
	e.Rejected = len(r.rejected)
	e.Frontier = r.frontier.Len()
	e.Budget = o.cfg.Budget
	o.reporter.Report(e)
}

// pageText is what the post-fetch scorer reads for a page.
func pageText(p types.FetchedPage) string {
	text := p.Text
	if p.MetaDescription != "" {
		text = p.MetaDescription + " " + text
	}
	if p.Title != "" {
		text = p.Title + " " + text
	}
	return text
}
