package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/sectioncrawl/internal/progress"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

func TestWaitForEvent(t *testing.T) {
	ch := make(chan progress.Event, 1)
	ch <- progress.Event{Kind: progress.EventPageFetched, URL: "https://uni.edu/"}

	msg := WaitForEvent(ch)()
	ev, ok := msg.(EventMsg)
	require.True(t, ok)
	assert.Equal(t, "https://uni.edu/", ev.URL)

	close(ch)
	assert.IsType(t, streamClosedMsg{}, WaitForEvent(ch)())
}

func TestLayoutAppliesEvents(t *testing.T) {
	ch := make(chan progress.Event)
	l := NewLayout(ch, 2)
	l.SetSize(120, 40)

	now := time.Now()
	events := []progress.Event{
		{Kind: progress.EventStateChanged, Time: now, State: "FETCHING", Budget: 10},
		{Kind: progress.EventCandidateAccepted, Time: now, URL: "https://uni.edu/apply", Score: 0.7, Frontier: 1, Budget: 10},
		{Kind: progress.EventCandidateRejected, Time: now, URL: "https://uni.edu/news", Reason: "below threshold", Rejected: 1, Budget: 10},
		{Kind: progress.EventPageDispatched, Time: now, URL: "https://uni.edu/apply", Worker: 1, Budget: 10},
	}
	for _, e := range events {
		l.Update(EventMsg(e))
	}

	assert.Equal(t, 1, l.workers.grid.ActiveCount())
	assert.Equal(t, 1, l.queue.queue.Pending())
	assert.Equal(t, "FETCHING", l.stats.state)

	l.Update(EventMsg(progress.Event{Kind: progress.EventPageFetched, Time: now, URL: "https://uni.edu/apply", Worker: 1, Fetched: 2, Budget: 10}))
	assert.Equal(t, 0, l.workers.grid.ActiveCount())
	assert.Equal(t, 0, l.queue.queue.Pending())
	assert.Len(t, l.results.table.results, 1)
	assert.InDelta(t, 0.2, l.stats.Fraction(), 1e-9)

	assert.False(t, l.Finished())
	l.Update(streamClosedMsg{})
	assert.True(t, l.Finished())
	assert.Contains(t, l.View(), "Press q to exit")
}

func TestWorkerGridIgnoresUnknownWorkers(t *testing.T) {
	g := NewWorkerGrid(2)
	g.ActivateWorker(5, "https://uni.edu/")
	g.ActivateWorker(-1, "https://uni.edu/")
	assert.Equal(t, 0, g.ActiveCount())

	g.ActivateWorker(0, "https://uni.edu/")
	g.ActivateWorker(1, "https://uni.edu/a")
	assert.Equal(t, 2, g.ActiveCount())
	g.DeactivateWorker(0)
	assert.Equal(t, 1, g.ActiveCount())
}

func TestQueueListMarkURL(t *testing.T) {
	q := NewQueueList()
	q.AddURL("https://uni.edu/a", 0.5)
	q.AddURL("https://uni.edu/a", 0.9)
	q.AddURL("https://uni.edu/b", 0.3)
	assert.Equal(t, 2, q.Pending())

	q.MarkURL("https://uni.edu/", statusDone)
	q.MarkURL("https://uni.edu/a", statusFetching)
	assert.Equal(t, 2, q.Pending())

	q.MarkURL("https://uni.edu/a", statusFailed)
	assert.Equal(t, 1, q.Pending())
	item := q.list.Items()[0].(QueueItem)
	assert.Equal(t, statusFailed, item.status)
	assert.Equal(t, "Score: 0.50 | Status: failed", item.Description())
}

func TestEventConsoleLevels(t *testing.T) {
	c := NewEventConsole()
	c.Observe(progress.Event{Kind: progress.EventStateChanged, State: "INIT"})
	c.Observe(progress.Event{Kind: progress.EventPageDispatched, URL: "https://uni.edu/"})
	c.Observe(progress.Event{Kind: progress.EventCandidateRejected, URL: "https://uni.edu/x", Reason: "disallowed by robots.txt"})
	c.Observe(progress.Event{Kind: progress.EventPageFailed, URL: "https://uni.edu/y", Reason: "status 404"})
	c.Observe(progress.Event{Kind: progress.EventStateChanged, State: "FAILED"})

	require.Len(t, c.entries, 4)
	assert.Equal(t, 2, c.countByLevel(LevelError))
	assert.Equal(t, 1, c.countByLevel(LevelWarning))
	assert.Equal(t, "https://uni.edu/y: status 404", c.entries[2].message)
}

func TestTruncate(t *testing.T) {
	testCases := []struct {
		input string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"https://uni.edu/admissions", 12, "https://u..."},
		{"abcdef", 2, "ab"},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, truncate(tc.input, tc.width))
		})
	}
}

func TestRenderSummary(t *testing.T) {
	result := &types.CrawlResult{
		ID:          "crawl-1",
		Seed:        "https://uni.edu/",
		Subsections: []string{"Admissions/Deadlines", "Finance/Tuition"},
		Rankings: map[string][]types.RankedPage{
			"Admissions/Deadlines": {{
				Rank:  1,
				Page:  types.FetchedPage{URL: "https://uni.edu/apply", Title: "Apply"},
				Score: types.RelevanceScore{Score: 0.81, Mode: types.ModeKeyword},
			}},
			"Finance/Tuition": {},
		},
		Stats: types.CrawlStats{PagesFetched: 2, Termination: types.TerminationFrontierExhausted, FinalState: "DONE"},
	}

	out := RenderSummary(result)
	assert.Contains(t, out, "crawl-1")
	assert.Contains(t, out, "DONE (frontier_exhausted)")
	assert.Contains(t, out, "Pages: 2 fetched, 0 failed, 0 rejected, 0 unfetched")
	assert.Contains(t, out, "https://uni.edu/apply")
	assert.Contains(t, out, "0.81")
	assert.Contains(t, out, "no relevant pages")
}
