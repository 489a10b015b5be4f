// Package progress carries crawl lifecycle events from the orchestrator to
// whatever is watching: logs, a terminal spinner, a budget bar or the TUI.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/log"
)

// EventKind names a lifecycle event.
type EventKind string

const (
	EventStateChanged      EventKind = "state_changed"
	EventPageDispatched    EventKind = "page_dispatched"
	EventPageFetched       EventKind = "page_fetched"
	EventPageFailed        EventKind = "page_failed"
	EventCandidateAccepted EventKind = "candidate_accepted"
	EventCandidateRejected EventKind = "candidate_rejected"
)

// Event is a snapshot taken when something happened. The counters are the
// crawl totals at that moment.
type Event struct {
	Kind   EventKind
	Time   time.Time
	State  string
	URL    string
	Worker int
	Score  float64
	Reason string

	Fetched  int
	Failed   int
	Rejected int
	Frontier int
	Budget   int
}

// Reporter receives events. Report must not block the crawl.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

// Nop discards events.
var Nop Reporter = ReporterFunc(func(Event) {})

type multi []Reporter

// Multi fans each event out to every non-nil reporter in order.
func Multi(reporters ...Reporter) Reporter {
	var m multi
	for _, r := range reporters {
		if r != nil {
			m = append(m, r)
		}
	}
	if len(m) == 0 {
		return Nop
	}
	return m
}

func (m multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// LogReporter writes events as structured log lines. Candidate events are
// debug level since there are many of them.
type LogReporter struct {
	logger *log.Logger
}

func NewLogReporter(logger *log.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (l *LogReporter) Report(e Event) {
	switch e.Kind {
	case EventStateChanged:
		l.logger.Info("Crawl state changed", "state", e.State)
	case EventPageFetched:
		l.logger.Info("Page fetched", "url", e.URL, "fetched", e.Fetched, "budget", e.Budget)
	case EventPageFailed:
		l.logger.Warn("Page failed", "url", e.URL, "reason", e.Reason)
	case EventPageDispatched:
		l.logger.Debug("Fetching", "url", e.URL, "worker", e.Worker)
	case EventCandidateAccepted:
		l.logger.Debug("Candidate accepted", "url", e.URL, "score", e.Score)
	case EventCandidateRejected:
		l.logger.Debug("Candidate rejected", "url", e.URL, "score", e.Score, "reason", e.Reason)
	}
}

// ChannelReporter forwards events to a buffered channel. When the reader
// falls behind, other events are dropped to make room for state changes;
// a state change is only lost if the buffer holds nothing else.
type ChannelReporter struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped int
}

func NewChannelReporter(size int) *ChannelReporter {
	return &ChannelReporter{ch: make(chan Event, size)}
}

func (c *ChannelReporter) Report(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
		return
	default:
	}
	if e.Kind != EventStateChanged {
		c.dropped++
		return
	}

	c.evictNonState()
	select {
	case c.ch <- e:
	default:
		c.dropped++
	}
}

// evictNonState empties the buffer and puts back only the state changes,
// in order. The caller holds mu, so no other sender can take the room.
func (c *ChannelReporter) evictNonState() {
	kept := make([]Event, 0, len(c.ch))
drain:
	for n := len(c.ch); n > 0; n-- {
		select {
		case ev := <-c.ch:
			if ev.Kind == EventStateChanged {
				kept = append(kept, ev)
			} else {
				c.dropped++
			}
		default:
			break drain
		}
	}
	for _, ev := range kept {
		c.ch <- ev
	}
}

// Events is closed by Close.
func (c *ChannelReporter) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded for lack of room.
func (c *ChannelReporter) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *ChannelReporter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Tracker prints a budget progress bar each time a page completes.
type Tracker struct {
	mu     sync.Mutex
	out    io.Writer
	bar    progress.Model
	done   int
	budget int
}

func NewTracker(out io.Writer) *Tracker {
	return &Tracker{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

func (t *Tracker) Report(e Event) {
	if e.Kind != EventPageFetched && e.Kind != EventPageFailed {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = e.Fetched + e.Failed
	t.budget = e.Budget
	fmt.Fprintf(t.out, "\rProgress: %s %d/%d pages", t.bar.ViewAs(t.Fraction()), t.done, t.budget)
}

// Fraction of the budget used so far, in [0, 1].
func (t *Tracker) Fraction() float64 {
	if t.budget <= 0 {
		return 0
	}
	return min(1, float64(t.done)/float64(t.budget))
}
