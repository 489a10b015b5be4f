package progress

import (
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// SpinnerReporter shows a terminal spinner with the URLs currently being
// fetched by each worker.
type SpinnerReporter struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
	active  map[int]string
	state   string
	fetched int
	budget  int
}

func NewSpinnerReporter(out io.Writer) *SpinnerReporter {
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	return &SpinnerReporter{spinner: s, active: make(map[int]string)}
}

func (s *SpinnerReporter) Report(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case EventStateChanged:
		s.state = e.State
		if !s.spinner.Active() {
			s.spinner.Start()
		}
		switch e.State {
		case "DONE", "FAILED", "CANCELLED":
			s.spinner.Stop()
			return
		}
	case EventPageDispatched:
		s.active[e.Worker] = e.URL
	case EventPageFetched, EventPageFailed:
		delete(s.active, e.Worker)
		s.fetched = e.Fetched + e.Failed
		s.budget = e.Budget
	default:
		return
	}
	s.spinner.Suffix = s.suffix()
}

func (s *SpinnerReporter) suffix() string {
	msg := fmt.Sprintf(" %s %d/%d", s.state, s.fetched, s.budget)
	for _, id := range slices.Sorted(maps.Keys(s.active)) {
		msg += fmt.Sprintf("\n    [%d] %s", id, formatSpinnerMessage(s.active[id]))
	}
	return msg
}

// Stop halts the spinner if it is still running.
func (s *SpinnerReporter) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spinner.Stop()
}

func formatSpinnerMessage(urlStr string) string {
	return FormatURL(urlStr, 40)
}

// FormatURL shortens a URL longer than maxLen to host plus the tail of its
// path.
func FormatURL(urlStr string, maxLen int) string {
	if len(urlStr) <= maxLen {
		return urlStr
	}
	u, err := url.Parse(urlStr)
	if err == nil {
		domain := u.Host
		path := u.Path
		if keep := maxLen - len(domain) - 3; keep > 0 && len(path) > keep {
			path = "..." + path[len(path)-keep:]
		}
		return domain + path
	}
	return "..." + urlStr[len(urlStr)-maxLen:]
}
