package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/go-scripts/sectioncrawl/internal/types"
)

// ErrBrowserUnavailable is returned by the rendering strategy when no browser
// could be started in this environment.
var ErrBrowserUnavailable = errors.New("headless browser unavailable")

// ErrNoStrategy is recorded when every strategy was switched off.
var ErrNoStrategy = errors.New("no fetch strategy available")

// FailureKind categorizes a failed fetch attempt.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureNetwork     FailureKind = "network"
	FailureStatus      FailureKind = "status"
	FailureContent     FailureKind = "content"
	FailureUnavailable FailureKind = "unavailable"
	FailureCancelled   FailureKind = "cancelled"
)

// FetchFailure is recorded on a page, never returned to the crawl.
type FetchFailure struct {
	URL        string
	Strategy   types.FetchStrategy
	Kind       FailureKind
	StatusCode int
	Cause      error
}

func (e *FetchFailure) Error() string {
	msg := fmt.Sprintf("%s fetch of %s failed: %s", e.Strategy, e.URL, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *FetchFailure) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the attempt ran out of time.
func (e *FetchFailure) Timeout() bool {
	return e.Kind == FailureTimeout
}

func newFailure(url string, strategy types.FetchStrategy, err error) *FetchFailure {
	var ff *FetchFailure
	if errors.As(err, &ff) {
		if ff.Strategy == "" {
			ff.Strategy = strategy
		}
		if ff.URL == "" {
			ff.URL = url
		}
		return ff
	}
	return &FetchFailure{
		URL:      url,
		Strategy: strategy,
		Kind:     classify(err),
		Cause:    err,
	}
}

func classify(err error) FailureKind {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, ErrBrowserUnavailable):
		return FailureUnavailable
	case errors.As(err, &netErr) && netErr.Timeout():
		return FailureTimeout
	default:
		return FailureNetwork
	}
}
