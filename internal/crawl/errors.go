package crawl

import (
	"errors"
	"fmt"
)

// ErrNoFetcher is returned by New when no fetcher is given.
var ErrNoFetcher = errors.New("crawl: a fetcher is required")

// SeedUnreachableError fails a crawl at INIT when the seed URL is invalid or
// cannot be fetched by any strategy.
type SeedUnreachableError struct {
	URL   string
	Cause error
}

func (e *SeedUnreachableError) Error() string {
	return fmt.Sprintf("seed %s unreachable: %v", e.URL, e.Cause)
}

func (e *SeedUnreachableError) Unwrap() error {
	return e.Cause
}
