// Package types holds the records passed between the fetcher, the scorer and
// the crawl orchestrator.
package types

import (
	"slices"
	"time"
)

// FetchStrategy names the fetch path that produced a page.
type FetchStrategy string

const (
	StrategyRendering    FetchStrategy = "rendering"
	StrategyHTTPFallback FetchStrategy = "http-fallback"
)

// FetchOutcome is the terminal status of a fetch.
type FetchOutcome string

const (
	OutcomeSuccess  FetchOutcome = "success"
	OutcomeFailed   FetchOutcome = "failed"
	OutcomeTimedOut FetchOutcome = "timed-out"
)

// LinkCandidate is a discovered, not yet fetched, URL.
type LinkCandidate struct {
	SourceURL  string `json:"source_url"`
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
	Context    string `json:"context"`
	// Order places the candidate in discovery order. Lower is earlier.
	Order DiscoveryKey `json:"order"`
}

// DiscoveryKey is the path of link indexes from the seed to a page: the
// seed has the empty key and the i-th link of a page with key k has k.Child(i).
// Keys compare shortest first, then element-wise, which matches a
// breadth-first walk of the link graph.
type DiscoveryKey []int

// Child is the key of the i-th link found on the page with key k.
func (k DiscoveryKey) Child(i int) DiscoveryKey {
	return append(slices.Clip(k), i)
}

// Compare returns -1, 0 or +1 as k sorts before, with or after other.
func (k DiscoveryKey) Compare(other DiscoveryKey) int {
	if len(k) != len(other) {
		if len(k) < len(other) {
			return -1
		}
		return 1
	}
	return slices.Compare(k, other)
}

// FetchedPage is created once per normalized URL per crawl.
type FetchedPage struct {
	URL             string          `json:"url"`
	FinalURL        string          `json:"final_url"`
	Title           string          `json:"title"`
	MetaDescription string          `json:"meta_description,omitempty"`
	Text            string          `json:"-"`
	ScreenshotRef   string          `json:"screenshot_ref,omitempty"`
	Strategy        FetchStrategy   `json:"strategy,omitempty"`
	Outcome         FetchOutcome    `json:"outcome"`
	StatusCode      int             `json:"status_code,omitempty"`
	WordCount       int             `json:"word_count"`
	Language        string          `json:"language,omitempty"`
	FetchedAt       time.Time       `json:"fetched_at"`
	Order           DiscoveryKey    `json:"order"`
	Err             string          `json:"error,omitempty"`
	Links           []LinkCandidate `json:"-"`
}

// OK reports whether the page has content worth classifying.
func (p *FetchedPage) OK() bool {
	return p.Outcome == OutcomeSuccess
}

// SubjectKind distinguishes pre-fetch link scoring from page classification.
type SubjectKind string

const (
	SubjectLink SubjectKind = "link"
	SubjectPage SubjectKind = "page"
)

// Subject is the text being scored plus where it came from.
type Subject struct {
	Kind SubjectKind
	URL  string
	Text string
}

// ScoreMode records which scoring path produced a score.
type ScoreMode string

const (
	ModeClassifier ScoreMode = "classifier"
	ModeKeyword    ScoreMode = "keyword"
)

// RelevanceScore is never mutated after creation. Score is in [0, 1].
type RelevanceScore struct {
	Kind         SubjectKind `json:"kind"`
	URL          string      `json:"url"`
	SubsectionID string      `json:"subsection"`
	Score        float64     `json:"score"`
	Rationale    string      `json:"rationale,omitempty"`
	Matches      []string    `json:"matches,omitempty"`
	Mode         ScoreMode   `json:"mode"`
}

// RankedPage is one entry of a subsection's ranking.
type RankedPage struct {
	Rank  int            `json:"rank"`
	Page  FetchedPage    `json:"page"`
	Score RelevanceScore `json:"score"`
}

// Termination is why the crawl stopped fetching.
type Termination string

const (
	TerminationFrontierExhausted Termination = "frontier_exhausted"
	TerminationBudgetExceeded    Termination = "budget_exceeded"
	TerminationCancelled         Termination = "cancelled"
)

// CrawlStats summarizes a crawl.
type CrawlStats struct {
	PagesFetched  int         `json:"pages_fetched"`
	PagesFailed   int         `json:"pages_failed"`
	PagesRejected int         `json:"pages_rejected"`
	Unfetched     int         `json:"unfetched"`
	Termination   Termination `json:"termination"`
	FinalState    string      `json:"final_state"`
}

// CrawlResult is built once at aggregation.
type CrawlResult struct {
	ID         string    `json:"id"`
	Seed       string    `json:"seed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Subsections lists subsection IDs in catalog order.
	Subsections []string                `json:"subsections"`
	Rankings    map[string][]RankedPage `json:"rankings"`
	Pages       []FetchedPage           `json:"pages"`
	Stats       CrawlStats              `json:"stats"`
}
