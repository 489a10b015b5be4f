// Package frontier holds the crawl's pending URLs in priority order and the
// set of URLs already claimed, so that no normalized URL is fetched twice.
package frontier

import (
	"container/heap"
	"sync"

	"github.com/go-scripts/sectioncrawl/internal/types"
)

// Item is a queued candidate with its pre-fetch score.
type Item struct {
	Candidate types.LinkCandidate
	Score     float64
}

// Frontier is safe for concurrent use.
type Frontier struct {
	mu    sync.Mutex
	items itemHeap
	seen  map[string]struct{}
}

// New returns an empty frontier.
func New() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Claim marks url as seen without queueing it. It returns false when the URL
// was already queued or claimed.
func (f *Frontier) Claim(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	return true
}

// Push queues a candidate unless its URL has been seen before.
func (f *Frontier) Push(c types.LinkCandidate, score float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.seen[c.URL]; ok {
		return false
	}
	f.seen[c.URL] = struct{}{}
	heap.Push(&f.items, Item{Candidate: c, Score: score})
	return true
}

// Pop removes the highest scoring candidate. Ties go to the earliest
// discovered.
func (f *Frontier) Pop() (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return Item{}, false
	}
	return heap.Pop(&f.items).(Item), true
}

// Seen reports whether url has been queued or claimed.
func (f *Frontier) Seen(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[url]
	return ok
}

// Len is the number of queued candidates.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type itemHeap []Item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].Candidate.Order.Compare(h[j].Candidate.Order) < 0
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}
