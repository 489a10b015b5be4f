package crawl

import (
	"net/url"
	"sort"
	"strings"

	"github.com/go-scripts/sectioncrawl/internal/types"
)

// linkVerdict is a discovered link with its best pre-fetch score across all
// subsections.
type linkVerdict struct {
	candidate types.LinkCandidate
	score     float64
	accepted  bool
	reason    string
}

// selectCandidates marks the links worth fetching: every link scoring at
// least threshold, or, when none does, the topN best links in discovery
// order of ties. It updates verdicts in place.
func selectCandidates(verdicts []linkVerdict, threshold float64, topN int) {
	passed := false
	for i := range verdicts {
		if verdicts[i].score >= threshold {
			verdicts[i].accepted = true
			passed = true
		} else {
			verdicts[i].reason = "below threshold"
		}
	}
	if passed || topN == 0 {
		return
	}

	order := make([]int, len(verdicts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return verdicts[order[a]].score > verdicts[order[b]].score
	})
	for _, i := range order[:min(topN, len(order))] {
		verdicts[i].accepted = true
		verdicts[i].reason = ""
	}
}

// linkText is what the pre-fetch scorer reads for a link: its anchor, the
// text around it and the words of its path.
func linkText(c types.LinkCandidate) string {
	parts := []string{c.AnchorText, c.Context}
	if u, err := url.Parse(c.URL); err == nil {
		path := strings.Map(func(r rune) rune {
			switch r {
			case '/', '-', '_', '.':
				return ' '
			}
			return r
		}, u.Path)
		parts = append(parts, path)
	}
	return strings.Join(parts, " ")
}
