package crawl

import (
	"sort"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// classifiedPage is a fetched page and its score for every subsection, in
// catalog order. Failed pages have no scores.
type classifiedPage struct {
	page   types.FetchedPage
	scores []types.RelevanceScore
}

// rank builds each subsection's top-K list. Order is score descending, then
// discovery order ascending. Pages scoring 0 are dropped unless includeZero
// is set, in which case they sort last.
func rank(pages []classifiedPage, subs []*catalog.Subsection, topK int, includeZero bool) map[string][]types.RankedPage {
	rankings := make(map[string][]types.RankedPage, len(subs))

	for i, sub := range subs {
		entries := make([]types.RankedPage, 0)
		for _, cp := range pages {
			if !cp.page.OK() || len(cp.scores) != len(subs) {
				continue
			}
			score := cp.scores[i]
			if score.Score <= 0 && !includeZero {
				continue
			}
			entries = append(entries, types.RankedPage{Page: cp.page, Score: score})
		}

		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].Score.Score != entries[b].Score.Score {
				return entries[a].Score.Score > entries[b].Score.Score
			}
			return entries[a].Page.Order.Compare(entries[b].Page.Order) < 0
		})

		if len(entries) > topK {
			entries = entries[:topK]
		}
		for r := range entries {
			entries[r].Rank = r + 1
		}
		rankings[sub.ID()] = entries
	}

	return rankings
}
