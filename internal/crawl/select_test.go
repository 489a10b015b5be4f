package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

func verdicts(scores ...float64) []linkVerdict {
	v := make([]linkVerdict, len(scores))
	for i, s := range scores {
		v[i] = linkVerdict{score: s}
	}
	return v
}

func accepted(v []linkVerdict) []bool {
	out := make([]bool, len(v))
	for i := range v {
		out[i] = v[i].accepted
	}
	return out
}

func TestSelectCandidates(t *testing.T) {
	testCases := []struct {
		name     string
		scores   []float64
		topN     int
		expected []bool
	}{
		{"Threshold filters", []float64{0.5, 0.1, 0.2}, 3, []bool{true, false, true}},
		{"Fallback takes best", []float64{0.1, 0.15, 0.05, 0.12}, 2, []bool{false, true, false, true}},
		{"Fallback ties keep discovery order", []float64{0, 0, 0}, 2, []bool{true, true, false}},
		{"Fallback disabled", []float64{0.1, 0.1}, 0, []bool{false, false}},
		{"Fallback larger than page", []float64{0.1}, 3, []bool{true}},
		{"No links", nil, 3, []bool{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := verdicts(tc.scores...)
			selectCandidates(v, 0.2, tc.topN)
			assert.Equal(t, tc.expected, accepted(v))
			for _, lv := range v {
				if !lv.accepted {
					assert.Equal(t, "below threshold", lv.reason)
				}
			}
		})
	}
}

func TestLinkText(t *testing.T) {
	c := types.LinkCandidate{
		URL:        "https://uni.edu/admissions/key-dates.html",
		AnchorText: "Key dates",
		Context:    "Plan ahead",
	}
	assert.Equal(t, "Key dates Plan ahead  admissions key dates html", linkText(c))
}

func TestRankOrdersByScoreThenDiscovery(t *testing.T) {
	subs := []*catalog.Subsection{{Section: "S", Name: "A"}}
	mk := func(url string, order types.DiscoveryKey, score float64) classifiedPage {
		return classifiedPage{
			page:   types.FetchedPage{URL: url, Order: order, Outcome: types.OutcomeSuccess},
			scores: []types.RelevanceScore{{SubsectionID: "S/A", Score: score}},
		}
	}
	pages := []classifiedPage{
		mk("late-tie", types.DiscoveryKey{0, 0}, 0.5),
		mk("best", types.DiscoveryKey{1}, 0.9),
		mk("early-tie", types.DiscoveryKey{3}, 0.5),
		mk("zero", types.DiscoveryKey{2}, 0),
		{page: types.FetchedPage{URL: "failed", Outcome: types.OutcomeFailed}},
	}

	got := rank(pages, subs, 10, false)["S/A"]
	assert.Equal(t, []string{"best", "early-tie", "late-tie"}, rankedURLs(got))

	got = rank(pages, subs, 2, false)["S/A"]
	assert.Equal(t, []string{"best", "early-tie"}, rankedURLs(got))

	got = rank(pages, subs, 10, true)["S/A"]
	assert.Equal(t, []string{"best", "early-tie", "late-tie", "zero"}, rankedURLs(got))
	assert.Equal(t, 4, got[3].Rank)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StateInit.CanTransition(StateDiscovering))
	assert.True(t, StateInit.CanTransition(StateFailed))
	assert.False(t, StateInit.CanTransition(StateCancelled))
	assert.True(t, StateFetching.CanTransition(StateCancelled))
	assert.True(t, StateClassifying.CanTransition(StateCancelled))
	assert.False(t, StateAggregating.CanTransition(StateCancelled))
	assert.False(t, StateDone.CanTransition(StateInit))

	assert.True(t, StateDone.Terminal())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateFetching.Terminal())
}
