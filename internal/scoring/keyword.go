package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/keywords"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// Weights of the keyword score components. They sum to 1.
const (
	coverageWeight  = 0.6
	frequencyWeight = 0.3
	positionWeight  = 0.1

	// Occurrences at which the frequency component saturates.
	frequencySaturation = 10
)

// KeywordScorer scores by keyword coverage, frequency and position. It is
// pure: the same text and subsection always give the same score.
type KeywordScorer struct{}

// NewKeywordScorer returns the fallback scorer.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{}
}

func (k *KeywordScorer) Score(_ context.Context, subject types.Subject, sub *catalog.Subsection) types.RelevanceScore {
	rs := types.RelevanceScore{
		Kind:         subject.Kind,
		URL:          subject.URL,
		SubsectionID: sub.ID(),
		Mode:         types.ModeKeyword,
	}
	if sub.Unscorable || len(sub.Keywords) == 0 {
		return rs
	}

	tokens := keywords.Tokenize(subject.Text)
	if len(tokens) == 0 {
		return rs
	}

	matched := matchKeywords(tokens, sub.Keywords)
	if len(matched) == 0 {
		return rs
	}

	hits := 0
	first := make(map[string]int, len(matched))
	for i, tok := range tokens {
		if _, ok := matched[tok]; !ok {
			continue
		}
		hits++
		if _, seen := first[tok]; !seen {
			first[tok] = i
		}
	}

	coverage := float64(len(matched)) / float64(len(sub.Keywords))
	frequency := math.Min(1, math.Log1p(float64(hits))/math.Log1p(frequencySaturation))
	// Summed in keyword order so the float result is reproducible.
	position := 0.0
	for _, kw := range sub.Keywords {
		if idx, ok := first[kw]; ok {
			position += 1 - float64(idx)/float64(len(tokens))
			rs.Matches = append(rs.Matches, kw)
		}
	}
	position /= float64(len(first))

	rs.Score = Clamp(coverage*coverageWeight + frequency*frequencyWeight + position*positionWeight)
	rs.Rationale = fmt.Sprintf("matched %d of %d keywords, %d occurrences", len(matched), len(sub.Keywords), hits)

	return rs
}

// matchKeywords finds which keywords occur as whole tokens. Tokens are
// joined with single spaces and patterns are space padded, so one pass of
// the automaton only reports whole-word hits.
func matchKeywords(tokens, kws []string) map[string]struct{} {
	patterns := make([]string, len(kws))
	for i, kw := range kws {
		patterns[i] = " " + kw + " "
	}
	// Matchers keep per-search state, so each call builds its own.
	m := ahocorasick.NewStringMatcher(patterns)
	haystack := " " + strings.Join(tokens, " ") + " "

	found := make(map[string]struct{})
	for _, idx := range m.Match([]byte(haystack)) {
		found[kws[idx]] = struct{}{}
	}
	return found
}
