// Package scoring rates how well a piece of text supports a subsection.
//
// Two modes exist. KeywordScorer is deterministic and needs nothing external.
// ClassifierScorer asks an external classifier and falls back to keyword
// scoring for any single call that fails.
package scoring

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// ErrClassifierUnavailable marks classifier failures. It is logged and never
// leaves the scorer.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Scorer never fails: every call yields a score in [0, 1].
type Scorer interface {
	Score(ctx context.Context, subject types.Subject, sub *catalog.Subsection) types.RelevanceScore
}

// Clamp forces v into [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func orDiscard(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New(io.Discard)
}
