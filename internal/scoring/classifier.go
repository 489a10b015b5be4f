package scoring

import (
	"context"
	"math"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/sectioncrawl/internal/catalog"
	"github.com/go-scripts/sectioncrawl/internal/types"
)

// Classification is an external classifier's verdict.
type Classification struct {
	Score     float64
	Rationale string
	Quotes    []string
}

// Classifier judges text against a subsection definition.
type Classifier interface {
	Classify(ctx context.Context, text string, sub *catalog.Subsection) (Classification, error)
}

// ClassifierScorer uses a Classifier and substitutes the keyword score for
// any call that fails. Substitution is per call; a later call tries the
// classifier again.
type ClassifierScorer struct {
	classifier Classifier
	fallback   Scorer
	logger     *log.Logger
}

// NewClassifierScorer wraps c. A nil fallback uses KeywordScorer.
func NewClassifierScorer(c Classifier, fallback Scorer, logger *log.Logger) *ClassifierScorer {
	if fallback == nil {
		fallback = NewKeywordScorer()
	}
	return &ClassifierScorer{classifier: c, fallback: fallback, logger: orDiscard(logger)}
}

func (s *ClassifierScorer) Score(ctx context.Context, subject types.Subject, sub *catalog.Subsection) types.RelevanceScore {
	if ctx.Err() != nil {
		return s.fallback.Score(ctx, subject, sub)
	}

	c, err := s.classifier.Classify(ctx, subject.Text, sub)
	if err == nil && (math.IsNaN(c.Score) || math.IsInf(c.Score, 0)) {
		err = ErrClassifierUnavailable
	}
	if err != nil {
		s.logger.Debug("Classifier failed, using keyword score",
			"url", subject.URL,
			"subsection", sub.ID(),
			"error", err)
		return s.fallback.Score(ctx, subject, sub)
	}

	return types.RelevanceScore{
		Kind:         subject.Kind,
		URL:          subject.URL,
		SubsectionID: sub.ID(),
		Score:        Clamp(c.Score),
		Rationale:    c.Rationale,
		Matches:      c.Quotes,
		Mode:         types.ModeClassifier,
	}
}
