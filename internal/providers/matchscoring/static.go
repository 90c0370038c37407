// Package matchscoring implements the scanner's MatchScorerProvider
// variants: a fixed-threshold scorer and an ML-backed one that reloads
// learned thresholds periodically. Grounded on the original
// implementation's providers/match_scoring/static.py and ml_scorer.py.
package matchscoring

import (
	"github.com/divavault/scanner-core/internal/models"
)

// Static maps similarity to a confidence tier using a fixed threshold set.
type Static struct {
	Low, Medium, High float32
}

// NewStatic builds a Static scorer from a threshold set. Callers are
// expected to have already validated Low <= Medium <= High.
func NewStatic(low, medium, high float32) *Static {
	return &Static{Low: low, Medium: medium, High: high}
}

// Score implements providers.MatchScorerProvider.
func (s *Static) Score(similarity float32) models.ConfidenceTier {
	switch {
	case similarity >= s.High:
		return models.ConfidenceHigh
	case similarity >= s.Medium:
		return models.ConfidenceMedium
	case similarity >= s.Low:
		return models.ConfidenceLow
	default:
		return models.ConfidenceNone
	}
}
