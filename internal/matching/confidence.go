package matching

import (
	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/providers"
	"github.com/divavault/scanner-core/internal/urlparse"
)

// ConfidenceTier applies the active scorer's thresholds to a raw
// similarity, matching the original's get_confidence_tier indirection
// through the configured match scoring provider.
func ConfidenceTier(scorer providers.MatchScorerProvider, similarity float32) models.ConfidenceTier {
	return scorer.Score(similarity)
}

// CheckKnownAccount returns the known account matching pageURL among the
// contributor's declared accounts, or nil. Mirrors check_known_account.
func CheckKnownAccount(pageURL string, accounts []models.KnownAccount) *models.KnownAccount {
	if pageURL == "" || len(accounts) == 0 {
		return nil
	}
	return urlparse.CheckAllowlist(pageURL, accounts)
}
