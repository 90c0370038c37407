package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/providers/matchscoring"
)

func TestConfidenceTier_DelegatesToScorer(t *testing.T) {
	scorer := matchscoring.NewStatic(0.5, 0.7, 0.9)
	assert.Equal(t, models.ConfidenceHigh, ConfidenceTier(scorer, 0.95))
	assert.Equal(t, models.ConfidenceNone, ConfidenceTier(scorer, 0.1))
}

func TestCheckKnownAccount_MatchesByHandle(t *testing.T) {
	accounts := []models.KnownAccount{{Platform: "instagram", Handle: "alice"}}
	acc := CheckKnownAccount("https://instagram.com/alice", accounts)
	if assert.NotNil(t, acc) {
		assert.Equal(t, "alice", acc.Handle)
	}
}

func TestCheckKnownAccount_NoAccountsReturnsNil(t *testing.T) {
	assert.Nil(t, CheckKnownAccount("https://instagram.com/alice", nil))
	assert.Nil(t, CheckKnownAccount("", []models.KnownAccount{{Platform: "instagram", Handle: "alice"}}))
}
