package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divavault/scanner-core/internal/models"
)

func seedMatchFixtures(t *testing.T, db *DB) (*models.Contributor, *models.DiscoveredImage) {
	t.Helper()
	c := &models.Contributor{DisplayName: "Match Fixture", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(c))
	img := &models.DiscoveredImage{SourceURL: "https://example.org/match.jpg"}
	_, err := db.Images.Insert(img)
	require.NoError(t, err)
	return c, img
}

func TestMatchStore_CreateGetRoundTrip(t *testing.T) {
	db := openTestDB(t)
	c, img := seedMatchFixtures(t, db)

	m := &models.Match{
		ContributorID:      c.ID,
		DiscoveredImageID:  img.ID,
		Similarity:         0.87,
		ConfidenceTier:     models.ConfidenceHigh,
		AIVerdict:          &models.AIVerdict{IsAIGenerated: true, Score: 0.6, Generator: "stable-diffusion"},
	}
	require.NoError(t, db.Matches.Create(m))
	assert.Equal(t, models.ReviewNew, m.ReviewStatus)

	got, err := db.Matches.Get(m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ConfidenceHigh, got.ConfidenceTier)
	require.NotNil(t, got.AIVerdict)
	assert.True(t, got.AIVerdict.IsAIGenerated)
	assert.Equal(t, "stable-diffusion", got.AIVerdict.Generator)
}

func TestMatchStore_UpdateReviewStatus(t *testing.T) {
	db := openTestDB(t)
	c, img := seedMatchFixtures(t, db)

	m := &models.Match{ContributorID: c.ID, DiscoveredImageID: img.ID, Similarity: 0.5}
	require.NoError(t, db.Matches.Create(m))

	require.NoError(t, db.Matches.UpdateReviewStatus(m.ID, models.ReviewConfirmed))

	got, err := db.Matches.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewConfirmed, got.ReviewStatus)
}

func TestMatchStore_SetEvidenceSHA256(t *testing.T) {
	db := openTestDB(t)
	c, img := seedMatchFixtures(t, db)

	m := &models.Match{ContributorID: c.ID, DiscoveredImageID: img.ID, Similarity: 0.5}
	require.NoError(t, db.Matches.Create(m))
	require.NoError(t, db.Matches.SetEvidenceSHA256(m.ID, "deadbeef"))

	got, err := db.Matches.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got.EvidenceSHA256)
}

func TestMatchStore_ForContributor_MostRecentFirst(t *testing.T) {
	db := openTestDB(t)
	c, img := seedMatchFixtures(t, db)

	first := &models.Match{ContributorID: c.ID, DiscoveredImageID: img.ID, Similarity: 0.5}
	require.NoError(t, db.Matches.Create(first))
	second := &models.Match{ContributorID: c.ID, DiscoveredImageID: img.ID, Similarity: 0.6}
	require.NoError(t, db.Matches.Create(second))

	matches, err := db.Matches.ForContributor(c.ID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, second.ID, matches[0].ID, "newest match comes first")
}

func TestMatchStore_Get_UnknownIDReturnsNil(t *testing.T) {
	db := openTestDB(t)
	got, err := db.Matches.Get("nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}
