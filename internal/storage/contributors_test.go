package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/models"
)

func TestContributorStore_CreateGetRoundTrip(t *testing.T) {
	db := openTestDB(t)

	c := &models.Contributor{DisplayName: "Alice", Tier: models.TierProtected}
	require.NoError(t, db.Contributors.Create(c))
	assert.NotEmpty(t, c.ID)

	got, err := db.Contributors.Get(c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, models.TierProtected, got.Tier)
	assert.Empty(t, got.Embeddings)
}

func TestContributorStore_Get_UnknownIDReturnsNil(t *testing.T) {
	db := openTestDB(t)
	got, err := db.Contributors.Get("does-not-exist")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestContributorStore_AddEmbeddingAndPrimaryFlag(t *testing.T) {
	db := openTestDB(t)

	c := &models.Contributor{DisplayName: "Bob", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(c))

	var vec [models.EmbeddingDim]float32
	vec[0] = 1
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: c.ID, Vector: vec, Primary: true}))

	got, err := db.Contributors.Get(c.ID)
	require.NoError(t, err)
	require.Len(t, got.Embeddings, 1)
	assert.True(t, got.Embeddings[0].Primary)
	assert.Equal(t, float32(1), got.Embeddings[0].Vector[0])
}

func TestContributorStore_AddKnownAccount(t *testing.T) {
	db := openTestDB(t)

	c := &models.Contributor{DisplayName: "Carol", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(c))
	require.NoError(t, db.Contributors.AddKnownAccount(&models.KnownAccount{ContributorID: c.ID, Platform: "instagram", Handle: "carol"}))

	got, err := db.Contributors.Get(c.ID)
	require.NoError(t, err)
	require.Len(t, got.KnownAccounts, 1)
	assert.Equal(t, "instagram", got.KnownAccounts[0].Platform)
}

func TestContributorStore_AllCandidates_FreeTierDropsSecondaryEmbeddings(t *testing.T) {
	db := openTestDB(t)

	free := &models.Contributor{DisplayName: "Dave", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(free))

	var v1, v2 [models.EmbeddingDim]float32
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: free.ID, Vector: v1, Primary: true}))
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: free.ID, Vector: v2, Primary: false}))

	candidates, err := db.Contributors.AllCandidates(config.DefaultTierTable())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].Primary)
}

func TestContributorStore_AllCandidates_ProtectedTierKeepsSecondaryEmbeddings(t *testing.T) {
	db := openTestDB(t)

	protected := &models.Contributor{DisplayName: "Erin", Tier: models.TierProtected}
	require.NoError(t, db.Contributors.Create(protected))

	var v1, v2 [models.EmbeddingDim]float32
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: protected.ID, Vector: v1, Primary: true}))
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: protected.ID, Vector: v2, Primary: false}))

	candidates, err := db.Contributors.AllCandidates(config.DefaultTierTable())
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestContributorStore_AllIDs(t *testing.T) {
	db := openTestDB(t)

	a := &models.Contributor{DisplayName: "A", Tier: models.TierFree}
	b := &models.Contributor{DisplayName: "B", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(a))
	require.NoError(t, db.Contributors.Create(b))

	ids, err := db.Contributors.AllIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}
