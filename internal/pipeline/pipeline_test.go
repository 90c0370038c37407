package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/discovery"
	"github.com/divavault/scanner-core/internal/evidence"
	"github.com/divavault/scanner-core/internal/ingest"
	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/providers"
	"github.com/divavault/scanner-core/internal/providers/matchscoring"
	"github.com/divavault/scanner-core/internal/storage"
	"github.com/divavault/scanner-core/internal/takedown"
)

// fakeSource returns a canned discovery.Result regardless of context.
type fakeSource struct {
	sourceType discovery.SourceType
	name       string
	result     discovery.Result
}

func (f *fakeSource) Discover(ctx context.Context, dctx discovery.Context) (discovery.Result, error) {
	return f.result, nil
}
func (f *fakeSource) SourceType() discovery.SourceType { return f.sourceType }
func (f *fakeSource) SourceName() string               { return f.name }

// fakeFaceDetector returns one canned face per image, unless told to return
// none (simulating a no_face outcome).
type fakeFaceDetector struct {
	vector [models.EmbeddingDim]float32
	faces  int
}

func (f *fakeFaceDetector) Name() string { return "fake" }
func (f *fakeFaceDetector) Detect(ctx context.Context, imagePath string) ([]providers.DetectedFace, error) {
	out := make([]providers.DetectedFace, f.faces)
	for i := range out {
		out[i] = providers.DetectedFace{Vector: f.vector, DetectionScore: 0.99}
	}
	return out, nil
}

func unitVector(fill float32) [models.EmbeddingDim]float32 {
	var v [models.EmbeddingDim]float32
	for i := range v {
		v[i] = fill
	}
	return v
}

func newTestRegistry(t *testing.T, detector *fakeFaceDetector) *providers.Registry {
	t.Helper()
	reg := providers.NewRegistry("fake", "", "static")
	reg.RegisterFaceDetection("fake", func() (providers.FaceDetectionProvider, error) { return detector, nil })
	reg.RegisterMatchScoring("static", func() (providers.MatchScorerProvider, error) {
		return matchscoring.NewStatic(0.50, 0.65, 0.85), nil
	})
	return reg
}

func newFakeImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("fake-image-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(t *testing.T, db *storage.DB, reg *providers.Registry) *Pipeline {
	return &Pipeline{
		Contributors:  db.Contributors,
		Images:        db.Images,
		Matches:       db.Matches,
		Notifications: db.Notifications,
		Takedowns:     db.Takedowns,
		Candidates:    db.Contributors,
		Thresholds:    config.NewThresholdsRef(config.DefaultThresholds()),
		Tiers:         config.NewTierTableRef(config.DefaultTierTable()),
		Evidence:      &evidence.StubCaptureClient{},
		Drafter:       takedown.StubDrafter{},
		Providers:     reg,
		Observer:      nil,
		IngestCfg: ingest.Config{
			MaxDownloadBytes: 1 << 20,
			ScratchDir:       t.TempDir(),
		},
		BatchSize: 10,
	}
}

func openPipelineTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "pipeline-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunContributorScan_EmbeddedFaceAboveThresholdCreatesMatch(t *testing.T) {
	db := openPipelineTestDB(t)
	vec := unitVector(1)

	contributor := &models.Contributor{DisplayName: "alice", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(contributor))
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: contributor.ID, Vector: vec, Primary: true}))

	srv := newFakeImageServer(t)
	src := &fakeSource{
		sourceType: discovery.SourceReverseImage,
		name:       "tineye",
		result: discovery.Result{
			Images: []discovery.ImageResult{
				{SourceURL: srv.URL + "/a.jpg", PageURL: "https://host/page-a", Platform: "none"},
			},
		},
	}

	detector := &fakeFaceDetector{vector: vec, faces: 1}
	reg := newTestRegistry(t, detector)
	p := newTestPipeline(t, db, reg)

	out, err := p.RunContributorScan(context.Background(), contributor.ID, src, discovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, 1, out.ImagesDiscovered)
	assert.Equal(t, 1, out.ImagesIngested)
	assert.Equal(t, 1, out.MatchesCreated)

	matches, err := db.Matches.ForContributor(contributor.ID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, contributor.ID, matches[0].ContributorID)
	assert.Greater(t, matches[0].Similarity, float32(0.99))
}

func TestRunContributorScan_NoFaceDetectedCreatesNoMatch(t *testing.T) {
	db := openPipelineTestDB(t)
	vec := unitVector(1)

	contributor := &models.Contributor{DisplayName: "bob", Tier: models.TierFree}
	require.NoError(t, db.Contributors.Create(contributor))
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: contributor.ID, Vector: vec, Primary: true}))

	srv := newFakeImageServer(t)
	src := &fakeSource{
		sourceType: discovery.SourceReverseImage,
		name:       "tineye",
		result: discovery.Result{
			Images: []discovery.ImageResult{
				{SourceURL: srv.URL + "/a.jpg", PageURL: "https://host/page-a", Platform: "none"},
			},
		},
	}

	detector := &fakeFaceDetector{vector: vec, faces: 0}
	reg := newTestRegistry(t, detector)
	p := newTestPipeline(t, db, reg)

	out, err := p.RunContributorScan(context.Background(), contributor.ID, src, discovery.Context{})
	require.NoError(t, err)

	assert.Equal(t, 1, out.ImagesIngested)
	assert.Equal(t, 0, out.MatchesCreated)

	matches, err := db.Matches.ForContributor(contributor.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestRunContributorScan_UnknownContributorErrors(t *testing.T) {
	db := openPipelineTestDB(t)
	detector := &fakeFaceDetector{vector: unitVector(1), faces: 1}
	reg := newTestRegistry(t, detector)
	p := newTestPipeline(t, db, reg)

	src := &fakeSource{sourceType: discovery.SourceReverseImage, name: "tineye"}
	_, err := p.RunContributorScan(context.Background(), "nonexistent", src, discovery.Context{})
	assert.Error(t, err)
}

func TestRunPlatformCrawl_MatchesAgainstFullRegistry(t *testing.T) {
	db := openPipelineTestDB(t)
	vec := unitVector(1)

	contributor := &models.Contributor{DisplayName: "carol", Tier: models.TierProtected}
	require.NoError(t, db.Contributors.Create(contributor))
	require.NoError(t, db.Contributors.AddEmbedding(&models.Embedding{ContributorID: contributor.ID, Vector: vec, Primary: true}))

	srv := newFakeImageServer(t)
	src := &fakeSource{
		sourceType: discovery.SourcePlatformCrawl,
		name:       "civitai",
		result: discovery.Result{
			Images: []discovery.ImageResult{
				{SourceURL: srv.URL + "/b.jpg", PageURL: "https://civitai.com/models/1", Platform: "civitai"},
			},
		},
	}

	detector := &fakeFaceDetector{vector: vec, faces: 1}
	reg := newTestRegistry(t, detector)
	p := newTestPipeline(t, db, reg)

	out, _, err := p.RunPlatformCrawl(context.Background(), src, discovery.Context{Platform: "civitai"})
	require.NoError(t, err)

	assert.Equal(t, 1, out.ImagesDiscovered)
	assert.Equal(t, 1, out.MatchesCreated)

	matches, err := db.Matches.ForContributor(contributor.ID, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// protected tier: evidence capture is gated on, so a match at high
	// confidence should carry a captured evidence hash.
	assert.NotEmpty(t, matches[0].EvidenceSHA256)
}

func TestRunPlatformCrawl_EmptyRegistrySkipsMatching(t *testing.T) {
	db := openPipelineTestDB(t)

	srv := newFakeImageServer(t)
	src := &fakeSource{
		sourceType: discovery.SourcePlatformCrawl,
		name:       "civitai",
		result: discovery.Result{
			Images: []discovery.ImageResult{
				{SourceURL: srv.URL + "/c.jpg", PageURL: "https://civitai.com/models/2", Platform: "civitai"},
			},
		},
	}

	detector := &fakeFaceDetector{vector: unitVector(1), faces: 1}
	reg := newTestRegistry(t, detector)
	p := newTestPipeline(t, db, reg)

	out, _, err := p.RunPlatformCrawl(context.Background(), src, discovery.Context{Platform: "civitai"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.MatchesCreated)
}
