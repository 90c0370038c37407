package matchscoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/divavault/scanner-core/internal/models"
)

type fakeLoader struct {
	state *models.MLModelState
	err   error
	calls int
}

func (f *fakeLoader) LatestModelState(modelName string) (*models.MLModelState, error) {
	f.calls++
	return f.state, f.err
}

func defaultsScorer() Static {
	return Static{Low: 0.5, Medium: 0.7, High: 0.9}
}

func TestML_UsesDefaultsWhenNoModelState(t *testing.T) {
	loader := &fakeLoader{state: nil}
	m := NewML(loader, defaultsScorer())

	assert.Equal(t, models.ConfidenceHigh, m.Score(0.95))
	assert.Equal(t, 1, loader.calls)
}

func TestML_UsesDefaultsOnLoaderError(t *testing.T) {
	loader := &fakeLoader{err: errors.New("db down")}
	m := NewML(loader, defaultsScorer())

	assert.Equal(t, models.ConfidenceMedium, m.Score(0.75))
}

func TestML_LoadsLearnedThresholds(t *testing.T) {
	loader := &fakeLoader{state: &models.MLModelState{
		ModelName: "threshold_optimizer",
		Version:   2,
		Parameters: map[string]any{
			"thresholds": map[string]any{
				"low":    float64(0.4),
				"medium": float64(0.6),
				"high":   float64(0.8),
			},
		},
	}}
	m := NewML(loader, defaultsScorer())

	assert.Equal(t, models.ConfidenceHigh, m.Score(0.85))
	assert.Equal(t, models.ConfidenceMedium, m.Score(0.65))
}

func TestML_FallsBackToDefaultsWhenThresholdsMissing(t *testing.T) {
	loader := &fakeLoader{state: &models.MLModelState{
		ModelName:  "threshold_optimizer",
		Parameters: map[string]any{},
	}}
	m := NewML(loader, defaultsScorer())

	assert.Equal(t, models.ConfidenceHigh, m.Score(0.95))
}

func TestML_Invalidate_ForcesReloadOnNextCall(t *testing.T) {
	loader := &fakeLoader{state: nil}
	m := NewML(loader, defaultsScorer())

	m.Score(0.5)
	assert.Equal(t, 1, loader.calls)
	m.Score(0.5)
	assert.Equal(t, 1, loader.calls, "within cache window, no reload")

	m.Invalidate()
	m.Score(0.5)
	assert.Equal(t, 2, loader.calls, "invalidate forces a reload regardless of call-count cadence")
}

func TestML_RefreshesEveryCacheInterval(t *testing.T) {
	loader := &fakeLoader{state: nil}
	m := NewML(loader, defaultsScorer())

	for i := 0; i < cacheRefreshInterval; i++ {
		m.Score(0.5)
	}
	assert.Equal(t, 2, loader.calls, "first call plus the 100th call should each reload")
}
