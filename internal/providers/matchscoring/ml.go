package matchscoring

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/models"
)

// cacheRefreshInterval is how often (in calls) ML re-reads model state from
// storage, matching the original scorer's _CACHE_REFRESH_INTERVAL.
const cacheRefreshInterval = 100

// ModelStateLoader loads the most recent threshold_optimizer model state.
// Implemented by internal/storage; kept as a narrow interface here so this
// package has no direct storage dependency.
type ModelStateLoader interface {
	LatestModelState(modelName string) (*models.MLModelState, error)
}

// ML maps similarity to a confidence tier using thresholds learned by the
// (out-of-scope) threshold-optimizer analyzer, refreshing them from storage
// every cacheRefreshInterval calls and falling back to static defaults
// when no trained state exists yet.
type ML struct {
	mu        sync.Mutex
	loader    ModelStateLoader
	defaults  Static
	callCount int
	current   Static
	loaded    bool
}

// NewML builds an ML scorer. defaults are used until a model state row is
// found, and again whenever loading fails.
func NewML(loader ModelStateLoader, defaults Static) *ML {
	return &ML{loader: loader, defaults: defaults, current: defaults}
}

// Score implements providers.MatchScorerProvider.
func (m *ML) Score(similarity float32) models.ConfidenceTier {
	thresholds := m.thresholds()
	return thresholds.Score(similarity)
}

// Invalidate forces the next Score call to reload thresholds from storage,
// regardless of the call-count cadence, so a newly promoted model_state
// version takes effect immediately instead of at the next refresh
// boundary. Nothing in this repository calls it; the analyzer job kind has
// no runner here.
func (m *ML) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false
}

func (m *ML) thresholds() Static {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	if !m.loaded || m.callCount%cacheRefreshInterval == 0 {
		m.reloadLocked()
	}
	return m.current
}

func (m *ML) reloadLocked() {
	state, err := m.loader.LatestModelState("threshold_optimizer")
	if err != nil {
		log.Warn().Str("component", "matchscoring").Err(err).Msg("ml threshold load failed, using defaults")
		m.current = m.defaults
		m.loaded = true
		return
	}
	if state == nil {
		m.current = m.defaults
		m.loaded = true
		return
	}

	low, lok := asFloat(state.Parameters, "low")
	medium, mok := asFloat(state.Parameters, "medium")
	high, hok := asFloat(state.Parameters, "high")
	if !lok || !mok || !hok {
		log.Warn().Str("component", "matchscoring").Msg("ml model state missing thresholds, using defaults")
		m.current = m.defaults
		m.loaded = true
		return
	}

	log.Info().Str("component", "matchscoring").
		Float32("low", low).Float32("medium", medium).Float32("high", high).
		Msg("ml thresholds loaded")
	m.current = Static{Low: low, Medium: medium, High: high}
	m.loaded = true
}

func asFloat(params map[string]any, key string) (float32, bool) {
	nested, ok := params["thresholds"].(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := nested[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return float32(n), true
	case float32:
		return n, true
	default:
		return 0, false
	}
}
