package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/divavault/scanner-core/internal/models"
)

// ModelStateStore persists trained model parameters (e.g. learned
// confidence thresholds) and implements providers/matchscoring.ModelStateLoader.
type ModelStateStore struct {
	conn *sql.DB
}

// LatestModelState returns the highest-version row for modelName, or nil
// if none has been promoted yet.
func (s *ModelStateStore) LatestModelState(modelName string) (*models.MLModelState, error) {
	row := s.conn.QueryRow(
		`SELECT model_name, version, parameters FROM ml_model_state WHERE model_name = ? ORDER BY version DESC LIMIT 1`,
		modelName,
	)
	var state models.MLModelState
	var paramsJSON string
	if err := row.Scan(&state.ModelName, &state.Version, &paramsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.ModelStateStore.LatestModelState: %w", err)
	}
	if err := json.Unmarshal([]byte(paramsJSON), &state.Parameters); err != nil {
		return nil, fmt.Errorf("storage.ModelStateStore.LatestModelState: unmarshal parameters: %w", err)
	}
	return &state, nil
}

// Promote writes a new version of a model's parameters. Callers
// (the out-of-scope threshold-optimizer analyzer) are responsible for
// computing the next version number and invalidating any cached scorer.
func (s *ModelStateStore) Promote(state models.MLModelState) error {
	paramsJSON, err := json.Marshal(state.Parameters)
	if err != nil {
		return fmt.Errorf("storage.ModelStateStore.Promote: marshal parameters: %w", err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO ml_model_state (model_name, version, parameters) VALUES (?, ?, ?)`,
		state.ModelName, state.Version, string(paramsJSON),
	)
	if err != nil {
		return fmt.Errorf("storage.ModelStateStore.Promote: %w", err)
	}
	return nil
}
