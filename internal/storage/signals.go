package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/divavault/scanner-core/internal/models"
)

// SignalStore persists the observer's batch-flushed feedback signals.
type SignalStore struct {
	conn *sql.DB
}

// InsertBatch writes a batch of feedback signals in a single transaction,
// matching the observer's flush-all-or-nothing semantics (spec §4.H).
func (s *SignalStore) InsertBatch(signals []models.FeedbackSignal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("storage.SignalStore.InsertBatch: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO ml_feedback_signals (signal_type, entity_type, entity_id, context, actor, emitted_at) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("storage.SignalStore.InsertBatch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, sig := range signals {
		ctxJSON, err := json.Marshal(sig.Context)
		if err != nil {
			return fmt.Errorf("storage.SignalStore.InsertBatch: marshal context: %w", err)
		}
		emittedAt := sig.EmittedAt
		if emittedAt.IsZero() {
			emittedAt = time.Now().UTC()
		}
		actor := sig.Actor
		if actor == "" {
			actor = "system"
		}
		if _, err := stmt.Exec(sig.SignalType, sig.EntityType, sig.EntityID, string(ctxJSON), actor, emittedAt); err != nil {
			return fmt.Errorf("storage.SignalStore.InsertBatch: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SignalStore.InsertBatch: commit: %w", err)
	}
	return nil
}
