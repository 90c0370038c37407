package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divavault/scanner-core/internal/models"
)

// TakedownStore persists drafted takedown notices.
type TakedownStore struct {
	conn *sql.DB
}

// Create inserts a drafted takedown for a match.
func (s *TakedownStore) Create(t *models.Takedown) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = "drafted"
	}
	_, err := s.conn.Exec(
		`INSERT INTO takedowns (id, match_id, body, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.MatchID, t.Body, t.Status, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.TakedownStore.Create: %w", err)
	}
	return nil
}

// Get loads a takedown by ID.
func (s *TakedownStore) Get(id string) (*models.Takedown, error) {
	row := s.conn.QueryRow(`SELECT id, match_id, body, status, created_at FROM takedowns WHERE id = ?`, id)
	var t models.Takedown
	if err := row.Scan(&t.ID, &t.MatchID, &t.Body, &t.Status, &t.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.TakedownStore.Get: %w", err)
	}
	return &t, nil
}

// NotificationStore persists contributor-facing match notifications.
type NotificationStore struct {
	conn *sql.DB
}

// Create inserts a notification for a newly created match.
func (s *NotificationStore) Create(n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(
		`INSERT INTO notifications (id, contributor_id, match_id, read_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.ContributorID, n.MatchID, n.ReadAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.NotificationStore.Create: %w", err)
	}
	return nil
}

// MarkRead sets a notification's read_at to now.
func (s *NotificationStore) MarkRead(id string) error {
	now := time.Now().UTC()
	_, err := s.conn.Exec(`UPDATE notifications SET read_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("storage.NotificationStore.MarkRead: %w", err)
	}
	return nil
}

// DeleteReadOlderThan removes read notifications past the retention
// window (spec §4.I).
func (s *NotificationStore) DeleteReadOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.conn.Exec(`DELETE FROM notifications WHERE read_at IS NOT NULL AND read_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage.NotificationStore.DeleteReadOlderThan: %w", err)
	}
	return res.RowsAffected()
}
