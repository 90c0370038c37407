package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divavault/scanner-core/internal/models"
)

// ImageStore persists discovered images and their extracted face
// embeddings.
type ImageStore struct {
	conn *sql.DB
}

// Insert adds a newly discovered image, starting in ImageStatusPending.
// Returns (false, nil) without error if source_url already exists — the
// unique index on source_url is the discovery stage's de-duplication
// boundary (spec §4.B).
func (s *ImageStore) Insert(img *models.DiscoveredImage) (inserted bool, err error) {
	if img.ID == "" {
		img.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if img.DiscoveredAt.IsZero() {
		img.DiscoveredAt = now
	}
	img.UpdatedAt = now
	if img.Status == "" {
		img.Status = models.ImageStatusPending
	}

	_, err = s.conn.Exec(
		`INSERT INTO discovered_images (id, source_url, page_url, page_title, platform, status, fail_reason, discovered_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_url) DO NOTHING`,
		img.ID, img.SourceURL, img.PageURL, img.PageTitle, img.Platform, string(img.Status), img.FailReason, img.DiscoveredAt, img.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("storage.ImageStore.Insert: %w", err)
	}

	row := s.conn.QueryRow(`SELECT id FROM discovered_images WHERE source_url = ?`, img.SourceURL)
	var existingID string
	if err := row.Scan(&existingID); err != nil {
		return false, fmt.Errorf("storage.ImageStore.Insert: %w", err)
	}
	return existingID == img.ID, nil
}

// UpdateStatus transitions an image's status, per the status graph in
// spec §3 invariant 2.
func (s *ImageStore) UpdateStatus(id string, status models.ImageStatus, failReason string) error {
	_, err := s.conn.Exec(
		`UPDATE discovered_images SET status = ?, fail_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), failReason, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("storage.ImageStore.UpdateStatus: %w", err)
	}
	return nil
}

// Get loads a discovered image by ID.
func (s *ImageStore) Get(id string) (*models.DiscoveredImage, error) {
	row := s.conn.QueryRow(
		`SELECT id, source_url, page_url, page_title, platform, status, fail_reason, discovered_at, updated_at
		 FROM discovered_images WHERE id = ?`, id,
	)
	var img models.DiscoveredImage
	var status string
	if err := row.Scan(&img.ID, &img.SourceURL, &img.PageURL, &img.PageTitle, &img.Platform, &status, &img.FailReason, &img.DiscoveredAt, &img.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.ImageStore.Get: %w", err)
	}
	img.Status = models.ImageStatus(status)
	return &img, nil
}

// PendingBatch returns up to limit images still awaiting ingestion, oldest
// first, for the ingest worker pool to pick up.
func (s *ImageStore) PendingBatch(limit int) ([]models.DiscoveredImage, error) {
	rows, err := s.conn.Query(
		`SELECT id, source_url, page_url, page_title, platform, status, fail_reason, discovered_at, updated_at
		 FROM discovered_images WHERE status = ? ORDER BY discovered_at ASC LIMIT ?`,
		string(models.ImageStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ImageStore.PendingBatch: %w", err)
	}
	defer rows.Close()

	var out []models.DiscoveredImage
	for rows.Next() {
		var img models.DiscoveredImage
		var status string
		if err := rows.Scan(&img.ID, &img.SourceURL, &img.PageURL, &img.PageTitle, &img.Platform, &status, &img.FailReason, &img.DiscoveredAt, &img.UpdatedAt); err != nil {
			return nil, fmt.Errorf("storage.ImageStore.PendingBatch: scan: %w", err)
		}
		img.Status = models.ImageStatus(status)
		out = append(out, img)
	}
	return out, rows.Err()
}

// DistinctPageURLs returns up to limit distinct page_url values, most
// recently discovered first, for the link-harvest source to mine for
// not-yet-crawled platform domains.
func (s *ImageStore) DistinctPageURLs(limit int) ([]string, error) {
	rows, err := s.conn.Query(
		`SELECT DISTINCT page_url FROM discovered_images WHERE page_url != '' ORDER BY discovered_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ImageStore.DistinctPageURLs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("storage.ImageStore.DistinctPageURLs: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AddFaceEmbedding records a face extracted from a discovered image during
// ingestion.
func (s *ImageStore) AddFaceEmbedding(f *models.DiscoveredFaceEmbedding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(
		`INSERT INTO discovered_face_embeddings (id, discovered_image_id, vector, detection_score, created_at) VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.DiscoveredImageID, encodeVector(f.Vector), f.DetectionScore, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.ImageStore.AddFaceEmbedding: %w", err)
	}
	return nil
}

// FaceEmbeddingsFor returns every face extracted from one discovered image.
func (s *ImageStore) FaceEmbeddingsFor(imageID string) ([]models.DiscoveredFaceEmbedding, error) {
	rows, err := s.conn.Query(
		`SELECT id, discovered_image_id, vector, detection_score, created_at FROM discovered_face_embeddings WHERE discovered_image_id = ?`,
		imageID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ImageStore.FaceEmbeddingsFor: %w", err)
	}
	defer rows.Close()

	var out []models.DiscoveredFaceEmbedding
	for rows.Next() {
		var f models.DiscoveredFaceEmbedding
		var blob []byte
		if err := rows.Scan(&f.ID, &f.DiscoveredImageID, &blob, &f.DetectionScore, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage.ImageStore.FaceEmbeddingsFor: scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("storage.ImageStore.FaceEmbeddingsFor: %w", err)
		}
		f.Vector = vec
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes images in the given status older than cutoff,
// used by the cleanup job's per-class retention sweep (spec §4.I).
// Returns the number of rows removed.
func (s *ImageStore) DeleteOlderThan(status models.ImageStatus, cutoff time.Time) (int64, error) {
	res, err := s.conn.Exec(
		`DELETE FROM discovered_images WHERE status = ? AND updated_at < ?`,
		string(status), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.ImageStore.DeleteOlderThan: %w", err)
	}
	return res.RowsAffected()
}

// DeleteFaceEmbeddingsOlderThan removes face embeddings older than cutoff
// (the "embedded ones without a match" retention class).
func (s *ImageStore) DeleteFaceEmbeddingsOlderThan(cutoff time.Time) (int64, error) {
	res, err := s.conn.Exec(`DELETE FROM discovered_face_embeddings WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("storage.ImageStore.DeleteFaceEmbeddingsOlderThan: %w", err)
	}
	return res.RowsAffected()
}
