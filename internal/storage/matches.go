package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divavault/scanner-core/internal/models"
)

// MatchStore persists matches. The takedown and notification rows anchored
// to them are persisted by TakedownStore and NotificationStore.
type MatchStore struct {
	conn *sql.DB
}

// Create inserts a new match.
func (s *MatchStore) Create(m *models.Match) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.ReviewStatus == "" {
		m.ReviewStatus = models.ReviewNew
	}

	known := 0
	if m.KnownAccount {
		known = 1
	}

	var isAI sql.NullBool
	var aiScore sql.NullFloat64
	var aiGen sql.NullString
	if m.AIVerdict != nil {
		isAI = sql.NullBool{Bool: m.AIVerdict.IsAIGenerated, Valid: true}
		aiScore = sql.NullFloat64{Float64: float64(m.AIVerdict.Score), Valid: true}
		aiGen = sql.NullString{String: m.AIVerdict.Generator, Valid: m.AIVerdict.Generator != ""}
	}

	_, err := s.conn.Exec(
		`INSERT INTO matches (id, contributor_id, discovered_image_id, embedding_id, face_embedding_id, similarity,
			confidence_tier, known_account, ai_is_generated, ai_score, ai_generator, evidence_sha256, review_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ContributorID, m.DiscoveredImageID, m.EmbeddingID, m.FaceEmbeddingID, m.Similarity,
		string(m.ConfidenceTier), known, isAI, aiScore, aiGen, m.EvidenceSHA256, string(m.ReviewStatus), m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.MatchStore.Create: %w", err)
	}
	return nil
}

// Get loads a match by ID.
func (s *MatchStore) Get(id string) (*models.Match, error) {
	row := s.conn.QueryRow(
		`SELECT id, contributor_id, discovered_image_id, embedding_id, face_embedding_id, similarity,
			confidence_tier, known_account, ai_is_generated, ai_score, ai_generator, evidence_sha256, review_status, created_at
		 FROM matches WHERE id = ?`, id,
	)
	return scanMatch(row)
}

func scanMatch(row *sql.Row) (*models.Match, error) {
	var m models.Match
	var confTier string
	var known int
	var reviewStatus string
	var isAI sql.NullBool
	var aiScore sql.NullFloat64
	var aiGen sql.NullString

	err := row.Scan(&m.ID, &m.ContributorID, &m.DiscoveredImageID, &m.EmbeddingID, &m.FaceEmbeddingID, &m.Similarity,
		&confTier, &known, &isAI, &aiScore, &aiGen, &m.EvidenceSHA256, &reviewStatus, &m.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.MatchStore: scan: %w", err)
	}

	m.ConfidenceTier = models.ConfidenceTier(confTier)
	m.KnownAccount = known != 0
	m.ReviewStatus = models.ReviewStatus(reviewStatus)
	if isAI.Valid {
		m.AIVerdict = &models.AIVerdict{IsAIGenerated: isAI.Bool, Score: float32(aiScore.Float64), Generator: aiGen.String}
	}
	return &m, nil
}

// UpdateReviewStatus sets a match's human-review status, per spec §6's
// admin review-action mapping.
func (s *MatchStore) UpdateReviewStatus(id string, status models.ReviewStatus) error {
	_, err := s.conn.Exec(`UPDATE matches SET review_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("storage.MatchStore.UpdateReviewStatus: %w", err)
	}
	return nil
}

// SetEvidenceSHA256 records the SHA-256 of a captured evidence blob.
func (s *MatchStore) SetEvidenceSHA256(id, sha256hex string) error {
	_, err := s.conn.Exec(`UPDATE matches SET evidence_sha256 = ? WHERE id = ?`, sha256hex, id)
	if err != nil {
		return fmt.Errorf("storage.MatchStore.SetEvidenceSHA256: %w", err)
	}
	return nil
}

// ForContributor returns a contributor's matches, most recent first.
func (s *MatchStore) ForContributor(contributorID string, limit int) ([]models.Match, error) {
	rows, err := s.conn.Query(
		`SELECT id, contributor_id, discovered_image_id, embedding_id, face_embedding_id, similarity,
			confidence_tier, known_account, ai_is_generated, ai_score, ai_generator, evidence_sha256, review_status, created_at
		 FROM matches WHERE contributor_id = ? ORDER BY created_at DESC LIMIT ?`,
		contributorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.MatchStore.ForContributor: %w", err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var m models.Match
		var confTier, reviewStatus string
		var known int
		var isAI sql.NullBool
		var aiScore sql.NullFloat64
		var aiGen sql.NullString
		if err := rows.Scan(&m.ID, &m.ContributorID, &m.DiscoveredImageID, &m.EmbeddingID, &m.FaceEmbeddingID, &m.Similarity,
			&confTier, &known, &isAI, &aiScore, &aiGen, &m.EvidenceSHA256, &reviewStatus, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage.MatchStore.ForContributor: scan: %w", err)
		}
		m.ConfidenceTier = models.ConfidenceTier(confTier)
		m.KnownAccount = known != 0
		m.ReviewStatus = models.ReviewStatus(reviewStatus)
		if isAI.Valid {
			m.AIVerdict = &models.AIVerdict{IsAIGenerated: isAI.Bool, Score: float32(aiScore.Float64), Generator: aiGen.String}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
