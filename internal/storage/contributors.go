package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/models"
)

// ContributorStore persists contributors, their embeddings, and their
// known_accounts allowlist.
type ContributorStore struct {
	conn *sql.DB
}

// Create inserts a new contributor. c.ID is generated if empty.
func (s *ContributorStore) Create(c *models.Contributor) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(
		`INSERT INTO contributors (id, display_name, tier, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.DisplayName, string(c.Tier.Normalize()), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.ContributorStore.Create: %w", err)
	}
	return nil
}

// Get loads a contributor with its embeddings and known accounts.
func (s *ContributorStore) Get(id string) (*models.Contributor, error) {
	row := s.conn.QueryRow(`SELECT id, display_name, tier, created_at FROM contributors WHERE id = ?`, id)

	var c models.Contributor
	var tier string
	if err := row.Scan(&c.ID, &c.DisplayName, &tier, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage.ContributorStore.Get: %w", err)
	}
	c.Tier = models.Tier(tier)

	embeddings, err := s.embeddingsFor(id)
	if err != nil {
		return nil, err
	}
	c.Embeddings = embeddings

	accounts, err := s.knownAccountsFor(id)
	if err != nil {
		return nil, err
	}
	c.KnownAccounts = accounts

	return &c, nil
}

func (s *ContributorStore) embeddingsFor(contributorID string) ([]models.Embedding, error) {
	rows, err := s.conn.Query(
		`SELECT id, contributor_id, vector, is_primary, created_at FROM embeddings WHERE contributor_id = ?`,
		contributorID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ContributorStore.embeddingsFor: %w", err)
	}
	defer rows.Close()

	var out []models.Embedding
	for rows.Next() {
		var e models.Embedding
		var blob []byte
		var primary int
		if err := rows.Scan(&e.ID, &e.ContributorID, &blob, &primary, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage.ContributorStore.embeddingsFor: scan: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("storage.ContributorStore.embeddingsFor: %w", err)
		}
		e.Vector = vec
		e.Primary = primary != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *ContributorStore) knownAccountsFor(contributorID string) ([]models.KnownAccount, error) {
	rows, err := s.conn.Query(
		`SELECT id, contributor_id, platform, handle, domain FROM known_accounts WHERE contributor_id = ?`,
		contributorID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.ContributorStore.knownAccountsFor: %w", err)
	}
	defer rows.Close()

	var out []models.KnownAccount
	for rows.Next() {
		var a models.KnownAccount
		if err := rows.Scan(&a.ID, &a.ContributorID, &a.Platform, &a.Handle, &a.Domain); err != nil {
			return nil, fmt.Errorf("storage.ContributorStore.knownAccountsFor: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddEmbedding stores a new reference embedding for a contributor.
func (s *ContributorStore) AddEmbedding(e *models.Embedding) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	primary := 0
	if e.Primary {
		primary = 1
	}
	_, err := s.conn.Exec(
		`INSERT INTO embeddings (id, contributor_id, vector, is_primary, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.ContributorID, encodeVector(e.Vector), primary, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.ContributorStore.AddEmbedding: %w", err)
	}
	return nil
}

// AddKnownAccount records a platform+handle or domain as belonging to the
// contributor, enforcing the tier's max_known_accounts cap is the caller's
// responsibility (storage does not know tier flags).
func (s *ContributorStore) AddKnownAccount(a *models.KnownAccount) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.conn.Exec(
		`INSERT INTO known_accounts (id, contributor_id, platform, handle, domain) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.ContributorID, a.Platform, a.Handle, a.Domain,
	)
	if err != nil {
		return fmt.Errorf("storage.ContributorStore.AddKnownAccount: %w", err)
	}
	return nil
}

// AllCandidates returns every contributor embedding eligible for the
// platform-crawl registry scan, per contributor tier's own
// CrawlPrimaryOnly flag (spec §3's "free tier may match only against
// primary embeddings", spec §6's crawl_registry_embeddings = 1 for free,
// all for protected/premium): a contributor whose tier sets
// CrawlPrimaryOnly contributes only its primary embedding, everyone else
// contributes all of theirs. tiers drives that per-tier decision so the
// rule isn't hardcoded to a tier name here; a single global primaryOnly
// bool can't express a mixed-tier registry, so the restriction is applied
// row by row against each embedding's own contributor.
func (s *ContributorStore) AllCandidates(tiers config.TierTable) ([]CandidateRow, error) {
	query := `
		SELECT e.contributor_id, e.id, e.vector, e.is_primary, c.tier
		FROM embeddings e
		JOIN contributors c ON c.id = e.contributor_id`
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("storage.ContributorStore.AllCandidates: %w", err)
	}
	defer rows.Close()

	var out []CandidateRow
	for rows.Next() {
		var c CandidateRow
		var blob []byte
		var primary int
		var tier string
		if err := rows.Scan(&c.ContributorID, &c.EmbeddingID, &blob, &primary, &tier); err != nil {
			return nil, fmt.Errorf("storage.ContributorStore.AllCandidates: scan: %w", err)
		}
		c.Primary = primary != 0
		if !c.Primary && tiers.Lookup(tier).CrawlPrimaryOnly {
			continue
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("storage.ContributorStore.AllCandidates: %w", err)
		}
		c.Vector = vec
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllIDs returns every contributor id, for seeding one contributor_scan
// job per registered contributor at startup.
func (s *ContributorStore) AllIDs() ([]string, error) {
	rows, err := s.conn.Query(`SELECT id FROM contributors`)
	if err != nil {
		return nil, fmt.Errorf("storage.ContributorStore.AllIDs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.ContributorStore.AllIDs: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CandidateRow is the storage-layer shape handed to internal/matching,
// which converts it to matching.Candidate to avoid a storage->matching
// import cycle.
type CandidateRow struct {
	ContributorID string
	EmbeddingID   string
	Vector        [models.EmbeddingDim]float32
	Primary       bool
}
