// Package matching implements nearest-neighbor comparison against the
// contributor embedding registry, confidence tiering, and the tier-gating
// algorithm that decides which side effects a match triggers. Grounded on
// the original implementation's matching/comparator.py and
// matching/confidence.py; sqlite has no vector extension, so the
// candidate-scan the original delegates to find_similar_embeddings (a
// pgvector query) is done in-process here instead, over the rows storage
// hands back.
package matching

import (
	"sort"

	"github.com/divavault/scanner-core/internal/models"
)

// Candidate is one contributor embedding available for comparison.
type Candidate struct {
	ContributorID string
	EmbeddingID   string
	Vector        [models.EmbeddingDim]float32
	Primary       bool
}

// RegistryMatch is a scored comparison result.
type RegistryMatch struct {
	ContributorID  string
	EmbeddingID    string
	Similarity     float32
	Primary        bool
	DetectionScore float32
}

// CosineSimilarity computes the dot product of two vectors. Both the
// registry embeddings and discovered face embeddings are stored unit-norm
// (spec invariant), so dot product equals cosine similarity without an
// extra normalization pass.
func CosineSimilarity(a, b [models.EmbeddingDim]float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// CompareAgainstRegistry scores query (detected at detectionScore) against
// every candidate, keeps those at or above threshold, and returns the top
// `limit` sorted by descending similarity. Among equal-similarity
// candidates, a primary embedding wins over a secondary; ties that survive
// are broken by contributor ID for determinism. detectionScore is copied
// onto every result and is a sort key, but it is the query face's score
// and so the same for every result of one call; results of separate calls
// (other faces of the same image) are not compared with each other, here
// or in the pipeline. If primaryOnly is set, only candidates flagged Primary are
// considered — the free-tier optimization the original applies to cut
// comparison volume.
//
// The limit is applied here, before any known-account filtering the caller
// does afterward: an allowlisted hit can therefore crowd out a genuine
// non-allowlisted hit for the same contributor at the same limit. This
// mirrors the original's ordering and is a known, accepted limitation
// rather than an oversight.
func CompareAgainstRegistry(query [models.EmbeddingDim]float32, detectionScore float32, candidates []Candidate, threshold float32, primaryOnly bool, limit int) []RegistryMatch {
	matches := make([]RegistryMatch, 0, len(candidates))
	for _, c := range candidates {
		if primaryOnly && !c.Primary {
			continue
		}
		sim := CosineSimilarity(query, c.Vector)
		if sim < threshold {
			continue
		}
		matches = append(matches, RegistryMatch{
			ContributorID:  c.ContributorID,
			EmbeddingID:    c.EmbeddingID,
			Similarity:     sim,
			Primary:        c.Primary,
			DetectionScore: detectionScore,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		if matches[i].Primary != matches[j].Primary {
			return matches[i].Primary
		}
		if matches[i].DetectionScore != matches[j].DetectionScore {
			return matches[i].DetectionScore > matches[j].DetectionScore
		}
		return matches[i].ContributorID < matches[j].ContributorID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// CompareAgainstContributor scores query only against one contributor's
// candidates and returns their single best match, or nil below threshold.
// Used by reverse-image-search ingestion, which already knows which
// contributor triggered the search.
func CompareAgainstContributor(query [models.EmbeddingDim]float32, candidates []Candidate, contributorID string, threshold float32) *RegistryMatch {
	var best *RegistryMatch
	for _, c := range candidates {
		if c.ContributorID != contributorID {
			continue
		}
		sim := CosineSimilarity(query, c.Vector)
		if sim < threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &RegistryMatch{ContributorID: c.ContributorID, EmbeddingID: c.EmbeddingID, Similarity: sim}
		}
	}
	return best
}
