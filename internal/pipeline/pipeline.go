// Package pipeline wires discovery, ingestion, and matching into the two
// run shapes the scheduler dispatches: a contributor_scan (search for one
// contributor's face across reverse-image results) and a platform_crawl
// (ingest a platform's firehose and match every embedded face against the
// whole registry). Grounded on the original implementation's
// matching/pipeline.py and scout/platform_crawl.py, which glue the same
// stages together in the same order.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/discovery"
	"github.com/divavault/scanner-core/internal/evidence"
	"github.com/divavault/scanner-core/internal/ingest"
	"github.com/divavault/scanner-core/internal/matching"
	"github.com/divavault/scanner-core/internal/metrics"
	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/observer"
	"github.com/divavault/scanner-core/internal/providers"
	"github.com/divavault/scanner-core/internal/storage"
	"github.com/divavault/scanner-core/internal/takedown"
)

// ContributorStore is the subset of storage.ContributorStore the pipeline
// needs, narrowed to an interface so this package stays storage-agnostic.
type ContributorStore interface {
	Get(id string) (*models.Contributor, error)
}

// ImageRepo is the subset of storage.ImageStore the pipeline needs beyond
// what ingest.ImageStore already narrows.
type ImageRepo interface {
	ingest.ImageStore
	Insert(img *models.DiscoveredImage) (bool, error)
	Get(id string) (*models.DiscoveredImage, error)
	PendingBatch(limit int) ([]models.DiscoveredImage, error)
	FaceEmbeddingsFor(imageID string) ([]models.DiscoveredFaceEmbedding, error)
}

// MatchRepo persists matches and their downstream notifications.
type MatchRepo interface {
	Create(m *models.Match) error
}

// NotificationRepo persists contributor-facing notifications.
type NotificationRepo interface {
	Create(n *models.Notification) error
}

// TakedownRepo persists drafted takedown notices.
type TakedownRepo interface {
	Create(t *models.Takedown) error
}

// CandidateSource supplies the registry candidates a platform crawl
// compares against, applying each contributor's own tier's
// CrawlPrimaryOnly restriction rather than leaving it to the caller.
type CandidateSource interface {
	AllCandidates(tiers config.TierTable) ([]storage.CandidateRow, error)
}

// Pipeline holds every collaborator a scan run needs.
type Pipeline struct {
	Contributors ContributorStore
	Images       ImageRepo
	Matches      MatchRepo
	Notifications NotificationRepo
	Takedowns    TakedownRepo
	Candidates   CandidateSource

	Thresholds *config.ThresholdsRef
	Tiers      *config.TierTableRef

	Evidence evidence.CaptureClient
	Drafter  takedown.Drafter

	Providers *providers.Registry
	Observer  *observer.Observer

	IngestCfg ingest.Config
	BatchSize int
}

// RunOutcome summarizes one pipeline run for logging and the scheduler's
// heartbeat/summary path.
type RunOutcome struct {
	ImagesDiscovered int
	ImagesIngested   int
	MatchesCreated   int
}

// RunContributorScan discovers candidate images for one contributor via
// src, ingests the pending batch, and matches every embedded face against
// only that contributor's embeddings (spec §4.C's narrower comparison
// scope for reverse-image-triggered scans).
func (p *Pipeline) RunContributorScan(ctx context.Context, contributorID string, src discovery.Source, dctx discovery.Context) (RunOutcome, error) {
	var out RunOutcome

	contributor, err := p.Contributors.Get(contributorID)
	if err != nil {
		return out, fmt.Errorf("pipeline.RunContributorScan: load contributor: %w", err)
	}
	if contributor == nil {
		return out, fmt.Errorf("pipeline.RunContributorScan: contributor %s not found", contributorID)
	}
	flags := p.Tiers.Load().Lookup(string(contributor.Tier.Normalize()))

	result, err := src.Discover(ctx, dctx)
	if err != nil {
		return out, fmt.Errorf("pipeline.RunContributorScan: discover: %w", err)
	}
	out.ImagesDiscovered = len(result.Images)
	metrics.Get().RecordImagesDiscovered(src.SourceName(), len(result.Images))

	for _, img := range result.Images {
		inserted, err := p.Images.Insert(&models.DiscoveredImage{
			SourceURL: img.SourceURL,
			PageURL:   img.PageURL,
			PageTitle: img.PageTitle,
			Platform:  img.Platform,
		})
		if err != nil {
			log.Warn().Str("component", "pipeline").Err(err).Str("source_url", img.SourceURL).Msg("insert discovered image failed")
			continue
		}
		if inserted {
			out.ImagesIngested++
		}
	}

	faceDetector, err := p.Providers.FaceDetection()
	if err != nil {
		return out, fmt.Errorf("pipeline.RunContributorScan: face detection provider: %w", err)
	}

	pending, err := p.Images.PendingBatch(p.batchSize())
	if err != nil {
		return out, fmt.Errorf("pipeline.RunContributorScan: pending batch: %w", err)
	}
	stage := ingest.NewStage(p.IngestCfg, p.Images, faceDetector)
	outcomes := stage.Run(ctx, pending)

	candidates := candidatesForContributor(contributor)
	scorer, err := p.Providers.MatchScoring()
	if err != nil {
		return out, fmt.Errorf("pipeline.RunContributorScan: match scoring provider: %w", err)
	}

	for _, o := range outcomes {
		if o.Status != models.ImageStatusEmbedded {
			continue
		}
		n, err := p.matchEmbeddedImage(ctx, o.ImageID, candidates, contributor, flags, scorer)
		if err != nil {
			log.Warn().Str("component", "pipeline").Err(err).Str("image_id", o.ImageID).Msg("match image failed")
			continue
		}
		out.MatchesCreated += n
	}

	if p.Observer != nil {
		p.Observer.Emit(models.SignalScanCompleted, "contributor", contributorID, map[string]any{
			"images_discovered": out.ImagesDiscovered,
			"matches_created":   out.MatchesCreated,
		}, "scheduler")
	}
	return out, nil
}

// RunPlatformCrawl discovers candidate images from a platform-wide crawl
// source, ingests them, and matches every embedded face against the full
// contributor registry (gated by each matched contributor's own tier and
// their platform_crawl_matching flag).
func (p *Pipeline) RunPlatformCrawl(ctx context.Context, src discovery.Source, dctx discovery.Context) (RunOutcome, discovery.Result, error) {
	var out RunOutcome

	result, err := src.Discover(ctx, dctx)
	if err != nil {
		return out, result, fmt.Errorf("pipeline.RunPlatformCrawl: discover: %w", err)
	}
	out.ImagesDiscovered = len(result.Images)
	metrics.Get().RecordImagesDiscovered(src.SourceName(), len(result.Images))

	for _, img := range result.Images {
		inserted, err := p.Images.Insert(&models.DiscoveredImage{
			SourceURL: img.SourceURL,
			PageURL:   img.PageURL,
			PageTitle: img.PageTitle,
			Platform:  img.Platform,
		})
		if err != nil {
			log.Warn().Str("component", "pipeline").Err(err).Str("source_url", img.SourceURL).Msg("insert discovered image failed")
			continue
		}
		if inserted {
			out.ImagesIngested++
		}
	}

	faceDetector, err := p.Providers.FaceDetection()
	if err != nil {
		return out, result, fmt.Errorf("pipeline.RunPlatformCrawl: face detection provider: %w", err)
	}
	pending, err := p.Images.PendingBatch(p.batchSize())
	if err != nil {
		return out, result, fmt.Errorf("pipeline.RunPlatformCrawl: pending batch: %w", err)
	}
	stage := ingest.NewStage(p.IngestCfg, p.Images, faceDetector)
	outcomes := stage.Run(ctx, pending)

	registryCandidates, err := p.Candidates.AllCandidates(p.Tiers.Load())
	if err != nil {
		return out, result, fmt.Errorf("pipeline.RunPlatformCrawl: load candidates: %w", err)
	}
	candidates := toMatchingCandidates(registryCandidates)
	scorer, err := p.Providers.MatchScoring()
	if err != nil {
		return out, result, fmt.Errorf("pipeline.RunPlatformCrawl: match scoring provider: %w", err)
	}

	for _, o := range outcomes {
		if o.Status != models.ImageStatusEmbedded {
			continue
		}
		n, err := p.matchAgainstRegistry(ctx, o.ImageID, candidates, scorer)
		if err != nil {
			log.Warn().Str("component", "pipeline").Err(err).Str("image_id", o.ImageID).Msg("match image failed")
			continue
		}
		out.MatchesCreated += n
	}

	if p.Observer != nil {
		p.Observer.Emit(models.SignalCrawlCompleted, "platform", dctx.Platform, map[string]any{
			"images_discovered": out.ImagesDiscovered,
			"matches_created":   out.MatchesCreated,
		}, "scheduler")
	}
	return out, result, nil
}

// matchEmbeddedImage compares one embedded image's faces against a single
// contributor's candidates, applying the full gating algorithm per match.
func (p *Pipeline) matchEmbeddedImage(ctx context.Context, imageID string, candidates []matching.Candidate, contributor *models.Contributor, flags config.TierFlags, scorer providers.MatchScorerProvider) (int, error) {
	faces, err := p.Images.FaceEmbeddingsFor(imageID)
	if err != nil {
		return 0, fmt.Errorf("pipeline.matchEmbeddedImage: %w", err)
	}

	img, err := p.Images.Get(imageID)
	if err != nil {
		return 0, fmt.Errorf("pipeline.matchEmbeddedImage: load image: %w", err)
	}
	if img == nil {
		return 0, fmt.Errorf("pipeline.matchEmbeddedImage: image %s not found", imageID)
	}

	created := 0
	for _, face := range faces {
		best := matching.CompareAgainstContributor(face.Vector, candidates, contributor.ID, p.Thresholds.Load().Low)
		if best == nil {
			continue
		}
		if !flags.StoreMatch {
			continue
		}
		if err := p.persistMatch(ctx, *best, face.ID, img, contributor, flags, scorer); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// matchAgainstRegistry compares one embedded image's faces against every
// contributor in the registry at once, used by platform crawls.
func (p *Pipeline) matchAgainstRegistry(ctx context.Context, imageID string, candidates []matching.Candidate, scorer providers.MatchScorerProvider) (int, error) {
	faces, err := p.Images.FaceEmbeddingsFor(imageID)
	if err != nil {
		return 0, fmt.Errorf("pipeline.matchAgainstRegistry: %w", err)
	}

	img, err := p.Images.Get(imageID)
	if err != nil {
		return 0, fmt.Errorf("pipeline.matchAgainstRegistry: load image: %w", err)
	}
	if img == nil {
		return 0, fmt.Errorf("pipeline.matchAgainstRegistry: image %s not found", imageID)
	}

	created := 0
	for _, face := range faces {
		hits := matching.CompareAgainstRegistry(face.Vector, face.DetectionScore, candidates, p.Thresholds.Load().Low, false, 5)
		for _, hit := range hits {
			contributor, err := p.Contributors.Get(hit.ContributorID)
			if err != nil || contributor == nil {
				continue
			}
			flags := p.Tiers.Load().Lookup(string(contributor.Tier.Normalize()))
			if !flags.StoreMatch || !flags.PlatformCrawlMatching {
				continue
			}
			if err := p.persistMatch(ctx, hit, face.ID, img, contributor, flags, scorer); err != nil {
				log.Warn().Str("component", "pipeline").Err(err).Msg("persist match failed")
				continue
			}
			created++
		}
	}
	return created, nil
}

// persistMatch creates the Match row, applies the tier gate for
// notification/AI-detection, and writes the resulting side effects.
func (p *Pipeline) persistMatch(ctx context.Context, hit matching.RegistryMatch, faceEmbeddingID string, img *models.DiscoveredImage, contributor *models.Contributor, flags config.TierFlags, scorer providers.MatchScorerProvider) error {
	tier := matching.ConfidenceTier(scorer, hit.Similarity)
	known := matching.CheckKnownAccount(img.PageURL, contributor.KnownAccounts) != nil

	match := &models.Match{
		ID:                uuid.NewString(),
		ContributorID:     contributor.ID,
		DiscoveredImageID: img.ID,
		EmbeddingID:       hit.EmbeddingID,
		FaceEmbeddingID:   faceEmbeddingID,
		Similarity:        hit.Similarity,
		ConfidenceTier:    tier,
		KnownAccount:      known,
		CreatedAt:         time.Now().UTC(),
	}

	if matching.ShouldRunAIDetection(tier, known, flags) {
		aiProvider, err := p.Providers.AIDetection()
		if err == nil {
			if verdict, err := aiProvider.Classify(ctx, img.SourceURL); err == nil && verdict != nil {
				match.AIVerdict = &models.AIVerdict{IsAIGenerated: verdict.IsAIGenerated, Score: verdict.Score, Generator: verdict.Generator}
			}
		}
	}

	if matching.ShouldCaptureEvidence(tier, known, flags) && p.Evidence != nil {
		if result, err := p.Evidence.Capture(ctx, img.PageURL); err == nil {
			match.EvidenceSHA256 = result.SHA256
		} else {
			log.Warn().Str("component", "pipeline").Err(err).Msg("capture evidence failed")
		}
	}

	if err := p.Matches.Create(match); err != nil {
		return fmt.Errorf("pipeline.persistMatch: %w", err)
	}
	metrics.Get().RecordMatchCreated(string(tier))

	if p.Observer != nil {
		p.Observer.Emit(models.SignalMatchCreated, "match", match.ID, map[string]any{
			"contributor_id":  contributor.ID,
			"similarity":      hit.Similarity,
			"confidence_tier": string(tier),
			"known_account":   known,
		}, "scheduler")
	}

	if matching.ShouldNotify(tier, known, flags) && p.Notifications != nil {
		if err := p.Notifications.Create(&models.Notification{ContributorID: contributor.ID, MatchID: match.ID}); err != nil {
			log.Warn().Str("component", "pipeline").Err(err).Msg("create notification failed")
		}
	}

	if matching.ShouldGenerateTakedown(tier, known, flags) && p.Drafter != nil && p.Takedowns != nil {
		if body, err := p.Drafter.Draft(ctx, match, contributor); err == nil {
			if err := p.Takedowns.Create(&models.Takedown{MatchID: match.ID, Body: body}); err != nil {
				log.Warn().Str("component", "pipeline").Err(err).Msg("create takedown failed")
			}
		} else {
			log.Warn().Str("component", "pipeline").Err(err).Msg("draft takedown failed")
		}
	}

	return nil
}

func (p *Pipeline) batchSize() int {
	if p.BatchSize <= 0 {
		return 50
	}
	return p.BatchSize
}

func candidatesForContributor(c *models.Contributor) []matching.Candidate {
	out := make([]matching.Candidate, 0, len(c.Embeddings))
	for _, e := range c.Embeddings {
		out = append(out, matching.Candidate{ContributorID: c.ID, EmbeddingID: e.ID, Vector: e.Vector, Primary: e.Primary})
	}
	return out
}

func toMatchingCandidates(rows []storage.CandidateRow) []matching.Candidate {
	out := make([]matching.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, matching.Candidate{ContributorID: r.ContributorID, EmbeddingID: r.EmbeddingID, Vector: r.Vector, Primary: r.Primary})
	}
	return out
}
