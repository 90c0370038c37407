package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/cleanup"
	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/discovery"
	"github.com/divavault/scanner-core/internal/evidence"
	"github.com/divavault/scanner-core/internal/ingest"
	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/observer"
	"github.com/divavault/scanner-core/internal/pipeline"
	"github.com/divavault/scanner-core/internal/providers"
	"github.com/divavault/scanner-core/internal/resilience"
	"github.com/divavault/scanner-core/internal/scheduler"
	"github.com/divavault/scanner-core/internal/storage"
	"github.com/divavault/scanner-core/internal/takedown"
)

// referenceImagesFor builds the reference-photo keys a reverse-image
// search runs against. There is no standalone object-store-backed
// reference-photo table in this schema (spec §6 treats contributor
// photos as the source embeddings are computed from, not a queryable
// asset); the bucket/key pair is derived from the embedding id under a
// fixed convention bucket, matching the original's contributor-photos/
// prefix layout closely enough for the reverse-image API's needs.
func referenceImagesFor(c *models.Contributor) []discovery.ReferenceImage {
	embeddings := c.PrimaryEmbeddings()
	if len(embeddings) == 0 {
		embeddings = c.Embeddings
	}
	out := make([]discovery.ReferenceImage, 0, len(embeddings))
	for _, e := range embeddings {
		out = append(out, discovery.ReferenceImage{
			Bucket: "contributor-references",
			Key:    fmt.Sprintf("%s/%s.jpg", c.ID, e.ID),
		})
	}
	return out
}

// registerRunners binds every scheduler job kind this process drives to
// its pipeline/discovery wiring: contributor_scan and platform_crawl run
// through the pipeline, cleanup runs the retention sweep, and mapper runs
// link harvesting to seed new platform_crawl jobs. scout and analyzer
// exist in the scheduler config for parity with the original
// implementation's broader job taxonomy but have no runner here: nothing
// in this scope crawls account graphs or trains ml_model_state rows, so
// registering them would just leave them due forever with no dispatcher.
func registerRunners(
	sched *scheduler.Scheduler,
	db *storage.DB,
	cfg *config.Config,
	tiers *config.TierTableRef,
	thresholds *config.ThresholdsRef,
	registry *providers.Registry,
	obs *observer.Observer,
	limiters *resilience.Registry,
	breakers *resilience.BreakerRegistry,
	sweeper *cleanup.Sweeper,
) {
	p := &pipeline.Pipeline{
		Contributors:  db.Contributors,
		Images:        db.Images,
		Matches:       db.Matches,
		Notifications: db.Notifications,
		Takedowns:     db.Takedowns,
		Candidates:    db.Contributors,
		Thresholds:    thresholds,
		Tiers:         tiers,
		Evidence:      &evidence.StubCaptureClient{},
		Drafter:       takedown.PDFDrafter{},
		Providers:     registry,
		Observer:      obs,
		IngestCfg: ingest.Config{
			MaxDownloadBytes: cfg.Ingest.MaxDownloadBytes,
			DownloadTimeout:  cfg.Ingest.DownloadTimeout,
			ScratchDir:       cfg.Ingest.ScratchDir,
			WorkerPoolSize:   4,
		},
		BatchSize: 50,
	}

	reverseImage := discovery.NewReverseImageSource(cfg.TineyeAPIBase, cfg.TineyeAPIKey, limiters.Get("tineye"), breakers.Get("tineye"))

	sched.Register(models.JobContributorScan, func(ctx context.Context, job models.ScanJob) error {
		contributor, err := db.Contributors.Get(job.Target)
		if err != nil {
			return fmt.Errorf("contributor_scan runner: load contributor: %w", err)
		}
		if contributor == nil {
			return fmt.Errorf("contributor_scan runner: contributor %s not found", job.Target)
		}
		dctx := discovery.Context{
			ContributorID:   contributor.ID,
			ContributorTier: string(contributor.Tier.Normalize()),
			Images:          referenceImagesFor(contributor),
		}
		_, err = p.RunContributorScan(ctx, contributor.ID, reverseImage, dctx)
		return err
	})

	platforms := make(map[string]*discovery.PlatformCrawlSource, len(cfg.Platforms))
	for _, pc := range cfg.Platforms {
		platforms[pc.Name] = discovery.NewPlatformCrawlSource(pc.Name, pc.APIBase, pc.Tags, limiters.Get(pc.Name), breakers.Get(pc.Name))
	}

	sched.Register(models.JobPlatformCrawl, func(ctx context.Context, job models.ScanJob) error {
		src, ok := platforms[job.Target]
		if !ok {
			return fmt.Errorf("platform_crawl runner: no source configured for platform %q", job.Target)
		}

		crawlSched, err := db.CrawlSchedule.Get(job.Target)
		if err != nil {
			return fmt.Errorf("platform_crawl runner: load schedule: %w", err)
		}
		dctx := discovery.Context{Platform: job.Target}
		if crawlSched != nil {
			dctx.Cursor = crawlSched.Cursor
			dctx.SearchCursors = crawlSched.SearchCursors
			dctx.ModelCursors = crawlSched.ModelCursors
		}

		_, result, err := p.RunPlatformCrawl(ctx, src, dctx)
		if err != nil {
			return err
		}

		next := models.PlatformCrawlSchedule{
			Platform:      job.Target,
			IntervalHours: job.IntervalHours,
			Cursor:        result.NextCursor,
			SearchCursors: result.SearchCursors,
			ModelCursors:  result.ModelCursors,
			TagsTotal:     result.TagsTotal,
			TagsExhausted: result.TagsExhausted,
		}
		if err := db.CrawlSchedule.Upsert(next); err != nil {
			log.Warn().Str("component", "platform_crawl_runner").Err(err).Str("platform", job.Target).Msg("persist crawl cursor failed")
		}
		if next.TagsTotal > 0 && next.TagsExhausted >= next.TagsTotal {
			if err := db.CrawlSchedule.ResetExhaustedTags(job.Target); err != nil {
				log.Warn().Str("component", "platform_crawl_runner").Err(err).Str("platform", job.Target).Msg("reset exhausted tags failed")
			}
		}
		return nil
	})

	sched.Register(models.JobCleanup, func(ctx context.Context, job models.ScanJob) error {
		sweeper.Run()
		return nil
	})

	knownPlatforms := make([]string, 0, len(cfg.Platforms)+len(cfg.LinkHarvestPatterns))
	for _, pc := range cfg.Platforms {
		knownPlatforms = append(knownPlatforms, pc.Name)
	}
	knownPlatforms = append(knownPlatforms, cfg.LinkHarvestPatterns...)
	linkHarvest := discovery.NewLinkHarvestSource(knownPlatforms)

	sched.Register(models.JobMapper, func(ctx context.Context, job models.ScanJob) error {
		urls, err := db.Images.DistinctPageURLs(500)
		if err != nil {
			return fmt.Errorf("mapper runner: load page urls: %w", err)
		}
		result, err := linkHarvest.Discover(ctx, discovery.Context{URLs: urls})
		if err != nil {
			return fmt.Errorf("mapper runner: %w", err)
		}
		for _, candidate := range result.Images {
			if _, err := db.Jobs.Upsert(models.JobPlatformCrawl, candidate.Platform, 24); err != nil {
				log.Warn().Str("component", "mapper_runner").Err(err).Str("platform", candidate.Platform).Msg("seed platform_crawl job failed")
				continue
			}
			if obs != nil {
				obs.Emit(models.SignalPlatformDiscovered, "platform", candidate.Platform, map[string]any{"source_page_url": candidate.PageURL}, "mapper")
			}
		}
		return nil
	})
}
