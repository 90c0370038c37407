// Package cleanup implements the retention sweep (spec §4.I): one
// independent pass per row class so one class's failure never blocks the
// others. Grounded directly on the original implementation's
// jobs/cleanup.py run_cleanup(), which does the same try/except-per-class
// sweep and returns a summary of rows removed.
package cleanup

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/ingest"
	"github.com/divavault/scanner-core/internal/models"
)

// ImageRepo is the subset of storage.ImageStore cleanup needs.
type ImageRepo interface {
	DeleteOlderThan(status models.ImageStatus, cutoff time.Time) (int64, error)
	DeleteFaceEmbeddingsOlderThan(cutoff time.Time) (int64, error)
}

// JobRepo is the subset of storage.JobStore cleanup needs.
type JobRepo interface {
	DeleteStaleFailed(maxAge time.Duration) (int64, error)
}

// NotificationRepo is the subset of storage.NotificationStore cleanup needs.
type NotificationRepo interface {
	DeleteReadOlderThan(cutoff time.Time) (int64, error)
}

// Sweeper runs the retention sweep against the configured stores.
type Sweeper struct {
	Images        ImageRepo
	Jobs          JobRepo
	Notifications NotificationRepo
	ScratchDir    string
	Retention     config.RetentionConfig
}

// Summary reports how many rows each class removed, for logging and the
// scheduler's per-run outcome.
type Summary struct {
	NoFaceImagesDeleted   int64
	NoMatchImagesDeleted  int64
	FaceEmbeddingsDeleted int64
	ScanJobsDeleted       int64
	NotificationsDeleted  int64
	ScratchFilesDeleted   int
}

// Run sweeps every retention class independently, logging (not failing)
// any single class's error so the rest still run.
func (s *Sweeper) Run() Summary {
	var out Summary
	now := time.Now().UTC()

	if n, err := s.Images.DeleteOlderThan(models.ImageStatusNoFace, now.Add(-s.Retention.NoFaceImages)); err != nil {
		log.Error().Str("component", "cleanup").Err(err).Msg("cleanup no_face images failed")
	} else {
		out.NoFaceImagesDeleted = n
	}

	if n, err := s.Images.DeleteOlderThan(models.ImageStatusNoMatch, now.Add(-s.Retention.NoMatchImages)); err != nil {
		log.Error().Str("component", "cleanup").Err(err).Msg("cleanup no_match images failed")
	} else {
		out.NoMatchImagesDeleted = n
	}

	if n, err := s.Images.DeleteFaceEmbeddingsOlderThan(now.Add(-s.Retention.FaceEmbeddings)); err != nil {
		log.Error().Str("component", "cleanup").Err(err).Msg("cleanup face embeddings failed")
	} else {
		out.FaceEmbeddingsDeleted = n
	}

	if n, err := s.Jobs.DeleteStaleFailed(s.Retention.TerminalScanJobs); err != nil {
		log.Error().Str("component", "cleanup").Err(err).Msg("cleanup scan jobs failed")
	} else {
		out.ScanJobsDeleted = n
	}

	if n, err := s.Notifications.DeleteReadOlderThan(now.Add(-s.Retention.ReadNotifications)); err != nil {
		log.Error().Str("component", "cleanup").Err(err).Msg("cleanup notifications failed")
	} else {
		out.NotificationsDeleted = n
	}

	if s.ScratchDir != "" {
		if n, err := ingest.PurgeScratch(s.ScratchDir, s.Retention.ScratchTempFiles); err != nil {
			log.Error().Str("component", "cleanup").Err(err).Msg("purge scratch files failed")
		} else {
			out.ScratchFilesDeleted = n
		}
	}

	log.Info().Str("component", "cleanup").
		Int64("no_face_images", out.NoFaceImagesDeleted).
		Int64("no_match_images", out.NoMatchImagesDeleted).
		Int64("face_embeddings", out.FaceEmbeddingsDeleted).
		Int64("scan_jobs", out.ScanJobsDeleted).
		Int64("notifications", out.NotificationsDeleted).
		Int("scratch_files", out.ScratchFilesDeleted).
		Msg("retention sweep complete")

	return out
}
