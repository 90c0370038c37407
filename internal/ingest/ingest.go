// Package ingest implements the download-detect-persist stage (spec §4.D):
// for each pending DiscoveredImage, download the source URL under a hard
// size cap, run face detection, and persist the outcome. Grounded on the
// original implementation's ingest/embeddings.py and ingest/pipeline.py
// (download-then-detect sequencing, multiple-faces policy, failure
// reason codes), with face-detection CPU work pushed to a bounded worker
// pool via golang.org/x/sync/errgroup the way the teacher's agent
// binaries bound concurrent fan-out (cmd/pulse-agent/main.go).
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/divavault/scanner-core/internal/metrics"
	"github.com/divavault/scanner-core/internal/models"
	"github.com/divavault/scanner-core/internal/providers"
)

// Config tunes the download step.
type Config struct {
	MaxDownloadBytes int64
	DownloadTimeout  time.Duration
	ScratchDir       string
	WorkerPoolSize   int
}

// ImageStore is the subset of storage.ImageStore the ingest stage needs.
// Narrowed to an interface so this package has no storage dependency.
type ImageStore interface {
	UpdateStatus(id string, status models.ImageStatus, failReason string) error
	AddFaceEmbedding(f *models.DiscoveredFaceEmbedding) error
}

// Outcome summarizes one image's ingestion result, for the scheduler's
// per-run summary and the observer.
type Outcome struct {
	ImageID string
	Status  models.ImageStatus
	Reason  string
}

// Stage runs the download -> detect -> persist pipeline over a batch of
// pending images, offloading the CPU-bound detection call to a bounded
// worker pool so it never stalls the caller's I/O loop.
type Stage struct {
	cfg    Config
	store  ImageStore
	client *http.Client
	faces  providers.FaceDetectionProvider
}

// NewStage builds an ingest stage. faces is the configured
// FaceDetectionProvider singleton from the provider registry.
func NewStage(cfg Config, store ImageStore, faces providers.FaceDetectionProvider) *Stage {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	return &Stage{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
		faces:  faces,
	}
}

// Run processes every image in images concurrently, bounded by
// cfg.WorkerPoolSize, and returns one Outcome per image in no particular
// order (the spec's CPU-offload contract does not rely on result
// ordering). A single image's failure never aborts the batch — errors are
// captured into its Outcome, not propagated.
func (s *Stage) Run(ctx context.Context, images []models.DiscoveredImage) []Outcome {
	outcomes := make([]Outcome, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WorkerPoolSize)

	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			outcomes[i] = s.processOne(gctx, img)
			return nil
		})
	}
	_ = g.Wait() // processOne never returns an error; Wait only joins goroutines

	return outcomes
}

// processOne downloads one image, runs face detection, and writes the
// resulting status transition. It never returns an error out of the
// stage — every failure mode maps to a status + reason code, per spec §7.
func (s *Stage) processOne(ctx context.Context, img models.DiscoveredImage) Outcome {
	outcome := s.processOneInner(ctx, img)
	status := string(outcome.Status)
	if outcome.Reason != "" {
		status = outcome.Reason
	}
	metrics.Get().RecordImageProcessed(status)
	return outcome
}

func (s *Stage) processOneInner(ctx context.Context, img models.DiscoveredImage) Outcome {
	tmpPath, contentType, err := s.download(ctx, img.SourceURL)
	if tmpPath != "" {
		defer os.Remove(tmpPath)
	}
	if err != nil {
		reason := classifyDownloadError(err)
		log.Warn().Str("component", "ingest").Str("image_id", img.ID).Err(err).Str("reason", reason).Msg("download failed")
		s.fail(img.ID, reason)
		return Outcome{ImageID: img.ID, Status: models.ImageStatusFailed, Reason: reason}
	}
	if !strings.HasPrefix(contentType, "image/") {
		s.fail(img.ID, "unsupported_content_type")
		return Outcome{ImageID: img.ID, Status: models.ImageStatusFailed, Reason: "unsupported_content_type"}
	}

	faces, err := s.faces.Detect(ctx, tmpPath)
	if err != nil {
		log.Warn().Str("component", "ingest").Str("image_id", img.ID).Err(err).Msg("face detection failed")
		s.fail(img.ID, "detection_error")
		return Outcome{ImageID: img.ID, Status: models.ImageStatusFailed, Reason: "detection_error"}
	}

	switch len(faces) {
	case 0:
		if err := s.store.UpdateStatus(img.ID, models.ImageStatusNoFace, ""); err != nil {
			log.Error().Str("component", "ingest").Str("image_id", img.ID).Err(err).Msg("persist no_face status failed")
		}
		return Outcome{ImageID: img.ID, Status: models.ImageStatusNoFace}
	case 1:
		face := faces[0]
		if err := s.store.AddFaceEmbedding(&models.DiscoveredFaceEmbedding{
			ID:                uuid.NewString(),
			DiscoveredImageID: img.ID,
			Vector:            face.Vector,
			DetectionScore:    face.DetectionScore,
		}); err != nil {
			log.Error().Str("component", "ingest").Str("image_id", img.ID).Err(err).Msg("persist face embedding failed")
			s.fail(img.ID, "persist_error")
			return Outcome{ImageID: img.ID, Status: models.ImageStatusFailed, Reason: "persist_error"}
		}
		if err := s.store.UpdateStatus(img.ID, models.ImageStatusEmbedded, ""); err != nil {
			log.Error().Str("component", "ingest").Str("image_id", img.ID).Err(err).Msg("persist embedded status failed")
		}
		return Outcome{ImageID: img.ID, Status: models.ImageStatusEmbedded}
	default:
		// Policy: only single-subject frames feed the matcher (spec §4.D).
		if err := s.store.UpdateStatus(img.ID, models.ImageStatusNoFace, "multiple_faces"); err != nil {
			log.Error().Str("component", "ingest").Str("image_id", img.ID).Err(err).Msg("persist multiple_faces status failed")
		}
		return Outcome{ImageID: img.ID, Status: models.ImageStatusNoFace, Reason: "multiple_faces"}
	}
}

func (s *Stage) fail(imageID, reason string) {
	if err := s.store.UpdateStatus(imageID, models.ImageStatusFailed, reason); err != nil {
		log.Error().Str("component", "ingest").Str("image_id", imageID).Err(err).Msg("persist failed status failed")
	}
}

// download streams sourceURL into a temp file under cfg.ScratchDir,
// aborting once MaxDownloadBytes is exceeded. Returns the temp file path
// (even on error, if one was created, so the caller can clean it up) and
// the response content type.
func (s *Stage) download(ctx context.Context, sourceURL string) (path string, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("ingest: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("ingest: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("ingest: download status %d", resp.StatusCode)
	}
	contentType = resp.Header.Get("Content-Type")

	tmp, err := os.CreateTemp(s.cfg.ScratchDir, "scanner-ingest-*.img")
	if err != nil {
		return "", "", fmt.Errorf("ingest: create temp file: %w", err)
	}
	defer tmp.Close()

	limited := io.LimitReader(resp.Body, s.cfg.MaxDownloadBytes+1)
	n, err := io.Copy(tmp, limited)
	if err != nil {
		return tmp.Name(), contentType, fmt.Errorf("ingest: stream download: %w", err)
	}
	if n > s.cfg.MaxDownloadBytes {
		return tmp.Name(), contentType, fmt.Errorf("ingest: download exceeded %d byte cap", s.cfg.MaxDownloadBytes)
	}

	return tmp.Name(), contentType, nil
}

// classifyDownloadError maps a download error to a short reason code for
// the DiscoveredImage's fail_reason column.
func classifyDownloadError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "byte cap"):
		return "oversized"
	case strings.Contains(msg, "status"):
		return "http_error"
	case strings.Contains(msg, "context deadline exceeded"), strings.Contains(msg, "Timeout"):
		return "timeout"
	default:
		return "download_error"
	}
}

// PurgeScratch removes temp files the download step created that are
// older than maxAge, in case a crash left orphaned files behind (spec
// §4.D: "temporary files older than a cleanup threshold are purged").
func PurgeScratch(scratchDir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		return 0, fmt.Errorf("ingest.PurgeScratch: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "scanner-ingest-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(scratchDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
