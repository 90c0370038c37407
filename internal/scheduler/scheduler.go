// Package scheduler drives the tick loop that leases due ScanJob rows and
// dispatches them to the pipeline. Grounded on the original
// implementation's jobs/scheduler.py: a module-level shutdown flag checked
// between jobs (so shutdown drains mid-batch rather than mid-job), one
// failure never blocking the rest of a batch, and stale-job recovery run
// once at startup before the first tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/divavault/scanner-core/internal/metrics"
	"github.com/divavault/scanner-core/internal/models"
)

// JobStore is the subset of storage.JobStore the scheduler drives.
type JobStore interface {
	DueJobs(kind models.JobKind, now time.Time, limit int) ([]models.ScanJob, error)
	Lease(jobID, owner string, now time.Time) (runID string, ok bool, err error)
	Heartbeat(runID string, now time.Time) error
	Complete(runID string, now time.Time) error
	Fail(runID string, reason string, now time.Time) error
	RecoverStale(maxAge time.Duration) (int64, error)
	InterruptRunning(owner string) (int64, error)
}

// Runner executes one leased job of a given kind. Returning an error marks
// the job failed; the scheduler logs it and moves on to the next job.
type Runner func(ctx context.Context, job models.ScanJob) error

// Config tunes the tick loop.
type Config struct {
	TickInterval        time.Duration
	StaleJobMaxAge       time.Duration
	ShutdownGrace        time.Duration
	DueJobsLimitPerKind  int
	ConcurrencyPerKind   map[string]int
}

// Scheduler ticks on an interval, fetching and dispatching due jobs per
// kind, bounded by that kind's configured concurrency.
type Scheduler struct {
	store   JobStore
	cfg     Config
	owner   string
	runners map[models.JobKind]Runner

	shutdown atomic.Bool
}

// New builds a scheduler. owner identifies this process in lease_owner
// columns, for InterruptRunning to target on shutdown.
func New(store JobStore, cfg Config, owner string) *Scheduler {
	return &Scheduler{store: store, cfg: cfg, owner: owner, runners: make(map[models.JobKind]Runner)}
}

// Register binds a kind to the function that executes its jobs.
func (s *Scheduler) Register(kind models.JobKind, runner Runner) {
	s.runners[kind] = runner
}

// Run recovers stale jobs once, then ticks until ctx is cancelled. On
// cancellation it marks every job this owner holds as interrupted so
// another instance (or a later restart) can resume them, waiting up to
// ShutdownGrace for any in-flight tick to finish first.
func (s *Scheduler) Run(ctx context.Context) error {
	if n, err := s.store.RecoverStale(s.cfg.StaleJobMaxAge); err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("recover stale jobs failed")
	} else if n > 0 {
		log.Info().Str("component", "scheduler").Int64("count", n).Msg("recovered stale jobs")
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	var tickWG sync.WaitGroup

	go func() {
		for {
			select {
			case <-ctx.Done():
				close(done)
				return
			case <-ticker.C:
				tickWG.Add(1)
				tickDone := make(chan struct{})
				go func() {
					defer tickWG.Done()
					defer close(tickDone)
					s.tick(ctx)
				}()
				// Ticks stay sequential, but cancellation is noticed while one
				// is still running so the ShutdownGrace wait below bounds it.
				select {
				case <-tickDone:
				case <-ctx.Done():
					close(done)
					return
				}
			}
		}
	}()

	<-done

	graceCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	waited := make(chan struct{})
	go func() { tickWG.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-graceCtx.Done():
		log.Warn().Str("component", "scheduler").Msg("shutdown grace period expired with a tick still running")
	}

	if n, err := s.store.InterruptRunning(s.owner); err != nil {
		log.Error().Str("component", "scheduler").Err(err).Msg("interrupt running jobs failed")
	} else if n > 0 {
		log.Info().Str("component", "scheduler").Int64("count", n).Msg("interrupted running jobs for shutdown")
	}
	return nil
}

// Stop requests a graceful shutdown; Run's loop checks this between jobs
// within a tick and stops dispatching further jobs in the current batch.
func (s *Scheduler) Stop() {
	s.shutdown.Store(true)
}

// tick runs one pass over every registered job kind.
func (s *Scheduler) tick(ctx context.Context) {
	for kind, runner := range s.runners {
		if s.shutdown.Load() {
			return
		}
		s.runKind(ctx, kind, runner)
	}
}

// runKind fetches due jobs of one kind and dispatches them, bounded by
// that kind's concurrency cap. A job failing never stops the others in the
// batch; the shutdown flag is checked between jobs so a request to stop
// drains mid-batch instead of waiting for the whole batch to finish.
func (s *Scheduler) runKind(ctx context.Context, kind models.JobKind, runner Runner) {
	jobs, err := s.store.DueJobs(kind, time.Now().UTC(), s.cfg.DueJobsLimitPerKind)
	if err != nil {
		log.Error().Str("component", "scheduler").Str("kind", string(kind)).Err(err).Msg("fetch due jobs failed")
		return
	}
	metrics.Get().SetDueJobsBacklog(string(kind), len(jobs))
	if len(jobs) == 0 {
		return
	}

	limit := s.cfg.ConcurrencyPerKind[string(kind)]
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, job := range jobs {
		job := job
		sem <- struct{}{}
		if s.shutdown.Load() {
			<-sem
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.runOne(ctx, job, runner)
		}()
	}
	wg.Wait()
}

// runOne leases, heartbeats, runs, and completes/fails a single job.
func (s *Scheduler) runOne(ctx context.Context, job models.ScanJob, runner Runner) {
	now := time.Now().UTC()
	runID, ok, err := s.store.Lease(job.ID, s.owner, now)
	if err != nil {
		log.Error().Str("component", "scheduler").Str("job_id", job.ID).Err(err).Msg("lease job failed")
		return
	}
	if !ok {
		return // another worker raced us to this job
	}

	hbCtx, cancelHB := context.WithCancel(ctx)
	defer cancelHB()
	go s.heartbeat(hbCtx, runID)

	start := time.Now()
	err = func() (runErr error) {
		defer func() {
			if r := recover(); r != nil {
				runErr = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return runner(ctx, job)
	}()
	metrics.Get().RecordJobRun(string(job.Kind), time.Since(start).Seconds())

	if err != nil {
		log.Warn().Str("component", "scheduler").Str("job_id", job.ID).Str("kind", string(job.Kind)).Err(err).Msg("job failed")
		metrics.Get().RecordJobFailure(string(job.Kind))
		if ferr := s.store.Fail(runID, err.Error(), time.Now().UTC()); ferr != nil {
			log.Error().Str("component", "scheduler").Str("job_id", job.ID).Err(ferr).Msg("mark job failed")
		}
		return
	}
	if cerr := s.store.Complete(runID, time.Now().UTC()); cerr != nil {
		log.Error().Str("component", "scheduler").Str("job_id", job.ID).Err(cerr).Msg("mark job complete")
	}
}

// heartbeat refreshes the job's heartbeat_at every third of the stale-job
// threshold, so a crashed worker is reliably detected by RecoverStale.
func (s *Scheduler) heartbeat(ctx context.Context, runID string) {
	interval := s.cfg.StaleJobMaxAge / 3
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.store.Heartbeat(runID, time.Now().UTC()); err != nil {
				log.Warn().Str("component", "scheduler").Str("run_id", runID).Err(err).Msg("heartbeat failed")
			}
		}
	}
}
