package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/divavault/scanner-core/internal/models"
)

// JobStore is the durable table of scan jobs keyed by (kind, target),
// implementing the exact lease/heartbeat/complete/fail/recover operations
// spec §4.F requires of the scheduler's backing store.
type JobStore struct {
	conn *sql.DB
}

// Upsert ensures a (kind, target) job row exists, for seeding the initial
// set of contributor_scan / platform_crawl / cleanup jobs at startup.
func (s *JobStore) Upsert(kind models.JobKind, target string, intervalHours float64) (string, error) {
	row := s.conn.QueryRow(`SELECT id FROM scan_jobs WHERE kind = ? AND target = ?`, string(kind), target)
	var id string
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("storage.JobStore.Upsert: %w", err)
	}

	id = ulid.Make().String()
	_, err = s.conn.Exec(
		`INSERT INTO scan_jobs (id, kind, target, interval_hours, lease_state) VALUES (?, ?, ?, ?, 'idle')`,
		id, string(kind), target, intervalHours,
	)
	if err != nil {
		return "", fmt.Errorf("storage.JobStore.Upsert: %w", err)
	}
	return id, nil
}

// DueJobs returns rows of the given kind where last_run_at + interval <= now
// and lease_state is idle, failed, or interrupted, oldest last_run_at
// first, bounded by limit.
func (s *JobStore) DueJobs(kind models.JobKind, now time.Time, limit int) ([]models.ScanJob, error) {
	rows, err := s.conn.Query(
		`SELECT id, kind, target, interval_hours, last_run_at, lease_state, lease_owner, heartbeat_at, run_id
		 FROM scan_jobs
		 WHERE kind = ?
		   AND lease_state IN ('idle', 'failed', 'interrupted')
		   AND (last_run_at IS NULL OR datetime(last_run_at, '+' || CAST(interval_hours * 3600 AS TEXT) || ' seconds') <= ?)
		 ORDER BY last_run_at ASC NULLS FIRST
		 LIMIT ?`,
		string(kind), now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.JobStore.DueJobs: %w", err)
	}
	defer rows.Close()

	var out []models.ScanJob
	for rows.Next() {
		j, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJobRow(rows *sql.Rows) (models.ScanJob, error) {
	var j models.ScanJob
	var kind, leaseState string
	var lastRunAt, heartbeatAt sql.NullTime
	if err := rows.Scan(&j.ID, &kind, &j.Target, &j.IntervalHours, &lastRunAt, &leaseState, &j.LeaseOwner, &heartbeatAt, &j.RunID); err != nil {
		return j, fmt.Errorf("storage.JobStore: scan: %w", err)
	}
	j.Kind = models.JobKind(kind)
	j.LeaseState = models.LeaseState(leaseState)
	if lastRunAt.Valid {
		t := lastRunAt.Time
		j.LastRunAt = &t
	}
	if heartbeatAt.Valid {
		t := heartbeatAt.Time
		j.HeartbeatAt = &t
	}
	return j, nil
}

// Lease atomically flips an idle/failed/interrupted job to running,
// stamping owner and heartbeat_at, and returns a new run id. Returns
// (runID, false, nil) if the job was already leased by the time this call
// raced another leaser.
func (s *JobStore) Lease(jobID, owner string, now time.Time) (runID string, ok bool, err error) {
	runID = ulid.Make().String()
	res, err := s.conn.Exec(
		`UPDATE scan_jobs SET lease_state = 'running', lease_owner = ?, heartbeat_at = ?, run_id = ?
		 WHERE id = ? AND lease_state IN ('idle', 'failed', 'interrupted')`,
		owner, now, runID, jobID,
	)
	if err != nil {
		return "", false, fmt.Errorf("storage.JobStore.Lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("storage.JobStore.Lease: %w", err)
	}
	return runID, affected == 1, nil
}

// Heartbeat refreshes heartbeat_at for the job currently holding run_id.
func (s *JobStore) Heartbeat(runID string, now time.Time) error {
	_, err := s.conn.Exec(`UPDATE scan_jobs SET heartbeat_at = ? WHERE run_id = ? AND lease_state = 'running'`, now, runID)
	if err != nil {
		return fmt.Errorf("storage.JobStore.Heartbeat: %w", err)
	}
	return nil
}

// Complete flips a job back to idle, stamps last_run_at, and clears the
// owner/run_id. It takes no result summary and stores none; this schema
// has no summary column.
func (s *JobStore) Complete(runID string, now time.Time) error {
	_, err := s.conn.Exec(
		`UPDATE scan_jobs SET lease_state = 'idle', last_run_at = ?, lease_owner = '', run_id = ''
		 WHERE run_id = ? AND lease_state = 'running'`,
		now, runID,
	)
	if err != nil {
		return fmt.Errorf("storage.JobStore.Complete: %w", err)
	}
	return nil
}

// Fail flips a job to failed. reason is accepted for future persistence;
// today it is only logged by the caller.
func (s *JobStore) Fail(runID string, reason string, now time.Time) error {
	_, err := s.conn.Exec(
		`UPDATE scan_jobs SET lease_state = 'failed', lease_owner = '', run_id = ''
		 WHERE run_id = ? AND lease_state = 'running'`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("storage.JobStore.Fail: %w", err)
	}
	return nil
}

// RecoverStale finds running jobs whose heartbeat_at is older than maxAge
// and transitions them to interrupted, returning the count affected.
func (s *JobStore) RecoverStale(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.conn.Exec(
		`UPDATE scan_jobs SET lease_state = 'interrupted' WHERE lease_state = 'running' AND heartbeat_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.JobStore.RecoverStale: %w", err)
	}
	return res.RowsAffected()
}

// InterruptRunning marks every running job owned by owner as interrupted,
// for graceful shutdown so another instance can pick the work back up.
func (s *JobStore) InterruptRunning(owner string) (int64, error) {
	res, err := s.conn.Exec(
		`UPDATE scan_jobs SET lease_state = 'interrupted' WHERE lease_state = 'running' AND lease_owner = ?`,
		owner,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.JobStore.InterruptRunning: %w", err)
	}
	return res.RowsAffected()
}

// DeleteStaleFailed removes failed jobs whose last_run_at is older than
// maxAge (spec §4.I: "scan_jobs in completed/failed -> 30d"). Complete()
// returns a finished job straight to idle rather than resting it in a
// terminal "completed" row (see DESIGN.md), so the only terminal state this
// schema ever parks a job in durably is failed; that is the class this
// retention pass sweeps. Fail() does not stamp last_run_at, so the age is
// counted from the job's last successful completion, and a failed job that
// never completed is never removed.
func (s *JobStore) DeleteStaleFailed(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res, err := s.conn.Exec(
		`DELETE FROM scan_jobs WHERE lease_state = 'failed' AND last_run_at IS NOT NULL AND last_run_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.JobStore.DeleteStaleFailed: %w", err)
	}
	return res.RowsAffected()
}
