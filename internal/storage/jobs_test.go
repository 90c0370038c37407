package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divavault/scanner-core/internal/models"
)

func TestJobStore_Upsert_IsIdempotent(t *testing.T) {
	db := openTestDB(t)

	id1, err := db.Jobs.Upsert(models.JobContributorScan, "contributor-1", 24)
	require.NoError(t, err)
	id2, err := db.Jobs.Upsert(models.JobContributorScan, "contributor-1", 48)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same (kind, target) returns the existing row")
}

func TestJobStore_DueJobs_OnlyIdleAndPastInterval(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Jobs.Upsert(models.JobCleanup, "default", 24)
	require.NoError(t, err)

	due, err := db.Jobs.DueJobs(models.JobCleanup, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "never-run job with nil last_run_at is always due")
	assert.Equal(t, "default", due[0].Target)
}

func TestJobStore_LeaseHeartbeatComplete(t *testing.T) {
	db := openTestDB(t)

	jobID, err := db.Jobs.Upsert(models.JobCleanup, "default", 24)
	require.NoError(t, err)

	runID, ok, err := db.Jobs.Lease(jobID, "owner-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, runID)

	_, ok, err = db.Jobs.Lease(jobID, "owner-2", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "already-running job cannot be leased again")

	require.NoError(t, db.Jobs.Heartbeat(runID, time.Now()))
	require.NoError(t, db.Jobs.Complete(runID, time.Now()))

	due, err := db.Jobs.DueJobs(models.JobCleanup, time.Now().Add(25*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1, "completed job becomes due again after its interval elapses")
}

func TestJobStore_Fail_TransitionsToFailed(t *testing.T) {
	db := openTestDB(t)

	jobID, err := db.Jobs.Upsert(models.JobCleanup, "default", 24)
	require.NoError(t, err)
	runID, ok, err := db.Jobs.Lease(jobID, "owner-1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Jobs.Fail(runID, "boom", time.Now()))

	due, err := db.Jobs.DueJobs(models.JobCleanup, time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1, "failed jobs are eligible to be picked up again")
}

func TestJobStore_RecoverStale(t *testing.T) {
	db := openTestDB(t)

	jobID, err := db.Jobs.Upsert(models.JobCleanup, "default", 24)
	require.NoError(t, err)
	_, ok, err := db.Jobs.Lease(jobID, "owner-1", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	n, err := db.Jobs.RecoverStale(time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	due, err := db.Jobs.DueJobs(models.JobCleanup, time.Now(), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1, "interrupted jobs are due again")
}

func TestJobStore_InterruptRunning(t *testing.T) {
	db := openTestDB(t)

	jobID, err := db.Jobs.Upsert(models.JobCleanup, "default", 24)
	require.NoError(t, err)
	_, ok, err := db.Jobs.Lease(jobID, "owner-1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	n, err := db.Jobs.InterruptRunning("owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestJobStore_DeleteStaleFailed(t *testing.T) {
	db := openTestDB(t)

	jobID, err := db.Jobs.Upsert(models.JobCleanup, "default", 24)
	require.NoError(t, err)
	runID, ok, err := db.Jobs.Lease(jobID, "owner-1", time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, db.Jobs.Fail(runID, "boom", time.Now()))

	// Fail() doesn't stamp last_run_at, so backdate it directly to simulate
	// an old failure for the retention sweep to find.
	_, err = db.conn.Exec(`UPDATE scan_jobs SET last_run_at = ? WHERE id = ?`, time.Now().Add(-48*time.Hour), jobID)
	require.NoError(t, err)

	n, err := db.Jobs.DeleteStaleFailed(24 * time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
