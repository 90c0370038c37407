// Package storage is the scanner's sqlite-backed persistence layer: a
// connection pool plus one repository type per table family from spec §6.
// Grounded on the teacher's mutex-guarded-store idiom
// (internal/alerts/history.go, internal/ai/approval/store.go), adapted from
// their JSON-file backing to modernc.org/sqlite (pure Go, no cgo — the
// teacher's own production DB story for embedded deployments).
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the shared sqlite connection pool and exposes one repository
// per entity family.
type DB struct {
	conn *sql.DB

	Contributors *ContributorStore
	Images       *ImageStore
	Matches      *MatchStore
	Jobs         *JobStore
	Signals      *SignalStore
	ModelState   *ModelStateStore
	Takedowns    *TakedownStore
	Notifications *NotificationStore
	CrawlSchedule *CrawlScheduleStore
}

// Open creates (or attaches to) the sqlite database at path, applies the
// schema, and builds the repository set. sqlite only supports a single
// writer at a time; the pool is capped at one connection so database/sql
// serializes writers instead of surfacing SQLITE_BUSY errors under load.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("storage.Open: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage.Open: apply schema: %w", err)
	}

	db := &DB{conn: conn}
	db.Contributors = &ContributorStore{conn: conn}
	db.Images = &ImageStore{conn: conn}
	db.Matches = &MatchStore{conn: conn}
	db.Jobs = &JobStore{conn: conn}
	db.Signals = &SignalStore{conn: conn}
	db.ModelState = &ModelStateStore{conn: conn}
	db.Takedowns = &TakedownStore{conn: conn}
	db.Notifications = &NotificationStore{conn: conn}
	db.CrawlSchedule = &CrawlScheduleStore{conn: conn}
	return db, nil
}

// Close releases the underlying connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is still usable, for the health endpoint.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
