package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/divavault/scanner-core/internal/models"
)

// CrawlScheduleStore persists platform-crawl pagination cursors so a crawl
// can resume where it left off across restarts, grounded on the original
// implementation's scout/platform_crawl.py cursor-row-per-platform model.
type CrawlScheduleStore struct {
	conn *sql.DB
}

// Get returns the schedule row for platform, or nil if the platform has
// never been crawled.
func (s *CrawlScheduleStore) Get(platform string) (*models.PlatformCrawlSchedule, error) {
	row := s.conn.QueryRow(
		`SELECT platform, interval_hours, cursor, search_cursors, model_cursors, tags_total, tags_exhausted
		 FROM platform_crawl_schedule WHERE platform = ?`,
		platform,
	)
	var sched models.PlatformCrawlSchedule
	var searchJSON, modelJSON string
	err := row.Scan(&sched.Platform, &sched.IntervalHours, &sched.Cursor, &searchJSON, &modelJSON, &sched.TagsTotal, &sched.TagsExhausted)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.CrawlScheduleStore.Get: %w", err)
	}
	if err := json.Unmarshal([]byte(searchJSON), &sched.SearchCursors); err != nil {
		return nil, fmt.Errorf("storage.CrawlScheduleStore.Get: unmarshal search_cursors: %w", err)
	}
	if err := json.Unmarshal([]byte(modelJSON), &sched.ModelCursors); err != nil {
		return nil, fmt.Errorf("storage.CrawlScheduleStore.Get: unmarshal model_cursors: %w", err)
	}
	return &sched, nil
}

// Upsert writes the current cursor state for platform, creating the row on
// first crawl.
func (s *CrawlScheduleStore) Upsert(sched models.PlatformCrawlSchedule) error {
	searchJSON, err := json.Marshal(sched.SearchCursors)
	if err != nil {
		return fmt.Errorf("storage.CrawlScheduleStore.Upsert: marshal search_cursors: %w", err)
	}
	modelJSON, err := json.Marshal(sched.ModelCursors)
	if err != nil {
		return fmt.Errorf("storage.CrawlScheduleStore.Upsert: marshal model_cursors: %w", err)
	}
	_, err = s.conn.Exec(
		`INSERT INTO platform_crawl_schedule (platform, interval_hours, cursor, search_cursors, model_cursors, tags_total, tags_exhausted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(platform) DO UPDATE SET
		   interval_hours = excluded.interval_hours,
		   cursor = excluded.cursor,
		   search_cursors = excluded.search_cursors,
		   model_cursors = excluded.model_cursors,
		   tags_total = excluded.tags_total,
		   tags_exhausted = excluded.tags_exhausted`,
		sched.Platform, sched.IntervalHours, sched.Cursor, string(searchJSON), string(modelJSON), sched.TagsTotal, sched.TagsExhausted,
	)
	if err != nil {
		return fmt.Errorf("storage.CrawlScheduleStore.Upsert: %w", err)
	}
	return nil
}

// ResetExhaustedTags clears tags_exhausted once a platform's tag set has
// been fully cycled, so the next crawl starts the tag list over.
func (s *CrawlScheduleStore) ResetExhaustedTags(platform string) error {
	_, err := s.conn.Exec(`UPDATE platform_crawl_schedule SET tags_exhausted = 0 WHERE platform = ?`, platform)
	if err != nil {
		return fmt.Errorf("storage.CrawlScheduleStore.ResetExhaustedTags: %w", err)
	}
	return nil
}
