package model

import "time"

// AttemptStatus represents the lifecycle state of a scrape attempt.
type AttemptStatus string

const (
	// AttemptRunning marks an attempt whose audit row was written but which
	// has not reached a terminal state. A row stuck in this state is the
	// marker of a crashed worker.
	AttemptRunning AttemptStatus = "running"
	// AttemptSuccess means the page loaded and extraction completed, even
	// when the zone turned out to be empty.
	AttemptSuccess AttemptStatus = "success"
	// AttemptPartial means extraction started but errored before completion;
	// whatever was collected has been emitted.
	AttemptPartial AttemptStatus = "partial"
	// AttemptFailed means navigation never succeeded after exhausting retries.
	AttemptFailed AttemptStatus = "failed"
)

// ScrapeAttempt is the append-only log of one executor run against one zone.
// The row is created as running before navigation starts and completed
// exactly once; immutable after completion.
type ScrapeAttempt struct {
	ID            string        `json:"id"`
	ZoneID        int64         `json:"zone_id"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	RecordsFound  int           `json:"records_found"`
	RecordsNew    int           `json:"records_new"`
	RecordsMerged int           `json:"records_merged"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}
