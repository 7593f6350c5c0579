package jobs

import (
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
)

// Status enum
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

const DefaultMaxAttempts = 3

// Job is one row of the scan job table. A job becomes running only through the
// store's conditional claim, which also sets LockedBy.
type Job struct {
	ID          string          `json:"id"`
	BrandID     string          `json:"brand_id"`
	ScanID      string          `json:"scan_id"`
	ScanType    scans.Type      `json:"scan_type"`
	Status      Status          `json:"status"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"`
	LockedBy    string          `json:"locked_by,omitempty"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Payload     scans.Overrides `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Claimable reports whether a worker may claim the job at now. Stale running
// locks are reclaimable regardless of owner.
func (j *Job) Claimable(now time.Time, staleAfter time.Duration) bool {
	stale := j.LockedAt != nil && j.LockedAt.Before(now.Add(-staleAfter))
	switch j.Status {
	case StatusQueued:
		return !j.ScheduledAt.After(now) && (j.LockedAt == nil || stale)
	case StatusRunning:
		return stale
	}
	return false
}

// Backoff is the delay before the next attempt: attempts x 5s, capped at 60s.
func Backoff(attempts int) time.Duration {
	d := time.Duration(attempts) * 5 * time.Second
	if d > time.Minute {
		return time.Minute
	}
	if d < 0 {
		return 0
	}
	return d
}
