package jobs

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("job not found")
	// ErrLeaseLost means the job is no longer running under the caller's lock,
	// usually because a stale lock was reclaimed by another worker.
	ErrLeaseLost = errors.New("job lease lost")
)

// Store port. All lock mutations go through conditional updates so several
// worker processes can share one table.
type Store interface {
	Enqueue(ctx context.Context, j *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// ClaimNext returns nil, nil when nothing is claimable or another worker won the race.
	ClaimNext(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*Job, error)
	// Settle methods only touch a running job still locked by workerID and
	// return ErrLeaseLost otherwise.
	Complete(ctx context.Context, id, workerID string, at time.Time) error
	Requeue(ctx context.Context, id, workerID string, scheduledAt time.Time, lastErr string) error
	Fail(ctx context.Context, id, workerID string, lastErr string, at time.Time) error
	Cancel(ctx context.Context, id, workerID string, reason string, at time.Time) error
	// CancelForScan cancels the scan's job while it is still queued. It reports whether a row changed.
	CancelForScan(ctx context.Context, scanID string, reason string, at time.Time) (bool, error)
}
