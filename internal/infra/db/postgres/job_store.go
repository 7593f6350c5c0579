package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
)

type JobStore struct{ db *sql.DB }

func NewJobStore(db *sql.DB) *JobStore { return &JobStore{db: db} }

const jobColumns = `id, brand_id, scan_id, scan_type, status, priority, scheduled_at, locked_at, locked_by,
       attempts, max_attempts, last_error, payload, created_at, updated_at`

func scanJob(row rowScanner) (*jobs.Job, error) {
	var (
		j        jobs.Job
		lockedAt sql.NullTime
		lastErr  sql.NullString
		payload  sql.NullString
	)
	if err := row.Scan(
		&j.ID, &j.BrandID, &j.ScanID, &j.ScanType, &j.Status, &j.Priority, &j.ScheduledAt, &lockedAt, &j.LockedBy,
		&j.Attempts, &j.MaxAttempts, &lastErr, &payload, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.LockedAt = timePtr(lockedAt)
	j.LastError = lastErr.String
	if err := fromJSON(payload, &j.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &j, nil
}

func (s *JobStore) Enqueue(ctx context.Context, j *jobs.Job) error {
	payload, err := toJSON(j.Payload)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = now
	}
	if j.MaxAttempts <= 0 {
		j.MaxAttempts = jobs.DefaultMaxAttempts
	}
	if j.Status == "" {
		j.Status = jobs.StatusQueued
	}
	const q = `
INSERT INTO scan_jobs
(id, brand_id, scan_id, scan_type, status, priority, scheduled_at, attempts, max_attempts, payload, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11,$11);`
	_, err = s.db.ExecContext(ctx, q,
		j.ID, j.BrandID, j.ScanID, j.ScanType, j.Status, j.Priority, j.ScheduledAt,
		j.Attempts, j.MaxAttempts, payload, now,
	)
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scan_jobs WHERE id=$1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	return j, err
}

// ClaimNext locks the best eligible row with SKIP LOCKED so concurrent workers never
// block on, or share, the same job.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*jobs.Job, error) {
	const q = `
UPDATE scan_jobs
SET status='running', locked_by=$1, locked_at=$2, attempts=attempts+1, updated_at=$2
WHERE id = (
    SELECT id FROM scan_jobs
    WHERE (status='queued' AND scheduled_at <= $2 AND (locked_at IS NULL OR locked_at < $3))
       OR (status='running' AND locked_at < $3)
    ORDER BY priority DESC, scheduled_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns + `;`
	j, err := scanJob(s.db.QueryRowContext(ctx, q, workerID, now, now.Add(-staleAfter)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return j, nil
}

func (s *JobStore) Complete(ctx context.Context, id, workerID string, at time.Time) error {
	return s.settle(ctx, id, `
UPDATE scan_jobs SET status='completed', locked_at=NULL, locked_by='', last_error=NULL, updated_at=$1
WHERE id=$2 AND status='running' AND locked_by=$3;`, at, id, workerID)
}

func (s *JobStore) Requeue(ctx context.Context, id, workerID string, scheduledAt time.Time, lastErr string) error {
	return s.settle(ctx, id, `
UPDATE scan_jobs SET status='queued', scheduled_at=$1, locked_at=NULL, locked_by='', last_error=$2, updated_at=$3
WHERE id=$4 AND status='running' AND locked_by=$5;`, scheduledAt, lastErr, time.Now().UTC(), id, workerID)
}

func (s *JobStore) Fail(ctx context.Context, id, workerID, lastErr string, at time.Time) error {
	return s.settle(ctx, id, `
UPDATE scan_jobs SET status='failed', locked_at=NULL, locked_by='', last_error=$1, updated_at=$2
WHERE id=$3 AND status='running' AND locked_by=$4;`, lastErr, at, id, workerID)
}

func (s *JobStore) Cancel(ctx context.Context, id, workerID, reason string, at time.Time) error {
	return s.settle(ctx, id, `
UPDATE scan_jobs SET status='cancelled', locked_at=NULL, locked_by='', last_error=$1, updated_at=$2
WHERE id=$3 AND status='running' AND locked_by=$4;`, reason, at, id, workerID)
}

func (s *JobStore) CancelForScan(ctx context.Context, scanID, reason string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE scan_jobs SET status='cancelled', last_error=$1, updated_at=$2
WHERE scan_id=$3 AND status='queued';`, reason, at, scanID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// settle runs a lock-fenced update. Zero rows means either the job is gone or
// another worker owns it now.
func (s *JobStore) settle(ctx context.Context, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return jobs.ErrLeaseLost
}
