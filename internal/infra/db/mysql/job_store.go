package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
)

type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

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
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);`
	_, err = s.db.ExecContext(ctx, q,
		j.ID, j.BrandID, j.ScanID, j.ScanType, j.Status, j.Priority, j.ScheduledAt,
		j.Attempts, j.MaxAttempts, payload, now, now,
	)
	return err
}

func (s *JobStore) Get(ctx context.Context, id string) (*jobs.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scan_jobs WHERE id=? LIMIT 1;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	return j, err
}

// ClaimNext picks the best eligible row, then claims it with a guarded update.
// Zero affected rows means another worker won; the caller polls again later.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*jobs.Job, error) {
	staleBefore := now.Add(-staleAfter)

	const pick = `
SELECT id FROM scan_jobs
WHERE (status='queued' AND scheduled_at <= ? AND (locked_at IS NULL OR locked_at < ?))
   OR (status='running' AND locked_at < ?)
ORDER BY priority DESC, scheduled_at ASC
LIMIT 1;`
	var id string
	err := s.db.QueryRowContext(ctx, pick, now, staleBefore, staleBefore).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pick job: %w", err)
	}

	const claim = `
UPDATE scan_jobs
SET status='running', locked_by=?, locked_at=?, attempts=attempts+1, updated_at=?
WHERE id=?
  AND ((status='queued' AND (locked_at IS NULL OR locked_at < ?))
    OR (status='running' AND locked_at < ?));`
	res, err := s.db.ExecContext(ctx, claim, workerID, now, now, id, staleBefore, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.Get(ctx, id)
}

func (s *JobStore) Complete(ctx context.Context, id, workerID string, at time.Time) error {
	const q = `
UPDATE scan_jobs SET status='completed', locked_at=NULL, locked_by='', last_error=NULL, updated_at=?
WHERE id=? AND status='running' AND locked_by=?;`
	return s.settle(ctx, id, q, at, id, workerID)
}

func (s *JobStore) Requeue(ctx context.Context, id, workerID string, scheduledAt time.Time, lastErr string) error {
	const q = `
UPDATE scan_jobs SET status='queued', scheduled_at=?, locked_at=NULL, locked_by='', last_error=?, updated_at=?
WHERE id=? AND status='running' AND locked_by=?;`
	return s.settle(ctx, id, q, scheduledAt, lastErr, time.Now().UTC(), id, workerID)
}

func (s *JobStore) Fail(ctx context.Context, id, workerID, lastErr string, at time.Time) error {
	const q = `
UPDATE scan_jobs SET status='failed', locked_at=NULL, locked_by='', last_error=?, updated_at=?
WHERE id=? AND status='running' AND locked_by=?;`
	return s.settle(ctx, id, q, lastErr, at, id, workerID)
}

func (s *JobStore) Cancel(ctx context.Context, id, workerID, reason string, at time.Time) error {
	const q = `
UPDATE scan_jobs SET status='cancelled', locked_at=NULL, locked_by='', last_error=?, updated_at=?
WHERE id=? AND status='running' AND locked_by=?;`
	return s.settle(ctx, id, q, reason, at, id, workerID)
}

func (s *JobStore) CancelForScan(ctx context.Context, scanID, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE scan_jobs SET status='cancelled', last_error=?, updated_at=?
WHERE scan_id=? AND status='queued';`
	res, err := s.db.ExecContext(ctx, q, reason, at, scanID)
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
