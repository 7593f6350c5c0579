package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Create insert Scan record
func (r *ScanRepository) Create(ctx context.Context, s *domain.Scan) error {
	const q = `
INSERT INTO scans
(id, brand_id, job_id, scan_type, status, partial_errors, created_at)
VALUES (?,?,?,?,?,?,?);`
	if s.PartialErrors == nil {
		s.PartialErrors = []domain.PartialError{}
	}
	pe, err := toJSON(s.PartialErrors)
	if err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = domain.StatusQueued
	}
	_, err = r.db.ExecContext(ctx, q, s.ID, s.BrandID, s.JobID, s.Type, s.Status, pe, s.CreatedAt)
	return err
}

// Get by ID
func (r *ScanRepository) Get(ctx context.Context, id string) (*domain.Scan, error) {
	const q = `
SELECT id, brand_id, job_id, scan_type, status, current_step, step_progress, step_total,
       overall_progress, domains_checked, pages_scanned, threats_found, partial_errors,
       started_at, completed_at, error, created_at
FROM scans
WHERE id=? LIMIT 1;`
	var (
		s         domain.Scan
		pe        sql.NullString
		started   sql.NullTime
		completed sql.NullTime
		errMsg    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.BrandID, &s.JobID, &s.Type, &s.Status, &s.CurrentStep, &s.StepProgress, &s.StepTotal,
		&s.OverallProgress, &s.DomainsChecked, &s.PagesScanned, &s.ThreatsFound, &pe,
		&started, &completed, &errMsg, &s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := fromJSON(pe, &s.PartialErrors); err != nil {
		return nil, fmt.Errorf("decode partial_errors: %w", err)
	}
	if s.PartialErrors == nil {
		s.PartialErrors = []domain.PartialError{}
	}
	s.StartedAt = timePtr(started)
	s.CompletedAt = timePtr(completed)
	s.Error = errMsg.String
	return &s, nil
}

// MarkRunning only moves queued/running scans; a cancelled or finished scan is left alone.
func (r *ScanRepository) MarkRunning(ctx context.Context, id string, at time.Time) error {
	const q = `
UPDATE scans SET status='running', started_at=COALESCE(started_at, ?)
WHERE id=? AND status IN ('queued','running');`
	_, err := r.db.ExecContext(ctx, q, at, id)
	return err
}

func (r *ScanRepository) UpdateProgress(ctx context.Context, id string, p domain.Progress) error {
	const q = `
UPDATE scans
SET current_step=?, step_progress=?, step_total=?, overall_progress=?,
    domains_checked=?, pages_scanned=?, threats_found=?
WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q,
		p.CurrentStep, p.StepProgress, p.StepTotal, p.OverallProgress,
		p.DomainsChecked, p.PagesScanned, p.ThreatsFound, id,
	)
	return err
}

// AppendPartialError appends in place so concurrent readers never see a truncated list.
func (r *ScanRepository) AppendPartialError(ctx context.Context, id string, pe domain.PartialError) error {
	entry, err := toJSON(pe)
	if err != nil {
		return err
	}
	const q = `
UPDATE scans
SET partial_errors = JSON_ARRAY_APPEND(COALESCE(partial_errors, JSON_ARRAY()), '$', CAST(? AS JSON))
WHERE id=?;`
	_, err = r.db.ExecContext(ctx, q, entry, id)
	return err
}

func (r *ScanRepository) Complete(ctx context.Context, id string, p domain.Progress, at time.Time) error {
	const q = `
UPDATE scans
SET status='completed', current_step=?, step_progress=?, step_total=?, overall_progress=?,
    domains_checked=?, pages_scanned=?, threats_found=?, completed_at=?, error=NULL
WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q,
		p.CurrentStep, p.StepProgress, p.StepTotal, p.OverallProgress,
		p.DomainsChecked, p.PagesScanned, p.ThreatsFound, at, id,
	)
	return err
}

// SetStatus hanya update status + error; completed_at is only stamped for terminal states.
func (r *ScanRepository) SetStatus(ctx context.Context, id string, status domain.Status, errMsg string, at time.Time) error {
	var completed sql.NullTime
	if status == domain.StatusCompleted || status == domain.StatusFailed || status == domain.StatusCancelled {
		completed = sql.NullTime{Time: at, Valid: true}
	}
	const q = `UPDATE scans SET status=?, error=?, completed_at=? WHERE id=?;`
	res, err := r.db.ExecContext(ctx, q, status, errMsg, completed, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
