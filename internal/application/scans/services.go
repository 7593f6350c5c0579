package scans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/application"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

// Service implements use-cases untuk Scan yang dipanggil dari REST layer.
// It never executes scans itself; workers pick the queued jobs up.
type Service struct {
	Scans   domain.Repository
	Jobs    jobs.Store
	Brands  brands.Repository
	Threats threats.Repository
	Clock   application.Clock
	Log     *slog.Logger
}

//
// ==== USE CASES ====
//

// Command untuk enqueue scan
type EnqueueCommand struct {
	BrandID     string
	Type        domain.Type
	Priority    int
	ScheduledAt time.Time
	Overrides   domain.Overrides
}

type EnqueueResult struct {
	ScanID string        `json:"scan_id"`
	JobID  string        `json:"job_id"`
	Status domain.Status `json:"status"`
}

// Enqueue creates the scan record and its job. Unknown scan types and missing
// brands are rejected with permanent errors.
func (s *Service) Enqueue(ctx context.Context, cmd EnqueueCommand) (EnqueueResult, error) {
	if _, err := domain.Profile(cmd.Type, cmd.Overrides); err != nil {
		return EnqueueResult{}, err
	}
	if _, err := s.Brands.Get(ctx, cmd.BrandID); err != nil {
		if errors.Is(err, brands.ErrNotFound) {
			return EnqueueResult{}, domain.Permanent(err)
		}
		return EnqueueResult{}, err
	}

	now := application.OrSystem(s.Clock).Now()
	scan := &domain.Scan{
		ID:        newID(),
		BrandID:   cmd.BrandID,
		JobID:     newID(),
		Type:      cmd.Type,
		Status:    domain.StatusQueued,
		CreatedAt: now,
	}
	if err := s.Scans.Create(ctx, scan); err != nil {
		return EnqueueResult{}, fmt.Errorf("create scan: %w", err)
	}
	job := &jobs.Job{
		ID:          scan.JobID,
		BrandID:     cmd.BrandID,
		ScanID:      scan.ID,
		ScanType:    cmd.Type,
		Status:      jobs.StatusQueued,
		Priority:    cmd.Priority,
		ScheduledAt: cmd.ScheduledAt,
		MaxAttempts: jobs.DefaultMaxAttempts,
		Payload:     cmd.Overrides,
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}
	if err := s.Jobs.Enqueue(ctx, job); err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue job: %w", err)
	}
	s.log().Info("scan enqueued", "scan_id", scan.ID, "job_id", job.ID, "brand_id", cmd.BrandID, "scan_type", cmd.Type)
	return EnqueueResult{ScanID: scan.ID, JobID: job.ID, Status: scan.Status}, nil
}

// Get returns the scan record polled by the dashboard.
func (s *Service) Get(ctx context.Context, id string) (*domain.Scan, error) {
	return s.Scans.Get(ctx, id)
}

// Cancel stops a scan. A job still waiting in the queue is cancelled directly;
// a running scan is marked failed with the cancellation reason so the
// orchestrator aborts at its next checkpoint and the worker settles it.
func (s *Service) Cancel(ctx context.Context, id string) (*domain.Scan, error) {
	scan, err := s.Scans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if scan.Terminal() {
		if scan.Cancelled() {
			return scan, nil
		}
		return nil, domain.ErrFinished
	}

	now := application.OrSystem(s.Clock).Now()
	status := domain.StatusFailed
	if scan.Status == domain.StatusQueued {
		dropped, err := s.Jobs.CancelForScan(ctx, id, domain.CancelReason, now)
		if err != nil {
			return nil, fmt.Errorf("cancel queued job: %w", err)
		}
		if dropped {
			status = domain.StatusCancelled
		}
	}
	if err := s.Scans.SetStatus(ctx, id, status, domain.CancelReason, now); err != nil {
		return nil, err
	}
	s.log().Info("scan cancel requested", "scan_id", id, "status", status)
	return s.Scans.Get(ctx, id)
}

// ListThreats pages through a brand's persisted threats.
func (s *Service) ListThreats(ctx context.Context, brandID string, page, pageSize int) (*threats.PaginatedResult, error) {
	if _, err := s.Brands.Get(ctx, brandID); err != nil {
		return nil, err
	}
	return s.Threats.ListByBrand(ctx, brandID, page, pageSize)
}

func (s *Service) log() *slog.Logger { return logging.OrDefault(s.Log) }
