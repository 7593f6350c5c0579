package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/brandsentry/internal/application"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/jobs"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultStaleAfter   = 30 * time.Minute
)

// Runner executes the scan behind a claimed job.
type Runner interface {
	RunJob(ctx context.Context, j *domain.Job) error
}

type Config struct {
	ID           string        `yaml:"id"`
	PollInterval time.Duration `yaml:"poll_interval"`
	StaleAfter   time.Duration `yaml:"stale_after"`
}

// Outcome is what the worker did with a claimed job.
type Outcome string

const (
	OutcomeIdle      Outcome = "idle"
	OutcomeCompleted Outcome = "completed"
	OutcomeRequeued  Outcome = "requeued"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeAbandoned Outcome = "abandoned"  // shutdown mid-run; reclaimed once the lock is stale
	OutcomeLeaseLost Outcome = "lease_lost" // lock was reclaimed by another worker before settling
)

// Worker polls the job table and runs one job at a time.
type Worker struct {
	Store  domain.Store
	Scans  scans.Repository
	Runner Runner
	Clock  application.Clock
	Log    *slog.Logger
	Config Config
}

// DefaultWorkerID is hostname-pid-random, unique across processes sharing a table.
func DefaultWorkerID() string {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.New().String()[:8])
}

// Run polls until ctx is cancelled. It does not wait for the in-flight job to
// settle: a job interrupted by shutdown keeps its lock and is reclaimed later.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.config()
	log := w.log().With("worker_id", cfg.ID)
	log.Info("worker started", "poll_interval", cfg.PollInterval, "stale_after", cfg.StaleAfter)

	for {
		out, err := w.Tick(ctx)
		if ctx.Err() != nil {
			log.Info("worker stopped")
			return nil
		}
		if err != nil {
			log.Error("worker tick failed", "error", err)
		}
		if out != OutcomeIdle && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			log.Info("worker stopped")
			return nil
		case <-time.After(cfg.PollInterval):
		}
	}
}

// Tick claims at most one job and settles it.
func (w *Worker) Tick(ctx context.Context) (Outcome, error) {
	cfg := w.config()
	now := w.now()
	j, err := w.Store.ClaimNext(ctx, cfg.ID, now, cfg.StaleAfter)
	if err != nil {
		return OutcomeIdle, fmt.Errorf("claim: %w", err)
	}
	if j == nil {
		return OutcomeIdle, nil
	}
	log := w.log().With("worker_id", cfg.ID, "job_id", j.ID, "scan_id", j.ScanID, "attempt", j.Attempts)

	// a stale lock was reclaimed after the last allowed attempt crashed
	if j.Attempts > j.MaxAttempts {
		msg := fmt.Sprintf("max attempts (%d) exceeded", j.MaxAttempts)
		if j.LastError != "" {
			msg += ": " + j.LastError
		}
		log.Warn("failing exhausted job", "reason", msg)
		out, err := w.leased(OutcomeFailed, w.failJob(ctx, j, msg))
		telemetry.JobsTotal.WithLabelValues(string(out)).Inc()
		if out == OutcomeLeaseLost {
			log.Warn("job lease lost before settling")
		}
		return out, err
	}

	log.Info("job claimed", "scan_type", j.ScanType)
	runErr := w.Runner.RunJob(ctx, j)
	out, err := w.leased(w.settle(ctx, j, runErr))
	telemetry.JobsTotal.WithLabelValues(string(out)).Inc()
	switch out {
	case OutcomeCompleted:
		log.Info("job completed")
	case OutcomeAbandoned:
		log.Warn("job abandoned on shutdown", "error", runErr)
	case OutcomeLeaseLost:
		log.Warn("job lease lost before settling, leaving it to the new owner", "error", runErr)
	default:
		log.Warn("job settled", "outcome", out, "error", runErr)
	}
	return out, err
}

// leased turns ErrLeaseLost into OutcomeLeaseLost. The scan row belongs to
// the worker that now holds the job, so nothing else is written.
func (w *Worker) leased(out Outcome, err error) (Outcome, error) {
	if errors.Is(err, domain.ErrLeaseLost) {
		return OutcomeLeaseLost, nil
	}
	return out, err
}

func (w *Worker) settle(ctx context.Context, j *domain.Job, runErr error) (Outcome, error) {
	id := w.config().ID
	if runErr == nil {
		return OutcomeCompleted, w.Store.Complete(ctx, j.ID, id, w.now())
	}
	cancelled := scans.IsCancelled(runErr)
	if ctx.Err() != nil && !cancelled {
		return OutcomeAbandoned, nil
	}

	// settle even if shutdown started while the run was unwinding
	ctx = context.WithoutCancel(ctx)
	now := w.now()
	msg := runErr.Error()
	switch {
	case cancelled:
		if err := w.Store.Cancel(ctx, j.ID, id, scans.CancelReason, now); err != nil {
			return OutcomeCancelled, err
		}
		return OutcomeCancelled, w.setScan(ctx, j.ScanID, scans.StatusCancelled, scans.CancelReason)
	case errors.Is(runErr, scans.ErrPermanent):
		return OutcomeFailed, w.failJob(ctx, j, msg)
	case j.Attempts < j.MaxAttempts:
		next := now.Add(domain.Backoff(j.Attempts))
		if err := w.Store.Requeue(ctx, j.ID, id, next, msg); err != nil {
			return OutcomeRequeued, err
		}
		return OutcomeRequeued, w.setScan(ctx, j.ScanID, scans.StatusQueued, msg)
	default:
		return OutcomeFailed, w.failJob(ctx, j, msg)
	}
}

func (w *Worker) failJob(ctx context.Context, j *domain.Job, msg string) error {
	if err := w.Store.Fail(ctx, j.ID, w.config().ID, msg, w.now()); err != nil {
		return err
	}
	return w.setScan(ctx, j.ScanID, scans.StatusFailed, msg)
}

func (w *Worker) setScan(ctx context.Context, scanID string, status scans.Status, msg string) error {
	err := w.Scans.SetStatus(ctx, scanID, status, msg, w.now())
	if errors.Is(err, scans.ErrNotFound) {
		return nil
	}
	return err
}

func (w *Worker) config() Config {
	c := w.Config
	if c.ID == "" {
		c.ID = DefaultWorkerID()
		w.Config.ID = c.ID
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	return c
}

func (w *Worker) now() time.Time { return application.OrSystem(w.Clock).Now() }

func (w *Worker) log() *slog.Logger { return logging.OrDefault(w.Log) }
