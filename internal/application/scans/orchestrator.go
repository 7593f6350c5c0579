package scans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/bryanwahyu/brandsentry/internal/application"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/jobs"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/domain/variations"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

const (
	DefaultProgressInterval = 1500 * time.Millisecond
	DefaultCancelCheckEvery = 10
)

type Options struct {
	// ProgressInterval throttles progress writes; phase boundaries always write.
	ProgressInterval time.Duration `yaml:"progress_interval"`
	// CancelCheckEvery is the number of domains processed between cancellation checks.
	CancelCheckEvery int `yaml:"cancel_check_every"`
	MaxAddedLetter   int `yaml:"max_added_letter"`
}

func (o Options) withDefaults() Options {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.CancelCheckEvery <= 0 {
		o.CancelCheckEvery = DefaultCancelCheckEvery
	}
	if o.MaxAddedLetter <= 0 {
		o.MaxAddedLetter = variations.DefaultMaxAddedLetter
	}
	return o
}

// Orchestrator runs one scan through its enabled phases. Web, Logo, Social,
// Notify, Alerts and Limiters are optional.
// Orchestrator is safe for concurrent use; each Run keeps its own state.
type Orchestrator struct {
	Scans    domain.Repository
	Brands   brands.Repository
	Threats  threats.Repository
	DNS      domain.RegistrationChecker
	Evidence domain.EvidenceCollector
	Scorer   domain.Scorer

	Web    domain.Scanner
	Logo   domain.Scanner
	Social domain.Scanner

	Notify   domain.NotificationSink
	Alerts   domain.AlertDispatcher
	Limiters domain.QueueCanceller

	Clock   application.Clock
	Log     *slog.Logger
	Options Options
}

// RunRequest identifies the scan to execute and how.
type RunRequest struct {
	ScanID    string
	BrandID   string
	Type      domain.Type
	Overrides domain.Overrides
}

// RunJob adapts a claimed job to Run.
func (o *Orchestrator) RunJob(ctx context.Context, j *jobs.Job) error {
	_, err := o.Run(ctx, RunRequest{ScanID: j.ScanID, BrandID: j.BrandID, Type: j.ScanType, Overrides: j.Payload})
	return err
}

// Run executes the scan. Per-candidate failures are recorded as partial errors;
// anything that escapes a phase marks the scan failed, clears the limiter
// queues and is returned for job-level retry accounting.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*domain.Scan, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "scan.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("scan.id", req.ScanID),
		attribute.String("scan.type", string(req.Type)),
		attribute.String("brand.id", req.BrandID),
	)

	r, err := o.prepare(ctx, req)
	if err == nil && r == nil {
		// already completed by an earlier attempt whose job was never settled
		return o.Scans.Get(ctx, req.ScanID)
	}
	if err == nil {
		err = r.execute(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, o.fail(ctx, req, r, err)
	}
	telemetry.ScansTotal.WithLabelValues(string(req.Type), "completed").Inc()
	return o.Scans.Get(ctx, req.ScanID)
}

func (o *Orchestrator) prepare(ctx context.Context, req RunRequest) (*run, error) {
	s, err := o.Scans.Get(ctx, req.ScanID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Permanent(fmt.Errorf("scan %s: %w", req.ScanID, err))
	}
	if err != nil {
		return nil, fmt.Errorf("load scan: %w", err)
	}
	if s.Cancelled() {
		return nil, fmt.Errorf("%w before start", domain.ErrScanCancelled)
	}
	if s.Status == domain.StatusCompleted {
		return nil, nil
	}

	b, err := o.Brands.Get(ctx, req.BrandID)
	if errors.Is(err, brands.ErrNotFound) {
		return nil, domain.Permanent(fmt.Errorf("brand %s: %w", req.BrandID, err))
	}
	if err != nil {
		return nil, fmt.Errorf("load brand: %w", err)
	}

	cfg, err := domain.Profile(req.Type, req.Overrides)
	if err != nil {
		return nil, err
	}
	if cfg.Domains && b.BaseName() == "" {
		return nil, domain.Permanent(fmt.Errorf("malformed primary domain %q", b.PrimaryDomain))
	}
	if len(cfg.Keywords) > 0 {
		b.Keywords = append(append([]string(nil), b.Keywords...), cfg.Keywords...)
	}

	if err := o.Scans.MarkRunning(ctx, s.ID, o.now()); err != nil {
		return nil, fmt.Errorf("mark running: %w", err)
	}
	return &run{
		o:     o,
		scan:  s,
		brand: b,
		cfg:   cfg,
		opts:  o.Options.withDefaults(),
		seen:  map[string]struct{}{},
		log:   o.log().With("scan_id", s.ID, "brand_id", b.ID, "scan_type", cfg.Type),
	}, nil
}

// fail persists the failure. A cancelled parent context means the process is
// shutting down: the job keeps its lock and is reclaimed once stale, so the
// scan row is left as is.
func (o *Orchestrator) fail(ctx context.Context, req RunRequest, r *run, err error) error {
	o.cancelQueues()
	cancelled := domain.IsCancelled(err)
	if ctx.Err() != nil && !cancelled {
		return err
	}

	msg := err.Error()
	outcome := "failed"
	if cancelled {
		outcome = "cancelled"
		msg = domain.CancelReason
		if r != nil && r.cancelReason != "" {
			msg = r.cancelReason
		}
	}
	telemetry.ScansTotal.WithLabelValues(string(req.Type), outcome).Inc()

	pctx := context.WithoutCancel(ctx)
	if r != nil {
		if ferr := r.flush(pctx, true); ferr != nil {
			o.log().Warn("final progress write failed", "scan_id", req.ScanID, "error", ferr)
		}
	}
	if serr := o.Scans.SetStatus(pctx, req.ScanID, domain.StatusFailed, msg, o.now()); serr != nil && !errors.Is(serr, domain.ErrNotFound) {
		o.log().Error("persist scan failure", "scan_id", req.ScanID, "error", serr)
	}
	if cancelled {
		o.log().Info("scan cancelled", "scan_id", req.ScanID)
	} else {
		o.log().Error("scan failed", "scan_id", req.ScanID, "error", err)
	}
	return err
}

func (o *Orchestrator) cancelQueues() {
	if o.Limiters != nil {
		o.Limiters.CancelAll()
	}
}

func (o *Orchestrator) now() time.Time { return application.OrSystem(o.Clock).Now() }

func (o *Orchestrator) log() *slog.Logger { return logging.OrDefault(o.Log) }

func newID() string { return uuid.New().String() }
