package scans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/domain/variations"
	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

// Sizer is implemented by scanners that know their work size up front.
type Sizer interface {
	Total(b *brands.Brand, cfg domain.Config) int
}

// run is the per-scan state. Scanners may report progress from their own
// goroutines, so progress and the flush clock sit behind mu.
type run struct {
	o     *Orchestrator
	scan  *domain.Scan
	brand *brands.Brand
	cfg   domain.Config
	opts  Options
	log   *slog.Logger

	mu        sync.Mutex
	progress  domain.Progress
	doneShare float64 // renormalized weight of finished phases
	lastFlush time.Time

	threats      []*threats.Threat
	seen         map[string]struct{}
	official     *threats.Screenshot
	officialDone bool
	cancelReason string
}

func (r *run) execute(ctx context.Context) error {
	for _, step := range r.cfg.Steps() {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}
		if err := r.phase(ctx, step); err != nil {
			return err
		}
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}
	return r.finalize(ctx)
}

func (r *run) phase(ctx context.Context, step domain.Step) error {
	ctx, span := telemetry.Tracer().Start(ctx, "scan.phase."+string(step))
	defer span.End()

	var err error
	switch step {
	case domain.StepDomains:
		err = r.domains(ctx)
	case domain.StepWeb:
		err = r.scanner(ctx, step, r.o.Web)
	case domain.StepLogo:
		err = r.scanner(ctx, step, r.o.Logo)
	case domain.StepSocial:
		err = r.scanner(ctx, step, r.o.Social)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	r.mu.Lock()
	r.doneShare += r.cfg.StepWeight(step)
	if r.progress.StepTotal > 0 {
		r.progress.StepProgress = r.progress.StepTotal
	}
	r.progress.OverallProgress = r.overall()
	r.mu.Unlock()
	span.SetAttributes(attribute.Int("scan.threats", len(r.threats)))
	return r.flush(ctx, true)
}

// startStep resets the step counters and forces a write.
func (r *run) startStep(ctx context.Context, step domain.Step, total int) error {
	r.mu.Lock()
	r.progress.CurrentStep = step
	r.progress.StepProgress = 0
	r.progress.StepTotal = total
	r.progress.OverallProgress = r.overall()
	r.mu.Unlock()
	r.log.Info("scan phase started", "step", step, "total", total)
	return r.flush(ctx, true)
}

// overall blends finished phases with the fraction of the current one. Caller holds mu.
func (r *run) overall() int {
	share := r.doneShare
	if p := r.progress; p.StepTotal > 0 && p.CurrentStep != domain.StepFinalizing {
		frac := math.Min(1, float64(p.StepProgress)/float64(p.StepTotal))
		share += r.cfg.StepWeight(p.CurrentStep) * frac
	}
	v := int(math.Round(share * 100))
	if v > 100 {
		v = 100
	}
	return v
}

// advance applies fn to the counters and writes them if the throttle interval passed.
func (r *run) advance(ctx context.Context, fn func(p *domain.Progress)) {
	r.mu.Lock()
	fn(&r.progress)
	r.progress.OverallProgress = r.overall()
	r.mu.Unlock()
	if err := r.flush(ctx, false); err != nil {
		r.log.Warn("progress write failed", "error", err)
	}
}

func (r *run) flush(ctx context.Context, force bool) error {
	now := r.o.now()
	r.mu.Lock()
	if !force && now.Sub(r.lastFlush) < r.opts.ProgressInterval {
		r.mu.Unlock()
		return nil
	}
	r.lastFlush = now
	p := r.progress
	r.mu.Unlock()
	return r.o.Scans.UpdateProgress(ctx, r.scan.ID, p)
}

// checkpoint re-reads the persisted scan and aborts when it was cancelled externally.
func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := r.o.Scans.Get(ctx, r.scan.ID)
	if err != nil {
		return fmt.Errorf("cancellation check: %w", err)
	}
	if s.Cancelled() {
		r.cancelReason = s.Error
		return domain.ErrScanCancelled
	}
	return nil
}

func (r *run) partial(ctx context.Context, step domain.Step, target string, err error) {
	pe := domain.PartialError{
		Phase:     step,
		Target:    target,
		Message:   err.Error(),
		Retryable: true,
		At:        r.o.now(),
	}
	telemetry.PartialErrors.WithLabelValues(string(step)).Inc()
	r.log.Warn("partial error", "step", step, "target", target, "error", err)
	if aerr := r.o.Scans.AppendPartialError(ctx, r.scan.ID, pe); aerr != nil {
		r.log.Error("append partial error", "error", aerr)
	}
}

// aborts reports whether err must stop the phase instead of becoming a partial error.
func aborts(ctx context.Context, err error) bool {
	return ctx.Err() != nil || domain.IsCancelled(err)
}

func (r *run) domains(ctx context.Context) error {
	g := variations.Generator{MaxAddedLetter: r.opts.MaxAddedLetter}
	cands := variations.BuildCandidates(*r.brand, r.cfg.VariationLimit, g)
	if err := r.startStep(ctx, domain.StepDomains, len(cands)); err != nil {
		return err
	}

	for i, c := range cands {
		if i > 0 && i%r.opts.CancelCheckEvery == 0 {
			if err := r.checkpoint(ctx); err != nil {
				return err
			}
		}
		if err := r.checkDomain(ctx, c); err != nil {
			if aborts(ctx, err) {
				return err
			}
			r.partial(ctx, domain.StepDomains, c.Domain, err)
		}
		r.advance(ctx, func(p *domain.Progress) {
			p.DomainsChecked++
			p.StepProgress++
		})
	}
	return nil
}

func (r *run) checkDomain(ctx context.Context, c variations.Candidate) error {
	registered, err := r.o.DNS.IsRegistered(ctx, c.Domain)
	if err != nil {
		return fmt.Errorf("dns check: %w", err)
	}
	severity := threats.AssessThreatLevel(c.Type, registered)
	if severity == threats.SeverityLow {
		return nil
	}

	key := "domain:" + c.Domain
	if _, dup := r.seen[key]; dup {
		return nil
	}
	exists, err := r.o.Threats.ExistsByDomain(ctx, r.brand.ID, c.Domain)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	r.seen[key] = struct{}{}
	if exists {
		return nil
	}

	t := &threats.Threat{
		Type:          threats.TypeTyposquatDomain,
		Severity:      severity,
		URL:           "https://" + c.Domain,
		Domain:        c.Domain,
		VariationType: c.Type,
	}
	r.collectAndScore(ctx, domain.StepDomains, t)
	return ctx.Err()
}

func (r *run) scanner(ctx context.Context, step domain.Step, sc domain.Scanner) error {
	total := 0
	if s, ok := sc.(Sizer); ok {
		total = s.Total(r.brand, r.cfg)
	}
	if err := r.startStep(ctx, step, total); err != nil {
		return err
	}
	if sc == nil {
		r.log.Debug("no scanner configured, skipping phase", "step", step)
		return nil
	}

	found, err := sc.Scan(ctx, r.brand, r.cfg, func(delta int) {
		r.advance(ctx, func(p *domain.Progress) {
			p.StepProgress += delta
			if step == domain.StepWeb {
				p.PagesScanned += delta
			}
		})
	})
	if err != nil {
		if aborts(ctx, err) {
			return err
		}
		r.partial(ctx, step, "", err)
	}

	for _, t := range found {
		if err := ctx.Err(); err != nil {
			return err
		}
		novel, err := r.novel(ctx, t)
		if err != nil {
			r.partial(ctx, step, t.URL, err)
			continue
		}
		if novel {
			r.collectAndScore(ctx, step, t)
		}
	}
	return nil
}

// novel dedups by url, falling back to domain when the scanner found no url.
func (r *run) novel(ctx context.Context, t *threats.Threat) (bool, error) {
	key := t.DedupKey()
	if _, dup := r.seen[key]; dup {
		return false, nil
	}
	var (
		exists bool
		err    error
	)
	if t.URL != "" {
		exists, err = r.o.Threats.ExistsByURL(ctx, r.brand.ID, t.URL)
	} else {
		exists, err = r.o.Threats.ExistsByDomain(ctx, r.brand.ID, t.Domain)
	}
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	r.seen[key] = struct{}{}
	return !exists, nil
}

// collectAndScore gathers evidence, scores it and appends a pending threat. An
// evidence failure is recorded but the threat is still kept.
func (r *run) collectAndScore(ctx context.Context, step domain.Step, t *threats.Threat) {
	if t.Evidence.Empty() && t.URL != "" && r.o.Evidence != nil {
		ev, err := r.o.Evidence.Collect(ctx, t.URL, r.brand)
		if err != nil && ctx.Err() == nil {
			r.partial(ctx, step, t.URL, fmt.Errorf("evidence: %w", err))
		}
		t.Evidence = ev
	}
	if _, ok := t.Evidence.Screenshot(threats.RoleCandidate); ok {
		if _, has := t.Evidence.Screenshot(threats.RoleOfficial); !has {
			if shot := r.officialShot(ctx, step); shot != nil {
				t.Evidence.Screenshots = append(t.Evidence.Screenshots, *shot)
			}
		}
	}
	if t.Severity == "" {
		t.Severity = threats.SeverityMedium
	}

	analysis := r.o.Scorer.Score(ctx, domain.ScoreInput{
		Type:     t.Type,
		Severity: t.Severity,
		Evidence: t.Evidence,
		Brand:    r.brand,
	})
	t.ID = newID()
	t.BrandID = r.brand.ID
	t.ScanID = r.scan.ID
	t.Status = threats.StatusPending
	t.Analysis = analysis
	t.ThreatScore = analysis.CompositeScore
	t.Severity = analysis.CompositeSeverity
	t.DetectedAt = r.o.now()

	r.threats = append(r.threats, t)
	r.advance(ctx, func(p *domain.Progress) { p.ThreatsFound++ })
}

// officialShot captures the brand's own site once per run.
func (r *run) officialShot(ctx context.Context, step domain.Step) *threats.Screenshot {
	if r.officialDone || r.o.Evidence == nil {
		return r.official
	}
	r.officialDone = true
	shot, err := r.o.Evidence.CaptureOfficial(ctx, r.brand)
	if err != nil {
		if ctx.Err() == nil {
			r.partial(ctx, step, r.brand.PrimaryDomain, fmt.Errorf("official screenshot: %w", err))
		}
		return nil
	}
	r.official = shot
	return shot
}

func (r *run) finalize(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "scan.finalize")
	defer span.End()

	r.mu.Lock()
	r.progress.CurrentStep = domain.StepFinalizing
	r.progress.StepProgress = 0
	r.progress.StepTotal = 0
	r.mu.Unlock()
	if err := r.flush(ctx, true); err != nil {
		return err
	}

	inserted, err := r.o.Threats.InsertMany(ctx, r.threats)
	if err != nil {
		return fmt.Errorf("insert threats: %w", err)
	}
	for _, t := range r.threats {
		telemetry.ThreatsCreated.WithLabelValues(string(t.Type), string(t.Severity)).Inc()
	}
	if _, err := r.o.Brands.RefreshThreatCount(ctx, r.brand.ID); err != nil {
		if aborts(ctx, err) {
			return err
		}
		r.partial(ctx, domain.StepFinalizing, r.brand.ID, fmt.Errorf("refresh threat count: %w", err))
	}

	r.mu.Lock()
	r.progress.OverallProgress = 100
	p := r.progress
	r.mu.Unlock()
	if err := r.o.Scans.Complete(ctx, r.scan.ID, p, r.o.now()); err != nil {
		return fmt.Errorf("complete scan: %w", err)
	}
	r.log.Info("scan completed", "domains_checked", p.DomainsChecked, "threats", len(r.threats), "inserted", inserted)

	done, err := r.o.Scans.Get(ctx, r.scan.ID)
	if err != nil {
		done = r.scan
		done.Status = domain.StatusCompleted
		done.Progress = p
	}
	r.sideEffects(ctx, done)
	return nil
}

// sideEffects are best-effort; failures are logged and never change the scan outcome.
func (r *run) sideEffects(ctx context.Context, s *domain.Scan) {
	if n := r.o.Notify; n != nil {
		if len(r.threats) > 0 {
			if err := n.ThreatsDetected(ctx, r.brand, s, r.threats); err != nil {
				r.log.Warn("threat notification failed", "error", err)
			}
		}
		if err := n.ScanCompleted(ctx, r.brand, s); err != nil {
			r.log.Warn("scan-completed notification failed", "error", err)
		}
	}
	if r.o.Alerts != nil && r.cfg.Type == domain.TypeAutomated && len(r.threats) > 0 {
		if err := r.o.Alerts.Dispatch(ctx, r.brand, s, r.threats); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("alert dispatch failed", "error", err)
		}
	}
}
