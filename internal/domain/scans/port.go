package scans

import (
	"context"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Create(ctx context.Context, s *Scan) error
	Get(ctx context.Context, id string) (*Scan, error)
	MarkRunning(ctx context.Context, id string, at time.Time) error
	UpdateProgress(ctx context.Context, id string, p Progress) error
	AppendPartialError(ctx context.Context, id string, pe PartialError) error
	Complete(ctx context.Context, id string, p Progress, at time.Time) error
	// SetStatus moves the scan to a terminal or retry status, recording errMsg.
	SetStatus(ctx context.Context, id string, status Status, errMsg string, at time.Time) error
}

// RegistrationChecker verifies whether a candidate domain resolves.
// It only returns an error when the call itself was cancelled.
type RegistrationChecker interface {
	IsRegistered(ctx context.Context, domain string) (bool, error)
}

// EvidenceCollector fetches WHOIS, HTML and screenshots for a url.
type EvidenceCollector interface {
	Collect(ctx context.Context, url string, b *brands.Brand) (threats.Evidence, error)
	// CaptureOfficial screenshots the brand's own site for visual comparison.
	CaptureOfficial(ctx context.Context, b *brands.Brand) (*threats.Screenshot, error)
}

// Scanner covers the web, logo and social phases. onProgress reports
// processed-item deltas back to the orchestrator.
type Scanner interface {
	Scan(ctx context.Context, b *brands.Brand, cfg Config, onProgress func(delta int)) ([]*threats.Threat, error)
}

// Scorer computes the composite analysis for a threat.
type Scorer interface {
	Score(ctx context.Context, in ScoreInput) threats.Analysis
}

type ScoreInput struct {
	Type     threats.Type
	Severity threats.Severity
	Evidence threats.Evidence
	Brand    *brands.Brand
}

// NotificationSink delivers in-app events. Best-effort: callers log failures.
type NotificationSink interface {
	ThreatsDetected(ctx context.Context, b *brands.Brand, s *Scan, ts []*threats.Threat) error
	ScanCompleted(ctx context.Context, b *brands.Brand, s *Scan) error
}

// AlertDispatcher sends email/webhook alerts filtered by the brand's threshold.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, b *brands.Brand, s *Scan, ts []*threats.Threat) error
}

// QueueCanceller discards queued outbound calls.
type QueueCanceller interface {
	CancelAll()
}
