package notify

import (
	"context"
	"log/slog"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

// LogSink writes notification events to the log. Used when NATS is not configured.
type LogSink struct {
	Log *slog.Logger
}

func (l LogSink) ThreatsDetected(_ context.Context, b *brands.Brand, s *scans.Scan, ts []*threats.Threat) error {
	_, by := summarize(ts)
	logging.OrDefault(l.Log).Info("threats detected", "brand_id", b.ID, "scan_id", s.ID, "count", len(ts), "by_severity", by)
	return nil
}

func (l LogSink) ScanCompleted(_ context.Context, b *brands.Brand, s *scans.Scan) error {
	logging.OrDefault(l.Log).Info("scan completed", "brand_id", b.ID, "scan_id", s.ID,
		"status", s.Status, "threats_found", s.ThreatsFound, "partial_errors", len(s.PartialErrors))
	return nil
}
