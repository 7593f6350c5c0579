package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

// DefaultAlertThreshold applies when a brand has no threshold configured.
const DefaultAlertThreshold = threats.SeverityHigh

// Message is a rendered alert email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers alert emails. SMTP delivery lives outside this service.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// Gate runs a call under a rate limit.
type Gate interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Dispatcher sends webhook and email alerts for threats at or above the
// brand's threshold. Gate is optional.
type Dispatcher struct {
	Client  *http.Client
	Mailer  Mailer
	Gate    Gate
	Timeout time.Duration
	Log     *slog.Logger
}

func (d *Dispatcher) Dispatch(ctx context.Context, b *brands.Brand, s *scans.Scan, ts []*threats.Threat) error {
	threshold := threats.Severity(b.AlertThreshold)
	if threshold == "" {
		threshold = DefaultAlertThreshold
	}
	var hits []*threats.Threat
	for _, t := range ts {
		if t.Severity.AtLeast(threshold) {
			hits = append(hits, t)
		}
	}
	if len(hits) == 0 {
		return nil
	}

	var errs []error
	if b.AlertWebhook != "" {
		if err := d.gate(ctx, func(ctx context.Context) error { return d.webhook(ctx, b, s, hits) }); err != nil {
			errs = append(errs, fmt.Errorf("webhook: %w", err))
		}
	}
	if b.AlertEmail != "" && d.Mailer != nil {
		if err := d.Mailer.Send(ctx, render(b, s, hits)); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	logging.OrDefault(d.Log).Info("alerts dispatched", "brand_id", b.ID, "scan_id", s.ID, "threats", len(hits), "threshold", threshold)
	return errors.Join(errs...)
}

func (d *Dispatcher) webhook(ctx context.Context, b *brands.Brand, s *scans.Scan, ts []*threats.Threat) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(newThreatsDetected(b, s, ts, time.Now().UTC()))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.AlertWebhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Brandsentry-Event", SubjectThreatsDetected)

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) gate(ctx context.Context, fn func(context.Context) error) error {
	if d.Gate == nil {
		return fn(ctx)
	}
	return d.Gate.Do(ctx, fn)
}

func render(b *brands.Brand, s *scans.Scan, ts []*threats.Threat) Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d new threat(s) detected for %s (scan %s):\n\n", len(ts), b.Name, s.ID)
	for _, t := range ts {
		target := t.URL
		if target == "" {
			target = t.Domain
		}
		fmt.Fprintf(&sb, "- [%s] %s %s (score %d)\n", strings.ToUpper(string(t.Severity)), t.Type, target, t.ThreatScore)
	}
	return Message{
		To:      b.AlertEmail,
		Subject: fmt.Sprintf("[BrandSentry] %d new threat(s) for %s", len(ts), b.Name),
		Body:    sb.String(),
	}
}

// LogMailer logs alert emails instead of sending them.
type LogMailer struct {
	Log *slog.Logger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	logging.OrDefault(m.Log).Info("alert email", "to", msg.To, "subject", msg.Subject)
	return nil
}
