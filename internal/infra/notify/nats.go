package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

var propagator = propagation.TraceContext{}

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes notification events as JSON with traceparent headers.
type NATSSink struct {
	conn   Publisher
	prefix string
}

// Connect dials NATS with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// NewNATSSink publishes on prefix+subject; prefix may be empty.
func NewNATSSink(conn Publisher, prefix string) *NATSSink {
	return &NATSSink{conn: conn, prefix: prefix}
}

func (n *NATSSink) ThreatsDetected(ctx context.Context, b *brands.Brand, s *scans.Scan, ts []*threats.Threat) error {
	return n.publish(ctx, SubjectThreatsDetected, newThreatsDetected(b, s, ts, time.Now().UTC()))
}

func (n *NATSSink) ScanCompleted(ctx context.Context, b *brands.Brand, s *scans.Scan) error {
	return n.publish(ctx, SubjectScanCompleted, newScanCompleted(b, s, time.Now().UTC()))
}

func (n *NATSSink) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	msg := &nats.Msg{Subject: n.prefix + subject, Data: data, Header: hdr}
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}
