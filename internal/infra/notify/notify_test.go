package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(m *nats.Msg) error {
	c.msgs = append(c.msgs, m)
	return c.err
}

type captureMailer struct{ sent []Message }

func (c *captureMailer) Send(_ context.Context, m Message) error {
	c.sent = append(c.sent, m)
	return nil
}

func sample() (*brands.Brand, *scans.Scan, []*threats.Threat) {
	b := &brands.Brand{ID: "b1", Name: "Acme", PrimaryDomain: "acme.com", OwnerID: "u1"}
	s := &scans.Scan{ID: "s1", BrandID: "b1", Type: scans.TypeAutomated, Status: scans.StatusCompleted}
	ts := []*threats.Threat{
		{ID: "t1", Type: threats.TypeTyposquatDomain, Severity: threats.SeverityCritical, Domain: "acm.com", ThreatScore: 95},
		{ID: "t2", Type: threats.TypeTyposquatDomain, Severity: threats.SeverityMedium, Domain: "acmes.com", ThreatScore: 50},
	}
	return b, s, ts
}

func TestNATSSink_PublishesJSON(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewNATSSink(pub, "prod.")
	b, s, ts := sample()

	require.NoError(t, sink.ThreatsDetected(context.Background(), b, s, ts))
	require.NoError(t, sink.ScanCompleted(context.Background(), b, s))
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "prod.brand.threats.detected", pub.msgs[0].Subject)
	assert.Equal(t, "prod.brand.scan.completed", pub.msgs[1].Subject)

	var ev ThreatsDetectedEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0].Data, &ev))
	assert.Equal(t, 2, ev.Count)
	assert.Equal(t, 1, ev.BySeverity[threats.SeverityCritical])
	assert.Equal(t, "u1", ev.OwnerID)

	pub.err = errors.New("nats: connection closed")
	assert.Error(t, sink.ScanCompleted(context.Background(), b, s))
}

func TestDispatcher_FiltersByThresholdAndPostsWebhook(t *testing.T) {
	var hits atomic.Int32
	var got ThreatsDetectedEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, SubjectThreatsDetected, r.Header.Get("X-Brandsentry-Event"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mailer := &captureMailer{}
	d := &Dispatcher{Client: srv.Client(), Mailer: mailer}
	b, s, ts := sample()
	b.AlertWebhook = srv.URL
	b.AlertEmail = "soc@acme.com"

	require.NoError(t, d.Dispatch(context.Background(), b, s, ts))
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1, got.Count, "medium is below the default high threshold")
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "soc@acme.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "acm.com")
	assert.NotContains(t, mailer.sent[0].Body, "acmes.com")

	b.AlertThreshold = string(threats.SeverityMedium)
	require.NoError(t, d.Dispatch(context.Background(), b, s, ts))
	assert.Equal(t, 2, got.Count)
}

func TestDispatcher_NothingAboveThreshold(t *testing.T) {
	mailer := &captureMailer{}
	d := &Dispatcher{Mailer: mailer}
	b, s, ts := sample()
	b.AlertEmail = "soc@acme.com"
	b.AlertThreshold = string(threats.SeverityCritical)

	require.NoError(t, d.Dispatch(context.Background(), b, s, ts[1:]))
	assert.Empty(t, mailer.sent)
}

func TestDispatcher_WebhookErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	mailer := &captureMailer{}
	d := &Dispatcher{Client: srv.Client(), Mailer: mailer}
	b, s, ts := sample()
	b.AlertWebhook = srv.URL
	b.AlertEmail = "soc@acme.com"

	err := d.Dispatch(context.Background(), b, s, ts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Len(t, mailer.sent, 1, "email still goes out")
}
