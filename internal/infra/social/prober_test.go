package social

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

type countingGate struct{ calls atomic.Int32 }

func (g *countingGate) Do(ctx context.Context, fn func(context.Context) error) error {
	g.calls.Add(1)
	return fn(ctx)
}

func acme() *brands.Brand {
	return &brands.Brand{
		ID:            "b1",
		Name:          "Acme",
		PrimaryDomain: "acme.com",
		SocialHandles: map[string]string{"twitter": "@Acme"},
	}
}

func newTestProber(t *testing.T, gate Gate) (*Prober, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tw/acmeofficial", "/ig/acme_support":
			w.WriteHeader(http.StatusOK)
		case "/ig/acmehq":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	p := New(Config{
		Platforms: map[string]string{
			"twitter":   srv.URL + "/tw/%s",
			"instagram": srv.URL + "/ig/%s",
		},
		MaxTypoHandles: 1,
	}, gate, srv.Client(), nil)
	return p, srv
}

func TestHandles(t *testing.T) {
	p := New(Config{MaxTypoHandles: 1}, nil, nil, nil)
	hs := p.Handles(acme())

	assert.Len(t, hs, 12)
	assert.Equal(t, "acme", hs[0])
	assert.Contains(t, hs, "acmeofficial")
	assert.Contains(t, hs, "realacme")
	assert.Contains(t, hs, "cme", "first missing-letter typo")
}

func TestScan_FindsExistingProfiles(t *testing.T) {
	gate := &countingGate{}
	p, srv := newTestProber(t, gate)
	cfg := scans.Config{Social: true}

	total := p.Total(acme(), cfg)
	assert.Equal(t, 23, total, "own twitter handle is skipped")

	var progressed atomic.Int32
	found, err := p.Scan(context.Background(), acme(), cfg, func(d int) { progressed.Add(int32(d)) })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 23 social probes failed")
	assert.Contains(t, err.Error(), "status 500")
	require.Len(t, found, 2)
	assert.Equal(t, srv.URL+"/ig/acme_support", found[0].URL)
	assert.Equal(t, srv.URL+"/tw/acmeofficial", found[1].URL)
	for _, th := range found {
		assert.Equal(t, threats.TypeFakeSocialAccount, th.Type)
		assert.Equal(t, threats.SeverityHigh, th.Severity)
	}
	assert.EqualValues(t, total, progressed.Load())
	assert.EqualValues(t, total, gate.calls.Load())
}

func TestScan_PlatformOverride(t *testing.T) {
	p, _ := newTestProber(t, nil)
	cfg := scans.Config{Social: true, Platforms: []string{"Twitter", "myspace"}}

	assert.Equal(t, 11, p.Total(acme(), cfg))
	found, err := p.Scan(context.Background(), acme(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestScan_CancelledContext(t *testing.T) {
	p, _ := newTestProber(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := p.Scan(ctx, acme(), scans.Config{Social: true}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, found)
}
