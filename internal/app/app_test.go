package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appjobs "github.com/bryanwahyu/brandsentry/internal/application/jobs"
	appscans "github.com/bryanwahyu/brandsentry/internal/application/scans"
	"github.com/bryanwahyu/brandsentry/internal/config"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
)

func memoryConfig(t *testing.T, doh string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverMemory
	cfg.Brands = []config.BrandSeed{{ID: "b1", Name: "Acme", PrimaryDomain: "acme.com"}}
	cfg.DNS.Providers = []string{doh}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApplication_EnqueueRunAndPoll(t *testing.T) {
	var queries atomic.Int32
	doh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries.Add(1)
		w.Header().Set("Content-Type", "application/dns-json")
		_, _ = w.Write([]byte(`{"Status":3,"Answer":[]}`))
	}))
	defer doh.Close()

	a, err := New(context.Background(), memoryConfig(t, doh.URL), nil)
	require.NoError(t, err)
	defer a.Close()
	h := a.Handler()

	body, _ := json.Marshal(map[string]any{
		"brand_id":  "b1",
		"scan_type": "domain_only",
		"overrides": map[string]any{"variation_limit": 3},
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/scans", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var res appscans.EnqueueResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

	out, err := a.Worker.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, appjobs.OutcomeCompleted, out)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/scan?id="+res.ScanID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var scan domain.Scan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scan))
	assert.Equal(t, domain.StatusCompleted, scan.Status)
	assert.Equal(t, 100, scan.OverallProgress)
	assert.Equal(t, 3, scan.DomainsChecked)
	assert.Zero(t, scan.ThreatsFound)
	assert.EqualValues(t, 3*5, queries.Load(), "every record type is tried for each unregistered candidate")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplication_UnsupportedDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unsupported database driver")
}
