package scans

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/application"
	"github.com/bryanwahyu/brandsentry/internal/application/scoring"
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	domain "github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/infra/db/memory"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeDNS struct {
	mu         sync.Mutex
	registered map[string]bool
	failures   map[string]error
	calls      []string
	onCall     func(n int)
}

func (f *fakeDNS) IsRegistered(ctx context.Context, domain string) (bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, domain)
	n := len(f.calls)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	if err := f.failures[domain]; err != nil {
		return false, err
	}
	return f.registered[domain], nil
}

func (f *fakeDNS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEvidence struct {
	mu            sync.Mutex
	collected     []string
	officialCalls int
	fail          map[string]error
}

func (f *fakeEvidence) Collect(_ context.Context, url string, _ *brands.Brand) (threats.Evidence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collected = append(f.collected, url)
	if err := f.fail[url]; err != nil {
		return threats.Evidence{}, err
	}
	return threats.Evidence{Screenshots: []threats.Screenshot{{Role: threats.RoleCandidate, URL: url, ObjectKey: "k/" + url}}}, nil
}

func (f *fakeEvidence) CaptureOfficial(_ context.Context, b *brands.Brand) (*threats.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.officialCalls++
	return &threats.Screenshot{Role: threats.RoleOfficial, URL: "https://" + b.PrimaryDomain, ObjectKey: "official"}, nil
}

type fakeScanner struct {
	calls int
	found []*threats.Threat
	err   error
}

func (f *fakeScanner) Scan(_ context.Context, _ *brands.Brand, _ domain.Config, onProgress func(int)) ([]*threats.Threat, error) {
	f.calls++
	for range f.found {
		onProgress(1)
	}
	return f.found, f.err
}

type fakeCanceller struct{ calls int }

func (f *fakeCanceller) CancelAll() { f.calls++ }

type fakeNotify struct {
	detected  int
	completed int
	err       error
}

func (f *fakeNotify) ThreatsDetected(context.Context, *brands.Brand, *domain.Scan, []*threats.Threat) error {
	f.detected++
	return f.err
}

func (f *fakeNotify) ScanCompleted(context.Context, *brands.Brand, *domain.Scan) error {
	f.completed++
	return f.err
}

type fakeAlerts struct{ dispatched int }

func (f *fakeAlerts) Dispatch(context.Context, *brands.Brand, *domain.Scan, []*threats.Threat) error {
	f.dispatched++
	return nil
}

// countingScans records progress writes on top of the memory store.
type countingScans struct {
	*memory.ScanStore
	mu      sync.Mutex
	updates int
}

func (c *countingScans) UpdateProgress(ctx context.Context, id string, p domain.Progress) error {
	c.mu.Lock()
	c.updates++
	c.mu.Unlock()
	return c.ScanStore.UpdateProgress(ctx, id, p)
}

type fixture struct {
	orch     *Orchestrator
	scans    *countingScans
	threats  *memory.ThreatStore
	brands   *memory.BrandStore
	dns      *fakeDNS
	evidence *fakeEvidence
	limiters *fakeCanceller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ts := memory.NewThreatStore()
	f := &fixture{
		scans:    &countingScans{ScanStore: memory.NewScanStore()},
		threats:  ts,
		brands:   memory.NewBrandStore(ts, &brands.Brand{ID: "b1", Name: "Acme", PrimaryDomain: "acme.com"}),
		dns:      &fakeDNS{registered: map[string]bool{}},
		evidence: &fakeEvidence{},
		limiters: &fakeCanceller{},
	}
	f.orch = &Orchestrator{
		Scans:    f.scans,
		Brands:   f.brands,
		Threats:  f.threats,
		DNS:      f.dns,
		Evidence: f.evidence,
		Scorer:   &scoring.Engine{},
		Limiters: f.limiters,
		Clock:    application.ClockFunc(func() time.Time { return fixedNow }),
	}
	return f
}

func (f *fixture) newScan(t *testing.T, id string, typ domain.Type) {
	t.Helper()
	require.NoError(t, f.scans.Create(context.Background(), &domain.Scan{ID: id, BrandID: "b1", Type: typ}))
}

func limit(n int) *int { return &n }

func TestRun_DomainOnlyRespectsVariationLimit(t *testing.T) {
	f := newFixture(t)
	web, social := &fakeScanner{}, &fakeScanner{}
	f.orch.Web, f.orch.Social = web, social
	f.newScan(t, "s1", domain.TypeDomainOnly)

	s, err := f.orch.Run(context.Background(), RunRequest{
		ScanID: "s1", BrandID: "b1", Type: domain.TypeDomainOnly,
		Overrides: domain.Overrides{VariationLimit: limit(5)},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, f.dns.count(), 5)
	assert.Equal(t, 5, f.dns.count())
	assert.Zero(t, web.calls)
	assert.Zero(t, social.calls)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, 5, s.DomainsChecked)
	assert.Equal(t, 100, s.OverallProgress)
	assert.NotNil(t, s.StartedAt)
	assert.NotNil(t, s.CompletedAt)
}

func TestRun_CreatesScoredThreatsAndSkipsKnownOnes(t *testing.T) {
	f := newFixture(t)
	f.dns.registered = map[string]bool{"acm.com": true, "acmes.com": true, "acme.net": true}
	_, err := f.threats.InsertMany(context.Background(), []*threats.Threat{{ID: "old", BrandID: "b1", Domain: "acmes.com"}})
	require.NoError(t, err)
	f.newScan(t, "s1", domain.TypeDomainOnly)

	s, err := f.orch.Run(context.Background(), RunRequest{
		ScanID: "s1", BrandID: "b1", Type: domain.TypeDomainOnly,
		Overrides: domain.Overrides{VariationLimit: limit(5000)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, s.ThreatsFound)

	page, err := f.threats.ListByBrand(context.Background(), "b1", 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)

	var created *threats.Threat
	for _, th := range page.Data {
		if th.ScanID == "s1" {
			created = th
		}
	}
	require.NotNil(t, created)
	assert.Equal(t, "acm.com", created.Domain)
	assert.Equal(t, threats.TypeTyposquatDomain, created.Type)
	assert.Equal(t, threats.StatusPending, created.Status)
	assert.Equal(t, threats.SeverityCritical, created.Severity)
	assert.Equal(t, 95, created.ThreatScore)
	assert.Equal(t, threats.VisualUnavailable, created.Analysis.VisualStatus)
	_, hasOfficial := created.Evidence.Screenshot(threats.RoleOfficial)
	assert.True(t, hasOfficial)
	assert.Equal(t, 1, f.evidence.officialCalls)

	b, _ := f.brands.Get(context.Background(), "b1")
	assert.Equal(t, 2, b.UnresolvedThreats)
}

func TestRun_PartialErrorsDoNotAbort(t *testing.T) {
	f := newFixture(t)
	f.dns.registered = map[string]bool{"acm.com": true}
	f.dns.failures = map[string]error{"acmes.com": errors.New("upstream timeout")}
	f.evidence.fail = map[string]error{"https://acm.com": errors.New("html fetch: 503")}
	f.newScan(t, "s1", domain.TypeDomainOnly)

	s, err := f.orch.Run(context.Background(), RunRequest{
		ScanID: "s1", BrandID: "b1", Type: domain.TypeDomainOnly,
		Overrides: domain.Overrides{VariationLimit: limit(5000)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	require.Len(t, s.PartialErrors, 2)
	for _, pe := range s.PartialErrors {
		assert.Equal(t, domain.StepDomains, pe.Phase)
		assert.True(t, pe.Retryable)
	}
	assert.Equal(t, "acmes.com", s.PartialErrors[0].Target)
	assert.Equal(t, 1, s.ThreatsFound, "evidence failure keeps the threat")
}

func TestRun_CancellationCheckpointStopsDNSChecks(t *testing.T) {
	f := newFixture(t)
	f.orch.Options.CancelCheckEvery = 2
	f.newScan(t, "s1", domain.TypeDomainOnly)
	f.dns.onCall = func(n int) {
		if n == 3 {
			_ = f.scans.SetStatus(context.Background(), "s1", domain.StatusFailed, domain.CancelReason, fixedNow)
		}
	}

	_, err := f.orch.Run(context.Background(), RunRequest{
		ScanID: "s1", BrandID: "b1", Type: domain.TypeDomainOnly,
		Overrides: domain.Overrides{VariationLimit: limit(50)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrScanCancelled)
	assert.Equal(t, 4, f.dns.count())
	assert.Equal(t, 1, f.limiters.calls)

	s, err := f.scans.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, s.Status)
	assert.True(t, domain.IsCancellation(s.Error))
	assert.True(t, s.Cancelled())
	assert.Equal(t, 4, s.DomainsChecked)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.newScan(t, "s1", domain.TypeQuick)
	require.NoError(t, f.scans.SetStatus(context.Background(), "s1", domain.StatusFailed, domain.CancelReason, fixedNow))

	_, err := f.orch.Run(context.Background(), RunRequest{ScanID: "s1", BrandID: "b1", Type: domain.TypeQuick})
	assert.True(t, domain.IsCancelled(err))
	assert.Zero(t, f.dns.count())
}

func TestRun_PermanentFailures(t *testing.T) {
	f := newFixture(t)
	f.brands.Put(&brands.Brand{ID: "ip", Name: "x", PrimaryDomain: "127.0.0.1"})
	f.newScan(t, "s1", domain.TypeFull)
	f.newScan(t, "s2", domain.TypeFull)
	f.newScan(t, "s3", "weekly")

	_, err := f.orch.Run(context.Background(), RunRequest{ScanID: "s1", BrandID: "missing", Type: domain.TypeFull})
	assert.ErrorIs(t, err, domain.ErrPermanent)
	s, _ := f.scans.Get(context.Background(), "s1")
	assert.Equal(t, domain.StatusFailed, s.Status)
	assert.Contains(t, s.Error, "brand")

	_, err = f.orch.Run(context.Background(), RunRequest{ScanID: "s2", BrandID: "ip", Type: domain.TypeFull})
	assert.ErrorIs(t, err, domain.ErrPermanent)

	_, err = f.orch.Run(context.Background(), RunRequest{ScanID: "s3", BrandID: "b1", Type: "weekly"})
	assert.ErrorIs(t, err, domain.ErrPermanent)

	_, err = f.orch.Run(context.Background(), RunRequest{ScanID: "nope", BrandID: "b1", Type: domain.TypeFull})
	assert.ErrorIs(t, err, domain.ErrPermanent)
	assert.Zero(t, f.dns.count())
}

func TestRun_ScannerPhasesDedupByURLAndNotify(t *testing.T) {
	f := newFixture(t)
	social := &fakeScanner{found: []*threats.Threat{
		{Type: threats.TypeFakeSocialAccount, Severity: threats.SeverityHigh, URL: "https://x.com/acme_support", Domain: "x.com"},
		{Type: threats.TypeFakeSocialAccount, Severity: threats.SeverityHigh, URL: "https://x.com/acme_support", Domain: "x.com"},
		{Type: threats.TypeFakeSocialAccount, Severity: threats.SeverityMedium, URL: "https://instagram.com/acmeofficial", Domain: "instagram.com"},
	}}
	notify, alerts := &fakeNotify{err: errors.New("nats down")}, &fakeAlerts{}
	f.orch.Social, f.orch.Notify, f.orch.Alerts = social, notify, alerts
	f.newScan(t, "s1", domain.TypeSocialOnly)

	s, err := f.orch.Run(context.Background(), RunRequest{ScanID: "s1", BrandID: "b1", Type: domain.TypeSocialOnly})
	require.NoError(t, err, "notification failures are best-effort")
	assert.Equal(t, 2, s.ThreatsFound)
	assert.Equal(t, domain.StepFinalizing, s.CurrentStep)
	assert.Zero(t, f.dns.count())
	assert.Equal(t, 1, notify.detected)
	assert.Equal(t, 1, notify.completed)
	assert.Zero(t, alerts.dispatched, "alerts are for automated scans only")
}

func TestRun_AutomatedDispatchesAlerts(t *testing.T) {
	f := newFixture(t)
	f.dns.registered = map[string]bool{"acmes.com": true}
	alerts := &fakeAlerts{}
	f.orch.Alerts = alerts
	f.newScan(t, "s1", domain.TypeAutomated)

	s, err := f.orch.Run(context.Background(), RunRequest{ScanID: "s1", BrandID: "b1", Type: domain.TypeAutomated})
	require.NoError(t, err)
	assert.Equal(t, 1, s.ThreatsFound)
	assert.Equal(t, 1, alerts.dispatched)
}

func TestRun_ProgressWritesAreThrottled(t *testing.T) {
	f := newFixture(t)
	f.newScan(t, "s1", domain.TypeQuick)

	s, err := f.orch.Run(context.Background(), RunRequest{ScanID: "s1", BrandID: "b1", Type: domain.TypeQuick})
	require.NoError(t, err)
	assert.Equal(t, 25, s.DomainsChecked)
	// the clock never advances, so only forced writes land: start+end of
	// domains, start+end of web, finalizing
	assert.Equal(t, 5, f.scans.updates)
}

func TestStepWeightsRenormalize(t *testing.T) {
	cfg, err := domain.Profile(domain.TypeQuick, domain.Overrides{})
	require.NoError(t, err)
	r := &run{cfg: cfg}
	r.progress = domain.Progress{CurrentStep: domain.StepDomains, StepProgress: 5, StepTotal: 10}
	// domains 40 / (40+25) * 0.5
	assert.Equal(t, 31, r.overall())
	r.doneShare = cfg.StepWeight(domain.StepDomains)
	r.progress = domain.Progress{CurrentStep: domain.StepWeb}
	assert.Equal(t, 62, r.overall())
}
