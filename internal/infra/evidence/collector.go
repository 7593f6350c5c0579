package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

type Config struct {
	UserAgent         string        `yaml:"user_agent"`
	HTMLTimeout       time.Duration `yaml:"html_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
	MaxTextChars      int           `yaml:"max_text_chars"`
	RDAPBaseURL       string        `yaml:"rdap_base_url"`
	WhoisTimeout      time.Duration `yaml:"whois_timeout"`
	ScreenshotURL     string        `yaml:"screenshot_url"`
	ScreenshotTimeout time.Duration `yaml:"screenshot_timeout"`
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "brandsentry/1.0 (+https://github.com/bryanwahyu/brandsentry)"
	}
	if c.HTMLTimeout <= 0 {
		c.HTMLTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 2 << 20
	}
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = 4000
	}
	if c.RDAPBaseURL == "" {
		c.RDAPBaseURL = "https://rdap.org/domain/"
	}
	if c.WhoisTimeout <= 0 {
		c.WhoisTimeout = 10 * time.Second
	}
	if c.ScreenshotTimeout <= 0 {
		c.ScreenshotTimeout = 30 * time.Second
	}
	return c
}

// ScreenshotStore persists captured images.
type ScreenshotStore interface {
	PutScreenshot(ctx context.Context, key string, data []byte, contentType string) error
}

// Collector gathers HTML, WHOIS and screenshot evidence. HTML and RDAP go
// through the external limiter, screenshots through the screenshot limiter.
type Collector struct {
	cfg      Config
	client   *http.Client
	limiters *ratelimit.Set
	shots    ScreenshotStore
	log      *slog.Logger
	now      func() time.Time
}

// New builds a Collector. shots may be nil, in which case no screenshots are taken.
func New(cfg Config, limiters *ratelimit.Set, client *http.Client, shots ScreenshotStore, log *slog.Logger) *Collector {
	if client == nil {
		client = &http.Client{}
	}
	return &Collector{
		cfg:      cfg.withDefaults(),
		client:   client,
		limiters: limiters,
		shots:    shots,
		log:      logging.OrDefault(log),
		now:      time.Now,
	}
}

// Collect returns whatever evidence could be captured. A non-nil error lists the
// parts that failed; the returned Evidence is still usable.
func (c *Collector) Collect(ctx context.Context, target string, b *brands.Brand) (threats.Evidence, error) {
	var ev threats.Evidence
	pageURL := normalizeURL(target)
	host := hostOf(pageURL)
	if host == "" {
		return ev, fmt.Errorf("invalid url %q", target)
	}

	var errs []error
	snap, err := ratelimit.Submit(ctx, c.limiters.External, func(ctx context.Context) (*threats.HTMLSnapshot, error) {
		return c.fetchHTML(ctx, pageURL, b)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("html: %w", err))
	} else {
		ev.HTML = append(ev.HTML, *snap)
	}

	if base, tld := brands.SplitDomain(host); base != "" {
		rec, err := ratelimit.Submit(ctx, c.limiters.External, func(ctx context.Context) (*threats.WhoisRecord, error) {
			return c.lookupRDAP(ctx, base+"."+tld)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("whois: %w", err))
		} else {
			ev.Whois = append(ev.Whois, *rec)
		}
	}

	if c.screenshotsEnabled() {
		shot, err := c.capture(ctx, pageURL, threats.RoleCandidate, b)
		if err != nil {
			errs = append(errs, fmt.Errorf("screenshot: %w", err))
		} else {
			ev.Screenshots = append(ev.Screenshots, *shot)
		}
	}
	return ev, errors.Join(errs...)
}

// CaptureOfficial screenshots the brand's own site.
func (c *Collector) CaptureOfficial(ctx context.Context, b *brands.Brand) (*threats.Screenshot, error) {
	if !c.screenshotsEnabled() {
		return nil, nil
	}
	return c.capture(ctx, normalizeURL(b.PrimaryDomain), threats.RoleOfficial, b)
}

func (c *Collector) screenshotsEnabled() bool {
	return c.shots != nil && c.cfg.ScreenshotURL != ""
}

func normalizeURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	return s
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
