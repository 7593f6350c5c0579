// Package social probes social platforms for accounts impersonating a brand.
package social

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
	"github.com/bryanwahyu/brandsentry/internal/domain/variations"
	"github.com/bryanwahyu/brandsentry/internal/logging"
)

// DefaultPlatforms maps platform name to its profile url template.
var DefaultPlatforms = map[string]string{
	"twitter":   "https://x.com/%s",
	"instagram": "https://www.instagram.com/%s/",
	"facebook":  "https://www.facebook.com/%s",
	"tiktok":    "https://www.tiktok.com/@%s",
	"youtube":   "https://www.youtube.com/@%s",
	"github":    "https://github.com/%s",
}

var (
	affixes = []struct{ prefix, suffix string }{
		{"", "official"},
		{"", "_official"},
		{"official", ""},
		{"real", ""},
		{"", "support"},
		{"", "_support"},
		{"", "help"},
		{"", "hq"},
		{"", "app"},
		{"", "id"},
	}
	// handles containing these words pose as the brand's own support channel
	impostorWords = []string{"official", "support", "help", "real", "verify"}
	typoTypes     = map[variations.Type]bool{
		variations.MissingLetter: true,
		variations.Typo:          true,
		variations.Homoglyph:     true,
		variations.DoubleLetter:  true,
	}
)

type Config struct {
	// Platforms overrides DefaultPlatforms.
	Platforms      map[string]string `yaml:"platforms"`
	UserAgent      string            `yaml:"user_agent"`
	Timeout        time.Duration     `yaml:"timeout"`
	MaxTypoHandles int               `yaml:"max_typo_handles"`
	Concurrency    int               `yaml:"concurrency"`
}

func (c Config) withDefaults() Config {
	if len(c.Platforms) == 0 {
		c.Platforms = DefaultPlatforms
	}
	if c.UserAgent == "" {
		c.UserAgent = "brandsentry/1.0 (+https://github.com/bryanwahyu/brandsentry)"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxTypoHandles <= 0 {
		c.MaxTypoHandles = 5
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Gate runs a call under a rate limit.
type Gate interface {
	Do(ctx context.Context, fn func(context.Context) error) error
}

// Prober checks handle variants on each platform. Every request goes through
// the gate (the external limiter in production).
type Prober struct {
	cfg    Config
	gate   Gate
	client *http.Client
	log    *slog.Logger
}

func New(cfg Config, gate Gate, client *http.Client, log *slog.Logger) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	return &Prober{cfg: cfg.withDefaults(), gate: gate, client: client, log: logging.OrDefault(log)}
}

type probe struct {
	platform string
	handle   string
	url      string
}

// Total reports how many profiles Scan will request.
func (p *Prober) Total(b *brands.Brand, cfg scans.Config) int {
	return len(p.probes(b, cfg))
}

// Scan requests every profile url and returns one fake_social_account threat
// per existing profile. Probe failures are summarised in the returned error
// alongside whatever was found.
func (p *Prober) Scan(ctx context.Context, b *brands.Brand, cfg scans.Config, onProgress func(delta int)) ([]*threats.Threat, error) {
	list := p.probes(b, cfg)
	found := make([]*threats.Threat, len(list))

	var (
		mu       sync.Mutex
		failures int
		firstErr error
	)
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for i, pr := range list {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			exists, err := p.exists(ctx, pr.url)
			if onProgress != nil {
				onProgress(1)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failures++
				if firstErr == nil {
					firstErr = fmt.Errorf("%s %s: %w", pr.platform, pr.handle, err)
				}
				mu.Unlock()
				return nil
			}
			if exists {
				found[i] = newThreat(pr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*threats.Threat, 0, len(found))
	for _, t := range found {
		if t != nil {
			out = append(out, t)
		}
	}
	p.log.Debug("social probe finished", "brand_id", b.ID, "probes", len(list), "found", len(out), "failures", failures)
	if failures > 0 {
		return out, fmt.Errorf("%d of %d social probes failed: %w", failures, len(list), firstErr)
	}
	return out, nil
}

func (p *Prober) exists(ctx context.Context, profileURL string) (bool, error) {
	var exists bool
	call := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", p.cfg.UserAgent)
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			exists = true
		case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
			exists = false
		default:
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
	if p.gate == nil {
		return exists, call(ctx)
	}
	return exists, p.gate.Do(ctx, call)
}

// probes lists (platform, handle) pairs in a stable order, skipping the
// brand's own handle on each platform.
func (p *Prober) probes(b *brands.Brand, cfg scans.Config) []probe {
	handles := p.Handles(b)
	var out []probe
	for _, platform := range p.platforms(cfg) {
		tmpl := p.cfg.Platforms[platform]
		own := normalizeHandle(b.SocialHandles[platform])
		for _, h := range handles {
			if h == own {
				continue
			}
			out = append(out, probe{platform: platform, handle: h, url: fmt.Sprintf(tmpl, h)})
		}
	}
	return out
}

func (p *Prober) platforms(cfg scans.Config) []string {
	var names []string
	if len(cfg.Platforms) > 0 {
		for _, n := range cfg.Platforms {
			n = strings.ToLower(strings.TrimSpace(n))
			if _, ok := p.cfg.Platforms[n]; ok {
				names = append(names, n)
			}
		}
	} else {
		for n := range p.cfg.Platforms {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return dedupe(names)
}

// Handles returns the impersonation handle variants for a brand: the bare
// name, affixed forms and a few typo forms of the name.
func (p *Prober) Handles(b *brands.Brand) []string {
	var bases []string
	for _, s := range []string{b.Name, b.BaseName()} {
		if n := brands.Normalize(s); n != "" {
			bases = append(bases, n)
		}
	}
	bases = dedupe(bases)

	var out []string
	for _, base := range bases {
		out = append(out, base)
		for _, a := range affixes {
			out = append(out, a.prefix+base+a.suffix)
		}
	}
	for _, base := range bases {
		n := 0
		for _, c := range variations.Generate(base, "com") {
			if n >= p.cfg.MaxTypoHandles {
				break
			}
			if !typoTypes[c.Type] {
				continue
			}
			h := strings.TrimSuffix(c.Domain, ".com")
			if h == "" || strings.ContainsAny(h, ".-") {
				continue
			}
			out = append(out, h)
			n++
		}
	}
	return dedupe(out)
}

func newThreat(pr probe) *threats.Threat {
	severity := threats.SeverityMedium
	for _, w := range impostorWords {
		if strings.Contains(pr.handle, w) {
			severity = threats.SeverityHigh
			break
		}
	}
	return &threats.Threat{
		Type:     threats.TypeFakeSocialAccount,
		Severity: severity,
		URL:      pr.url,
	}
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
