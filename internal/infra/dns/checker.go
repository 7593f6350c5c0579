package dns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/infra/ratelimit"
	"github.com/bryanwahyu/brandsentry/internal/logging"
	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

// RecordTypes are tried in order; the first positive answer wins.
var RecordTypes = []string{"A", "AAAA", "CNAME", "NS", "SOA"}

// DefaultProviders are the primary and fallback DNS-over-HTTPS JSON endpoints.
var DefaultProviders = []string{
	"https://cloudflare-dns.com/dns-query",
	"https://dns.google/resolve",
}

const (
	defaultTimeout = 5 * time.Second
	maxBody        = 1 << 20
)

type Config struct {
	Providers []string      `yaml:"providers"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Checker decides whether a domain is registered by asking DoH resolvers.
type Checker struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	providers []string
	timeout   time.Duration
	log       *slog.Logger
}

func NewChecker(cfg Config, limiter *ratelimit.Limiter, client *http.Client, log *slog.Logger) *Checker {
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Checker{
		client:    client,
		limiter:   limiter,
		providers: cfg.Providers,
		timeout:   cfg.Timeout,
		log:       logging.OrDefault(log),
	}
}

type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

// IsRegistered runs the whole lookup as one DNS-limiter task. Provider failures
// and timeouts count as negative answers; the error is non-nil only when ctx or
// the limiter queue was cancelled.
func (c *Checker) IsRegistered(ctx context.Context, domain string) (bool, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	ok, err := ratelimit.Submit(ctx, c.limiter, func(ctx context.Context) (bool, error) {
		return c.lookup(ctx, domain), ctx.Err()
	})
	switch {
	case err != nil:
		telemetry.DNSChecks.WithLabelValues("cancelled").Inc()
		return false, err
	case ok:
		telemetry.DNSChecks.WithLabelValues("registered").Inc()
	default:
		telemetry.DNSChecks.WithLabelValues("unregistered").Inc()
	}
	return ok, nil
}

func (c *Checker) lookup(ctx context.Context, domain string) bool {
	for _, rt := range RecordTypes {
		for _, p := range c.providers {
			if ctx.Err() != nil {
				return false
			}
			ok, err := c.query(ctx, p, domain, rt)
			if err != nil {
				c.log.Debug("doh query failed", "provider", p, "domain", domain, "type", rt, "error", err)
				continue
			}
			if ok {
				return true
			}
		}
	}
	return false
}

func (c *Checker) query(ctx context.Context, provider, domain, recordType string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := fmt.Sprintf("%s?name=%s&type=%s", provider, url.QueryEscape(domain), recordType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}
	var out dohResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&out); err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	return out.Status == 0 && len(out.Answer) > 0, nil
}
