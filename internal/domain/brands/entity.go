package brands

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Brand is owned by the account layer; scans only read it.
type Brand struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	PrimaryDomain string            `json:"primary_domain"`
	Keywords      []string          `json:"keywords,omitempty"`
	SocialHandles map[string]string `json:"social_handles,omitempty"` // platform -> handle
	LogoURL       string            `json:"logo_url,omitempty"`

	OwnerID        string `json:"owner_id,omitempty"`
	AlertEmail     string `json:"alert_email,omitempty"`
	AlertWebhook   string `json:"alert_webhook,omitempty"`
	AlertThreshold string `json:"alert_threshold,omitempty"` // minimum severity that triggers an alert

	UnresolvedThreats int `json:"unresolved_threats"`
}

// BaseName returns the registrable label of the primary domain ("acme" for "www.acme.co.uk").
func (b Brand) BaseName() string {
	base, _ := SplitDomain(b.PrimaryDomain)
	return base
}

// TLD returns the public suffix of the primary domain.
func (b Brand) TLD() string {
	_, tld := SplitDomain(b.PrimaryDomain)
	return tld
}

// SplitDomain splits a host into its registrable label and public suffix.
// Sub-domains are dropped: "login.acme.co.uk" -> ("acme", "co.uk").
func SplitDomain(domain string) (base, tld string) {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	if i := strings.IndexAny(d, "/?#:"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimSuffix(d, ".")
	if d == "" || net.ParseIP(d) != nil {
		return "", ""
	}
	suffix, _ := publicsuffix.PublicSuffix(d)
	if suffix == d || !strings.HasSuffix(d, "."+suffix) {
		return "", suffix
	}
	rest := strings.TrimSuffix(d, "."+suffix)
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		rest = rest[i+1:]
	}
	return rest, suffix
}

// Normalize lowercases s and keeps only ASCII letters and digits.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
