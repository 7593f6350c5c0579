package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

type rdapDomain struct {
	LDHName string   `json:"ldhName"`
	Status  []string `json:"status"`
	Events  []struct {
		Action string `json:"eventAction"`
		Date   string `json:"eventDate"`
	} `json:"events"`
	Entities []struct {
		Roles      []string `json:"roles"`
		VCardArray []any    `json:"vcardArray"`
	} `json:"entities"`
	Nameservers []struct {
		LDHName string `json:"ldhName"`
	} `json:"nameservers"`
}

// lookupRDAP fetches registration data for a registrable domain.
func (c *Collector) lookupRDAP(ctx context.Context, domain string) (*threats.WhoisRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.WhoisTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.cfg.RDAPBaseURL, "/")+"/"+domain, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdap+json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rdap status %d", resp.StatusCode)
	}
	var d rdapDomain
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes)).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode rdap: %w", err)
	}

	rec := &threats.WhoisRecord{Domain: domain, Status: d.Status}
	for _, ev := range d.Events {
		t, err := time.Parse(time.RFC3339, ev.Date)
		if err != nil {
			continue
		}
		switch ev.Action {
		case "registration":
			rec.CreatedAt = &t
		case "expiration":
			rec.ExpiresAt = &t
		}
	}
	for _, e := range d.Entities {
		if contains(e.Roles, "registrar") {
			rec.Registrar = vcardName(e.VCardArray)
			break
		}
	}
	for _, ns := range d.Nameservers {
		rec.NameServer = append(rec.NameServer, strings.ToLower(ns.LDHName))
	}
	return rec, nil
}

// vcardName reads the "fn" property from a jCard: ["vcard", [["fn", {}, "text", "Name"], ...]].
func vcardName(card []any) string {
	if len(card) < 2 {
		return ""
	}
	props, ok := card[1].([]any)
	if !ok {
		return ""
	}
	for _, p := range props {
		prop, ok := p.([]any)
		if !ok || len(prop) < 4 {
			continue
		}
		if name, _ := prop[0].(string); name == "fn" {
			v, _ := prop[3].(string)
			return v
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
