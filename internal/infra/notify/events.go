package notify

import (
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/scans"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

// Subjects published for in-app notifications.
const (
	SubjectThreatsDetected = "brand.threats.detected"
	SubjectScanCompleted   = "brand.scan.completed"
)

type ThreatSummary struct {
	ID       string           `json:"id"`
	Type     threats.Type     `json:"type"`
	Severity threats.Severity `json:"severity"`
	Score    int              `json:"threat_score"`
	URL      string           `json:"url,omitempty"`
	Domain   string           `json:"domain,omitempty"`
}

type ThreatsDetectedEvent struct {
	BrandID    string                   `json:"brand_id"`
	BrandName  string                   `json:"brand_name"`
	OwnerID    string                   `json:"owner_id,omitempty"`
	ScanID     string                   `json:"scan_id"`
	Count      int                      `json:"count"`
	BySeverity map[threats.Severity]int `json:"by_severity"`
	Threats    []ThreatSummary          `json:"threats"`
	At         time.Time                `json:"at"`
}

type ScanCompletedEvent struct {
	BrandID        string       `json:"brand_id"`
	OwnerID        string       `json:"owner_id,omitempty"`
	ScanID         string       `json:"scan_id"`
	ScanType       scans.Type   `json:"scan_type"`
	Status         scans.Status `json:"status"`
	DomainsChecked int          `json:"domains_checked"`
	PagesScanned   int          `json:"pages_scanned"`
	ThreatsFound   int          `json:"threats_found"`
	PartialErrors  int          `json:"partial_errors"`
	At             time.Time    `json:"at"`
}

func summarize(ts []*threats.Threat) ([]ThreatSummary, map[threats.Severity]int) {
	out := make([]ThreatSummary, 0, len(ts))
	by := map[threats.Severity]int{}
	for _, t := range ts {
		out = append(out, ThreatSummary{ID: t.ID, Type: t.Type, Severity: t.Severity, Score: t.ThreatScore, URL: t.URL, Domain: t.Domain})
		by[t.Severity]++
	}
	return out, by
}

func newThreatsDetected(b *brands.Brand, s *scans.Scan, ts []*threats.Threat, at time.Time) ThreatsDetectedEvent {
	sum, by := summarize(ts)
	return ThreatsDetectedEvent{
		BrandID:    b.ID,
		BrandName:  b.Name,
		OwnerID:    b.OwnerID,
		ScanID:     s.ID,
		Count:      len(ts),
		BySeverity: by,
		Threats:    sum,
		At:         at,
	}
}

func newScanCompleted(b *brands.Brand, s *scans.Scan, at time.Time) ScanCompletedEvent {
	return ScanCompletedEvent{
		BrandID:        b.ID,
		OwnerID:        b.OwnerID,
		ScanID:         s.ID,
		ScanType:       s.Type,
		Status:         s.Status,
		DomainsChecked: s.DomainsChecked,
		PagesScanned:   s.PagesScanned,
		ThreatsFound:   s.ThreatsFound,
		PartialErrors:  len(s.PartialErrors),
		At:             at,
	}
}
