package threats

import (
	"time"

	"github.com/bryanwahyu/brandsentry/internal/domain/variations"
)

// Type enum
type Type string

const (
	TypeTyposquatDomain    Type = "typosquat_domain"
	TypeLookalikeWebsite   Type = "lookalike_website"
	TypePhishingPage       Type = "phishing_page"
	TypeFakeSocialAccount  Type = "fake_social_account"
	TypeBrandImpersonation Type = "brand_impersonation"
	TypeTrademarkAbuse     Type = "trademark_abuse"
)

// Severity enum
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities so thresholds can be compared; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// AtLeast reports whether s is as severe as min. An empty min accepts everything.
func (s Severity) AtLeast(min Severity) bool {
	if min == "" {
		return true
	}
	return s.Rank() >= min.Rank()
}

// Review statuses; pending and confirmed count as unresolved.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusDismissed = "dismissed"
)

// Aggregate Root: Threat. Rows are immutable after creation except status/notes,
// which belong to the review workflow.
type Threat struct {
	ID          string    `json:"id"`
	BrandID     string    `json:"brand_id"`
	ScanID      string    `json:"scan_id"`
	Type        Type      `json:"type"`
	Severity    Severity  `json:"severity"`
	Status      string    `json:"status"`
	URL         string    `json:"url,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	Evidence    Evidence  `json:"evidence"`
	ThreatScore int       `json:"threat_score"`
	Analysis    Analysis  `json:"analysis"`
	DetectedAt  time.Time `json:"detected_at"`

	// VariationType is set for domain-phase threats.
	VariationType variations.Type `json:"variation_type,omitempty"`
}

// DedupKey returns the identity used to avoid duplicate rows: the url when present, else the domain.
func (t *Threat) DedupKey() string {
	if t.URL != "" {
		return "url:" + t.URL
	}
	return "domain:" + t.Domain
}

// Evidence bundle collected for a candidate.
type Evidence struct {
	Screenshots []Screenshot   `json:"screenshots,omitempty"`
	Whois       []WhoisRecord  `json:"whois,omitempty"`
	HTML        []HTMLSnapshot `json:"html,omitempty"`
}

// Empty reports whether nothing was captured.
func (e Evidence) Empty() bool {
	return len(e.Screenshots) == 0 && len(e.Whois) == 0 && len(e.HTML) == 0
}

// Screenshot roles.
const (
	RoleOfficial  = "official"
	RoleCandidate = "candidate"
)

type Screenshot struct {
	Role       string    `json:"role"`
	URL        string    `json:"url"`
	ObjectKey  string    `json:"object_key"`
	CapturedAt time.Time `json:"captured_at"`
}

type WhoisRecord struct {
	Domain     string     `json:"domain"`
	Registrar  string     `json:"registrar,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Status     []string   `json:"status,omitempty"`
	NameServer []string   `json:"name_servers,omitempty"`
	Raw        string     `json:"raw,omitempty"`
}

type HTMLSnapshot struct {
	URL        string       `json:"url"`
	StatusCode int          `json:"status_code"`
	Title      string       `json:"title,omitempty"`
	Text       string       `json:"text,omitempty"`
	Page       PageAnalysis `json:"page"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// PageAnalysis holds structural indicators extracted from fetched HTML.
type PageAnalysis struct {
	HasLoginForm       bool     `json:"has_login_form"`
	HasPaymentForm     bool     `json:"has_payment_form"`
	BrandMentions      int      `json:"brand_mentions"`
	SuspiciousElements []string `json:"suspicious_elements,omitempty"`
}

// HasPageContent reports whether any fetched page produced text or structure to score.
func (e Evidence) HasPageContent() bool {
	for _, h := range e.HTML {
		if h.Text != "" || h.Page.HasLoginForm || h.Page.HasPaymentForm || len(h.Page.SuspiciousElements) > 0 {
			return true
		}
	}
	return false
}

// Screenshot returns the first screenshot with the given role.
func (e Evidence) Screenshot(role string) (Screenshot, bool) {
	for _, s := range e.Screenshots {
		if s.Role == role {
			return s, true
		}
	}
	return Screenshot{}, false
}

// VisualStatus enum
type VisualStatus string

const (
	VisualPending     VisualStatus = "pending"
	VisualUnavailable VisualStatus = "unavailable"
	VisualComputed    VisualStatus = "computed"
)

// IntentSource enum
type IntentSource string

const (
	IntentHeuristic IntentSource = "heuristic"
	IntentOpenAI    IntentSource = "openai"
)

// Weights are the effective, renormalized component weights. Unused signals carry zero.
type Weights struct {
	DomainRisk       float64 `json:"domain_risk"`
	VisualSimilarity float64 `json:"visual_similarity"`
	PhishingIntent   float64 `json:"phishing_intent"`
}

// Sum of all weights.
func (w Weights) Sum() float64 { return w.DomainRisk + w.VisualSimilarity + w.PhishingIntent }

// Analysis is computed once when the threat is created.
type Analysis struct {
	DomainRiskScore       float64      `json:"domain_risk_score"`
	VisualSimilarityScore *float64     `json:"visual_similarity_score"`
	VisualStatus          VisualStatus `json:"visual_status"`
	PhishingIntentScore   float64      `json:"phishing_intent_score"`
	IntentClass           string       `json:"intent_class,omitempty"`
	IntentConfidence      float64      `json:"intent_confidence,omitempty"`
	IntentRationale       string       `json:"intent_rationale,omitempty"`
	Signals               []string     `json:"signals,omitempty"`
	IntentSource          IntentSource `json:"intent_source"`
	IntentAvailable       bool         `json:"intent_available"`
	CompositeScore        int          `json:"composite_score"`
	CompositeSeverity     Severity     `json:"composite_severity"`
	Weights               Weights      `json:"weights"`
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Threat `json:"data"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
}
