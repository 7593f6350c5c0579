package nrd

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

// MatchType enum
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchKeyword   MatchType = "keyword"
	MatchTyposquat MatchType = "typosquat"
)

const (
	minTermLen         = 3
	keywordScore       = 0.9
	typosquatThreshold = 0.75
)

// Match links a newly registered domain to a brand. Consumed by threat creation downstream.
type Match struct {
	BrandID         string    `json:"brand_id"`
	Domain          string    `json:"domain"`
	MatchType       MatchType `json:"match_type"`
	MatchedKeyword  string    `json:"matched_keyword,omitempty"`
	SimilarityScore float64   `json:"similarity_score"`
}

// MatchDomainToBrand evaluates exact, keyword and typosquat tiers in order and
// returns the first hit, or nil. The brand's own domain never matches.
func MatchDomainToBrand(domain string, b *brands.Brand) *Match {
	base, tld := brands.SplitDomain(domain)
	if base == "" || b == nil {
		return nil
	}
	brandBase, brandTLD := brands.SplitDomain(b.PrimaryDomain)
	if base == brandBase && tld == brandTLD {
		return nil
	}
	host := strings.ToLower(strings.TrimSpace(domain))
	m := &Match{BrandID: b.ID, Domain: host}

	if brandBase != "" && base == brandBase {
		m.MatchType, m.SimilarityScore = MatchExact, 1.0
		return m
	}

	nb := brands.Normalize(base)
	for _, term := range brandTerms(b) {
		if strings.Contains(nb, term) {
			m.MatchType, m.MatchedKeyword, m.SimilarityScore = MatchKeyword, term, keywordScore
			return m
		}
	}

	best := 0.0
	for _, ref := range []string{brands.Normalize(brandBase), brands.Normalize(b.Name)} {
		if ref == "" || ref == nb {
			continue
		}
		if s := Similarity(nb, ref); s > best {
			best = s
		}
	}
	if best >= typosquatThreshold {
		m.MatchType, m.SimilarityScore = MatchTyposquat, best
		return m
	}
	return nil
}

// Similarity is 1 - editDistance/maxLength.
func Similarity(a, b string) float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	if n == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(n)
}

// brandTerms returns the normalized name, domain base and keywords that are long enough to match on.
func brandTerms(b *brands.Brand) []string {
	raw := append([]string{b.Name, b.BaseName()}, b.Keywords...)
	out := make([]string, 0, len(raw))
	seen := map[string]struct{}{}
	for _, r := range raw {
		t := brands.Normalize(r)
		if len(t) < minTermLen {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
