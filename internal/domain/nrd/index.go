package nrd

import (
	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

// Index is a trigram pre-filter built once per brand set. A domain that shares
// no trigram with any brand term cannot match on the exact or keyword tiers.
type Index struct {
	grams map[string]struct{}
	// short holds brand bases under three characters, which have no trigrams.
	short map[string]struct{}
}

func NewIndex(bs []*brands.Brand) *Index {
	idx := &Index{grams: map[string]struct{}{}, short: map[string]struct{}{}}
	for _, b := range bs {
		if b == nil {
			continue
		}
		for _, t := range brandTerms(b) {
			idx.addGrams(t)
		}
		if base := b.BaseName(); base != "" {
			if len(base) < minTermLen {
				idx.short[base] = struct{}{}
			} else {
				idx.addGrams(base)
			}
		}
	}
	return idx
}

func (idx *Index) addGrams(s string) {
	for i := 0; i+minTermLen <= len(s); i++ {
		idx.grams[s[i:i+minTermLen]] = struct{}{}
	}
}

// Size returns the number of distinct trigrams.
func (idx *Index) Size() int { return len(idx.grams) }

// MightMatchAnyBrand rejects a domain in O(len) when none of its trigrams are indexed.
func (idx *Index) MightMatchAnyBrand(domain string) bool {
	base, _ := brands.SplitDomain(domain)
	if base == "" {
		return false
	}
	if _, ok := idx.short[base]; ok {
		return true
	}
	return idx.hit(base) || idx.hit(brands.Normalize(base))
}

func (idx *Index) hit(s string) bool {
	for i := 0; i+minTermLen <= len(s); i++ {
		if _, ok := idx.grams[s[i:i+minTermLen]]; ok {
			return true
		}
	}
	return false
}

// Matcher runs bulk feeds against a fixed brand set.
type Matcher struct {
	brands []*brands.Brand
	index  *Index
}

func NewMatcher(bs []*brands.Brand) *Matcher {
	return &Matcher{brands: bs, index: NewIndex(bs)}
}

// Match returns every brand the domain matches.
func (m *Matcher) Match(domain string) []Match {
	if !m.index.MightMatchAnyBrand(domain) {
		return nil
	}
	var out []Match
	for _, b := range m.brands {
		if hit := MatchDomainToBrand(domain, b); hit != nil {
			out = append(out, *hit)
		}
	}
	return out
}

// MatchBatch matches a whole feed. Output keeps feed order.
func (m *Matcher) MatchBatch(domains []string) []Match {
	var out []Match
	for _, d := range domains {
		out = append(out, m.Match(d)...)
	}
	return out
}
