package variations

import (
	"strings"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

var stemSuffixes = []string{"ers", "ing", "er", "ly"}

// Stem strips one common English suffix so "widgeter" and "widgets" reduce to "widget".
func Stem(s string) string {
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(s, suf) && len(s)-len(suf) >= 3 {
			return s[:len(s)-len(suf)]
		}
	}
	if len(s) > 5 && strings.HasSuffix(s, "s") && !strings.HasSuffix(s, "ss") {
		return s[:len(s)-1]
	}
	return s
}

// Pluralize appends a plural "s" unless the word already ends in one.
func Pluralize(s string) string {
	if s == "" || strings.HasSuffix(s, "s") {
		return s
	}
	return s + "s"
}

// ExpandSeeds returns the normalized brand name and domain base together with
// their stemmed and pluralized forms, deduplicated and in a stable order.
func ExpandSeeds(name, domainBase string) []string {
	var out []string
	seen := map[string]struct{}{}
	push := func(s string) {
		if len(s) < 2 {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, raw := range []string{domainBase, name} {
		s := brands.Normalize(raw)
		if s == "" {
			continue
		}
		stem := Stem(s)
		push(s)
		push(stem)
		push(Pluralize(stem))
	}
	return out
}

// PriorityDomains pairs every seed with the short allow-list of high-signal TLDs.
func PriorityDomains(seeds []string, primaryBase, primaryTLD string) []Candidate {
	primary := primaryBase + "." + primaryTLD
	var out []Candidate
	for _, seed := range seeds {
		for _, t := range PriorityTLDs {
			d := seed + "." + t
			if d == primary {
				continue
			}
			out = append(out, Candidate{Domain: d, Type: classifySeed(seed, primaryBase)})
		}
	}
	return out
}

// classifySeed names the edit that turns primary into seed. Stem and plural
// forms that are not a single edit away are affix combinations around the
// brand stem, the same bucket as the subdomain-style squats.
func classifySeed(seed, primary string) Type {
	switch {
	case seed == primary:
		return TLDSwap
	case len(seed) == len(primary)+1 && isSubsequence(primary, seed):
		return AddedLetter
	case len(seed)+1 == len(primary) && isSubsequence(seed, primary):
		return MissingLetter
	case isTransposition(seed, primary):
		return Typo
	default:
		return Subdomain
	}
}

func isSubsequence(sub, s string) bool {
	j := 0
	for i := 0; i < len(s) && j < len(sub); i++ {
		if s[i] == sub[j] {
			j++
		}
	}
	return j == len(sub)
}

// isTransposition reports whether a and b differ by one swap of adjacent characters.
func isTransposition(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	i := 0
	for i < len(a) && a[i] == b[i] {
		i++
	}
	if i+1 >= len(a) {
		return false
	}
	return a[i] == b[i+1] && a[i+1] == b[i] && a[i+2:] == b[i+2:]
}

// BuildCandidates expands the brand's seeds, generates variations for each and
// truncates the union to budget. A budget <= 0 returns everything.
// MaxAddedLetter applies to the union across seeds.
func BuildCandidates(b brands.Brand, budget int, g Generator) []Candidate {
	primary, tld := brands.SplitDomain(b.PrimaryDomain)
	if tld == "" {
		tld = "com"
	}
	seeds := ExpandSeeds(b.Name, primary)
	if primary == "" && len(seeds) > 0 {
		primary = seeds[0]
	}
	primaryDomain := primary + "." + tld

	maxAdded := g.MaxAddedLetter
	if maxAdded <= 0 {
		maxAdded = DefaultMaxAddedLetter
	}

	seen := map[string]struct{}{primaryDomain: {}}
	var all []Candidate
	added := 0
	for _, seed := range seeds {
		for _, c := range g.Generate(seed, tld) {
			if _, dup := seen[c.Domain]; dup {
				continue
			}
			// the inserted-letter cap covers the whole scan, not each seed
			if c.Type == AddedLetter {
				if added >= maxAdded {
					continue
				}
				added++
			}
			seen[c.Domain] = struct{}{}
			all = append(all, c)
		}
	}
	return Prioritize(all, PriorityDomains(seeds, primary, tld), budget)
}
