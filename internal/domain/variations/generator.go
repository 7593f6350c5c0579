package variations

import (
	"strings"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

// Generator synthesises lookalike domains for a seed. It performs no I/O and is
// deterministic: the same input always yields the same ordered slice.
type Generator struct {
	// MaxAddedLetter caps inserted-letter candidates per Generate call and across
	// all seeds in BuildCandidates. Zero means DefaultMaxAddedLetter.
	MaxAddedLetter int
}

// Generate runs the default generator.
func Generate(seed, tld string) []Candidate {
	return Generator{}.Generate(seed, tld)
}

// Generate returns every variation of seed.tld without duplicates, excluding seed.tld itself.
func (g Generator) Generate(seed, tld string) []Candidate {
	seed = brands.Normalize(seed)
	tld = strings.Trim(strings.ToLower(tld), ". ")
	if seed == "" || tld == "" {
		return nil
	}
	maxAdded := g.MaxAddedLetter
	if maxAdded <= 0 {
		maxAdded = DefaultMaxAddedLetter
	}

	c := newCollector(seed + "." + tld)
	add := func(base string, t Type) { c.add(base, tld, t) }

	// missing letters
	for i := 0; i < len(seed); i++ {
		add(seed[:i]+seed[i+1:], MissingLetter)
	}
	// doubled letters
	for i := 0; i < len(seed); i++ {
		add(seed[:i+1]+seed[i:], DoubleLetter)
	}
	// inserted letters
	added := 0
	for i := 0; i <= len(seed) && added < maxAdded; i++ {
		for j := 0; j < len(alphabet) && added < maxAdded; j++ {
			if c.add(seed[:i]+alphabet[j:j+1]+seed[i:], tld, AddedLetter) {
				added++
			}
		}
	}
	// vowel substitutions
	for i := 0; i < len(seed); i++ {
		if !strings.ContainsRune(vowels, rune(seed[i])) {
			continue
		}
		for j := 0; j < len(vowels); j++ {
			if vowels[j] != seed[i] {
				add(seed[:i]+vowels[j:j+1]+seed[i+1:], VowelSwap)
			}
		}
	}
	// adjacent keys
	for i := 0; i < len(seed); i++ {
		for _, r := range qwertyAdjacent[seed[i]] {
			add(seed[:i]+string(r)+seed[i+1:], KeyboardProximity)
		}
	}
	// transpositions
	for i := 0; i+1 < len(seed); i++ {
		if seed[i] == seed[i+1] {
			continue
		}
		b := []byte(seed)
		b[i], b[i+1] = b[i+1], b[i]
		add(string(b), Typo)
	}
	// homoglyphs
	for i := 0; i < len(seed); i++ {
		glyphs := homoglyphs[seed[i]]
		if len(glyphs) > maxHomoglyphsPerChar {
			glyphs = glyphs[:maxHomoglyphsPerChar]
		}
		for _, gl := range glyphs {
			add(seed[:i]+gl+seed[i+1:], Homoglyph)
		}
	}
	// hyphens
	for i := 1; i < len(seed); i++ {
		add(seed[:i]+"-"+seed[i:], Hyphen)
	}
	// other TLDs
	for _, t := range commonTLDs {
		if t != tld {
			c.add(seed, t, TLDSwap)
		}
	}
	// subdomain-style squats
	for _, p := range subdomainPrefixes {
		add(p+"-"+seed, Subdomain)
	}
	for _, s := range subdomainSuffixes {
		add(seed+"-"+s, Subdomain)
	}
	// single bit flips
	for i := 0; i < len(seed); i++ {
		for bit := 0; bit < 8; bit++ {
			f := seed[i] ^ (1 << bit)
			if f >= 'a' && f <= 'z' {
				add(seed[:i]+string(f)+seed[i+1:], Bitsquat)
			}
		}
	}

	return c.out
}

type collector struct {
	original string
	seen     map[string]struct{}
	out      []Candidate
}

func newCollector(original string) *collector {
	return &collector{original: original, seen: map[string]struct{}{original: {}}}
}

func (c *collector) add(base, tld string, t Type) bool {
	if !validLabel(base) {
		return false
	}
	d := base + "." + tld
	if _, dup := c.seen[d]; dup {
		return false
	}
	c.seen[d] = struct{}{}
	c.out = append(c.out, Candidate{Domain: d, Type: t})
	return true
}

// validLabel rejects bases shorter than two characters and malformed DNS labels.
func validLabel(s string) bool {
	if len(s) < 2 || len(s) > 63 {
		return false
	}
	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !((ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-') {
			return false
		}
	}
	return true
}
