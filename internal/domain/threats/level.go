package threats

import "github.com/bryanwahyu/brandsentry/internal/domain/variations"

// AssessThreatLevel maps a variation type to a heuristic severity.
// Unregistered candidates are informational only.
func AssessThreatLevel(t variations.Type, registered bool) Severity {
	if !registered {
		return SeverityLow
	}
	switch t {
	case variations.Homoglyph, variations.Typo, variations.MissingLetter:
		return SeverityCritical
	case variations.KeyboardProximity, variations.DoubleLetter, variations.Bitsquat:
		return SeverityHigh
	case variations.VowelSwap, variations.AddedLetter, variations.Hyphen, variations.Subdomain:
		return SeverityMedium
	}
	return SeverityLow
}
