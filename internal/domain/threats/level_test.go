package threats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/brandsentry/internal/domain/variations"
)

var allTypes = []variations.Type{
	variations.Typo, variations.Homoglyph, variations.Hyphen, variations.TLDSwap,
	variations.Subdomain, variations.Bitsquat, variations.VowelSwap, variations.DoubleLetter,
	variations.MissingLetter, variations.AddedLetter, variations.KeyboardProximity,
}

func TestAssessThreatLevel_UnregisteredIsAlwaysLow(t *testing.T) {
	for _, vt := range allTypes {
		assert.Equal(t, SeverityLow, AssessThreatLevel(vt, false), vt)
	}
	assert.Equal(t, SeverityLow, AssessThreatLevel("unknown", false))
}

func TestAssessThreatLevel_Registered(t *testing.T) {
	cases := map[variations.Type]Severity{
		variations.MissingLetter:     SeverityCritical,
		variations.Homoglyph:         SeverityCritical,
		variations.Typo:              SeverityCritical,
		variations.KeyboardProximity: SeverityHigh,
		variations.DoubleLetter:      SeverityHigh,
		variations.Bitsquat:          SeverityHigh,
		variations.VowelSwap:         SeverityMedium,
		variations.AddedLetter:       SeverityMedium,
		variations.Hyphen:            SeverityMedium,
		variations.Subdomain:         SeverityMedium,
		variations.TLDSwap:           SeverityLow,
	}
	for vt, want := range cases {
		assert.Equal(t, want, AssessThreatLevel(vt, true), vt)
	}
}

func TestAssessThreatLevel_AcrneMissingLetter(t *testing.T) {
	assert.Equal(t, SeverityCritical, AssessThreatLevel(variations.MissingLetter, true))
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityCritical.AtLeast(SeverityHigh))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityLow.AtLeast(""))
}

func TestThreatDedupKey(t *testing.T) {
	assert.Equal(t, "url:https://x.test/login", (&Threat{URL: "https://x.test/login", Domain: "x.test"}).DedupKey())
	assert.Equal(t, "domain:acm.com", (&Threat{Domain: "acm.com"}).DedupKey())
}
