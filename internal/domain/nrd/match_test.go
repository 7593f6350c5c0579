package nrd

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
)

func acme() *brands.Brand {
	return &brands.Brand{ID: "b1", Name: "Acme", PrimaryDomain: "acme.com", Keywords: []string{"roadrunner", "hp"}}
}

func TestMatchDomainToBrand_Tiers(t *testing.T) {
	b := acme()

	m := MatchDomainToBrand("acme.net", b)
	require.NotNil(t, m)
	assert.Equal(t, MatchExact, m.MatchType)
	assert.Equal(t, 1.0, m.SimilarityScore)

	m = MatchDomainToBrand("acme-login.xyz", b)
	require.NotNil(t, m)
	assert.Equal(t, MatchKeyword, m.MatchType)
	assert.Equal(t, "acme", m.MatchedKeyword)
	assert.Equal(t, 0.9, m.SimilarityScore)

	m = MatchDomainToBrand("cheap-roadrunner.shop", b)
	require.NotNil(t, m)
	assert.Equal(t, "roadrunner", m.MatchedKeyword)

	m = MatchDomainToBrand("acne.com", b)
	require.NotNil(t, m)
	assert.Equal(t, MatchTyposquat, m.MatchType)
	assert.InDelta(t, 0.75, m.SimilarityScore, 1e-9)

	assert.Nil(t, MatchDomainToBrand("acme.com", b))
	assert.Nil(t, MatchDomainToBrand("zebra.org", b))
	assert.Nil(t, MatchDomainToBrand("", b))
}

func TestMatchDomainToBrand_ShortKeywordIgnored(t *testing.T) {
	assert.Nil(t, MatchDomainToBrand("shop-hp.com", &brands.Brand{ID: "b", Name: "Zq", PrimaryDomain: "zqxwv.io", Keywords: []string{"hp"}}))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 0.8, Similarity("acmee", "acme"), 1e-9)
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))
}

func TestIndex_NoFalseNegatives(t *testing.T) {
	bs := []*brands.Brand{
		acme(),
		{ID: "b2", Name: "Globex Corporation", PrimaryDomain: "globex.co.uk"},
		{ID: "b3", Name: "HP", PrimaryDomain: "hp.com"},
		{ID: "b4", Name: "My Shop", PrimaryDomain: "my-shop.io", Keywords: []string{"shoppy"}},
	}
	idx := NewIndex(bs)
	feed := []string{
		"acme.net", "acme-support.com", "globex.com", "globexcorporation.net",
		"hp.net", "my-shop.com", "myshop-deals.net", "shoppy.store", "buyroadrunner.io",
		"unrelated.com", "zz.io", "qwerty.org",
	}
	for i := 0; i < 200; i++ {
		feed = append(feed, fmt.Sprintf("site%dacme.com", i), fmt.Sprintf("x%dq.net", i))
	}
	for _, d := range feed {
		for _, b := range bs {
			m := MatchDomainToBrand(d, b)
			if m != nil && (m.MatchType == MatchExact || m.MatchType == MatchKeyword) {
				assert.True(t, idx.MightMatchAnyBrand(d), "pre-filter dropped %s for %s", d, b.ID)
			}
		}
	}
	assert.False(t, idx.MightMatchAnyBrand("zz.io"))
	assert.False(t, idx.MightMatchAnyBrand("qwerty.org"))
}

func TestMatcher_MatchBatch(t *testing.T) {
	m := NewMatcher([]*brands.Brand{acme()})
	got := m.MatchBatch([]string{"acme.org", "weather.com", "acme.com", "acmeshop.net"})
	require.Len(t, got, 2)
	assert.Equal(t, "acme.org", got[0].Domain)
	assert.Equal(t, MatchExact, got[0].MatchType)
	assert.Equal(t, "acmeshop.net", got[1].Domain)
	assert.Equal(t, MatchKeyword, got[1].MatchType)
}
