package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/brandsentry/internal/domain/brands"
	"github.com/bryanwahyu/brandsentry/internal/domain/threats"
)

func TestThreatStore_InsertManySkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	ts := NewThreatStore()
	now := time.Now().UTC()

	n, err := ts.InsertMany(ctx, []*threats.Threat{
		{ID: "1", BrandID: "b", Domain: "acme.net", DetectedAt: now},
		{ID: "2", BrandID: "b", Domain: "acme.net", DetectedAt: now},
		{ID: "3", BrandID: "b", URL: "https://acme.net/login", Domain: "acme.net", DetectedAt: now.Add(time.Second)},
		{ID: "4", BrandID: "other", Domain: "acme.net", DetectedAt: now},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, _ := ts.ExistsByDomain(ctx, "b", "acme.net")
	assert.True(t, ok)
	ok, _ = ts.ExistsByURL(ctx, "b", "https://acme.net/other")
	assert.False(t, ok)

	page, err := ts.ListByBrand(ctx, "b", 1, 1)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "3", page.Data[0].ID)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)

	page, err = ts.ListByBrand(ctx, "b", 5, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
}

func TestBrandStore_RefreshThreatCount(t *testing.T) {
	ctx := context.Background()
	ts := NewThreatStore()
	bs := NewBrandStore(ts, &brands.Brand{ID: "b", Name: "Acme", PrimaryDomain: "acme.com"})

	_, err := ts.InsertMany(ctx, []*threats.Threat{
		{ID: "1", BrandID: "b", Domain: "acme.net"},
		{ID: "2", BrandID: "b", Domain: "acme.org", Status: threats.StatusDismissed},
		{ID: "3", BrandID: "b", Domain: "acme.io", Status: threats.StatusConfirmed},
	})
	require.NoError(t, err)

	n, err := bs.RefreshThreatCount(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := bs.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, b.UnresolvedThreats)

	_, err = bs.RefreshThreatCount(ctx, "missing")
	assert.ErrorIs(t, err, brands.ErrNotFound)
}
