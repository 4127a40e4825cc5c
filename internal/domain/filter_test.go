package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestFilterSpec_Canonicalize(t *testing.T) {
	f := FilterSpec{
		Search:   "  Naruto Shirt  ",
		Category: " Anime ",
		Tags:     []string{"Shonen", "shonen", " classic ", ""},
		Sizes:    []string{"m", "s", "M"},
	}
	require.NoError(t, f.Canonicalize())

	assert.Equal(t, "naruto shirt", f.Search)
	assert.Equal(t, "anime", f.Category)
	assert.Equal(t, []string{"classic", "shonen"}, f.Tags)
	assert.Equal(t, []string{"M", "S"}, f.Sizes)
	assert.Equal(t, SortByCreatedAt, f.SortBy)
	assert.Equal(t, SortOrderDesc, f.SortOrder)
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, DefaultPageLimit, f.Limit)
}

func TestFilterSpec_Canonicalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec FilterSpec
	}{
		{"unknown size", FilterSpec{Sizes: []string{"XS"}}},
		{"bad availability", FilterSpec{Availability: "maybe"}},
		{"bad sort field", FilterSpec{SortBy: "popularity"}},
		{"bad sort order", FilterSpec{SortOrder: "sideways"}},
		{"negative min price", FilterSpec{MinPrice: int64Ptr(-1)}},
		{"inverted price range", FilterSpec{MinPrice: int64Ptr(500), MaxPrice: int64Ptr(100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.spec.Canonicalize())
		})
	}
}

func TestFilterSpec_CacheKey_EquivalentRequestsCollapse(t *testing.T) {
	a := FilterSpec{Search: "  Naruto ", Tags: []string{"Shonen", "Classic"}, Sizes: []string{"m", "s"}}
	b := FilterSpec{Search: "naruto", Tags: []string{"classic", "shonen", "classic"}, Sizes: []string{"S", "M"}}

	require.NoError(t, a.Canonicalize())
	require.NoError(t, b.Canonicalize())

	assert.Equal(t, a.CacheKey(), b.CacheKey())
}

func TestFilterSpec_CacheKey_DistinctFilters(t *testing.T) {
	a := FilterSpec{Search: "naruto"}
	b := FilterSpec{Search: "bleach"}
	require.NoError(t, a.Canonicalize())
	require.NoError(t, b.Canonicalize())

	assert.NotEqual(t, a.CacheKey(), b.CacheKey())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(25, 3, 10, 5)
	assert.Equal(t, 3, p.CurrentPage)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 25, p.TotalProducts)
	assert.False(t, p.HasMore)

	p = NewPagination(25, 1, 10, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasMore)

	p = NewPagination(0, 1, 10, 0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasMore)
}

func TestNewProductView(t *testing.T) {
	p := Product{ID: "p1", Name: "Naruto Tee", TotalStock: 7}
	buckets := []SizeStock{{Size: SizeM, Quantity: 4}, {Size: SizeL, Quantity: 0}, {Size: SizeXL, Quantity: 3}}

	view := NewProductView(p, buckets, nil)

	assert.True(t, view.SizeAvailability[SizeM])
	assert.False(t, view.SizeAvailability[SizeL])
	assert.True(t, view.SizeAvailability[SizeXL])
	assert.False(t, view.SizeAvailability[SizeS])
	assert.False(t, view.SizeAvailability[SizeXXL])
	assert.NotNil(t, view.Images)
}

func TestAlertStateFor(t *testing.T) {
	assert.Equal(t, AlertStateNormal, AlertStateFor(10, 5))
	assert.Equal(t, AlertStateLowStockNotified, AlertStateFor(5, 5))
	assert.Equal(t, AlertStateLowStockNotified, AlertStateFor(1, 5))
	assert.Equal(t, AlertStateOutOfStock, AlertStateFor(0, 5))
}

func TestIsLowStock(t *testing.T) {
	assert.True(t, IsLowStock(3, 5))
	assert.True(t, IsLowStock(5, 5))
	assert.False(t, IsLowStock(0, 5))
	assert.False(t, IsLowStock(6, 5))
}
