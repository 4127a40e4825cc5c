package query

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

// fakeCategoryReader is an in-memory CategoryReader for resolver tests.
type fakeCategoryReader struct {
	categories []domain.Category
}

func (f *fakeCategoryReader) GetByID(_ context.Context, id string) (*domain.Category, error) {
	for _, c := range f.categories {
		if c.ID == id {
			cc := c
			return &cc, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeCategoryReader) FindActiveByName(_ context.Context, name string) ([]domain.Category, error) {
	var matches []domain.Category
	for _, c := range f.categories {
		if c.IsActive && strings.Contains(strings.ToLower(c.Name), strings.ToLower(name)) {
			matches = append(matches, c)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return len(matches[i].Name) < len(matches[j].Name)
	})
	return matches, nil
}

func (f *fakeCategoryReader) ListChildren(_ context.Context, parentID string) ([]domain.Category, error) {
	var children []domain.Category
	for _, c := range f.categories {
		if c.ParentID != nil && *c.ParentID == parentID {
			children = append(children, c)
		}
	}
	return children, nil
}

const (
	animeID  = "0d9e4c2a-1111-4c7e-9a10-000000000001"
	narutoID = "0d9e4c2a-1111-4c7e-9a10-000000000002"
	bleachID = "0d9e4c2a-1111-4c7e-9a10-000000000003"
	gamingID = "0d9e4c2a-1111-4c7e-9a10-000000000004"
)

func strPtr(s string) *string { return &s }

func testCategories() *fakeCategoryReader {
	return &fakeCategoryReader{categories: []domain.Category{
		{ID: animeID, Name: "Anime", IsActive: true},
		{ID: narutoID, Name: "Naruto", ParentID: strPtr(animeID), Level: 1, IsActive: true},
		{ID: bleachID, Name: "Bleach", ParentID: strPtr(animeID), Level: 1, IsActive: true},
		{ID: gamingID, Name: "Gaming", IsActive: true},
	}}
}

// evalPredicate interprets a predicate tree against an in-memory product,
// mirroring the semantics every storage adapter must implement.
func evalPredicate(t *testing.T, p Predicate, prod domain.Product, buckets map[string]int) bool {
	t.Helper()
	switch node := p.(type) {
	case And:
		for _, sub := range node.Preds {
			if !evalPredicate(t, sub, prod, buckets) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range node.Preds {
			if evalPredicate(t, sub, prod, buckets) {
				return true
			}
		}
		return false
	case Cond:
		return evalCond(t, node, prod, buckets)
	default:
		t.Fatalf("unknown predicate node %T", p)
		return false
	}
}

func evalCond(t *testing.T, c Cond, prod domain.Product, buckets map[string]int) bool {
	t.Helper()
	contains := func(haystack string) bool {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(c.Value.(string)))
	}
	ref := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}

	switch c.Field {
	case FieldName:
		return contains(prod.Name)
	case FieldDescription:
		return contains(prod.Description)
	case FieldTag:
		for _, tag := range prod.Tags {
			if c.Op == OpEq && tag == c.Value.(string) {
				return true
			}
			if c.Op == OpContains && strings.Contains(strings.ToLower(tag), strings.ToLower(c.Value.(string))) {
				return true
			}
		}
		return false
	case FieldCategory:
		return evalRef(c, ref(prod.CategoryID))
	case FieldSubcategory:
		return evalRef(c, ref(prod.SubcategoryID))
	case FieldProductType:
		return prod.ProductType == c.Value.(string)
	case FieldPrice:
		v := c.Value.(int64)
		if c.Op == OpGte {
			return prod.Price >= v
		}
		return prod.Price <= v
	case FieldTotalStock:
		v := c.Value.(int)
		if c.Op == OpGt {
			return prod.TotalStock > v
		}
		return prod.TotalStock == v
	case FieldSizeStock:
		return buckets[c.Key] > c.Value.(int)
	case FieldIsActive:
		return prod.IsActive == c.Value.(bool)
	case FieldIsDeleted:
		return prod.IsDeleted == c.Value.(bool)
	case FieldIsFeatured:
		return prod.IsFeatured == c.Value.(bool)
	default:
		t.Fatalf("unknown field %q", c.Field)
		return false
	}
}

func evalRef(c Cond, value string) bool {
	switch c.Op {
	case OpEq:
		return value == c.Value.(string)
	case OpIn:
		for _, id := range c.Value.([]string) {
			if value == id {
				return true
			}
		}
	}
	return false
}

func TestResolver_CategoryExpandsToChildren(t *testing.T) {
	r := NewResolver(testCategories())

	constraint, err := r.Resolve(context.Background(), animeID, "")
	require.NoError(t, err)

	assert.False(t, constraint.Empty)
	assert.Equal(t, []string{animeID}, constraint.CategoryIDs)
	assert.ElementsMatch(t, []string{narutoID, bleachID}, constraint.SubcategoryIDs)
}

func TestResolver_NameLookupCaseInsensitive(t *testing.T) {
	r := NewResolver(testCategories())

	constraint, err := r.Resolve(context.Background(), "anime", "")
	require.NoError(t, err)

	assert.Equal(t, []string{animeID}, constraint.CategoryIDs)
}

func TestResolver_UnknownReferenceYieldsEmpty(t *testing.T) {
	r := NewResolver(testCategories())

	constraint, err := r.Resolve(context.Background(), "one piece", "")
	require.NoError(t, err)
	assert.True(t, constraint.Empty)

	constraint, err = r.Resolve(context.Background(), "0d9e4c2a-1111-4c7e-9a10-0000000000ff", "")
	require.NoError(t, err)
	assert.True(t, constraint.Empty)
}

func TestResolver_SubcategoryOnly(t *testing.T) {
	r := NewResolver(testCategories())

	constraint, err := r.Resolve(context.Background(), "", narutoID)
	require.NoError(t, err)

	assert.Empty(t, constraint.CategoryIDs)
	assert.Equal(t, []string{narutoID}, constraint.SubcategoryIDs)
}

func TestResolver_SubcategoryParentMismatchYieldsEmpty(t *testing.T) {
	r := NewResolver(testCategories())

	constraint, err := r.Resolve(context.Background(), gamingID, narutoID)
	require.NoError(t, err)
	assert.True(t, constraint.Empty)
}

func TestBuilder_CategoryHierarchyMatching(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Category: animeID}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	inCategory := domain.Product{IsActive: true, CategoryID: strPtr(animeID)}
	inSubcategory := domain.Product{IsActive: true, SubcategoryID: strPtr(bleachID)}
	elsewhere := domain.Product{IsActive: true, CategoryID: strPtr(gamingID)}

	assert.True(t, evalPredicate(t, pred, inCategory, nil))
	assert.True(t, evalPredicate(t, pred, inSubcategory, nil))
	assert.False(t, evalPredicate(t, pred, elsewhere, nil))
}

func TestBuilder_BaseExcludesDeletedAndInactive(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, evalPredicate(t, pred, domain.Product{IsActive: true}, nil))
	assert.False(t, evalPredicate(t, pred, domain.Product{IsActive: true, IsDeleted: true}, nil))
	assert.False(t, evalPredicate(t, pred, domain.Product{IsActive: false}, nil))
}

func TestBuilder_UnresolvedCategoryYieldsNoMatch(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Category: "one piece"}
	require.NoError(t, spec.Canonicalize())

	_, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBuilder_MultiTokenSearch(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Search: "naruto shirt"}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	p1 := domain.Product{IsActive: true, Name: "Naruto Tee"}
	p2 := domain.Product{IsActive: true, Name: "Plain", Description: "a shirt for anime fans"}
	p3 := domain.Product{IsActive: true, Name: "Naruto Anime Shirt"}

	assert.False(t, evalPredicate(t, pred, p1, nil), "P1 lacks the token shirt")
	assert.False(t, evalPredicate(t, pred, p2, nil), "P2 lacks the token naruto")
	assert.True(t, evalPredicate(t, pred, p3, nil))
}

func TestBuilder_TokensMatchAcrossFields(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Search: "naruto shirt"}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	// "naruto" in the name, "shirt" only in a tag.
	p := domain.Product{IsActive: true, Name: "Naruto Classic", Tags: []string{"t-shirt"}}
	assert.True(t, evalPredicate(t, pred, p, nil))
}

func TestBuilder_SearchTokenDoublesAsCategoryPicker(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Search: "naruto"}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	// No text match, but the product lives in the Naruto subcategory.
	p := domain.Product{IsActive: true, Name: "Hidden Leaf Hoodie", SubcategoryID: strPtr(narutoID)}
	assert.True(t, evalPredicate(t, pred, p, nil))
}

func TestBuilder_SearchAbsorbedByMatchingCategoryFilter(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Category: animeID, Search: "anime"}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	// The search phrase names the already-selected category, so it is
	// dropped: a product in the category matches even though its text
	// fields never mention "anime".
	p := domain.Product{IsActive: true, Name: "Hollow Mask Tee", CategoryID: strPtr(animeID)}
	assert.True(t, evalPredicate(t, pred, p, nil))
}

func TestBuilder_SearchForDifferentCategoryNotAbsorbed(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Category: gamingID, Search: "anime"}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	// Category filter always wins: the search term matches a different
	// category, so it stays ANDed with the gaming filter. A gaming
	// product without "anime" anywhere must not match.
	p := domain.Product{IsActive: true, Name: "Retro Controller Tee", CategoryID: strPtr(gamingID)}
	assert.False(t, evalPredicate(t, pred, p, nil))

	// A gaming product mentioning anime in its description does.
	p.Description = "for anime and gaming fans alike"
	assert.True(t, evalPredicate(t, pred, p, nil))
}

func TestBuilder_SizeAndAvailabilityFilters(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	spec := domain.FilterSpec{Sizes: []string{"M", "L"}, Availability: domain.AvailabilityInStock}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	inStock := domain.Product{IsActive: true, TotalStock: 4}
	assert.True(t, evalPredicate(t, pred, inStock, map[string]int{"M": 4}))
	assert.True(t, evalPredicate(t, pred, inStock, map[string]int{"L": 1}))
	assert.False(t, evalPredicate(t, pred, inStock, map[string]int{"S": 4}))

	soldOut := domain.Product{IsActive: true, TotalStock: 0}
	assert.False(t, evalPredicate(t, pred, soldOut, map[string]int{"M": 0}))
}

func TestBuilder_PriceAndTagFilters(t *testing.T) {
	b := NewBuilder(NewResolver(testCategories()))

	minP, maxP := int64(500), int64(1500)
	spec := domain.FilterSpec{MinPrice: &minP, MaxPrice: &maxP, Tags: []string{"shonen", "classic"}}
	require.NoError(t, spec.Canonicalize())

	pred, ok, err := b.Build(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, evalPredicate(t, pred, domain.Product{IsActive: true, Price: 999, Tags: []string{"shonen"}}, nil))
	assert.False(t, evalPredicate(t, pred, domain.Product{IsActive: true, Price: 2000, Tags: []string{"shonen"}}, nil))
	assert.False(t, evalPredicate(t, pred, domain.Product{IsActive: true, Price: 999, Tags: []string{"mecha"}}, nil))
}
