package query

import (
	"context"
	"strings"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
)

// Builder composes a backend-agnostic predicate tree from a canonicalized
// FilterSpec. The same tree is used for both the paginated fetch and the
// total-count query, so count and page can never drift apart.
type Builder struct {
	resolver *Resolver
}

// NewBuilder creates a query builder on top of the given category resolver.
func NewBuilder(resolver *Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build returns the predicate for the spec. The second return value is false
// when the filter legitimately matches nothing (a category reference that
// resolved to no category, or a subcategory under the wrong parent); the
// caller must return an empty result set, not an error.
func (b *Builder) Build(ctx context.Context, f domain.FilterSpec) (Predicate, bool, error) {
	preds := []Predicate{
		Cond{Field: FieldIsDeleted, Op: OpEq, Value: false},
		Cond{Field: FieldIsActive, Op: OpEq, Value: true},
	}
	if f.ExcludeFeatured {
		preds = append(preds, Cond{Field: FieldIsFeatured, Op: OpEq, Value: false})
	}

	constraint, err := b.resolver.Resolve(ctx, f.Category, f.Subcategory)
	if err != nil {
		return nil, false, err
	}
	if constraint.Empty {
		return nil, false, nil
	}
	if p := categoryPredicate(constraint); p != nil {
		preds = append(preds, p)
	}

	if f.ProductType != "" {
		preds = append(preds, Cond{Field: FieldProductType, Op: OpEq, Value: f.ProductType})
	}
	if f.MinPrice != nil {
		preds = append(preds, Cond{Field: FieldPrice, Op: OpGte, Value: *f.MinPrice})
	}
	if f.MaxPrice != nil {
		preds = append(preds, Cond{Field: FieldPrice, Op: OpLte, Value: *f.MaxPrice})
	}

	if len(f.Tags) > 0 {
		tagPreds := make([]Predicate, 0, len(f.Tags))
		for _, tag := range f.Tags {
			tagPreds = append(tagPreds, Cond{Field: FieldTag, Op: OpEq, Value: tag})
		}
		preds = append(preds, NewOr(tagPreds...))
	}

	if len(f.Sizes) > 0 {
		sizePreds := make([]Predicate, 0, len(f.Sizes))
		for _, size := range f.Sizes {
			sizePreds = append(sizePreds, Cond{Field: FieldSizeStock, Op: OpGt, Key: size, Value: 0})
		}
		preds = append(preds, NewOr(sizePreds...))
	}

	switch f.Availability {
	case domain.AvailabilityInStock:
		preds = append(preds, Cond{Field: FieldTotalStock, Op: OpGt, Value: 0})
	case domain.AvailabilityOutOfStock:
		preds = append(preds, Cond{Field: FieldTotalStock, Op: OpEq, Value: 0})
	}

	searchPred, err := b.buildSearch(ctx, f.Search, constraint)
	if err != nil {
		return nil, false, err
	}
	if searchPred != nil {
		preds = append(preds, searchPred)
	}

	return NewAnd(preds...), true, nil
}

// buildSearch builds the free-text predicate. Tokens are split on whitespace
// and ANDed: every token must be found somewhere in the product (name,
// description, or a tag), not necessarily in the same field. A token that
// also names a category contributes an extra OR branch matching that
// category's products, so the search box doubles as a category picker.
//
// When a category filter is already active, the category filter wins: a
// search phrase that resolves to the same already-selected category is
// absorbed entirely (the full category is shown rather than double-filtered).
// A phrase matching a different category is not absorbed and is ANDed in
// like any other search.
func (b *Builder) buildSearch(ctx context.Context, search string, constraint CategoryConstraint) (Predicate, error) {
	tokens := strings.Fields(search)
	if len(tokens) == 0 {
		return nil, nil
	}

	if !constraint.IsZero() {
		matched, err := b.resolver.Match(ctx, search)
		if err != nil {
			return nil, err
		}
		if matched != nil && constraint.contains(matched.ID) {
			return nil, nil
		}
	}

	tokenPreds := make([]Predicate, 0, len(tokens))
	for _, token := range tokens {
		branches := []Predicate{
			Cond{Field: FieldName, Op: OpContains, Value: token},
			Cond{Field: FieldDescription, Op: OpContains, Value: token},
			Cond{Field: FieldTag, Op: OpContains, Value: token},
		}

		matched, err := b.resolver.Match(ctx, token)
		if err != nil {
			return nil, err
		}
		if matched != nil {
			branches = append(branches,
				Cond{Field: FieldCategory, Op: OpEq, Value: matched.ID},
				Cond{Field: FieldSubcategory, Op: OpEq, Value: matched.ID},
			)
		}

		tokenPreds = append(tokenPreds, NewOr(branches...))
	}

	if len(tokenPreds) == 1 {
		return tokenPreds[0], nil
	}
	return NewAnd(tokenPreds...), nil
}

func categoryPredicate(c CategoryConstraint) Predicate {
	if c.IsZero() {
		return nil
	}

	var branches []Predicate
	if len(c.CategoryIDs) > 0 {
		branches = append(branches, Cond{Field: FieldCategory, Op: OpIn, Value: c.CategoryIDs})
	}
	if len(c.SubcategoryIDs) > 0 {
		branches = append(branches, Cond{Field: FieldSubcategory, Op: OpIn, Value: c.SubcategoryIDs})
	}

	if len(branches) == 1 {
		return branches[0]
	}
	return NewOr(branches...)
}

func (c CategoryConstraint) contains(id string) bool {
	for _, v := range c.CategoryIDs {
		if v == id {
			return true
		}
	}
	for _, v := range c.SubcategoryIDs {
		if v == id {
			return true
		}
	}
	return false
}
