package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

func isNotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

// CategoryReader is the read-only category access the resolver needs.
type CategoryReader interface {
	// GetByID retrieves a category by ID. Returns pkg/errors.ErrNotFound
	// (wrapped or bare) when no category exists.
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// FindActiveByName returns active categories whose name contains the
	// given text, case-insensitively, ordered by name length so the
	// closest match comes first.
	FindActiveByName(ctx context.Context, name string) ([]domain.Category, error)

	// ListChildren returns the direct children of the given category.
	ListChildren(ctx context.Context, parentID string) ([]domain.Category, error)
}

// CategoryConstraint is the resolved category filter. Empty means the
// reference matched nothing: the caller must produce zero results, not an
// error. When CategoryIDs is set, a product matches if its category is in
// CategoryIDs or its subcategory is in SubcategoryIDs.
type CategoryConstraint struct {
	Empty          bool
	CategoryIDs    []string
	SubcategoryIDs []string
}

// IsZero reports whether the constraint carries no filter at all.
func (c CategoryConstraint) IsZero() bool {
	return !c.Empty && len(c.CategoryIDs) == 0 && len(c.SubcategoryIDs) == 0
}

// Resolver turns category/subcategory references (IDs or free-text names)
// into concrete filter constraints, expanding a parent category to itself
// plus all direct children.
type Resolver struct {
	categories CategoryReader
}

// NewResolver creates a category resolver.
func NewResolver(categories CategoryReader) *Resolver {
	return &Resolver{categories: categories}
}

// Resolve resolves the given references into a constraint. A reference that
// matches no category yields an Empty constraint, as does a subcategory whose
// parent is not the resolved category. Both are legitimate non-matching
// filters, not client errors.
func (r *Resolver) Resolve(ctx context.Context, categoryRef, subcategoryRef string) (CategoryConstraint, error) {
	if categoryRef == "" && subcategoryRef == "" {
		return CategoryConstraint{}, nil
	}

	var category *domain.Category
	if categoryRef != "" {
		var err error
		category, err = r.lookup(ctx, categoryRef)
		if err != nil {
			return CategoryConstraint{}, err
		}
		if category == nil {
			return CategoryConstraint{Empty: true}, nil
		}
	}

	if subcategoryRef != "" {
		subcategory, err := r.lookup(ctx, subcategoryRef)
		if err != nil {
			return CategoryConstraint{}, err
		}
		if subcategory == nil {
			return CategoryConstraint{Empty: true}, nil
		}
		if category != nil {
			if subcategory.ParentID == nil || *subcategory.ParentID != category.ID {
				return CategoryConstraint{Empty: true}, nil
			}
		}
		return CategoryConstraint{SubcategoryIDs: []string{subcategory.ID}}, nil
	}

	children, err := r.categories.ListChildren(ctx, category.ID)
	if err != nil {
		return CategoryConstraint{}, fmt.Errorf("list children of %s: %w", category.ID, err)
	}

	childIDs := make([]string, 0, len(children))
	for _, child := range children {
		childIDs = append(childIDs, child.ID)
	}

	return CategoryConstraint{
		CategoryIDs:    []string{category.ID},
		SubcategoryIDs: childIDs,
	}, nil
}

// Match resolves a free-text phrase against active category names. Returns
// nil when nothing matches. Used by the query builder to decide whether a
// search term doubles as a category picker.
func (r *Resolver) Match(ctx context.Context, phrase string) (*domain.Category, error) {
	if phrase == "" {
		return nil, nil
	}
	matches, err := r.categories.FindActiveByName(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("match category name %q: %w", phrase, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// lookup resolves a single reference: UUIDs go through GetByID, anything
// else is treated as a case-insensitive name match. Returns nil (no error)
// when the reference matches nothing.
func (r *Resolver) lookup(ctx context.Context, ref string) (*domain.Category, error) {
	if _, err := uuid.Parse(ref); err == nil {
		category, err := r.categories.GetByID(ctx, ref)
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("get category %s: %w", ref, err)
		}
		if !category.IsActive {
			return nil, nil
		}
		return category, nil
	}

	matches, err := r.categories.FindActiveByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("find category by name %q: %w", ref, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}
