package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/database"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

const categoryColumns = `id, name, slug, parent_id, level, is_active, created_at, updated_at`

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

// NewCategoryRepository creates a PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// GetByID retrieves a category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	sql := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	var c domain.Category
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.Level, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &c, nil
}

// FindActiveByName returns active categories whose name contains the given
// text, case-insensitively. Shorter names sort first so the closest match
// leads.
func (r *CategoryRepository) FindActiveByName(ctx context.Context, name string) ([]domain.Category, error) {
	sql := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_active AND name ILIKE '%' || $1 || '%'
		ORDER BY length(name), name`

	return r.list(ctx, sql, name)
}

// ListChildren returns the direct children of the given category.
func (r *CategoryRepository) ListChildren(ctx context.Context, parentID string) ([]domain.Category, error) {
	sql := `SELECT ` + categoryColumns + ` FROM categories WHERE parent_id = $1 ORDER BY name`
	return r.list(ctx, sql, parentID)
}

func (r *CategoryRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Category, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ParentID, &c.Level, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}
