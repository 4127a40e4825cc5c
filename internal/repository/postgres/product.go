package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/query"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/database"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

const productColumns = `p.id, p.name, p.description, p.price, p.category_id, p.subcategory_id,
	   p.product_type, p.tags, p.total_stock, p.low_stock_threshold,
	   p.is_active, p.is_deleted, p.is_featured, p.alert_low_sent, p.alert_out_sent,
	   p.created_at, p.updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	var p domain.Product
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.SubcategoryID,
		&p.ProductType, &p.Tags, &p.TotalStock, &p.LowStockThreshold,
		&p.IsActive, &p.IsDeleted, &p.IsFeatured, &p.AlertLowSent, &p.AlertOutSent,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// Search executes the compiled predicate once, fetching the page of items and
// the total count together via count(*) OVER(). Running both through one
// statement guarantees the count matches the page.
func (r *ProductRepository) Search(ctx context.Context, pred query.Predicate, sortBy, sortOrder string, page, limit int) ([]domain.Product, int, error) {
	where, args, err := CompilePredicate(pred)
	if err != nil {
		return nil, 0, fmt.Errorf("compile predicate: %w", err)
	}

	if limit <= 0 {
		limit = domain.DefaultPageLimit
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	sql := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products p
		WHERE %s
		ORDER BY %s %s, p.id
		LIMIT $%d OFFSET $%d`,
		productColumns, where, sortColumn(sortBy), sortDirection(sortOrder), len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.SubcategoryID,
			&p.ProductType, &p.Tags, &p.TotalStock, &p.LowStockThreshold,
			&p.IsActive, &p.IsDeleted, &p.IsFeatured, &p.AlertLowSent, &p.AlertOutSent,
			&p.CreatedAt, &p.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}

	// count(*) OVER() rides on the item rows, so a page past the end returns
	// no rows and would report a total of zero. Rerun the count alone with
	// the same predicate so the pagination envelope stays truthful.
	if products == nil && offset > 0 {
		countSQL := `SELECT count(*) FROM products p WHERE ` + where
		if err := r.pool.QueryRow(ctx, countSQL, args[:len(args)-2]...).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count products: %w", err)
		}
	}

	if products == nil {
		products = []domain.Product{}
	}

	return products, totalCount, nil
}

// ImagesForProducts returns image metadata for the given products, keyed by
// product ID. The binary data column is deliberately never selected.
func (r *ProductRepository) ImagesForProducts(ctx context.Context, productIDs []string) (map[string][]domain.ProductImage, error) {
	result := make(map[string][]domain.ProductImage, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	sql := `
		SELECT id, product_id, url, caption, is_primary, sort_order
		FROM product_images
		WHERE product_id = ANY($1)
		ORDER BY product_id, sort_order`

	rows, err := r.pool.Query(ctx, sql, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.Caption, &img.IsPrimary, &img.SortOrder); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		result[img.ProductID] = append(result[img.ProductID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}

	return result, nil
}
