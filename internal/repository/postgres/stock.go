package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/database"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

// StockRepository implements repository.StockRepository and
// repository.ReservationRepository using PostgreSQL. Stock mutations are
// single conditional UPDATEs — the guard and the decrement execute in one
// statement server-side, so two concurrent checkouts can never both pass a
// stale check (the lost-update race a read-modify-write pair would have).
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetBuckets returns all size buckets for a product.
func (r *StockRepository) GetBuckets(ctx context.Context, productID string) ([]domain.SizeStock, error) {
	sql := `SELECT size, quantity FROM product_stock WHERE product_id = $1 ORDER BY size`

	rows, err := r.pool.Query(ctx, sql, productID)
	if err != nil {
		return nil, fmt.Errorf("get stock buckets: %w", err)
	}
	defer rows.Close()

	var buckets []domain.SizeStock
	for rows.Next() {
		var b domain.SizeStock
		if err := rows.Scan(&b.Size, &b.Quantity); err != nil {
			return nil, fmt.Errorf("scan stock bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock buckets: %w", err)
	}

	return buckets, nil
}

// GetBucket returns the quantity for one size bucket; 0 when no bucket row
// exists yet.
func (r *StockRepository) GetBucket(ctx context.Context, productID, size string) (int, error) {
	sql := `SELECT quantity FROM product_stock WHERE product_id = $1 AND size = $2`

	var quantity int
	err := r.pool.QueryRow(ctx, sql, productID, size).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get stock bucket: %w", err)
	}
	return quantity, nil
}

// BucketsForProducts returns buckets for many products, keyed by product ID.
func (r *StockRepository) BucketsForProducts(ctx context.Context, productIDs []string) (map[string][]domain.SizeStock, error) {
	result := make(map[string][]domain.SizeStock, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	sql := `SELECT product_id, size, quantity FROM product_stock WHERE product_id = ANY($1) ORDER BY product_id, size`

	rows, err := r.pool.Query(ctx, sql, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list stock buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			b         domain.SizeStock
		)
		if err := rows.Scan(&productID, &b.Size, &b.Quantity); err != nil {
			return nil, fmt.Errorf("scan stock bucket: %w", err)
		}
		result[productID] = append(result[productID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock buckets: %w", err)
	}

	return result, nil
}

// DecrementIfAvailable atomically decrements the bucket when it holds at
// least qty, then recomputes the product's total stock in the same
// transaction. The quantity >= qty guard in the UPDATE is what makes
// concurrent reservations safe: only one of two competing decrements for the
// last units can match the row.
func (r *StockRepository) DecrementIfAvailable(ctx context.Context, productID, size string, qty int) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("begin decrement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE product_stock
		SET quantity = quantity - $3, updated_at = NOW()
		WHERE product_id = $1 AND size = $2 AND quantity >= $3`,
		productID, size, qty,
	)
	if err != nil {
		return false, 0, fmt.Errorf("decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, 0, nil
	}

	newTotal, err := syncTotalStock(ctx, tx, productID)
	if err != nil {
		return false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("commit decrement: %w", err)
	}
	return true, newTotal, nil
}

// Increment adds qty back to the bucket, creating it if missing, and
// recomputes the product's total stock in the same transaction.
func (r *StockRepository) Increment(ctx context.Context, productID, size string, qty int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin increment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO product_stock (product_id, size, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, size) DO UPDATE SET
			quantity = product_stock.quantity + $3,
			updated_at = NOW()`,
		productID, size, qty,
	)
	if err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}

	newTotal, err := syncTotalStock(ctx, tx, productID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit increment: %w", err)
	}
	return newTotal, nil
}

// SetQuantity replaces the bucket quantity (restock) and recomputes the
// product's total stock in the same transaction.
func (r *StockRepository) SetQuantity(ctx context.Context, productID, size string, qty int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin restock: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO product_stock (product_id, size, quantity, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id, size) DO UPDATE SET
			quantity = $3,
			updated_at = NOW()`,
		productID, size, qty,
	)
	if err != nil {
		return 0, fmt.Errorf("restock: %w", err)
	}

	newTotal, err := syncTotalStock(ctx, tx, productID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit restock: %w", err)
	}
	return newTotal, nil
}

// syncTotalStock recomputes the denormalized total from the buckets. Runs
// inside the mutation's transaction so the invariant holds at commit.
func syncTotalStock(ctx context.Context, tx pgx.Tx, productID string) (int, error) {
	var newTotal int
	err := tx.QueryRow(ctx, `
		UPDATE products
		SET total_stock = (SELECT COALESCE(SUM(quantity), 0) FROM product_stock WHERE product_id = $1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING total_stock`,
		productID,
	).Scan(&newTotal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("product", productID)
		}
		return 0, fmt.Errorf("sync total stock: %w", err)
	}
	return newTotal, nil
}

// AlertFlags returns the product's low-stock threshold and alert flags.
func (r *StockRepository) AlertFlags(ctx context.Context, productID string) (int, bool, bool, error) {
	sql := `SELECT low_stock_threshold, alert_low_sent, alert_out_sent FROM products WHERE id = $1`

	var (
		threshold        int
		lowSent, outSent bool
	)
	err := r.pool.QueryRow(ctx, sql, productID).Scan(&threshold, &lowSent, &outSent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, false, apperrors.NotFound("product", productID)
		}
		return 0, false, false, fmt.Errorf("get alert flags: %w", err)
	}
	return threshold, lowSent, outSent, nil
}

// TryMarkLowAlert flips alert_low_sent to true. The WHERE guard makes the
// transition exclusive: under concurrent mutations only one caller sees
// RowsAffected=1 and dispatches the alert.
func (r *StockRepository) TryMarkLowAlert(ctx context.Context, productID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE products SET alert_low_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT alert_low_sent`,
		productID,
	)
	if err != nil {
		return false, fmt.Errorf("mark low alert: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// TryMarkOutAlert flips alert_out_sent to true, same exclusivity contract as
// TryMarkLowAlert.
func (r *StockRepository) TryMarkOutAlert(ctx context.Context, productID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE products SET alert_out_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT alert_out_sent`,
		productID,
	)
	if err != nil {
		return false, fmt.Errorf("mark out alert: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// TryResetAlerts clears both alert flags once stock recovers above the
// threshold. Returns true if either flag was set.
func (r *StockRepository) TryResetAlerts(ctx context.Context, productID string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE products SET alert_low_sent = FALSE, alert_out_sent = FALSE, updated_at = NOW()
		WHERE id = $1 AND (alert_low_sent OR alert_out_sent)`,
		productID,
	)
	if err != nil {
		return false, fmt.Errorf("reset alerts: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ---------------------------------------------------------------------------
// ReservationRepository implementation
// ---------------------------------------------------------------------------

// Create inserts a new stock reservation.
func (r *StockRepository) Create(ctx context.Context, reservation *domain.StockReservation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stock_reservations (id, product_id, size, quantity, checkout_id, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		reservation.ID,
		reservation.ProductID,
		reservation.Size,
		reservation.Quantity,
		reservation.CheckoutID,
		reservation.Status,
		reservation.ExpiresAt,
		reservation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// GetByID retrieves a reservation by its ID.
func (r *StockRepository) GetByID(ctx context.Context, id string) (*domain.StockReservation, error) {
	sql := `
		SELECT id, product_id, size, quantity, checkout_id, status, expires_at, created_at
		FROM stock_reservations
		WHERE id = $1`

	var res domain.StockReservation
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&res.ID, &res.ProductID, &res.Size, &res.Quantity,
		&res.CheckoutID, &res.Status, &res.ExpiresAt, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("reservation", id)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return &res, nil
}

// UpdateStatusIf transitions the reservation from one status to another.
// Returns false when the reservation is not currently in the expected
// status, so release and confirm stay idempotent under retries.
func (r *StockRepository) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE stock_reservations SET status = $3
		WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("update reservation status: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListActiveByCheckout returns all active reservations for a checkout.
func (r *StockRepository) ListActiveByCheckout(ctx context.Context, checkoutID string) ([]domain.StockReservation, error) {
	sql := `
		SELECT id, product_id, size, quantity, checkout_id, status, expires_at, created_at
		FROM stock_reservations
		WHERE checkout_id = $1 AND status = 'active'
		ORDER BY created_at`

	return r.listReservations(ctx, sql, checkoutID)
}

// GetExpired returns active reservations past their expiry.
func (r *StockRepository) GetExpired(ctx context.Context) ([]domain.StockReservation, error) {
	sql := `
		SELECT id, product_id, size, quantity, checkout_id, status, expires_at, created_at
		FROM stock_reservations
		WHERE status = 'active' AND expires_at < $1
		ORDER BY expires_at`

	return r.listReservations(ctx, sql, time.Now().UTC())
}

func (r *StockRepository) listReservations(ctx context.Context, sql string, args ...any) ([]domain.StockReservation, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.StockReservation
	for rows.Next() {
		var res domain.StockReservation
		if err := rows.Scan(
			&res.ID, &res.ProductID, &res.Size, &res.Quantity,
			&res.CheckoutID, &res.Status, &res.ExpiresAt, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}

	return reservations, nil
}
