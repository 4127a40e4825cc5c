package repository

import (
	"context"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/query"
)

// ProductRepository defines read access to the product store.
type ProductRepository interface {
	// GetByID retrieves a product by ID, including soft-deleted ones.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// Search executes the predicate twice in one round trip (items plus
	// window-function total count) so count and page never drift.
	Search(ctx context.Context, pred query.Predicate, sortBy, sortOrder string, page, limit int) ([]domain.Product, int, error)

	// ImagesForProducts returns image metadata for the given products,
	// keyed by product ID. Binary payloads are never loaded.
	ImagesForProducts(ctx context.Context, productIDs []string) (map[string][]domain.ProductImage, error)
}

// CategoryRepository defines read access to the category hierarchy.
type CategoryRepository interface {
	query.CategoryReader
}

// StockRepository defines access to per-size stock buckets. Every mutation
// is a single atomic conditional update at the storage layer, followed in
// the same transaction by a recomputation of the product's total stock, so
// the invariant totalStock == Σ sizeStock holds after every commit.
type StockRepository interface {
	// GetBuckets returns all size buckets for a product.
	GetBuckets(ctx context.Context, productID string) ([]domain.SizeStock, error)

	// GetBucket returns the quantity for one size; 0 if no bucket exists.
	GetBucket(ctx context.Context, productID, size string) (int, error)

	// BucketsForProducts returns buckets for many products, keyed by product ID.
	BucketsForProducts(ctx context.Context, productIDs []string) (map[string][]domain.SizeStock, error)

	// DecrementIfAvailable atomically decrements the bucket only when it
	// holds at least qty. Returns ok=false and mutates nothing otherwise.
	// On success, newTotal is the product's recomputed total stock.
	DecrementIfAvailable(ctx context.Context, productID, size string, qty int) (ok bool, newTotal int, err error)

	// Increment adds qty back to the bucket, creating it if missing.
	Increment(ctx context.Context, productID, size string, qty int) (newTotal int, err error)

	// SetQuantity replaces the bucket quantity (restock).
	SetQuantity(ctx context.Context, productID, size string, qty int) (newTotal int, err error)

	// AlertFlags returns the product's low-stock threshold and alert
	// idempotency flags.
	AlertFlags(ctx context.Context, productID string) (threshold int, lowSent, outSent bool, err error)

	// TryMarkLowAlert flips alert_low_sent to true. Returns true only for
	// the caller that performed the transition, so concurrent mutations
	// dispatch at most one alert.
	TryMarkLowAlert(ctx context.Context, productID string) (bool, error)

	// TryMarkOutAlert flips alert_out_sent to true, same contract.
	TryMarkOutAlert(ctx context.Context, productID string) (bool, error)

	// TryResetAlerts clears both flags. Returns true if either was set.
	TryResetAlerts(ctx context.Context, productID string) (bool, error)
}

// ReservationRepository tracks soft holds on stock.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.StockReservation) error

	GetByID(ctx context.Context, id string) (*domain.StockReservation, error)

	// UpdateStatusIf transitions the reservation from one status to
	// another. Returns false when the reservation is not in the expected
	// status, making release/confirm idempotent under races.
	UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error)

	// ListActiveByCheckout returns all active reservations for a checkout.
	ListActiveByCheckout(ctx context.Context, checkoutID string) ([]domain.StockReservation, error)

	// GetExpired returns active reservations past their expiry.
	GetExpired(ctx context.Context) ([]domain.StockReservation, error)
}
