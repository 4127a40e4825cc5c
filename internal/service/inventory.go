package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/event"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/repository"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

// ReserveItem is one line of a multi-item reservation request.
type ReserveItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// InventoryService implements the stock operations: availability checks,
// hard-hold reservations with compensating rollback, order-driven decrements,
// and restocking. Every committed mutation invalidates the product's entity
// cache, publishes inventory.updated, and re-evaluates the alert state.
type InventoryService struct {
	products       repository.ProductRepository
	stock          repository.StockRepository
	reservations   repository.ReservationRepository
	cache          ResultCache
	publisher      event.Publisher
	logger         *slog.Logger
	reservationTTL time.Duration
}

// NewInventoryService creates the inventory service.
func NewInventoryService(
	products repository.ProductRepository,
	stock repository.StockRepository,
	reservations repository.ReservationRepository,
	cache ResultCache,
	publisher event.Publisher,
	logger *slog.Logger,
	reservationTTL time.Duration,
) *InventoryService {
	return &InventoryService{
		products:       products,
		stock:          stock,
		reservations:   reservations,
		cache:          cache,
		publisher:      publisher,
		logger:         logger,
		reservationTTL: reservationTTL,
	}
}

// GetStock returns the product's total stock and its per-size buckets.
func (s *InventoryService) GetStock(ctx context.Context, productID string) (int, []domain.SizeStock, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return 0, nil, fmt.Errorf("get product: %w", err)
	}

	buckets, err := s.stock.GetBuckets(ctx, productID)
	if err != nil {
		return 0, nil, fmt.Errorf("get stock buckets: %w", err)
	}
	if buckets == nil {
		buckets = []domain.SizeStock{}
	}

	return product.TotalStock, buckets, nil
}

// GetSizeStock returns the quantity on hand for one size bucket.
func (s *InventoryService) GetSizeStock(ctx context.Context, productID, size string) (int, error) {
	if !domain.IsValidSize(size) {
		return 0, apperrors.InvalidInput("unknown size: " + size)
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return 0, fmt.Errorf("get product: %w", err)
	}
	return s.stock.GetBucket(ctx, productID, size)
}

// CheckAvailability reports whether the requested quantity is on hand for the
// given size, along with the current bucket quantity.
func (s *InventoryService) CheckAvailability(ctx context.Context, productID, size string, quantity int) (bool, int, error) {
	if !domain.IsValidSize(size) {
		return false, 0, apperrors.InvalidInput("unknown size: " + size)
	}
	if quantity <= 0 {
		return false, 0, apperrors.InvalidInput("quantity must be positive")
	}

	available, err := s.stock.GetBucket(ctx, productID, size)
	if err != nil {
		return false, 0, fmt.Errorf("check availability: %w", err)
	}
	return available >= quantity, available, nil
}

// Reserve places hard holds for every item of a checkout: each bucket is
// decremented up front, so held stock is invisible to other buyers. The
// operation is all-or-nothing — when any item cannot be covered, the holds
// already taken are compensated (stock restored, reservations released) and
// the whole call fails with an insufficient-stock error for the item that
// broke it.
func (s *InventoryService) Reserve(ctx context.Context, checkoutID string, items []ReserveItem) ([]string, error) {
	if checkoutID == "" {
		return nil, apperrors.InvalidInput("checkout_id is required")
	}
	if len(items) == 0 {
		return nil, apperrors.InvalidInput("items list cannot be empty")
	}
	for _, item := range items {
		if !domain.IsValidSize(item.Size) {
			return nil, apperrors.InvalidInput("unknown size: " + item.Size)
		}
		if item.Quantity <= 0 {
			return nil, apperrors.InvalidInput("quantity must be positive")
		}
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.reservationTTL)

	committed := make([]domain.StockReservation, 0, len(items))
	reservationIDs := make([]string, 0, len(items))

	for _, item := range items {
		ok, newTotal, err := s.stock.DecrementIfAvailable(ctx, item.ProductID, item.Size, item.Quantity)
		if err != nil {
			s.rollbackHolds(ctx, committed)
			return nil, fmt.Errorf("reserve stock: %w", err)
		}
		if !ok {
			s.rollbackHolds(ctx, committed)
			available, availErr := s.stock.GetBucket(ctx, item.ProductID, item.Size)
			if availErr != nil {
				available = 0
			}
			return nil, apperrors.InsufficientStock(item.ProductID, item.Size, item.Quantity, available)
		}

		reservation := domain.StockReservation{
			ID:         uuid.New().String(),
			ProductID:  item.ProductID,
			Size:       item.Size,
			Quantity:   item.Quantity,
			CheckoutID: checkoutID,
			Status:     domain.ReservationStatusActive,
			ExpiresAt:  expiresAt,
			CreatedAt:  now,
		}
		if err := s.reservations.Create(ctx, &reservation); err != nil {
			// The decrement committed but the hold record did not: put the
			// stock back before failing.
			if _, incErr := s.stock.Increment(ctx, item.ProductID, item.Size, item.Quantity); incErr != nil {
				s.logger.ErrorContext(ctx, "failed to restore stock after reservation insert failure",
					slog.String("product_id", item.ProductID),
					slog.String("size", item.Size),
					slog.String("error", incErr.Error()),
				)
			}
			s.rollbackHolds(ctx, committed)
			return nil, fmt.Errorf("create reservation: %w", err)
		}

		committed = append(committed, reservation)
		reservationIDs = append(reservationIDs, reservation.ID)
		s.afterMutation(ctx, item.ProductID, item.Size, newTotal)
	}

	s.logger.InfoContext(ctx, "stock reserved",
		slog.String("checkout_id", checkoutID),
		slog.Int("item_count", len(items)),
	)

	return reservationIDs, nil
}

// rollbackHolds compensates already-committed holds of a failed multi-item
// reservation, in reverse order.
func (s *InventoryService) rollbackHolds(ctx context.Context, committed []domain.StockReservation) {
	for i := len(committed) - 1; i >= 0; i-- {
		res := committed[i]

		claimed, err := s.reservations.UpdateStatusIf(ctx, res.ID, domain.ReservationStatusActive, domain.ReservationStatusReleased)
		if err != nil || !claimed {
			s.logger.ErrorContext(ctx, "failed to release reservation during rollback",
				slog.String("reservation_id", res.ID),
			)
			continue
		}

		newTotal, err := s.stock.Increment(ctx, res.ProductID, res.Size, res.Quantity)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to restore stock during rollback",
				slog.String("product_id", res.ProductID),
				slog.String("size", res.Size),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.afterMutation(ctx, res.ProductID, res.Size, newTotal)
	}
}

// Release returns a reservation's stock to its bucket. Only the caller that
// wins the active→released transition restores stock, so concurrent releases
// of the same reservation restore it exactly once; the losers are a no-op.
func (s *InventoryService) Release(ctx context.Context, reservationID string) error {
	reservation, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("get reservation: %w", err)
	}

	claimed, err := s.reservations.UpdateStatusIf(ctx, reservationID, domain.ReservationStatusActive, domain.ReservationStatusReleased)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	if !claimed {
		s.logger.DebugContext(ctx, "reservation already settled",
			slog.String("reservation_id", reservationID),
		)
		return nil
	}

	newTotal, err := s.stock.Increment(ctx, reservation.ProductID, reservation.Size, reservation.Quantity)
	if err != nil {
		return fmt.Errorf("restore released stock: %w", err)
	}
	s.afterMutation(ctx, reservation.ProductID, reservation.Size, newTotal)

	s.logger.InfoContext(ctx, "reservation released",
		slog.String("reservation_id", reservationID),
		slog.String("product_id", reservation.ProductID),
	)

	return nil
}

// ReleaseCheckout releases every active reservation of a checkout.
func (s *InventoryService) ReleaseCheckout(ctx context.Context, checkoutID string) error {
	if checkoutID == "" {
		return apperrors.InvalidInput("checkout_id is required")
	}

	reservations, err := s.reservations.ListActiveByCheckout(ctx, checkoutID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	for i := range reservations {
		if err := s.Release(ctx, reservations[i].ID); err != nil {
			return fmt.Errorf("release reservation %s: %w", reservations[i].ID, err)
		}
	}
	return nil
}

// Confirm marks a reservation's hold as consumed. The stock was already
// decremented when the hold was placed, so no bucket changes here; the
// transition just stops the sweeper and release path from restoring it.
func (s *InventoryService) Confirm(ctx context.Context, reservationID string) error {
	claimed, err := s.reservations.UpdateStatusIf(ctx, reservationID, domain.ReservationStatusActive, domain.ReservationStatusConsumed)
	if err != nil {
		return fmt.Errorf("confirm reservation: %w", err)
	}
	if !claimed {
		reservation, getErr := s.reservations.GetByID(ctx, reservationID)
		if getErr != nil {
			return fmt.Errorf("get reservation: %w", getErr)
		}
		if reservation.Status == domain.ReservationStatusConsumed {
			return nil
		}
		return apperrors.InvalidInput(fmt.Sprintf("reservation %s is already %s", reservationID, reservation.Status))
	}

	s.logger.InfoContext(ctx, "reservation confirmed", slog.String("reservation_id", reservationID))
	return nil
}

// ConfirmCheckout marks every active reservation of a checkout as consumed.
func (s *InventoryService) ConfirmCheckout(ctx context.Context, checkoutID string) error {
	if checkoutID == "" {
		return apperrors.InvalidInput("checkout_id is required")
	}

	reservations, err := s.reservations.ListActiveByCheckout(ctx, checkoutID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	for i := range reservations {
		if err := s.Confirm(ctx, reservations[i].ID); err != nil {
			return fmt.Errorf("confirm reservation %s: %w", reservations[i].ID, err)
		}
	}
	return nil
}

// DecreaseStock irreversibly decrements a bucket at order confirmation.
// Returns the product's new total stock.
func (s *InventoryService) DecreaseStock(ctx context.Context, productID, size string, quantity int) (int, error) {
	if !domain.IsValidSize(size) {
		return 0, apperrors.InvalidInput("unknown size: " + size)
	}
	if quantity <= 0 {
		return 0, apperrors.InvalidInput("quantity must be positive")
	}

	ok, newTotal, err := s.stock.DecrementIfAvailable(ctx, productID, size, quantity)
	if err != nil {
		return 0, fmt.Errorf("decrease stock: %w", err)
	}
	if !ok {
		available, availErr := s.stock.GetBucket(ctx, productID, size)
		if availErr != nil {
			available = 0
		}
		return 0, apperrors.InsufficientStock(productID, size, quantity, available)
	}

	s.afterMutation(ctx, productID, size, newTotal)

	s.logger.InfoContext(ctx, "stock decreased",
		slog.String("product_id", productID),
		slog.String("size", size),
		slog.Int("quantity", quantity),
		slog.Int("new_total", newTotal),
	)

	return newTotal, nil
}

// Restock sets a bucket to an absolute quantity (admin seeding/adjustment).
// Returns the product's new total stock. Replenishing above the low-stock
// threshold resets the alert flags so the next depletion can notify again.
func (s *InventoryService) Restock(ctx context.Context, productID, size string, quantity int) (int, error) {
	if !domain.IsValidSize(size) {
		return 0, apperrors.InvalidInput("unknown size: " + size)
	}
	if quantity < 0 {
		return 0, apperrors.InvalidInput("quantity must be non-negative")
	}

	newTotal, err := s.stock.SetQuantity(ctx, productID, size, quantity)
	if err != nil {
		return 0, fmt.Errorf("restock: %w", err)
	}

	s.afterMutation(ctx, productID, size, newTotal)

	s.logger.InfoContext(ctx, "stock set",
		slog.String("product_id", productID),
		slog.String("size", size),
		slog.Int("quantity", quantity),
		slog.Int("new_total", newTotal),
	)

	return newTotal, nil
}

// CleanExpiredReservations releases every active reservation past its expiry,
// restoring the held stock. Returns the number of reservations expired.
func (s *InventoryService) CleanExpiredReservations(ctx context.Context) (int, error) {
	expired, err := s.reservations.GetExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("get expired reservations: %w", err)
	}

	released := 0
	for i := range expired {
		res := expired[i]

		claimed, err := s.reservations.UpdateStatusIf(ctx, res.ID, domain.ReservationStatusActive, domain.ReservationStatusExpired)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to expire reservation",
				slog.String("reservation_id", res.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !claimed {
			// A concurrent release or confirm got there first.
			continue
		}

		newTotal, err := s.stock.Increment(ctx, res.ProductID, res.Size, res.Quantity)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to restore stock for expired reservation",
				slog.String("reservation_id", res.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.afterMutation(ctx, res.ProductID, res.Size, newTotal)
		released++
	}

	if released > 0 {
		s.logger.InfoContext(ctx, "cleaned expired reservations",
			slog.Int("released_count", released),
			slog.Int("total_expired", len(expired)),
		)
	}

	return released, nil
}

// afterMutation runs the post-commit hooks of a stock mutation: entity cache
// invalidation, inventory.updated publication, and the alert state machine.
// Search caches are deliberately left to expire by TTL. Hook failures are
// logged and swallowed — the mutation already committed.
func (s *InventoryService) afterMutation(ctx context.Context, productID, size string, newTotal int) {
	s.cache.Del(ctx, domain.ProductCacheKey(productID))

	if err := s.publisher.PublishInventoryUpdated(ctx, event.InventoryUpdatedData{
		ProductID:  productID,
		Size:       size,
		TotalStock: newTotal,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish inventory.updated event",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}

	s.syncAlerts(ctx, productID, newTotal)
}

// syncAlerts drives the alert state machine for the product's aggregate
// stock. The conditional flag updates make dispatch idempotent: for any one
// transition, exactly one of the racing mutators claims the flag and
// publishes; repeats and losers are silent.
func (s *InventoryService) syncAlerts(ctx context.Context, productID string, available int) {
	threshold, lowSent, outSent, err := s.stock.AlertFlags(ctx, productID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load alert flags",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return
	}

	data := event.StockAlertData{
		ProductID:         productID,
		Available:         available,
		LowStockThreshold: threshold,
	}

	switch domain.AlertStateFor(available, threshold) {
	case domain.AlertStateOutOfStock:
		claimed, err := s.stock.TryMarkOutAlert(ctx, productID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to mark out-of-stock alert",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			return
		}
		if claimed {
			if err := s.publisher.PublishOutOfStock(ctx, data); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish out-of-stock event",
					slog.String("product_id", productID),
					slog.String("error", err.Error()),
				)
			}
		}

	case domain.AlertStateLowStockNotified:
		claimed, err := s.stock.TryMarkLowAlert(ctx, productID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to mark low-stock alert",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			return
		}
		if claimed {
			if err := s.publisher.PublishLowStock(ctx, data); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish low-stock event",
					slog.String("product_id", productID),
					slog.String("error", err.Error()),
				)
			}
		}

	case domain.AlertStateNormal:
		if !lowSent && !outSent {
			return
		}
		claimed, err := s.stock.TryResetAlerts(ctx, productID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to reset alert flags",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			return
		}
		if claimed {
			if err := s.publisher.PublishRestocked(ctx, data); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish restocked event",
					slog.String("product_id", productID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
