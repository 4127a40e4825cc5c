package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/event"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/query"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

// --- Mock ProductRepository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Search(ctx context.Context, pred query.Predicate, sortBy, sortOrder string, page, limit int) ([]domain.Product, int, error) {
	args := m.Called(ctx, pred, sortBy, sortOrder, page, limit)
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) ImagesForProducts(ctx context.Context, productIDs []string) (map[string][]domain.ProductImage, error) {
	args := m.Called(ctx, productIDs)
	return args.Get(0).(map[string][]domain.ProductImage), args.Error(1)
}

// --- Mock StockRepository ---

type mockStockRepository struct {
	mock.Mock
}

func (m *mockStockRepository) GetBuckets(ctx context.Context, productID string) ([]domain.SizeStock, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SizeStock), args.Error(1)
}

func (m *mockStockRepository) GetBucket(ctx context.Context, productID, size string) (int, error) {
	args := m.Called(ctx, productID, size)
	return args.Int(0), args.Error(1)
}

func (m *mockStockRepository) BucketsForProducts(ctx context.Context, productIDs []string) (map[string][]domain.SizeStock, error) {
	args := m.Called(ctx, productIDs)
	return args.Get(0).(map[string][]domain.SizeStock), args.Error(1)
}

func (m *mockStockRepository) DecrementIfAvailable(ctx context.Context, productID, size string, qty int) (bool, int, error) {
	args := m.Called(ctx, productID, size, qty)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockStockRepository) Increment(ctx context.Context, productID, size string, qty int) (int, error) {
	args := m.Called(ctx, productID, size, qty)
	return args.Int(0), args.Error(1)
}

func (m *mockStockRepository) SetQuantity(ctx context.Context, productID, size string, qty int) (int, error) {
	args := m.Called(ctx, productID, size, qty)
	return args.Int(0), args.Error(1)
}

func (m *mockStockRepository) AlertFlags(ctx context.Context, productID string) (int, bool, bool, error) {
	args := m.Called(ctx, productID)
	return args.Int(0), args.Bool(1), args.Bool(2), args.Error(3)
}

func (m *mockStockRepository) TryMarkLowAlert(ctx context.Context, productID string) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStockRepository) TryMarkOutAlert(ctx context.Context, productID string) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStockRepository) TryResetAlerts(ctx context.Context, productID string) (bool, error) {
	args := m.Called(ctx, productID)
	return args.Bool(0), args.Error(1)
}

// --- Mock ReservationRepository ---

type mockReservationRepository struct {
	mock.Mock
}

func (m *mockReservationRepository) Create(ctx context.Context, reservation *domain.StockReservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *mockReservationRepository) GetByID(ctx context.Context, id string) (*domain.StockReservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockReservation), args.Error(1)
}

func (m *mockReservationRepository) UpdateStatusIf(ctx context.Context, id, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservationRepository) ListActiveByCheckout(ctx context.Context, checkoutID string) ([]domain.StockReservation, error) {
	args := m.Called(ctx, checkoutID)
	return args.Get(0).([]domain.StockReservation), args.Error(1)
}

func (m *mockReservationRepository) GetExpired(ctx context.Context) ([]domain.StockReservation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.StockReservation), args.Error(1)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishInventoryUpdated(ctx context.Context, data event.InventoryUpdatedData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *mockPublisher) PublishLowStock(ctx context.Context, data event.StockAlertData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *mockPublisher) PublishOutOfStock(ctx context.Context, data event.StockAlertData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

func (m *mockPublisher) PublishRestocked(ctx context.Context, data event.StockAlertData) error {
	args := m.Called(ctx, data)
	return args.Error(0)
}

// --- Fake cache ---

// fakeCache is an in-memory ResultCache that records deletions.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return true
}

func (c *fakeCache) Del(_ context.Context, keys ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return true
}

// --- Test helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type inventoryFixture struct {
	products     *mockProductRepository
	stock        *mockStockRepository
	reservations *mockReservationRepository
	publisher    *mockPublisher
	cache        *fakeCache
	svc          *InventoryService
}

func newInventoryFixture() *inventoryFixture {
	f := &inventoryFixture{
		products:     new(mockProductRepository),
		stock:        new(mockStockRepository),
		reservations: new(mockReservationRepository),
		publisher:    new(mockPublisher),
		cache:        newFakeCache(),
	}
	f.svc = NewInventoryService(
		f.products, f.stock, f.reservations, f.cache, f.publisher,
		newTestLogger(), 15*time.Minute,
	)
	return f
}

// expectQuietAlerts mocks an alert check that triggers nothing: flags clear,
// stock comfortably above threshold.
func (f *inventoryFixture) expectQuietAlerts(productID string) {
	f.stock.On("AlertFlags", mock.Anything, productID).Return(2, false, false, nil)
	f.publisher.On("PublishInventoryUpdated", mock.Anything, mock.Anything).Return(nil)
}

// --- Tests ---

func TestGetStock_Success(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-1").Return(&domain.Product{ID: "prod-1", TotalStock: 7}, nil)
	f.stock.On("GetBuckets", ctx, "prod-1").Return([]domain.SizeStock{{Size: "M", Quantity: 4}, {Size: "S", Quantity: 3}}, nil)

	total, buckets, err := f.svc.GetStock(ctx, "prod-1")
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, buckets, 2)
}

func TestGetStock_ProductNotFound(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.products.On("GetByID", ctx, "prod-x").Return(nil, apperrors.NotFound("product", "prod-x"))

	_, _, err := f.svc.GetStock(ctx, "prod-x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckAvailability(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.stock.On("GetBucket", ctx, "prod-1", "M").Return(5, nil)

	ok, available, err := f.svc.CheckAvailability(ctx, "prod-1", "M", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, available)

	ok, _, err = f.svc.CheckAvailability(ctx, "prod-1", "M", 6)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAvailability_InvalidInput(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	_, _, err := f.svc.CheckAvailability(ctx, "prod-1", "XS", 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, _, err = f.svc.CheckAvailability(ctx, "prod-1", "M", 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDecreaseStock_Success(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.stock.On("DecrementIfAvailable", ctx, "prod-1", "M", 2).Return(true, 8, nil)
	f.expectQuietAlerts("prod-1")

	newTotal, err := f.svc.DecreaseStock(ctx, "prod-1", "M", 2)
	require.NoError(t, err)
	assert.Equal(t, 8, newTotal)

	assert.Contains(t, f.cache.deleted, "product:prod-1")
	f.publisher.AssertNumberOfCalls(t, "PublishInventoryUpdated", 1)
}

func TestDecreaseStock_Insufficient(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.stock.On("DecrementIfAvailable", ctx, "prod-1", "M", 10).Return(false, 0, nil)
	f.stock.On("GetBucket", ctx, "prod-1", "M").Return(4, nil)

	_, err := f.svc.DecreaseStock(ctx, "prod-1", "M", 10)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	// Nothing was mutated, so no cache invalidation or events.
	assert.Empty(t, f.cache.deleted)
	f.publisher.AssertNotCalled(t, "PublishInventoryUpdated", mock.Anything, mock.Anything)
}

// Walks a product with threshold 5 through 8 → 5 → 3 → 0 → restock and checks
// that each alert fires exactly once per transition: one low-stock alert, one
// out-of-stock alert, one restocked alert, and silence in between.
func TestAlertSequence_FiresOncePerTransition(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()
	const productID = "prod-1"

	f.publisher.On("PublishInventoryUpdated", mock.Anything, mock.Anything).Return(nil)

	// 8 → 5: crosses into low stock, flag claimed, alert fires.
	f.stock.On("DecrementIfAvailable", ctx, productID, "M", 3).Return(true, 5, nil).Once()
	f.stock.On("AlertFlags", mock.Anything, productID).Return(5, false, false, nil).Once()
	f.stock.On("TryMarkLowAlert", mock.Anything, productID).Return(true, nil).Once()
	f.publisher.On("PublishLowStock", mock.Anything, event.StockAlertData{
		ProductID: productID, Available: 5, LowStockThreshold: 5,
	}).Return(nil).Once()

	_, err := f.svc.DecreaseStock(ctx, productID, "M", 3)
	require.NoError(t, err)

	// 5 → 3: still low, flag already set, no second alert.
	f.stock.On("DecrementIfAvailable", ctx, productID, "M", 2).Return(true, 3, nil).Once()
	f.stock.On("AlertFlags", mock.Anything, productID).Return(5, true, false, nil).Once()
	f.stock.On("TryMarkLowAlert", mock.Anything, productID).Return(false, nil).Once()

	_, err = f.svc.DecreaseStock(ctx, productID, "M", 2)
	require.NoError(t, err)

	// 3 → 0: out of stock, out flag claimed, alert fires.
	f.stock.On("DecrementIfAvailable", ctx, productID, "M", 3).Return(true, 0, nil).Once()
	f.stock.On("AlertFlags", mock.Anything, productID).Return(5, true, false, nil).Once()
	f.stock.On("TryMarkOutAlert", mock.Anything, productID).Return(true, nil).Once()
	f.publisher.On("PublishOutOfStock", mock.Anything, event.StockAlertData{
		ProductID: productID, Available: 0, LowStockThreshold: 5,
	}).Return(nil).Once()

	_, err = f.svc.DecreaseStock(ctx, productID, "M", 3)
	require.NoError(t, err)

	// Restock to 10: back to normal, flags reset, restocked alert fires.
	f.stock.On("SetQuantity", ctx, productID, "M", 10).Return(10, nil).Once()
	f.stock.On("AlertFlags", mock.Anything, productID).Return(5, true, true, nil).Once()
	f.stock.On("TryResetAlerts", mock.Anything, productID).Return(true, nil).Once()
	f.publisher.On("PublishRestocked", mock.Anything, event.StockAlertData{
		ProductID: productID, Available: 10, LowStockThreshold: 5,
	}).Return(nil).Once()

	_, err = f.svc.Restock(ctx, productID, "M", 10)
	require.NoError(t, err)

	f.publisher.AssertNumberOfCalls(t, "PublishLowStock", 1)
	f.publisher.AssertNumberOfCalls(t, "PublishOutOfStock", 1)
	f.publisher.AssertNumberOfCalls(t, "PublishRestocked", 1)
	f.stock.AssertExpectations(t)
}

func TestReserve_Success(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	items := []ReserveItem{
		{ProductID: "prod-1", Size: "M", Quantity: 2},
		{ProductID: "prod-2", Size: "L", Quantity: 1},
	}

	f.stock.On("DecrementIfAvailable", ctx, "prod-1", "M", 2).Return(true, 5, nil)
	f.stock.On("DecrementIfAvailable", ctx, "prod-2", "L", 1).Return(true, 3, nil)
	f.reservations.On("Create", ctx, mock.MatchedBy(func(r *domain.StockReservation) bool {
		return r.CheckoutID == "checkout-1" && r.Status == domain.ReservationStatusActive
	})).Return(nil).Twice()
	f.expectQuietAlerts("prod-1")
	f.expectQuietAlerts("prod-2")

	ids, err := f.svc.Reserve(ctx, "checkout-1", items)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	assert.Contains(t, f.cache.deleted, "product:prod-1")
	assert.Contains(t, f.cache.deleted, "product:prod-2")
}

// When the second item of a reservation cannot be covered, the hold taken for
// the first item must be compensated: stock restored and the reservation
// record released.
func TestReserve_RollbackOnInsufficientStock(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	items := []ReserveItem{
		{ProductID: "prod-1", Size: "M", Quantity: 2},
		{ProductID: "prod-2", Size: "L", Quantity: 5},
	}

	f.stock.On("DecrementIfAvailable", ctx, "prod-1", "M", 2).Return(true, 5, nil)
	f.reservations.On("Create", ctx, mock.Anything).Return(nil).Once()

	f.stock.On("DecrementIfAvailable", ctx, "prod-2", "L", 5).Return(false, 0, nil)
	f.stock.On("GetBucket", ctx, "prod-2", "L").Return(3, nil)

	// Compensation of the first hold.
	f.reservations.On("UpdateStatusIf", ctx, mock.Anything, domain.ReservationStatusActive, domain.ReservationStatusReleased).Return(true, nil).Once()
	f.stock.On("Increment", ctx, "prod-1", "M", 2).Return(7, nil).Once()
	f.expectQuietAlerts("prod-1")

	_, err := f.svc.Reserve(ctx, "checkout-1", items)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	f.stock.AssertCalled(t, "Increment", ctx, "prod-1", "M", 2)
	f.reservations.AssertNumberOfCalls(t, "UpdateStatusIf", 1)
}

func TestReserve_InvalidInput(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	_, err := f.svc.Reserve(ctx, "", []ReserveItem{{ProductID: "p", Size: "M", Quantity: 1}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.Reserve(ctx, "checkout-1", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.Reserve(ctx, "checkout-1", []ReserveItem{{ProductID: "p", Size: "XS", Quantity: 1}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// Release restores stock exactly once: the second release of the same
// reservation loses the status transition and must not touch the buckets.
func TestRelease_RestoresStockOnce(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	reservation := &domain.StockReservation{
		ID: "res-1", ProductID: "prod-1", Size: "M", Quantity: 2,
		Status: domain.ReservationStatusActive,
	}
	f.reservations.On("GetByID", ctx, "res-1").Return(reservation, nil)

	f.reservations.On("UpdateStatusIf", ctx, "res-1", domain.ReservationStatusActive, domain.ReservationStatusReleased).
		Return(true, nil).Once()
	f.stock.On("Increment", ctx, "prod-1", "M", 2).Return(7, nil).Once()
	f.expectQuietAlerts("prod-1")

	require.NoError(t, f.svc.Release(ctx, "res-1"))

	f.reservations.On("UpdateStatusIf", ctx, "res-1", domain.ReservationStatusActive, domain.ReservationStatusReleased).
		Return(false, nil).Once()

	require.NoError(t, f.svc.Release(ctx, "res-1"))

	f.stock.AssertNumberOfCalls(t, "Increment", 1)
}

func TestConfirm(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.reservations.On("UpdateStatusIf", ctx, "res-1", domain.ReservationStatusActive, domain.ReservationStatusConsumed).
		Return(true, nil).Once()

	require.NoError(t, f.svc.Confirm(ctx, "res-1"))

	// Re-confirming is a no-op.
	f.reservations.On("UpdateStatusIf", ctx, "res-1", domain.ReservationStatusActive, domain.ReservationStatusConsumed).
		Return(false, nil).Once()
	f.reservations.On("GetByID", ctx, "res-1").
		Return(&domain.StockReservation{ID: "res-1", Status: domain.ReservationStatusConsumed}, nil).Once()

	require.NoError(t, f.svc.Confirm(ctx, "res-1"))

	// Confirming a released reservation is a client error.
	f.reservations.On("UpdateStatusIf", ctx, "res-2", domain.ReservationStatusActive, domain.ReservationStatusConsumed).
		Return(false, nil).Once()
	f.reservations.On("GetByID", ctx, "res-2").
		Return(&domain.StockReservation{ID: "res-2", Status: domain.ReservationStatusReleased}, nil).Once()

	assert.ErrorIs(t, f.svc.Confirm(ctx, "res-2"), apperrors.ErrInvalidInput)
}

func TestConfirmCheckout(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.reservations.On("ListActiveByCheckout", ctx, "checkout-1").Return([]domain.StockReservation{
		{ID: "res-1", Status: domain.ReservationStatusActive},
		{ID: "res-2", Status: domain.ReservationStatusActive},
	}, nil)
	f.reservations.On("UpdateStatusIf", ctx, "res-1", domain.ReservationStatusActive, domain.ReservationStatusConsumed).Return(true, nil)
	f.reservations.On("UpdateStatusIf", ctx, "res-2", domain.ReservationStatusActive, domain.ReservationStatusConsumed).Return(true, nil)

	require.NoError(t, f.svc.ConfirmCheckout(ctx, "checkout-1"))
	f.reservations.AssertNumberOfCalls(t, "UpdateStatusIf", 2)
}

func TestCleanExpiredReservations(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	f.reservations.On("GetExpired", ctx).Return([]domain.StockReservation{
		{ID: "res-1", ProductID: "prod-1", Size: "M", Quantity: 2, Status: domain.ReservationStatusActive},
		{ID: "res-2", ProductID: "prod-2", Size: "L", Quantity: 1, Status: domain.ReservationStatusActive},
	}, nil)

	f.reservations.On("UpdateStatusIf", ctx, "res-1", domain.ReservationStatusActive, domain.ReservationStatusExpired).Return(true, nil)
	f.stock.On("Increment", ctx, "prod-1", "M", 2).Return(9, nil)
	f.expectQuietAlerts("prod-1")

	// res-2 was released concurrently; the sweeper loses the transition and
	// must not restore its stock.
	f.reservations.On("UpdateStatusIf", ctx, "res-2", domain.ReservationStatusActive, domain.ReservationStatusExpired).Return(false, nil)

	released, err := f.svc.CleanExpiredReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	f.stock.AssertNotCalled(t, "Increment", ctx, "prod-2", "L", 1)
}

func TestRestock_InvalidInput(t *testing.T) {
	f := newInventoryFixture()
	ctx := context.Background()

	_, err := f.svc.Restock(ctx, "prod-1", "XS", 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.svc.Restock(ctx, "prod-1", "M", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
