package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/query"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/repository"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

// ResultCache is the fail-open cache surface the catalog needs. Get degrades
// to a miss and Set to a no-op when the backend is unavailable.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Del(ctx context.Context, keys ...string) bool
}

// cachedSearch is the envelope stored for search results. CachedAt lets a
// later hit report the entry's age.
type cachedSearch struct {
	Result   domain.SearchResult `json:"result"`
	CachedAt time.Time           `json:"cached_at"`
}

// CatalogService assembles client-facing search results: cache-first lookup,
// predicate build, page fetch, and the per-product enrichment (stock buckets
// and image metadata) batched into one round trip each.
type CatalogService struct {
	products   repository.ProductRepository
	stock      repository.StockRepository
	builder    *query.Builder
	cache      ResultCache
	logger     *slog.Logger
	searchTTL  time.Duration
	productTTL time.Duration
}

// NewCatalogService creates the catalog search service.
func NewCatalogService(
	products repository.ProductRepository,
	stock repository.StockRepository,
	builder *query.Builder,
	cache ResultCache,
	logger *slog.Logger,
	searchTTL, productTTL time.Duration,
) *CatalogService {
	return &CatalogService{
		products:   products,
		stock:      stock,
		builder:    builder,
		cache:      cache,
		logger:     logger,
		searchTTL:  searchTTL,
		productTTL: productTTL,
	}
}

// Search executes a catalog search for the given filter. The canonicalized
// filter's digest is the cache key, so equivalent requests collapse to one
// entry. A filter whose category reference resolves to nothing returns an
// empty page, not an error.
func (s *CatalogService) Search(ctx context.Context, filter domain.FilterSpec) (*domain.SearchResult, error) {
	if err := filter.Canonicalize(); err != nil {
		return nil, err
	}

	key := filter.CacheKey()
	if data, ok := s.cache.Get(ctx, key); ok {
		var entry cachedSearch
		if err := json.Unmarshal(data, &entry); err == nil {
			age := time.Since(entry.CachedAt).Seconds()
			entry.Result.Cached = true
			entry.Result.CacheAgeSeconds = &age
			entry.Result.QueryTimeMS = nil
			return &entry.Result, nil
		}
		// A corrupt entry is just a miss; overwrite it below.
		s.logger.WarnContext(ctx, "discarding unreadable cache entry", slog.String("key", key))
	}

	start := time.Now()

	pred, ok, err := s.builder.Build(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	if !ok {
		return domain.EmptySearchResult(filter.Page), nil
	}

	products, total, err := s.products.Search(ctx, pred, filter.SortBy, filter.SortOrder, filter.Page, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	views, err := s.assembleViews(ctx, products)
	if err != nil {
		return nil, err
	}

	queryTime := float64(time.Since(start).Microseconds()) / 1000.0
	result := &domain.SearchResult{
		Products:    views,
		Pagination:  domain.NewPagination(total, filter.Page, filter.Limit, len(views)),
		QueryTimeMS: &queryTime,
	}

	if data, err := json.Marshal(cachedSearch{Result: *result, CachedAt: time.Now().UTC()}); err == nil {
		s.cache.Set(ctx, key, data, s.searchTTL)
	}

	return result, nil
}

// GetProduct returns the detail view for one product, cache-first. Deleted and
// inactive products are not part of the catalog surface and report not found.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.ProductView, error) {
	key := domain.ProductCacheKey(id)
	if data, ok := s.cache.Get(ctx, key); ok {
		var view domain.ProductView
		if err := json.Unmarshal(data, &view); err == nil {
			return &view, nil
		}
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product.IsDeleted || !product.IsActive {
		return nil, apperrors.NotFound("product", id)
	}

	buckets, err := s.stock.GetBuckets(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get stock buckets: %w", err)
	}
	images, err := s.products.ImagesForProducts(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("get product images: %w", err)
	}

	view := domain.NewProductView(*product, buckets, images[id])

	if data, err := json.Marshal(view); err == nil {
		s.cache.Set(ctx, key, data, s.productTTL)
	}

	return &view, nil
}

func (s *CatalogService) assembleViews(ctx context.Context, products []domain.Product) ([]domain.ProductView, error) {
	if len(products) == 0 {
		return []domain.ProductView{}, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	buckets, err := s.stock.BucketsForProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get stock buckets: %w", err)
	}
	images, err := s.products.ImagesForProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get product images: %w", err)
	}

	views := make([]domain.ProductView, len(products))
	for i, p := range products {
		views[i] = domain.NewProductView(p, buckets[p.ID], images[p.ID])
	}
	return views, nil
}
