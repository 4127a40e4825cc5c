package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strings"

	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
)

// Availability filter values.
const (
	AvailabilityAny        = ""
	AvailabilityInStock    = "in_stock"
	AvailabilityOutOfStock = "out_of_stock"
)

// Sort fields and orders accepted by the search endpoint.
const (
	SortByCreatedAt = "created_at"
	SortByPrice     = "price"
	SortByName      = "name"

	SortOrderAsc  = "asc"
	SortOrderDesc = "desc"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// FilterSpec is the normalized multi-dimensional filter for a catalog search.
// Category and Subcategory hold either an ID or a free-text name; resolution
// happens later. All text fields must be canonicalized before the spec is
// used to derive a cache key, so equivalent requests collapse to the same
// cache entry.
type FilterSpec struct {
	Search          string   `json:"search,omitempty"`
	Category        string   `json:"category,omitempty"`
	Subcategory     string   `json:"subcategory,omitempty"`
	ProductType     string   `json:"product_type,omitempty"`
	MinPrice        *int64   `json:"min_price,omitempty"`
	MaxPrice        *int64   `json:"max_price,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Sizes           []string `json:"sizes,omitempty"`
	Availability    string   `json:"availability,omitempty"`
	SortBy          string   `json:"sort_by"`
	SortOrder       string   `json:"sort_order"`
	Page            int      `json:"page"`
	Limit           int      `json:"limit"`
	ExcludeFeatured bool     `json:"exclude_featured,omitempty"`
}

// Canonicalize normalizes the spec in place: text is trimmed and lower-cased,
// list fields are deduplicated and sorted, defaults are applied, and limits
// are clamped. Returns a validation error for values that cannot be
// normalized away.
func (f *FilterSpec) Canonicalize() error {
	f.Search = strings.ToLower(strings.TrimSpace(f.Search))
	f.Category = strings.ToLower(strings.TrimSpace(f.Category))
	f.Subcategory = strings.ToLower(strings.TrimSpace(f.Subcategory))
	f.ProductType = strings.ToLower(strings.TrimSpace(f.ProductType))
	f.Availability = strings.ToLower(strings.TrimSpace(f.Availability))
	f.SortBy = strings.ToLower(strings.TrimSpace(f.SortBy))
	f.SortOrder = strings.ToLower(strings.TrimSpace(f.SortOrder))

	f.Tags = normalizeSet(f.Tags, strings.ToLower)
	f.Sizes = normalizeSet(f.Sizes, strings.ToUpper)

	for _, size := range f.Sizes {
		if !IsValidSize(size) {
			return apperrors.InvalidInput("unknown size: " + size)
		}
	}

	switch f.Availability {
	case AvailabilityAny, AvailabilityInStock, AvailabilityOutOfStock:
	default:
		return apperrors.InvalidInput("availability must be in_stock or out_of_stock")
	}

	if f.SortBy == "" {
		f.SortBy = SortByCreatedAt
	}
	switch f.SortBy {
	case SortByCreatedAt, SortByPrice, SortByName:
	default:
		return apperrors.InvalidInput("sort_by must be one of created_at, price, name")
	}

	if f.SortOrder == "" {
		f.SortOrder = SortOrderDesc
	}
	switch f.SortOrder {
	case SortOrderAsc, SortOrderDesc:
	default:
		return apperrors.InvalidInput("sort_order must be asc or desc")
	}

	if f.MinPrice != nil && *f.MinPrice < 0 {
		return apperrors.InvalidInput("min_price must be non-negative")
	}
	if f.MaxPrice != nil && *f.MaxPrice < 0 {
		return apperrors.InvalidInput("max_price must be non-negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return apperrors.InvalidInput("min_price cannot exceed max_price")
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}

	return nil
}

// CacheKey derives a deterministic cache key from the canonicalized spec.
// The JSON encoding of a struct has stable field order, so equal specs always
// produce the same digest.
func (f FilterSpec) CacheKey() string {
	data, _ := json.Marshal(f)
	sum := sha256.Sum256(data)
	return "catalog:search:" + hex.EncodeToString(sum[:])
}

func normalizeSet(values []string, mapFn func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = mapFn(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// ProductCacheKey is the cache key for a single product's detail view.
func ProductCacheKey(id string) string {
	return "product:" + id
}

// Pagination is the envelope describing where a page sits in the full result set.
type Pagination struct {
	CurrentPage   int  `json:"current_page"`
	TotalPages    int  `json:"total_pages"`
	TotalProducts int  `json:"total_products"`
	HasMore       bool `json:"has_more"`
}

// NewPagination computes the pagination envelope for a page of `returned`
// items out of `total`, fetched with the given page and limit.
func NewPagination(total, page, limit, returned int) Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	skip := (page - 1) * limit
	return Pagination{
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalProducts: total,
		HasMore:       skip+returned < total,
	}
}

// SearchResult is the search response payload. Cached, CacheAgeSeconds and
// QueryTimeMS are observability annotations: cache hits report their age,
// fresh results report how long the query took.
type SearchResult struct {
	Products        []ProductView `json:"products"`
	Pagination      Pagination    `json:"pagination"`
	Cached          bool          `json:"_cached"`
	CacheAgeSeconds *float64      `json:"_cache_age_seconds,omitempty"`
	QueryTimeMS     *float64      `json:"_query_time_ms,omitempty"`
}

// EmptySearchResult returns a zero-length result with a valid pagination
// envelope. Used when a filter references a category that matches nothing:
// that is a legitimate empty match, not an error.
func EmptySearchResult(page int) *SearchResult {
	return &SearchResult{
		Products:   []ProductView{},
		Pagination: Pagination{CurrentPage: page},
	}
}
