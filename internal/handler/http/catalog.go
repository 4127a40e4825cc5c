package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/service"
	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/httputil"
)

// CatalogHandler handles HTTP requests for catalog search endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: svc,
		logger:  logger,
	}
}

// SearchProducts handles GET /api/v1/catalog/products
func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	result, err := h.service.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// GetProduct handles GET /api/v1/catalog/products/{productId}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	view, err := h.service.GetProduct(r.Context(), productID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: view})
}

// filterFromQuery builds a FilterSpec from the request's query parameters.
// Canonicalization and validation happen in the service; this only parses.
func filterFromQuery(r *http.Request) (domain.FilterSpec, error) {
	q := r.URL.Query()

	filter := domain.FilterSpec{
		Search:       q.Get("search"),
		Category:     q.Get("category"),
		Subcategory:  q.Get("subcategory"),
		ProductType:  q.Get("product_type"),
		Availability: q.Get("availability"),
		SortBy:       q.Get("sort_by"),
		SortOrder:    q.Get("sort_order"),
		Tags:         splitList(q["tags"]),
		Sizes:        splitList(q["sizes"]),
	}

	var err error
	if filter.MinPrice, err = parseOptionalInt64(q.Get("min_price"), "min_price"); err != nil {
		return domain.FilterSpec{}, err
	}
	if filter.MaxPrice, err = parseOptionalInt64(q.Get("max_price"), "max_price"); err != nil {
		return domain.FilterSpec{}, err
	}
	if filter.Page, err = parseOptionalInt(q.Get("page"), "page"); err != nil {
		return domain.FilterSpec{}, err
	}
	if filter.Limit, err = parseOptionalInt(q.Get("limit"), "limit"); err != nil {
		return domain.FilterSpec{}, err
	}
	filter.ExcludeFeatured = q.Get("exclude_featured") == "true"

	return filter, nil
}

// splitList flattens repeated query parameters and comma-separated values into
// one list: ?tags=a,b&tags=c yields [a b c].
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func invalidParam(name, value string) error {
	return apperrors.InvalidInput(fmt.Sprintf("invalid %s: %q", name, value))
}

func parseOptionalInt64(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalidParam(name, raw)
	}
	return &v, nil
}

func parseOptionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidParam(name, raw)
	}
	return v, nil
}
