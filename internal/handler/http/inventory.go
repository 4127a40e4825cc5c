package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/domain"
	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/service"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/httputil"
	"github.com/RahulXTmCoding/desi-otaku-catalog/pkg/validator"
)

// InventoryHandler handles HTTP requests for inventory endpoints.
type InventoryHandler struct {
	service *service.InventoryService
	logger  *slog.Logger
}

// NewInventoryHandler creates a new inventory HTTP handler.
func NewInventoryHandler(svc *service.InventoryService, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CheckAvailabilityRequest is the JSON request body for an availability check.
type CheckAvailabilityRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// ReserveStockRequest is the JSON request body for reserving stock.
type ReserveStockRequest struct {
	CheckoutID string                `json:"checkout_id" validate:"required"`
	Items      []service.ReserveItem `json:"items" validate:"required,min=1,dive"`
}

// SettleReservationRequest is the JSON request body for release and confirm.
// Exactly one of ReservationID or CheckoutID must be set.
type SettleReservationRequest struct {
	ReservationID string `json:"reservation_id" validate:"omitempty,uuid"`
	CheckoutID    string `json:"checkout_id"`
}

// AdjustQuantityRequest is the JSON request body for decrease and restock.
type AdjustQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

// --- Response DTOs ---

// StockResponse is the per-product stock summary.
type StockResponse struct {
	ProductID  string             `json:"product_id"`
	TotalStock int                `json:"total_stock"`
	Sizes      []domain.SizeStock `json:"sizes"`
}

// SizeStockResponse is the single-bucket stock view.
type SizeStockResponse struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// CheckAvailabilityResponse reports whether a requested quantity is on hand.
type CheckAvailabilityResponse struct {
	Available      bool `json:"available"`
	AvailableStock int  `json:"available_stock"`
}

// ReserveStockResponse carries the IDs of the created holds.
type ReserveStockResponse struct {
	CheckoutID     string   `json:"checkout_id"`
	ReservationIDs []string `json:"reservation_ids"`
}

// AdjustQuantityResponse reports the product total after a mutation.
type AdjustQuantityResponse struct {
	ProductID  string `json:"product_id"`
	Size       string `json:"size"`
	TotalStock int    `json:"total_stock"`
}

// --- Handlers ---

// GetStock handles GET /api/v1/inventory/{productId}
func (h *InventoryHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	total, buckets, err := h.service.GetStock(r.Context(), productID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: StockResponse{
		ProductID:  productID.String(),
		TotalStock: total,
		Sizes:      buckets,
	}})
}

// GetSizeStock handles GET /api/v1/inventory/{productId}/sizes/{size}
func (h *InventoryHandler) GetSizeStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	size := chi.URLParam(r, "size")

	quantity, err := h.service.GetSizeStock(r.Context(), productID.String(), size)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: SizeStockResponse{
		ProductID: productID.String(),
		Size:      size,
		Quantity:  quantity,
	}})
}

// CheckAvailability handles POST /api/v1/inventory/check
func (h *InventoryHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req CheckAvailabilityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	available, stock, err := h.service.CheckAvailability(r.Context(), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: CheckAvailabilityResponse{
		Available:      available,
		AvailableStock: stock,
	}})
}

// ReserveStock handles POST /api/v1/inventory/reserve
func (h *InventoryHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	var req ReserveStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ids, err := h.service.Reserve(r.Context(), req.CheckoutID, req.Items)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: ReserveStockResponse{
		CheckoutID:     req.CheckoutID,
		ReservationIDs: ids,
	}})
}

// ReleaseReservation handles POST /api/v1/inventory/release
func (h *InventoryHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	var req SettleReservationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.ReservationID != "":
		err = h.service.Release(r.Context(), req.ReservationID)
	case req.CheckoutID != "":
		err = h.service.ReleaseCheckout(r.Context(), req.CheckoutID)
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "reservation_id or checkout_id is required"},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "released"}})
}

// ConfirmReservation handles POST /api/v1/inventory/confirm
func (h *InventoryHandler) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	var req SettleReservationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.ReservationID != "":
		err = h.service.Confirm(r.Context(), req.ReservationID)
	case req.CheckoutID != "":
		err = h.service.ConfirmCheckout(r.Context(), req.CheckoutID)
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "reservation_id or checkout_id is required"},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"status": "confirmed"}})
}

// DecreaseStock handles POST /api/v1/inventory/{productId}/sizes/{size}/decrease
func (h *InventoryHandler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	size := chi.URLParam(r, "size")

	var req AdjustQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	newTotal, err := h.service.DecreaseStock(r.Context(), productID.String(), size, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: AdjustQuantityResponse{
		ProductID:  productID.String(),
		Size:       size,
		TotalStock: newTotal,
	}})
}

// RestockSize handles PUT /api/v1/inventory/{productId}/sizes/{size}
func (h *InventoryHandler) RestockSize(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	size := chi.URLParam(r, "size")

	var req AdjustQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	newTotal, err := h.service.Restock(r.Context(), productID.String(), size, req.Quantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: AdjustQuantityResponse{
		ProductID:  productID.String(),
		Size:       size,
		TotalStock: newTotal,
	}})
}

// decodeBody decodes and validates a JSON request body, writing the error
// response itself. Returns false when the caller must return early.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	// Bound the body so oversized payloads cannot exhaust memory.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(target); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
