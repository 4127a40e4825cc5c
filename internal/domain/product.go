package domain

import (
	"time"
)

// Known size labels, in display order.
const (
	SizeS   = "S"
	SizeM   = "M"
	SizeL   = "L"
	SizeXL  = "XL"
	SizeXXL = "XXL"
)

// Sizes returns all known size labels in display order.
func Sizes() []string {
	return []string{SizeS, SizeM, SizeL, SizeXL, SizeXXL}
}

// IsValidSize checks whether the given label is a known size.
func IsValidSize(size string) bool {
	for _, s := range Sizes() {
		if s == size {
			return true
		}
	}
	return false
}

// Product represents a catalog product with per-size stock buckets.
// TotalStock is maintained transactionally: after every committed stock
// mutation it equals the sum of the product's size buckets.
type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Price             int64     `json:"price"`
	CategoryID        *string   `json:"category_id,omitempty"`
	SubcategoryID     *string   `json:"subcategory_id,omitempty"`
	ProductType       string    `json:"product_type"`
	Tags              []string  `json:"tags,omitempty"`
	TotalStock        int       `json:"total_stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	IsActive          bool      `json:"is_active"`
	IsDeleted         bool      `json:"is_deleted"`
	IsFeatured        bool      `json:"is_featured"`
	AlertLowSent      bool      `json:"alert_low_sent"`
	AlertOutSent      bool      `json:"alert_out_sent"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SizeStock is one stock bucket: the quantity on hand for a single size label.
type SizeStock struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// ProductImage is image metadata. The binary payload lives in a separate
// column and is never loaded for list or detail views.
type ProductImage struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	URL       string `json:"url,omitempty"`
	Caption   string `json:"caption,omitempty"`
	IsPrimary bool   `json:"is_primary"`
	SortOrder int    `json:"sort_order"`
}

// ProductView is the client-facing projection of a product: binary image
// payloads are stripped, internal flags are omitted, and per-size
// availability is derived from the stock buckets.
type ProductView struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            int64           `json:"price"`
	CategoryID       *string         `json:"category_id,omitempty"`
	SubcategoryID    *string         `json:"subcategory_id,omitempty"`
	ProductType      string          `json:"product_type"`
	Tags             []string        `json:"tags,omitempty"`
	TotalStock       int             `json:"total_stock"`
	SizeAvailability map[string]bool `json:"size_availability"`
	Images           []ProductImage  `json:"images"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewProductView builds the client projection from a product, its stock
// buckets, and its image metadata. Every known size appears in
// SizeAvailability; sizes without a bucket report false.
func NewProductView(p Product, buckets []SizeStock, images []ProductImage) ProductView {
	availability := make(map[string]bool, len(Sizes()))
	for _, size := range Sizes() {
		availability[size] = false
	}
	for _, b := range buckets {
		availability[b.Size] = b.Quantity > 0
	}

	if images == nil {
		images = []ProductImage{}
	}

	return ProductView{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		Price:            p.Price,
		CategoryID:       p.CategoryID,
		SubcategoryID:    p.SubcategoryID,
		ProductType:      p.ProductType,
		Tags:             p.Tags,
		TotalStock:       p.TotalStock,
		SizeAvailability: availability,
		Images:           images,
		CreatedAt:        p.CreatedAt,
	}
}

// AlertState is the aggregated per-product stock alert state.
type AlertState string

const (
	AlertStateNormal           AlertState = "normal"
	AlertStateLowStockNotified AlertState = "low_stock_notified"
	AlertStateOutOfStock       AlertState = "out_of_stock_notified"
)

// AlertStateFor derives the alert state from the aggregated available
// quantity and the product's low-stock threshold.
func AlertStateFor(available, threshold int) AlertState {
	switch {
	case available <= 0:
		return AlertStateOutOfStock
	case available <= threshold:
		return AlertStateLowStockNotified
	default:
		return AlertStateNormal
	}
}

// IsLowStock reports whether a single bucket quantity is in the low-stock
// band: above zero but at or below the threshold.
func IsLowStock(quantity, threshold int) bool {
	return quantity > 0 && quantity <= threshold
}
