package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/errors"
	pkgkafka "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/kafka"
)

// Kafka topics consumed by the inventory store.
var (
	TopicOrderConfirmed = pkgkafka.Topic("order", "confirmed")
	TopicOrderCanceled  = pkgkafka.Topic("order", "canceled")
)

// InventoryService defines the interface required by the event consumer.
type InventoryService interface {
	ConfirmCheckout(ctx context.Context, checkoutID string) error
	ReleaseCheckout(ctx context.Context, checkoutID string) error
	DecreaseStock(ctx context.Context, productID, size string, quantity int) (int, error)
}

// OrderItemData is a single line item in an order event.
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// OrderConfirmedData is the expected payload of an order.confirmed event.
// Items is only consulted when the order carries no checkout ID, meaning no
// reservation holds the stock and it must be decremented directly.
type OrderConfirmedData struct {
	OrderID    string          `json:"order_id"`
	CheckoutID string          `json:"checkout_id"`
	Items      []OrderItemData `json:"items"`
}

// OrderCanceledData is the expected payload of an order.canceled event.
type OrderCanceledData struct {
	OrderID    string `json:"order_id"`
	CheckoutID string `json:"checkout_id"`
}

// Consumer processes incoming order events against the inventory store.
type Consumer struct {
	logger  *slog.Logger
	service InventoryService
}

// NewConsumer creates a new order event consumer.
func NewConsumer(service InventoryService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleOrderConfirmed consumes the stock backing a confirmed order. Orders
// placed through checkout already hold reservations, so confirming marks them
// consumed; reservation-less orders decrement the buckets directly.
func (c *Consumer) HandleOrderConfirmed(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderConfirmedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.confirmed data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.confirmed event",
		slog.String("order_id", data.OrderID),
		slog.String("checkout_id", data.CheckoutID),
	)

	if data.CheckoutID != "" {
		if err := c.service.ConfirmCheckout(ctx, data.CheckoutID); err != nil {
			return fmt.Errorf("confirm checkout %s: %w", data.CheckoutID, err)
		}
		return nil
	}

	for _, item := range data.Items {
		if _, err := c.service.DecreaseStock(ctx, item.ProductID, item.Size, item.Quantity); err != nil {
			// Insufficient stock on a confirmed order is a permanent
			// condition; retrying cannot succeed. Log loudly and move on.
			if errors.Is(err, apperrors.ErrInsufficientStock) {
				c.logger.ErrorContext(ctx, "confirmed order exceeds available stock",
					slog.String("order_id", data.OrderID),
					slog.String("product_id", item.ProductID),
					slog.String("size", item.Size),
					slog.Int("quantity", item.Quantity),
				)
				continue
			}
			return fmt.Errorf("decrease stock for order %s: %w", data.OrderID, err)
		}
	}

	return nil
}

// HandleOrderCanceled releases the stock held for a canceled order.
func (c *Consumer) HandleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCanceledData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.canceled data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.canceled event",
		slog.String("order_id", data.OrderID),
		slog.String("checkout_id", data.CheckoutID),
	)

	if data.CheckoutID == "" {
		return nil
	}

	if err := c.service.ReleaseCheckout(ctx, data.CheckoutID); err != nil {
		return fmt.Errorf("release checkout %s: %w", data.CheckoutID, err)
	}

	return nil
}
