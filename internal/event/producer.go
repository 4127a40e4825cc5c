package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/RahulXTmCoding/desi-otaku-catalog/pkg/kafka"
)

// Kafka topics published by the inventory store.
var (
	TopicInventoryUpdated    = pkgkafka.Topic("inventory", "updated")
	TopicInventoryLowStock   = pkgkafka.Topic("inventory", "low_stock")
	TopicInventoryOutOfStock = pkgkafka.Topic("inventory", "out_of_stock")
	TopicInventoryRestocked  = pkgkafka.Topic("inventory", "restocked")
)

// Aggregate type constant.
const AggregateTypeInventory = "inventory"

// Source identifier for events originating from this service.
const SourceCatalogService = "catalog-service"

// InventoryUpdatedData is the payload for an inventory.updated event.
type InventoryUpdatedData struct {
	ProductID  string `json:"product_id"`
	Size       string `json:"size,omitempty"`
	TotalStock int    `json:"total_stock"`
}

// StockAlertData is the payload for low_stock, out_of_stock, and restocked
// events. Available is the aggregate stock across all size buckets at the
// moment of the transition.
type StockAlertData struct {
	ProductID         string `json:"product_id"`
	Available         int    `json:"available"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// Publisher publishes inventory domain events. Implementations must not be
// relied on for correctness: stock mutations commit before publishing, and
// publish failures are logged, never propagated.
type Publisher interface {
	PublishInventoryUpdated(ctx context.Context, data InventoryUpdatedData) error
	PublishLowStock(ctx context.Context, data StockAlertData) error
	PublishOutOfStock(ctx context.Context, data StockAlertData) error
	PublishRestocked(ctx context.Context, data StockAlertData) error
}

// Producer publishes inventory domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishInventoryUpdated publishes an inventory.updated event.
func (p *Producer) PublishInventoryUpdated(ctx context.Context, data InventoryUpdatedData) error {
	if err := p.publish(ctx, TopicInventoryUpdated, data.ProductID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published inventory.updated event",
		slog.String("product_id", data.ProductID),
		slog.Int("total_stock", data.TotalStock),
	)
	return nil
}

// PublishLowStock publishes an inventory.low_stock event.
func (p *Producer) PublishLowStock(ctx context.Context, data StockAlertData) error {
	if err := p.publish(ctx, TopicInventoryLowStock, data.ProductID, data); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "published inventory.low_stock event",
		slog.String("product_id", data.ProductID),
		slog.Int("available", data.Available),
		slog.Int("threshold", data.LowStockThreshold),
	)
	return nil
}

// PublishOutOfStock publishes an inventory.out_of_stock event.
func (p *Producer) PublishOutOfStock(ctx context.Context, data StockAlertData) error {
	if err := p.publish(ctx, TopicInventoryOutOfStock, data.ProductID, data); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "published inventory.out_of_stock event",
		slog.String("product_id", data.ProductID),
	)
	return nil
}

// PublishRestocked publishes an inventory.restocked event.
func (p *Producer) PublishRestocked(ctx context.Context, data StockAlertData) error {
	if err := p.publish(ctx, TopicInventoryRestocked, data.ProductID, data); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "published inventory.restocked event",
		slog.String("product_id", data.ProductID),
		slog.Int("available", data.Available),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypeInventory, SourceCatalogService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

var _ Publisher = (*Producer)(nil)

// NoopPublisher discards all events. Used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishInventoryUpdated(context.Context, InventoryUpdatedData) error { return nil }
func (NoopPublisher) PublishLowStock(context.Context, StockAlertData) error               { return nil }
func (NoopPublisher) PublishOutOfStock(context.Context, StockAlertData) error             { return nil }
func (NoopPublisher) PublishRestocked(context.Context, StockAlertData) error              { return nil }
