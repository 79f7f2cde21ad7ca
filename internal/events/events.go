// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one line of an OrderCreated event.
type OrderItem struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderCreated is emitted after an order has been committed.
type OrderCreated struct {
	OrderID   uint            `json:"order_id"`
	UserID    uint            `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Items     []OrderItem     `json:"items"`
	CreatedAt time.Time       `json:"created_at"`
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, evt OrderCreated) error
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, OrderCreated) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
