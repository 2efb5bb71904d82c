// Package jobs holds the background work that follows a committed order.
package jobs

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/messaging"
	"github.com/shashiranjanraj/storefront/pkg/queue"
)

// PublishOrderPlaced sends an order.placed event to the orders topic, keyed
// by order id so a consumer sees one order's events in order.
type PublishOrderPlaced struct {
	Event services.OrderPlaced `json:"event"`

	pub messaging.Publisher
}

func (PublishOrderPlaced) Name() string { return "orders.publish_placed" }

func (j *PublishOrderPlaced) Handle(ctx context.Context) error {
	if j.pub == nil {
		return fmt.Errorf("jobs: %s has no publisher", j.Name())
	}
	if err := j.pub.Publish(ctx, config.KafkaOrdersTopic(), j.Event.OrderID, j.Event); err != nil {
		return fmt.Errorf("jobs: publish order %s: %w", j.Event.OrderNumber, err)
	}
	return nil
}

// Register adds the jobs to m and subscribes the event listeners that feed
// it. Call it once at boot.
func Register(m *queue.Manager, pub messaging.Publisher) {
	m.Register(func() queue.Job { return &PublishOrderPlaced{pub: pub} })

	event.Listen(services.EventOrderPlaced, func(ctx context.Context, payload any) error {
		ev, ok := payload.(services.OrderPlaced)
		if !ok {
			return fmt.Errorf("jobs: unexpected %s payload %T", services.EventOrderPlaced, payload)
		}
		return m.Dispatch(ctx, &PublishOrderPlaced{Event: ev})
	})

	event.Listen(services.EventStockLow, func(ctx context.Context, payload any) error {
		ev, ok := payload.(services.StockLow)
		if !ok {
			return fmt.Errorf("jobs: unexpected %s payload %T", services.EventStockLow, payload)
		}
		logger.WithCtx(ctx).Warn("inventory: low stock",
			"product_id", ev.ProductID,
			"name", ev.Name,
			"stock_count", ev.StockCount,
			"threshold", ev.Threshold)
		return nil
	})
}
