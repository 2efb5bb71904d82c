package services

import (
	"context"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

// Event names fired after a commit.
const (
	EventOrderPlaced = "order.placed"
	EventStockLow    = "stock.low"
)

// OrderPlaced is the order.placed payload.
type OrderPlaced struct {
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	CustomerID  string            `json:"customer_id"`
	Email       string            `json:"email"`
	Total       money.Amount      `json:"total_amount"`
	Currency    string            `json:"currency"`
	Items       []OrderPlacedItem `json:"items"`
}

type OrderPlacedItem struct {
	ProductID string       `json:"product_id"`
	Size      string       `json:"size"`
	Quantity  int          `json:"quantity"`
	Price     money.Amount `json:"price"`
}

func newOrderPlaced(o models.Order) OrderPlaced {
	ev := OrderPlaced{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Email:       o.Email,
		Total:       o.TotalAmount,
		Currency:    o.Currency,
		Items:       make([]OrderPlacedItem, len(o.Items)),
	}
	for i, it := range o.Items {
		ev.Items[i] = OrderPlacedItem{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity, Price: it.Price}
	}
	return ev
}

// StockLow is the stock.low payload.
type StockLow struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	StockCount int    `json:"stock_count"`
	Threshold  int    `json:"threshold"`
}

// trackLowStock updates the low-stock gauge for products and fires
// stock.low for those at or below their threshold.
func trackLowStock(ctx context.Context, products []models.Product) {
	def := config.LowStockThreshold()
	for _, p := range products {
		if !p.IsLowStock(def) {
			metrics.LowStockProducts.WithLabelValues(p.ID).Set(0)
			continue
		}
		metrics.LowStockProducts.WithLabelValues(p.ID).Set(1)
		threshold := p.LowStockThreshold
		if threshold <= 0 {
			threshold = def
		}
		event.FireAsync(ctx, EventStockLow, StockLow{ProductID: p.ID, Name: p.Name, StockCount: p.StockCount, Threshold: threshold})
	}
}
