package models

import "github.com/shashiranjanraj/storefront/pkg/money"

// Category groups products on the storefront.
type Category struct {
	Base
	Name string `gorm:"size:255;not null"             json:"name"`
	Slug string `gorm:"size:255;not null;uniqueIndex" json:"slug"`
}

// Product represents a product in the catalogue. StockCount is the sum of
// its SizeStock rows and is only written by recomputing that sum.
type Product struct {
	Base
	Name              string       `gorm:"size:255;not null;index" json:"name"`
	Description       string       `gorm:"type:text"               json:"description"`
	SKU               string       `gorm:"size:100;uniqueIndex"    json:"sku"`
	Price             money.Amount `gorm:"not null;default:0"      json:"price"`
	CategoryID        string       `gorm:"type:varchar(36);index"  json:"category_id"`
	StockCount        int          `gorm:"not null;default:0"      json:"stock_count"`
	LowStockThreshold int          `gorm:"not null;default:10"     json:"low_stock_threshold"`
	ImageURL          string       `gorm:"size:1024"               json:"image_url,omitempty"`

	Sizes []SizeStock `gorm:"foreignKey:ProductID" json:"-"`
}

// IsLowStock reports whether the aggregate stock is at or below the
// product's threshold. A zero threshold falls back to def.
func (p Product) IsLowStock(def int) bool {
	threshold := p.LowStockThreshold
	if threshold <= 0 {
		threshold = def
	}
	return p.StockCount <= threshold
}

// SizeMap returns the size rows as {size: quantity}.
func (p Product) SizeMap() map[string]int {
	out := make(map[string]int, len(p.Sizes))
	for _, s := range p.Sizes {
		out[s.Size] = s.Quantity
	}
	return out
}

// SizeStock is the sellable-unit counter for one (product, size).
type SizeStock struct {
	Base
	ProductID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_product_size"  json:"product_id"`
	Size      string `gorm:"size:16;not null;uniqueIndex:idx_product_size"           json:"size"`
	Quantity  int    `gorm:"not null;default:0;check:chk_product_sizes_qty,quantity >= 0" json:"quantity"`
}

func (SizeStock) TableName() string { return "product_sizes" }
