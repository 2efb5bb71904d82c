package repositories

import (
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/money"
	"gorm.io/gorm"
)

// LedgerRepository appends to and reads the transactions table.
type LedgerRepository struct{}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{}
}

func (r *LedgerRepository) Append(db *gorm.DB, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.Create(&entries).Error
}

// OrderEntries returns every entry that references an order.
func (r *LedgerRepository) OrderEntries(db *gorm.DB) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := db.Where("order_id IS NOT NULL").Order("created_at, id").Find(&entries).Error
	return entries, err
}

// LedgerRow is a ledger entry joined with product and order display fields.
type LedgerRow struct {
	ID           string       `json:"id"`
	ProductID    string       `json:"product_id"`
	ProductName  *string      `json:"product_name"`
	ProductSKU   *string      `json:"product_sku"`
	OrderID      *string      `json:"order_id"`
	CustomerName *string      `json:"customer_name"`
	Type         string       `json:"type"`
	Size         string       `json:"size,omitempty"`
	Quantity     int          `json:"quantity"`
	TotalPrice   money.Amount `json:"total_price"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Recent returns up to limit entries, newest first.
func (r *LedgerRepository) Recent(db *gorm.DB, limit int) ([]LedgerRow, error) {
	var rows []LedgerRow
	err := db.Table("transactions AS t").
		Select(`t.id, t.product_id, p.name AS product_name, p.sku AS product_sku, t.order_id,
			o.full_name AS customer_name, t.type, t.size, t.quantity, t.total_price, t.created_at`).
		Joins("LEFT JOIN products p ON p.id = t.product_id").
		Joins("LEFT JOIN orders o ON o.id = t.order_id").
		Order("t.created_at DESC, t.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ForProduct returns a product's entries oldest first.
func (r *LedgerRepository) ForProduct(db *gorm.DB, productID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	return entries, db.Where("product_id = ?", productID).Order("created_at, id").Find(&entries).Error
}
