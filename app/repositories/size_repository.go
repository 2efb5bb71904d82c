package repositories

import (
	"errors"
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrBadQuantity is returned by Decrement for a quantity below one.
var ErrBadQuantity = errors.New("repositories: decrement quantity must be positive")

// SizeStockRepository handles the product_sizes counters.
type SizeStockRepository struct{}

func NewSizeStockRepository() *SizeStockRepository {
	return &SizeStockRepository{}
}

// Find returns the row for (productID, size) or gorm.ErrRecordNotFound.
func (r *SizeStockRepository) Find(db *gorm.DB, productID, size string) (models.SizeStock, error) {
	var s models.SizeStock
	err := db.Where("product_id = ? AND size = ?", productID, size).Take(&s).Error
	return s, err
}

func (r *SizeStockRepository) ListByProduct(db *gorm.DB, productID string) ([]models.SizeStock, error) {
	var rows []models.SizeStock
	return rows, db.Where("product_id = ?", productID).Find(&rows).Error
}

// Decrement subtracts qty only if at least qty units remain. It reports
// whether a row was changed; false means the size is missing or short.
func (r *SizeStockRepository) Decrement(db *gorm.DB, productID, size string, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrBadQuantity
	}
	res := db.Model(&models.SizeStock{}).
		Where("product_id = ? AND size = ? AND quantity >= ?", productID, size, qty).
		UpdateColumns(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// Upsert sets the quantity for (productID, size), inserting the row if needed.
func (r *SizeStockRepository) Upsert(db *gorm.DB, productID, size string, qty int) error {
	row := models.SizeStock{ProductID: productID, Size: size, Quantity: qty}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "size"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&row).Error
}

// CreateMissing inserts rows that do not exist yet and leaves existing rows alone.
func (r *SizeStockRepository) CreateMissing(db *gorm.DB, rows []models.SizeStock) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
