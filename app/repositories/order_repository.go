package repositories

import (
	"time"

	"github.com/shashiranjanraj/storefront/app/models"
	"gorm.io/gorm"
)

// OrderRepository handles orders and order items.
type OrderRepository struct{}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{}
}

func (r *OrderRepository) Create(db *gorm.DB, o *models.Order) error {
	return db.Omit("Items").Create(o).Error
}

func (r *OrderRepository) CreateItems(db *gorm.DB, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.Create(&items).Error
}

// Find loads an order with its items.
func (r *OrderRepository) Find(db *gorm.DB, id string) (models.Order, error) {
	var o models.Order
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at, id") }).
		Where("id = ?", id).First(&o).Error
	return o, err
}

// FindByIdempotencyKey loads the order created under key, with its items.
func (r *OrderRepository) FindByIdempotencyKey(db *gorm.DB, key string) (models.Order, error) {
	var o models.Order
	err := db.Preload("Items").Where("idempotency_key = ?", key).First(&o).Error
	return o, err
}

// Items returns every order item in insertion order.
func (r *OrderRepository) Items(db *gorm.DB) ([]models.OrderItem, error) {
	var items []models.OrderItem
	return items, db.Order("created_at, id").Find(&items).Error
}

// CreatedAt maps each existing order id in ids to its creation time.
func (r *OrderRepository) CreatedAt(db *gorm.DB, ids []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID        string
		CreatedAt time.Time
	}
	if err := db.Model(&models.Order{}).Select("id, created_at").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.CreatedAt
	}
	return out, nil
}
