// Package repositories wraps gorm queries for the storefront tables. Every
// method takes the *gorm.DB it runs on so callers can pass a transaction.
package repositories

import (
	"github.com/shashiranjanraj/storefront/app/models"
	"gorm.io/gorm"
)

// ProductRepository handles database operations for Product and Category.
type ProductRepository struct{}

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

// Find loads a product with its size rows.
func (r *ProductRepository) Find(db *gorm.DB, id string) (models.Product, error) {
	var p models.Product
	err := db.Preload("Sizes", sizeOrder).Where("id = ?", id).First(&p).Error
	return p, err
}

// List returns products newest first, optionally filtered by category.
func (r *ProductRepository) List(db *gorm.DB, categoryID string) ([]models.Product, error) {
	q := db.Preload("Sizes", sizeOrder).Order("created_at desc")
	if categoryID != "" {
		q = q.Where("category_id = ?", categoryID)
	}
	var products []models.Product
	return products, q.Find(&products).Error
}

// Exists reports which of ids are present in products.
func (r *ProductRepository) Exists(db *gorm.DB, ids []string) (map[string]bool, error) {
	var found []string
	if len(ids) > 0 {
		if err := db.Model(&models.Product{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			return nil, err
		}
	}
	out := make(map[string]bool, len(found))
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

func (r *ProductRepository) Create(db *gorm.DB, p *models.Product) error {
	return db.Omit("Sizes").Create(p).Error
}

// Update writes the given columns.
func (r *ProductRepository) Update(db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return db.Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error
}

// Delete removes a product and its size rows. Order items and ledger rows
// are left in place.
func (r *ProductRepository) Delete(db *gorm.DB, id string) error {
	if err := db.Where("product_id = ?", id).Delete(&models.SizeStock{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecomputeStock sets stock_count to the sum of the product's size rows.
func (r *ProductRepository) RecomputeStock(db *gorm.DB, id string) error {
	sum := db.Model(&models.SizeStock{}).Select("COALESCE(SUM(quantity), 0)").Where("product_id = ?", id)
	return db.Model(&models.Product{}).Where("id = ?", id).
		UpdateColumn("stock_count", sum).Error
}

// WithoutSizes returns products that have no size rows at all.
func (r *ProductRepository) WithoutSizes(db *gorm.DB) ([]models.Product, error) {
	var products []models.Product
	err := db.Where("NOT EXISTS (SELECT 1 FROM product_sizes ps WHERE ps.product_id = products.id)").
		Order("created_at").Find(&products).Error
	return products, err
}

// Categories returns every category ordered by name.
func (r *ProductRepository) Categories(db *gorm.DB) ([]models.Category, error) {
	var cats []models.Category
	return cats, db.Order("name").Find(&cats).Error
}

func (r *ProductRepository) CategoryExists(db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.Model(&models.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func sizeOrder(db *gorm.DB) *gorm.DB {
	return db.Order("CASE size WHEN 'XS' THEN 1 WHEN 'S' THEN 2 WHEN 'M' THEN 3 WHEN 'L' THEN 4 WHEN 'XL' THEN 5 ELSE 6 END")
}

// Get loads a product without its size rows.
func (r *ProductRepository) Get(db *gorm.DB, id string) (models.Product, error) {
	var p models.Product
	err := db.Where("id = ?", id).Take(&p).Error
	return p, err
}

// FindMany loads the products in ids without their size rows.
func (r *ProductRepository) FindMany(db *gorm.DB, ids []string) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	return products, db.Where("id IN ?", ids).Find(&products).Error
}

// SKUTaken reports whether another product already uses sku.
func (r *ProductRepository) SKUTaken(db *gorm.DB, sku, exceptID string) (bool, error) {
	var n int64
	q := db.Model(&models.Product{}).Where("sku = ?", sku)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}
