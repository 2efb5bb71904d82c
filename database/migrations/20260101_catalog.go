package migrations

import (
	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260101000000_create_categories_table", &CreateCategoriesTable{})
	migration.Register("20260101000001_create_products_table", &CreateProductsTable{})
	migration.Register("20260101000002_create_product_sizes_table", &CreateProductSizesTable{})
}

// -------- categories --------

type CreateCategoriesTable struct{}

func (m *CreateCategoriesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Category{})
}

func (m *CreateCategoriesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("categories")
}

// -------- products --------

type CreateProductsTable struct{}

func (m *CreateProductsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{})
}

func (m *CreateProductsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("products")
}

// -------- product_sizes: UNIQUE (product_id, size), quantity >= 0 --------

type CreateProductSizesTable struct{}

func (m *CreateProductSizesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.SizeStock{})
}

func (m *CreateProductSizesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("product_sizes")
}
