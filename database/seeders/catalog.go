package seeders

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

func init() {
	Register("categories", SeedCategories)
	Register("demo catalogue", SeedDemoCatalogue)
}

// Categories shown in the storefront navigation.
var Categories = []models.Category{
	{Name: "Formal Edit", Slug: "formal-edit"},
	{Name: "Wedding Edit", Slug: "wedding-edit"},
	{Name: "Luxury Unstitched", Slug: "luxury-unstitched"},
	{Name: "Easy Glam", Slug: "easy-glam"},
	{Name: "MNM Everywear", Slug: "mnm-everywear"},
	{Name: "Jewelry", Slug: "jewelry"},
	{Name: "Bags", Slug: "bags"},
}

func SeedCategories(ctx context.Context, db *gorm.DB) error {
	rows := append([]models.Category(nil), Categories...)
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

type demoProduct struct {
	category string
	input    services.ProductInput
}

var demoProducts = []demoProduct{
	{"formal-edit", services.ProductInput{
		Name: "Zarnigar Embroidered Kurta", SKU: "FE-ZAR-001", Price: money.FromMajor(18500),
		Description: "Hand-embroidered chiffon kurta with organza dupatta.",
		Sizes:       map[string]int{"XS": 2, "S": 6, "M": 8, "L": 5, "XL": 1},
	}},
	{"wedding-edit", services.ProductInput{
		Name: "Noor Bridal Lehenga", SKU: "WE-NOR-001", Price: money.FromMajor(145000),
		Description: "Zardozi lehenga with hand-finished borders.",
		Sizes:       map[string]int{"S": 1, "M": 2, "L": 1},
	}},
	{"luxury-unstitched", services.ProductInput{
		Name: "Gulbahar Lawn 3-Piece", SKU: "LU-GUL-001", Price: money.FromMajor(9250),
		Description: "Printed lawn shirt, cambric trouser and chiffon dupatta.",
		AvailableSizes: []string{"Standard"},
		Sizes:          map[string]int{"Standard": 40},
	}},
	{"easy-glam", services.ProductInput{
		Name: "Sitara Co-ord Set", SKU: "EG-SIT-001", Price: money.FromMajor(12900),
		Sizes: map[string]int{"XS": 3, "S": 4, "M": 4, "L": 3, "XL": 2},
	}},
	{"jewelry", services.ProductInput{
		Name: "Kundan Jhumka", SKU: "JW-KUN-001", Price: money.FromMajor(6500),
		AvailableSizes: []string{"Standard"},
		Sizes:          map[string]int{"Standard": 12},
	}},
	{"bags", services.ProductInput{
		Name: "Mehr Embellished Clutch", SKU: "BG-MEH-001", Price: money.FromMajor(8800),
		AvailableSizes: []string{"Standard"},
		Sizes:          map[string]int{"Standard": 7},
	}},
}

// SeedDemoCatalogue creates the demo products through the catalogue service
// so size rows, stock counts and restock entries are consistent. Products
// whose SKU already exists are skipped.
func SeedDemoCatalogue(ctx context.Context, db *gorm.DB) error {
	catalog := services.NewCatalogService(db, services.NewInventoryService(db))

	for _, d := range demoProducts {
		var existing int64
		if err := db.WithContext(ctx).Model(&models.Product{}).Where("sku = ?", d.input.SKU).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			continue
		}

		var cat models.Category
		err := db.WithContext(ctx).Where("slug = ?", d.category).Take(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		in := d.input
		in.CategoryID = cat.ID
		if _, err := catalog.CreateProduct(ctx, in); err != nil {
			return err
		}
	}
	return nil
}
