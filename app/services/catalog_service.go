package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

// ProductView is a product as served to the storefront.
type ProductView struct {
	models.Product
	Sizes          map[string]int `json:"sizes"`
	Stock          int            `json:"stock"`
	LowStock       bool           `json:"low_stock"`
	Currency       string         `json:"currency"`
	AvailableSizes []string       `json:"available_sizes"`
}

func newProductView(p models.Product) ProductView {
	sizes := p.SizeMap()
	stock := 0
	available := make([]string, 0, len(p.Sizes))
	for _, s := range p.Sizes {
		stock += s.Quantity
		available = append(available, s.Size)
	}
	if len(available) == 0 {
		available = append(available, models.Sizes...)
	}
	return ProductView{
		Product:        p,
		Sizes:          sizes,
		Stock:          stock,
		LowStock:       p.IsLowStock(config.LowStockThreshold()),
		Currency:       config.Currency(),
		AvailableSizes: available,
	}
}

// ProductInput creates a product. Every size in AvailableSizes (default
// XS..XL) gets a row; Sizes sets initial quantities.
type ProductInput struct {
	Name              string
	Description       string
	SKU               string
	Price             money.Amount
	CategoryID        string
	LowStockThreshold int
	ImageURL          string
	AvailableSizes    []string
	Sizes             map[string]int
}

// ProductPatch updates a product; nil fields are left alone.
type ProductPatch struct {
	Name              *string
	Description       *string
	SKU               *string
	Price             *money.Amount
	CategoryID        *string
	LowStockThreshold *int
	ImageURL          *string
	Sizes             map[string]int
}

// CatalogService serves and edits the product catalogue. Reads are cached
// under a generation key that every write rotates.
type CatalogService struct {
	db        *gorm.DB
	products  *repositories.ProductRepository
	inventory *InventoryService
	ttl       time.Duration
}

func NewCatalogService(db *gorm.DB, inventory *InventoryService) *CatalogService {
	return &CatalogService{
		db:        db,
		products:  repositories.NewProductRepository(),
		inventory: inventory,
		ttl:       config.CatalogCacheTTL(),
	}
}

const catalogGenKey = "catalog:gen"

func catalogKey(ctx context.Context, parts ...string) string {
	var gen string
	if !cache.Get(ctx, catalogGenKey, &gen) {
		gen = "0"
	}
	return "catalog:" + gen + ":" + strings.Join(parts, ":")
}

// invalidateCatalog drops every cached catalogue read.
func invalidateCatalog(ctx context.Context, productIDs ...string) {
	if err := cache.Set(ctx, catalogGenKey, uuid.NewString(), 0); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache invalidation failed", "error", err, "products", productIDs)
	}
}

// Products lists products newest first, optionally for one category.
func (s *CatalogService) Products(ctx context.Context, categoryID string) ([]ProductView, error) {
	return cache.Remember(ctx, catalogKey(ctx, "products", categoryID), s.ttl, func() ([]ProductView, error) {
		products, err := s.products.List(s.db.WithContext(ctx), categoryID)
		if err != nil {
			return nil, upstream("list products", err)
		}
		views := make([]ProductView, len(products))
		for i, p := range products {
			views[i] = newProductView(p)
		}
		return views, nil
	})
}

// Product returns one product or ErrNotFound.
func (s *CatalogService) Product(ctx context.Context, id string) (ProductView, error) {
	return cache.Remember(ctx, catalogKey(ctx, "product", id), s.ttl, func() (ProductView, error) {
		p, err := s.products.Find(s.db.WithContext(ctx), id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductView{}, ErrNotFound
		}
		if err != nil {
			return ProductView{}, upstream("find product", err)
		}
		return newProductView(p), nil
	})
}

// Categories lists categories by name.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	return cache.Remember(ctx, catalogKey(ctx, "categories"), s.ttl, func() ([]models.Category, error) {
		cats, err := s.products.Categories(s.db.WithContext(ctx))
		if err != nil {
			return nil, upstream("list categories", err)
		}
		return cats, nil
	})
}

// CreateProduct inserts a product, its size rows and their initial
// quantities.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (ProductView, error) {
	if err := validateSizes(in.Sizes); err != nil {
		return ProductView{}, err
	}

	run := in.AvailableSizes
	if len(run) == 0 {
		run = models.Sizes
	}
	sizes := make(map[string]int, len(run))
	for _, size := range run {
		if !models.IsSize(size) {
			return ProductView{}, invalid("available_sizes", "Unknown size \""+size+"\".")
		}
		sizes[size] = 0
	}
	for size, qty := range in.Sizes {
		sizes[size] = qty
	}

	var created models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireCategory(tx, in.CategoryID); err != nil {
			return err
		}
		if err := s.requireFreeSKU(tx, in.SKU, ""); err != nil {
			return err
		}
		p := models.Product{
			Name:              in.Name,
			Description:       in.Description,
			SKU:               in.SKU,
			Price:             in.Price,
			CategoryID:        in.CategoryID,
			LowStockThreshold: in.LowStockThreshold,
			ImageURL:          in.ImageURL,
		}
		if p.LowStockThreshold <= 0 {
			p.LowStockThreshold = config.LowStockThreshold()
		}
		if err := s.products.Create(tx, &p); err != nil {
			return upstream("create product", err)
		}
		if err := s.inventory.apply(tx, p, sizes); err != nil {
			return err
		}
		var err error
		created, err = s.products.Find(tx, p.ID)
		if err != nil {
			return upstream("reload product", err)
		}
		return nil
	})
	if err != nil {
		return ProductView{}, err
	}

	logger.WithCtx(ctx).Info("catalog: product created", "product_id", created.ID, "sku", created.SKU)
	invalidateCatalog(ctx, created.ID)
	trackLowStock(ctx, []models.Product{created})
	return newProductView(created), nil
}

// UpdateProduct applies patch. Changing the price never touches existing
// order items.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (ProductView, error) {
	if err := validateSizes(patch.Sizes); err != nil {
		return ProductView{}, err
	}

	var updated models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.products.Get(tx, id); errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		} else if err != nil {
			return upstream("load product", err)
		}

		fields := map[string]any{}
		if patch.Name != nil {
			fields["name"] = *patch.Name
		}
		if patch.Description != nil {
			fields["description"] = *patch.Description
		}
		if patch.SKU != nil {
			if err := s.requireFreeSKU(tx, *patch.SKU, id); err != nil {
				return err
			}
			fields["sku"] = *patch.SKU
		}
		if patch.Price != nil {
			fields["price"] = *patch.Price
		}
		if patch.CategoryID != nil {
			if err := s.requireCategory(tx, *patch.CategoryID); err != nil {
				return err
			}
			fields["category_id"] = *patch.CategoryID
		}
		if patch.LowStockThreshold != nil {
			fields["low_stock_threshold"] = *patch.LowStockThreshold
		}
		if patch.ImageURL != nil {
			fields["image_url"] = *patch.ImageURL
		}
		if err := s.products.Update(tx, id, fields); err != nil {
			return upstream("update product", err)
		}

		if patch.Sizes != nil {
			p, err := s.products.Get(tx, id)
			if err != nil {
				return upstream("load product", err)
			}
			if err := s.inventory.apply(tx, p, patch.Sizes); err != nil {
				return err
			}
		}

		var err error
		updated, err = s.products.Find(tx, id)
		if err != nil {
			return upstream("reload product", err)
		}
		return nil
	})
	if err != nil {
		return ProductView{}, err
	}

	invalidateCatalog(ctx, id)
	trackLowStock(ctx, []models.Product{updated})
	return newProductView(updated), nil
}

// DeleteProduct hard-deletes a product and its size rows.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.products.Delete(tx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return upstream("delete product", err)
	}
	logger.WithCtx(ctx).Info("catalog: product deleted", "product_id", id)
	invalidateCatalog(ctx, id)
	return nil
}

func (s *CatalogService) requireCategory(tx *gorm.DB, id string) error {
	ok, err := s.products.CategoryExists(tx, id)
	if err != nil {
		return upstream("check category", err)
	}
	if !ok {
		return &ReferentialIntegrityError{Entity: "category", ID: id, Line: -1}
	}
	return nil
}

func (s *CatalogService) requireFreeSKU(tx *gorm.DB, sku, exceptID string) error {
	taken, err := s.products.SKUTaken(tx, sku, exceptID)
	if err != nil {
		return upstream("check sku", err)
	}
	if taken {
		return invalid("sku", "The sku has already been taken.")
	}
	return nil
}
