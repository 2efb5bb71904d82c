package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

// InventoryService applies admin stock edits.
type InventoryService struct {
	db             *gorm.DB
	products       *repositories.ProductRepository
	sizes          *repositories.SizeStockRepository
	ledger         *repositories.LedgerRepository
	recordRestocks bool
}

func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{
		db:             db,
		products:       repositories.NewProductRepository(),
		sizes:          repositories.NewSizeStockRepository(),
		ledger:         repositories.NewLedgerRepository(),
		recordRestocks: config.LedgerRecordRestocks(),
	}
}

// RecordRestocks toggles restock ledger entries for manual edits.
func (s *InventoryService) RecordRestocks(on bool) { s.recordRestocks = on }

// SetSizeQuantities upserts each (product, size) quantity and recomputes the
// product's stock_count. Sizes not named keep their quantity.
func (s *InventoryService) SetSizeQuantities(ctx context.Context, productID string, sizes map[string]int) (models.Product, error) {
	if err := validateSizes(sizes); err != nil {
		return models.Product{}, err
	}

	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.products.Get(tx, productID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return upstream("load product", err)
		}
		if err := s.apply(tx, p, sizes); err != nil {
			return err
		}
		product, err = s.products.Find(tx, productID)
		if err != nil {
			return upstream("reload product", err)
		}
		return nil
	})
	if err != nil {
		return models.Product{}, err
	}

	logger.WithCtx(ctx).Info("inventory: sizes updated", "product_id", productID, "stock_count", product.StockCount)
	invalidateCatalog(ctx, productID)
	trackLowStock(ctx, []models.Product{product})
	return product, nil
}

// apply writes sizes for p inside tx. With restock recording on, every size
// whose quantity changed gets a restock entry carrying the signed delta.
func (s *InventoryService) apply(tx *gorm.DB, p models.Product, sizes map[string]int) error {
	current, err := s.sizes.ListByProduct(tx, p.ID)
	if err != nil {
		return upstream("list sizes", err)
	}
	before := make(map[string]int, len(current))
	for _, row := range current {
		before[row.Size] = row.Quantity
	}

	labels := make([]string, 0, len(sizes))
	for size := range sizes {
		labels = append(labels, size)
	}
	sort.Strings(labels)

	var entries []models.LedgerEntry
	for _, size := range labels {
		qty := sizes[size]
		if err := s.sizes.Upsert(tx, p.ID, size, qty); err != nil {
			return upstream("upsert size", err)
		}
		if delta := qty - before[size]; delta != 0 && s.recordRestocks {
			total, err := p.Price.CheckedMul(delta)
			if err != nil {
				return invalid("sizes."+size, "The stock change is too large to value at the current price.")
			}
			entries = append(entries, models.LedgerEntry{
				ProductID:  p.ID,
				Type:       models.LedgerTypeRestock,
				Size:       size,
				Quantity:   delta,
				TotalPrice: total,
			})
		}
	}

	if err := s.products.RecomputeStock(tx, p.ID); err != nil {
		return upstream("recompute stock", err)
	}
	if err := s.ledger.Append(tx, entries); err != nil {
		return upstream("append restock ledger", err)
	}
	return nil
}

func validateSizes(sizes map[string]int) error {
	fields := map[string]string{}
	for size, qty := range sizes {
		switch {
		case !models.IsSize(size):
			fields["sizes."+size] = fmt.Sprintf("Unknown size %q.", size)
		case qty < 0:
			fields["sizes."+size] = "The quantity must be at least 0."
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// SizeMigrationReport summarises MigrateSizes.
type SizeMigrationReport struct {
	Products    int `json:"products"`
	RowsCreated int `json:"rows_created"`
}

// MigrateSizes gives every product without size rows the default size run,
// with its current stock_count on M and zero elsewhere. Products that
// already have any size row are left alone, so repeated runs are no-ops.
func (s *InventoryService) MigrateSizes(ctx context.Context) (SizeMigrationReport, error) {
	var (
		report  SizeMigrationReport
		touched []string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		products, err := s.products.WithoutSizes(tx)
		if err != nil {
			return upstream("list products without sizes", err)
		}
		for _, p := range products {
			rows := make([]models.SizeStock, len(models.Sizes))
			for i, size := range models.Sizes {
				rows[i] = models.SizeStock{ProductID: p.ID, Size: size}
				if size == models.SizeM {
					rows[i].Quantity = p.StockCount
				}
			}
			if err := s.sizes.CreateMissing(tx, rows); err != nil {
				return upstream("create sizes", err)
			}
			if err := s.products.RecomputeStock(tx, p.ID); err != nil {
				return upstream("recompute stock", err)
			}
			report.Products++
			report.RowsCreated += len(rows)
			touched = append(touched, p.ID)
		}
		return nil
	})
	if err != nil {
		return SizeMigrationReport{}, err
	}

	logger.WithCtx(ctx).Info("inventory: size rows migrated", "products", report.Products, "rows", report.RowsCreated)
	invalidateCatalog(ctx, touched...)
	return report, nil
}
