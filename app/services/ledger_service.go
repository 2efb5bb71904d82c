package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// BackfillReportDir is where run reports are archived on the storage disk.
const BackfillReportDir = "reports/ledger-backfill"

// BackfillReport summarises one backfill run.
type BackfillReport struct {
	Inserted             int       `json:"inserted"`
	SkippedMissingFK     int       `json:"skipped_missing_fk"`
	SkippedAlreadyExists int       `json:"skipped_already_exists"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	Log                  []string  `json:"log"`
	// ArchivedAt is the storage path of the archived report, if any.
	ArchivedAt string `json:"archived_at,omitempty"`
}

func (r *BackfillReport) logf(format string, args ...any) {
	r.Log = append(r.Log, fmt.Sprintf(format, args...))
}

// LedgerService reads the transactions ledger and repairs missing order
// entries.
type LedgerService struct {
	db       *gorm.DB
	products *repositories.ProductRepository
	orders   *repositories.OrderRepository
	ledger   *repositories.LedgerRepository
	disk     storage.Disk
}

// NewLedgerService archives backfill reports to disk; a nil disk skips it.
func NewLedgerService(db *gorm.DB, disk storage.Disk) *LedgerService {
	return &LedgerService{
		db:       db,
		products: repositories.NewProductRepository(),
		orders:   repositories.NewOrderRepository(),
		ledger:   repositories.NewLedgerRepository(),
		disk:     disk,
	}
}

// Recent returns up to limit entries newest first. limit is clamped to 1..500.
func (s *LedgerService) Recent(ctx context.Context, limit int) ([]repositories.LedgerRow, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	rows, err := s.ledger.Recent(s.db.WithContext(ctx), limit)
	if err != nil {
		return nil, upstream("list transactions", err)
	}
	if rows == nil {
		rows = []repositories.LedgerRow{}
	}
	return rows, nil
}

type orderProduct struct{ orderID, productID string }

// Backfill inserts an order ledger entry for every order item that has
// none. Items whose order or product no longer exists are skipped and
// counted. An item counts as ledgered when an entry carries its item id,
// or when an entry without an item id for the same (order, product) is
// still unclaimed. Running it twice inserts nothing the second time.
func (s *LedgerService) Backfill(ctx context.Context) (BackfillReport, error) {
	report := BackfillReport{StartedAt: time.Now().UTC()}
	report.logf("Starting backfill")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := s.orders.Items(tx)
		if err != nil {
			return upstream("list order items", err)
		}
		report.logf("Found %d order items", len(items))
		if len(items) == 0 {
			return nil
		}

		var orderIDs, productIDs []string
		seenOrder, seenProduct := map[string]bool{}, map[string]bool{}
		for _, it := range items {
			if !seenOrder[it.OrderID] {
				seenOrder[it.OrderID] = true
				orderIDs = append(orderIDs, it.OrderID)
			}
			if !seenProduct[it.ProductID] {
				seenProduct[it.ProductID] = true
				productIDs = append(productIDs, it.ProductID)
			}
		}

		orderDates, err := s.orders.CreatedAt(tx, orderIDs)
		if err != nil {
			return upstream("load orders", err)
		}
		products, err := s.products.Exists(tx, productIDs)
		if err != nil {
			return upstream("load products", err)
		}
		report.logf("Loaded %d orders and %d products", len(orderDates), len(products))

		entries, err := s.ledger.OrderEntries(tx)
		if err != nil {
			return upstream("load ledger", err)
		}
		byItem := map[string]bool{}
		legacy := map[orderProduct]int{}
		for _, e := range entries {
			if e.OrderItemID != nil {
				byItem[*e.OrderItemID] = true
				continue
			}
			legacy[orderProduct{*e.OrderID, e.ProductID}]++
		}

		var inserts []models.LedgerEntry
		for _, it := range items {
			createdAt, orderOK := orderDates[it.OrderID]
			if !orderOK || !products[it.ProductID] {
				report.SkippedMissingFK++
				continue
			}
			if byItem[it.ID] {
				report.SkippedAlreadyExists++
				continue
			}
			key := orderProduct{it.OrderID, it.ProductID}
			if legacy[key] > 0 {
				legacy[key]--
				report.SkippedAlreadyExists++
				continue
			}

			orderID, itemID := it.OrderID, it.ID
			qty := it.Quantity
			if qty < 0 {
				qty = -qty
			}
			inserts = append(inserts, models.LedgerEntry{
				ProductID:   it.ProductID,
				OrderID:     &orderID,
				OrderItemID: &itemID,
				Type:        models.LedgerTypeOrder,
				Size:        it.Size,
				Quantity:    qty,
				TotalPrice:  it.Price.Mul(it.Quantity),
				CreatedAt:   createdAt,
			})
		}

		report.logf("Prepared %d new transactions", len(inserts))
		report.logf("Skipped %d items due to missing product or order", report.SkippedMissingFK)
		report.logf("Skipped %d items already in transactions", report.SkippedAlreadyExists)

		if len(inserts) == 0 {
			report.logf("Nothing new to insert")
			return nil
		}
		if err := tx.CreateInBatches(&inserts, 200).Error; err != nil {
			return upstream("insert ledger entries", err)
		}
		report.Inserted = len(inserts)
		report.logf("Inserted %d transactions", report.Inserted)
		return nil
	})
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		logger.WithCtx(ctx).Error("ledger: backfill failed", "error", err)
		return report, err
	}

	metrics.LedgerBackfill.WithLabelValues("inserted").Add(float64(report.Inserted))
	metrics.LedgerBackfill.WithLabelValues("skipped_missing_fk").Add(float64(report.SkippedMissingFK))
	metrics.LedgerBackfill.WithLabelValues("skipped_exists").Add(float64(report.SkippedAlreadyExists))

	s.archive(ctx, &report)
	logger.WithCtx(ctx).Info("ledger: backfill done",
		"inserted", report.Inserted,
		"skipped_missing_fk", report.SkippedMissingFK,
		"skipped_exists", report.SkippedAlreadyExists)
	return report, nil
}

// archive writes the report as JSON. Failures are logged, not returned:
// the backfill has already committed.
func (s *LedgerService) archive(ctx context.Context, report *BackfillReport) {
	if s.disk == nil {
		return
	}
	path := fmt.Sprintf("%s/%s.json", BackfillReportDir, report.StartedAt.Format("20060102T150405.000000000Z"))
	report.ArchivedAt = path
	body, err := json.MarshalIndent(report, "", "  ")
	if err == nil {
		err = s.disk.Put(ctx, path, body, "application/json")
	}
	if err != nil {
		report.ArchivedAt = ""
		logger.WithCtx(ctx).Warn("ledger: archive backfill report failed", "path", path, "error", err)
	}
}

// Reports lists archived report paths, oldest first.
func (s *LedgerService) Reports(ctx context.Context) ([]string, error) {
	if s.disk == nil {
		return nil, nil
	}
	return s.disk.Files(ctx, BackfillReportDir)
}
