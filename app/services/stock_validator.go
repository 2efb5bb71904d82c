package services

import (
	"context"
	"errors"
	"strconv"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// Messages reported on invalid validator lines.
const (
	MsgMissingFields     = "Missing required fields"
	MsgSizeNotFound      = "Size not found or out of stock"
	MsgInsufficientStock = "Insufficient stock"
)

// StockRequest asks whether quantity units of (product, size) are available.
type StockRequest struct {
	ProductID string
	Size      string
	Quantity  int
}

// LineResult is the validator verdict for one request.
type LineResult struct {
	ProductID      string `json:"id"`
	Size           string `json:"size"`
	RequestedQty   int    `json:"requestedQty"`
	AvailableStock int    `json:"availableStock"`
	Valid          bool   `json:"valid"`
	Error          string `json:"error,omitempty"`
}

// ValidationResult is valid only if every line is.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Items []LineResult `json:"items"`
}

// StockValidator is an advisory, read-only stock check. It reserves
// nothing; the order writer decides.
type StockValidator struct {
	db    *gorm.DB
	sizes *repositories.SizeStockRepository
}

func NewStockValidator(db *gorm.DB) *StockValidator {
	return &StockValidator{db: db, sizes: repositories.NewSizeStockRepository()}
}

// Validate checks each line with a single lookup. Business-level
// invalidity is reported in the result; only storage failures are errors.
func (v *StockValidator) Validate(ctx context.Context, lines []StockRequest) (ValidationResult, error) {
	res := ValidationResult{Valid: true, Items: make([]LineResult, 0, len(lines))}
	db := v.db.WithContext(ctx)

	for _, l := range lines {
		item := LineResult{ProductID: l.ProductID, Size: l.Size, RequestedQty: l.Quantity}

		switch {
		case l.ProductID == "" || l.Size == "" || l.Quantity == 0:
			item.Error = MsgMissingFields
		case l.Quantity < 0:
			item.Error = "Quantity must be positive"
		default:
			row, err := v.sizes.Find(db, l.ProductID, l.Size)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				item.Error = MsgSizeNotFound
			case err != nil:
				return ValidationResult{}, upstream("validate stock", err)
			default:
				item.AvailableStock = row.Quantity
				item.Valid = l.Quantity <= row.Quantity
				if !item.Valid {
					item.Error = MsgInsufficientStock
				}
			}
		}

		metrics.StockValidations.WithLabelValues(strconv.FormatBool(item.Valid)).Inc()
		res.Valid = res.Valid && item.Valid
		res.Items = append(res.Items, item)
	}
	return res, nil
}
