// Package models holds the gorm models for the storefront schema.
//
// Rows are hard-deleted and carry UUID string keys. Migrations do not emit
// foreign-key constraints, so order history and ledger rows outlive the
// products they reference.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Size labels.
const (
	SizeXS       = "XS"
	SizeS        = "S"
	SizeM        = "M"
	SizeL        = "L"
	SizeXL       = "XL"
	SizeStandard = "Standard"
)

// Sizes is the default size run created for a new product.
var Sizes = []string{SizeXS, SizeS, SizeM, SizeL, SizeXL}

// IsSize reports whether label is a known size label.
func IsSize(label string) bool {
	if label == SizeStandard {
		return true
	}
	for _, s := range Sizes {
		if s == label {
			return true
		}
	}
	return false
}

// Base is embedded by every model with a UUID key and timestamps.
type Base struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (b *Base) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
