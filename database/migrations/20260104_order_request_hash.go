package migrations

import (
	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260104000000_add_request_hash_to_orders", &AddRequestHashToOrders{})
}

// AddRequestHashToOrders binds each idempotency key to the payload it was
// first used with. Orders created before it have no hash and still replay.
type AddRequestHashToOrders struct{}

func (m *AddRequestHashToOrders) Up(db *gorm.DB) error {
	if db.Migrator().HasColumn(&models.Order{}, "RequestHash") {
		return nil
	}
	return db.Migrator().AddColumn(&models.Order{}, "RequestHash")
}

func (m *AddRequestHashToOrders) Down(db *gorm.DB) error {
	if !db.Migrator().HasColumn(&models.Order{}, "RequestHash") {
		return nil
	}
	return db.Migrator().DropColumn(&models.Order{}, "RequestHash")
}
