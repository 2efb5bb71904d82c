package migrations

import (
	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260102000000_create_customers_table", &CreateCustomersTable{})
	migration.Register("20260102000001_create_orders_table", &CreateOrdersTable{})
	migration.Register("20260102000002_create_order_items_table", &CreateOrderItemsTable{})
	migration.Register("20260102000003_create_transactions_table", &CreateTransactionsTable{})
}

type CreateCustomersTable struct{}

func (m *CreateCustomersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Customer{})
}

func (m *CreateCustomersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("customers")
}

// -------- orders: idempotency_key is UNIQUE and nullable --------

type CreateOrdersTable struct{}

func (m *CreateOrdersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{})
}

func (m *CreateOrdersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("orders")
}

type CreateOrderItemsTable struct{}

func (m *CreateOrderItemsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.OrderItem{})
}

func (m *CreateOrderItemsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("order_items")
}

// -------- transactions (ledger) --------

type CreateTransactionsTable struct{}

func (m *CreateTransactionsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.LedgerEntry{})
}

func (m *CreateTransactionsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("transactions")
}
