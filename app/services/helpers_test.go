package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/money"
	"github.com/shashiranjanraj/storefront/pkg/testkit"
)

const shipping = money.Amount(25000)

func setup(t *testing.T) *gorm.DB {
	t.Helper()
	cache.Use(cache.NewMemoryStore())
	event.Flush()
	t.Cleanup(event.Flush)
	return testkit.NewDB(t)
}

// seedProduct inserts a product with the given size quantities and a
// matching stock_count.
func seedProduct(t *testing.T, db *gorm.DB, name string, price money.Amount, sizes map[string]int) models.Product {
	t.Helper()
	p := models.Product{Name: name, SKU: name + "-SKU", Price: price, LowStockThreshold: 1}
	for _, qty := range sizes {
		p.StockCount += qty
	}
	require.NoError(t, db.Create(&p).Error)
	for size, qty := range sizes {
		require.NoError(t, db.Create(&models.SizeStock{ProductID: p.ID, Size: size, Quantity: qty}).Error)
	}
	return p
}

func quantity(t *testing.T, db *gorm.DB, productID, size string) int {
	t.Helper()
	var row models.SizeStock
	require.NoError(t, db.Where("product_id = ? AND size = ?", productID, size).Take(&row).Error)
	return row.Quantity
}

func stockCount(t *testing.T, db *gorm.DB, productID string) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.Where("id = ?", productID).Take(&p).Error)
	return p.StockCount
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

type line struct {
	product models.Product
	size    string
	qty     int
}

func order(t *testing.T, email string, lines ...line) services.PlaceOrderCommand {
	t.Helper()
	cart := services.NewCart(shipping)
	for i, l := range lines {
		require.NoError(t, cart.Add(i, l.product.ID, l.size, l.qty, l.product.Price))
	}
	return services.PlaceOrderCommand{
		Customer: services.CustomerInfo{Name: "Ayesha Khan", Email: email, Phone: "111", Address: "12 Mall Road, Lahore"},
		Cart:     cart,
	}
}
