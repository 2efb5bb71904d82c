package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

func TestPlaceOrderDecrementsAndLedgers(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(4500), map[string]int{"M": 5})
	svc := services.NewOrderService(db)

	res, err := svc.PlaceOrder(context.Background(), order(t, "a@x.com", line{p, "M", 5}))
	require.NoError(t, err)
	assert.False(t, res.Replayed)

	o := res.Order
	assert.Equal(t, models.OrderStatusPending, o.Status)
	assert.Equal(t, money.FromMajor(22500), o.Subtotal)
	assert.Equal(t, money.FromMajor(22500)+shipping, o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 5, o.Items[0].Quantity)
	assert.Equal(t, p.Price, o.Items[0].Price)

	assert.Equal(t, 0, quantity(t, db, p.ID, "M"))
	assert.Equal(t, 0, stockCount(t, db, p.ID))

	var entries []models.LedgerEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LedgerTypeOrder, entries[0].Type)
	assert.Equal(t, 5, entries[0].Quantity)
	assert.Equal(t, money.FromMajor(22500), entries[0].TotalPrice)
	assert.Equal(t, o.ID, *entries[0].OrderID)
	assert.Equal(t, o.Items[0].ID, *entries[0].OrderItemID)
}

func TestPlaceOrderInsufficientStockRollsBack(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(4500), map[string]int{"M": 2})

	_, err := services.NewOrderService(db).PlaceOrder(context.Background(), order(t, "a@x.com", line{p, "M", 3}))

	var ise *services.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, services.LineFailure{Line: 0, ProductID: p.ID, ProductName: "kurta", Size: "M", Requested: 3, Available: 2}, ise.LineFailure)

	assert.Equal(t, 2, quantity(t, db, p.ID, "M"))
	assert.Zero(t, count(t, db, &models.Order{}))
	assert.Zero(t, count(t, db, &models.OrderItem{}))
	assert.Zero(t, count(t, db, &models.Customer{}))
	assert.Zero(t, count(t, db, &models.LedgerEntry{}))
}

func TestPlaceOrderSizeNotFound(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "dupatta", money.FromMajor(2000), map[string]int{"M": 2})

	_, err := services.NewOrderService(db).PlaceOrder(context.Background(), order(t, "a@x.com", line{p, "XL", 1}))

	var snf *services.SizeNotFoundError
	require.ErrorAs(t, err, &snf)
	assert.Equal(t, "XL", snf.Size)
	assert.Equal(t, "dupatta", snf.ProductName)
	assert.Zero(t, count(t, db, &models.Order{}))
}

func TestPlaceOrderUpsertsCustomerByEmail(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"S": 10})
	svc := services.NewOrderService(db)

	_, err := svc.PlaceOrder(context.Background(), order(t, "a@x.com", line{p, "S", 1}))
	require.NoError(t, err)

	cmd := order(t, "a@x.com", line{p, "S", 1})
	cmd.Customer.Phone = "222"
	_, err = svc.PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)

	var customers []models.Customer
	require.NoError(t, db.Find(&customers).Error)
	require.Len(t, customers, 1)
	assert.Equal(t, "222", customers[0].Phone)
	assert.Equal(t, int64(2), count(t, db, &models.Order{}))
}

func TestPlaceOrderMissingProductRollsBackEarlierLines(t *testing.T) {
	db := setup(t)
	keep := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 4})
	gone := seedProduct(t, db, "lehenga", money.FromMajor(900), map[string]int{"M": 4})
	require.NoError(t, db.Where("id = ?", gone.ID).Delete(&models.Product{}).Error)

	_, err := services.NewOrderService(db).PlaceOrder(context.Background(),
		order(t, "a@x.com", line{keep, "M", 2}, line{gone, "M", 1}))

	var ri *services.ReferentialIntegrityError
	require.ErrorAs(t, err, &ri)
	assert.Equal(t, 1, ri.Line)
	assert.Equal(t, gone.ID, ri.ID)

	assert.Equal(t, 4, quantity(t, db, keep.ID, "M"))
	assert.Equal(t, 4, stockCount(t, db, keep.ID))
	assert.Zero(t, count(t, db, &models.Order{}))
	assert.Zero(t, count(t, db, &models.LedgerEntry{}))
}

func TestPlaceOrderRejectsBadInput(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 4})
	svc := services.NewOrderService(db)

	_, err := svc.PlaceOrder(context.Background(), services.PlaceOrderCommand{Cart: services.NewCart(shipping)})
	assert.ErrorAs(t, err, &services.EmptyCartError{})

	cmd := order(t, "a@x.com", line{p, "M", 1})
	wrong := money.FromMajor(100)
	cmd.TotalAmount = &wrong
	_, err = svc.PlaceOrder(context.Background(), cmd)
	var ve *services.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "total_amount")

	right := money.FromMajor(100) + shipping
	cmd.TotalAmount = &right
	_, err = svc.PlaceOrder(context.Background(), cmd)
	assert.NoError(t, err)
}

func TestPlaceOrderIdempotencyKeyReplays(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 4})
	svc := services.NewOrderService(db)

	cmd := order(t, "a@x.com", line{p, "M", 1})
	cmd.IdempotencyKey = "checkout-7f3a"

	first, err := svc.PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)
	second, err := svc.PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, second.Order.Items, 1)
	assert.Equal(t, 3, quantity(t, db, p.ID, "M"))
	assert.Equal(t, int64(1), count(t, db, &models.Order{}))
}

func TestPlaceOrderIdempotencyKeyBoundToPayload(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 4})
	svc := services.NewOrderService(db)

	cmd := order(t, "a@x.com", line{p, "M", 1})
	cmd.IdempotencyKey = "checkout-91bc"
	_, err := svc.PlaceOrder(context.Background(), cmd)
	require.NoError(t, err)

	more := order(t, "a@x.com", line{p, "M", 2})
	more.IdempotencyKey = cmd.IdempotencyKey
	someoneElse := order(t, "b@x.com", line{p, "M", 1})
	someoneElse.IdempotencyKey = cmd.IdempotencyKey

	for _, c := range []services.PlaceOrderCommand{more, someoneElse} {
		_, err := svc.PlaceOrder(context.Background(), c)
		var ve *services.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "idempotency_key")
	}

	assert.Equal(t, 3, quantity(t, db, p.ID, "M"))
	assert.Equal(t, int64(1), count(t, db, &models.Order{}))
}

func TestPlaceOrderRejectsOverflowingCartLines(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.MustParse("92233720368547758.07"), map[string]int{"M": 4})

	cart := services.NewCart(shipping)
	var ve *services.ValidationError
	require.ErrorAs(t, cart.Add(0, p.ID, "M", 2, p.Price), &ve)
	assert.Contains(t, ve.Fields, "items.0.price")

	_, err := services.NewOrderService(db).PlaceOrder(context.Background(), services.PlaceOrderCommand{
		Customer: services.CustomerInfo{Name: "Ayesha Khan", Email: "a@x.com"},
		Cart:     cart,
	})
	require.ErrorAs(t, err, new(services.EmptyCartError))
	assert.Equal(t, 4, quantity(t, db, p.ID, "M"))
	assert.Zero(t, count(t, db, &models.Order{}))
	assert.Zero(t, count(t, db, &models.LedgerEntry{}))
}

func TestPlaceOrderNeverOversells(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 5})
	svc := services.NewOrderService(db)

	const buyers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	cmds := make([]services.PlaceOrderCommand, buyers)
	for i := range cmds {
		cmds[i] = order(t, "buyer@x.com", line{p, "M", 1})
	}
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(cmd services.PlaceOrderCommand) {
			defer wg.Done()
			_, err := svc.PlaceOrder(context.Background(), cmd)
			mu.Lock()
			defer mu.Unlock()
			var ise *services.InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ise):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(cmds[i])
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, buyers-5, fail)
	assert.Equal(t, 0, quantity(t, db, p.ID, "M"))
	assert.Equal(t, int64(5), count(t, db, &models.OrderItem{}))
}

func TestOrderItemPriceSurvivesProductRepricing(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 5})
	catalog := services.NewCatalogService(db, services.NewInventoryService(db))
	orders := services.NewOrderService(db)

	res, err := orders.PlaceOrder(context.Background(), order(t, "a@x.com", line{p, "M", 1}))
	require.NoError(t, err)

	newPrice := money.FromMajor(999)
	_, err = catalog.UpdateProduct(context.Background(), p.ID, services.ProductPatch{Price: &newPrice})
	require.NoError(t, err)

	got, err := orders.Find(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(100), got.Items[0].Price)
}

func TestValidatorAgreesWithWriter(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"S": 3, "M": 1})
	cmd := order(t, "a@x.com", line{p, "S", 3}, line{p, "M", 1})

	verdict, err := services.NewStockValidator(db).Validate(context.Background(), cmd.Cart.StockRequests())
	require.NoError(t, err)
	require.True(t, verdict.Valid)
	assert.Equal(t, 3, verdict.Items[0].AvailableStock)

	_, err = services.NewOrderService(db).PlaceOrder(context.Background(), cmd)
	assert.NoError(t, err)
}

func TestPlaceOrderFiresOrderPlaced(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 5})

	got := make(chan services.OrderPlaced, 1)
	event.Listen(services.EventOrderPlaced, func(_ context.Context, payload any) error {
		got <- payload.(services.OrderPlaced)
		return nil
	})

	res, err := services.NewOrderService(db).PlaceOrder(context.Background(), order(t, "a@x.com", line{p, "M", 2}))
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, res.Order.ID, ev.OrderID)
		assert.Equal(t, 2, ev.Items[0].Quantity)
	case <-time.After(2 * time.Second):
		t.Fatal("order.placed not fired")
	}
}

func TestPlaceOrderSurvivesCancelledRequest(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 5})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := services.NewOrderService(db).PlaceOrder(ctx, order(t, "a@x.com", line{p, "M", 1}))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Order.ID)
	assert.Equal(t, 4, quantity(t, db, p.ID, "M"))
}
