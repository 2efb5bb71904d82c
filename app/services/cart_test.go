package services_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

func TestCartMergesAndTotals(t *testing.T) {
	cart := services.NewCart(shipping)
	require.NoError(t, cart.Add(0, "p1", "M", 1, money.FromMajor(4500)))
	require.NoError(t, cart.Add(1, "p2", "", 2, money.FromMajor(1000)))
	require.NoError(t, cart.Add(2, "p1", "M", 2, money.FromMajor(4500)))

	lines := cart.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, services.CartLine{Index: 0, ProductID: "p1", Size: "M", Quantity: 3, Price: money.FromMajor(4500)}, lines[0])
	assert.Equal(t, models.SizeStandard, lines[1].Size)

	assert.Equal(t, money.FromMajor(15500), cart.Subtotal())
	assert.Equal(t, money.FromMajor(15750), cart.Total())
}

func TestCartRejectsBadLines(t *testing.T) {
	cart := services.NewCart(shipping)
	var ve *services.ValidationError

	require.ErrorAs(t, cart.Add(0, "", "M", 1, 100), &ve)
	assert.Contains(t, ve.Fields, "items.0.id")
	require.ErrorAs(t, cart.Add(1, "p1", "M", 0, 100), &ve)
	assert.Contains(t, ve.Fields, "items.1.quantity")
	require.ErrorAs(t, cart.Add(2, "p1", "XXL", 1, 100), &ve)
	assert.Contains(t, ve.Fields, "items.2.selectedSize")

	require.NoError(t, cart.Add(3, "p1", "M", 1, 100))
	require.ErrorAs(t, cart.Add(4, "p1", "M", 1, 200), &ve)
	assert.Contains(t, ve.Fields, "items.4.price")
}

func TestCartRejectsQuantityPastCap(t *testing.T) {
	cart := services.NewCart(shipping)
	var ve *services.ValidationError

	require.ErrorAs(t, cart.Add(0, "p1", "M", math.MaxInt, 100), &ve)
	assert.Contains(t, ve.Fields, "items.0.quantity")

	require.NoError(t, cart.Add(1, "p1", "M", services.MaxLineQuantity, 100))
	require.ErrorAs(t, cart.Add(2, "p1", "M", 1, 100), &ve)
	assert.Contains(t, ve.Fields, "items.2.quantity")

	lines := cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, services.MaxLineQuantity, lines[0].Quantity)
	assert.Equal(t, money.Amount(100*services.MaxLineQuantity), cart.Subtotal())
}

func TestCartRejectsTotalsThatOverflow(t *testing.T) {
	cart := services.NewCart(shipping)
	var ve *services.ValidationError

	huge := money.Amount(math.MaxInt64)
	require.ErrorAs(t, cart.Add(0, "p1", "M", 2, huge), &ve)
	assert.Contains(t, ve.Fields, "items.0.price")

	// Fits alone, but not with shipping on top.
	require.ErrorAs(t, cart.Add(1, "p1", "M", 1, huge), &ve)
	assert.Contains(t, ve.Fields, "items.1.price")

	require.NoError(t, cart.Add(2, "p2", "M", 1, huge/2))
	require.ErrorAs(t, cart.Add(3, "p3", "M", 1, huge/2), &ve)
	assert.Contains(t, ve.Fields, "items.3.price")

	assert.Equal(t, 1, cart.Len())
	assert.Equal(t, huge/2, cart.Subtotal())
	assert.Equal(t, huge/2+shipping, cart.Total())
}

func TestEmptyCartHasNoShipping(t *testing.T) {
	assert.Zero(t, services.NewCart(shipping).Total())
}

func TestValidateStock(t *testing.T) {
	db := setup(t)
	p := seedProduct(t, db, "kurta", money.FromMajor(100), map[string]int{"M": 2})

	res, err := services.NewStockValidator(db).Validate(context.Background(), []services.StockRequest{
		{ProductID: p.ID, Size: "M", Quantity: 2},
		{ProductID: p.ID, Size: "M", Quantity: 3},
		{ProductID: p.ID, Size: "XL", Quantity: 1},
		{ProductID: p.ID, Size: "", Quantity: 1},
	})
	require.NoError(t, err)

	assert.False(t, res.Valid)
	require.Len(t, res.Items, 4)
	assert.Equal(t, services.LineResult{ProductID: p.ID, Size: "M", RequestedQty: 2, AvailableStock: 2, Valid: true}, res.Items[0])
	assert.False(t, res.Items[1].Valid)
	assert.Equal(t, 2, res.Items[1].AvailableStock)
	assert.Equal(t, services.MsgSizeNotFound, res.Items[2].Error)
	assert.Zero(t, res.Items[2].AvailableStock)
	assert.Equal(t, services.MsgMissingFields, res.Items[3].Error)

	assert.Equal(t, 2, quantity(t, db, p.ID, "M"))
}

func TestValidateStockEmpty(t *testing.T) {
	db := setup(t)
	res, err := services.NewStockValidator(db).Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Items)
}
