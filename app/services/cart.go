package services

import (
	"fmt"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

// CartLine is one (product, size) selection. Index is the position of the
// first request line merged into it and is what errors report back.
type CartLine struct {
	Index     int
	ProductID string
	Size      string
	Quantity  int
	Price     money.Amount
}

// MaxLineQuantity caps the merged quantity of one (product, size) line.
const MaxLineQuantity = 10000

// Cart is the checkout aggregate: it merges duplicate selections and
// computes totals. Stock is never trusted from here; the order writer
// re-checks every line.
type Cart struct {
	lines    []CartLine
	pos      map[string]int
	shipping money.Amount
	subtotal money.Amount
}

// NewCart returns an empty cart charging a flat shipping fee.
func NewCart(shipping money.Amount) *Cart {
	return &Cart{pos: map[string]int{}, shipping: shipping}
}

// Add puts a line in the cart. An empty size means the product is sold
// in one size. A second line for the same (product, size) increases the
// quantity of the first and must carry the same price. Quantities above
// MaxLineQuantity and totals that do not fit in an Amount are rejected, so
// Subtotal and Total never wrap.
func (c *Cart) Add(index int, productID, size string, qty int, price money.Amount) error {
	field := fmt.Sprintf("items.%d", index)
	switch {
	case productID == "":
		return invalid(field+".id", "The id field is required.")
	case qty <= 0:
		return invalid(field+".quantity", "The quantity must be greater than 0.")
	case qty > MaxLineQuantity:
		return invalid(field+".quantity", fmt.Sprintf("The quantity may not be greater than %d.", MaxLineQuantity))
	case price < 0:
		return invalid(field+".price", "The price may not be negative.")
	}
	if size == "" {
		size = models.SizeStandard
	}
	if !models.IsSize(size) {
		return invalid(field+".selectedSize", fmt.Sprintf("Unknown size %q.", size))
	}

	key := productID + "\x00" + size
	i, merge := c.pos[key]
	prev := 0
	if merge {
		if c.lines[i].Price != price {
			return invalid(field+".price", "The price differs from an earlier line for the same product and size.")
		}
		prev = c.lines[i].Quantity
		if qty > MaxLineQuantity-prev {
			return invalid(field+".quantity", fmt.Sprintf(
				"The combined quantity for this product and size may not be greater than %d.", MaxLineQuantity))
		}
	}

	subtotal, err := c.withLine(price, prev, prev+qty)
	if err != nil {
		return invalid(field+".price", "The order total is too large.")
	}
	c.subtotal = subtotal

	if merge {
		c.lines[i].Quantity += qty
		return nil
	}
	c.pos[key] = len(c.lines)
	c.lines = append(c.lines, CartLine{Index: index, ProductID: productID, Size: size, Quantity: qty, Price: price})
	return nil
}

// withLine is the subtotal after one line goes from prev to next units,
// checked so that the total including shipping still fits.
func (c *Cart) withLine(price money.Amount, prev, next int) (money.Amount, error) {
	old, err := price.CheckedMul(prev)
	if err != nil {
		return 0, err
	}
	line, err := price.CheckedMul(next)
	if err != nil {
		return 0, err
	}
	sub, err := c.subtotal.CheckedAdd(-old)
	if err != nil {
		return 0, err
	}
	if sub, err = sub.CheckedAdd(line); err != nil {
		return 0, err
	}
	if _, err := sub.CheckedAdd(c.shipping); err != nil {
		return 0, err
	}
	return sub, nil
}

// Lines returns the merged lines in first-seen order.
func (c *Cart) Lines() []CartLine { return append([]CartLine(nil), c.lines...) }

func (c *Cart) Len() int { return len(c.lines) }

// Subtotal is Σ price × quantity.
func (c *Cart) Subtotal() money.Amount { return c.subtotal }

// Shipping is the flat fee, or zero for an empty cart.
func (c *Cart) Shipping() money.Amount {
	if len(c.lines) == 0 {
		return 0
	}
	return c.shipping
}

func (c *Cart) Total() money.Amount { return c.Subtotal() + c.Shipping() }

// StockRequests is the validator input for the cart.
func (c *Cart) StockRequests() []StockRequest {
	out := make([]StockRequest, len(c.lines))
	for i, l := range c.lines {
		out[i] = StockRequest{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity}
	}
	return out
}

// ShippingFee reads the flat SHIPPING_FEE charged on every non-empty cart.
func ShippingFee() (money.Amount, error) {
	fee, err := money.Parse(config.ShippingFee())
	if err != nil {
		return 0, fmt.Errorf("config: SHIPPING_FEE: %w", err)
	}
	return fee, nil
}
