package controllers

import (
	"strings"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

// HeaderIdempotencyKey identifies one checkout attempt across retries.
const HeaderIdempotencyKey = "Idempotency-Key"

type OrderController struct {
	orders   *services.OrderService
	shipping money.Amount
}

func NewOrderController(orders *services.OrderService, shipping money.Amount) *OrderController {
	return &OrderController{orders: orders, shipping: shipping}
}

type orderLineInput struct {
	ID           string       `json:"id"`
	Price        money.Amount `json:"price"`
	SelectedSize string       `json:"selectedSize"`
	Quantity     int          `json:"quantity"`
}

type placeOrderInput struct {
	Items          []orderLineInput `json:"items"`
	CustomerName   string           `json:"customer_name"   validate:"required,max=255"`
	Email          string           `json:"email"           validate:"required,email,max=255"`
	Phone          string           `json:"phone"           validate:"nullable,max=64"`
	Address        string           `json:"address"`
	TotalAmount    *money.Amount    `json:"total_amount"`
	IdempotencyKey string           `json:"idempotency_key" validate:"nullable,max=255"`
}

type orderResponse struct {
	models.Order
	Replayed bool `json:"replayed"`
}

// Store places an order. A retried request with the same idempotency key
// answers 200 with the original order instead of 201.
func (oc *OrderController) Store(c *ctx.Context) {
	var in placeOrderInput
	if !c.BindJSON(&in) {
		return
	}

	cart := services.NewCart(oc.shipping)
	for i, it := range in.Items {
		if err := cart.Add(i, it.ID, it.SelectedSize, it.Quantity, it.Price); err != nil {
			fail(c, err, msgOrderInternal)
			return
		}
	}

	key := strings.TrimSpace(c.Header(HeaderIdempotencyKey))
	if key == "" {
		key = strings.TrimSpace(in.IdempotencyKey)
	}

	res, err := oc.orders.PlaceOrder(c.Context(), services.PlaceOrderCommand{
		Customer: services.CustomerInfo{
			Name:    in.CustomerName,
			Email:   in.Email,
			Phone:   in.Phone,
			Address: in.Address,
		},
		Cart:           cart,
		TotalAmount:    in.TotalAmount,
		UserID:         middleware.UserIDFromCtx(c.Context()),
		IdempotencyKey: key,
	})
	if err != nil {
		fail(c, err, msgOrderInternal)
		return
	}

	out := orderResponse{Order: res.Order, Replayed: res.Replayed}
	if res.Replayed {
		c.SetHeader("Idempotent-Replayed", "true")
		c.Success(out)
		return
	}
	c.SetHeader("Location", "/api/orders/"+res.Order.ID)
	c.Created(out)
}

// Show returns an order with its items. Clients use it to reconcile a
// checkout whose response they never saw. Contact fields are only shown to
// the signed-in owner and to admins.
func (oc *OrderController) Show(c *ctx.Context) {
	order, err := oc.orders.Find(c.Context(), c.Param("id"))
	if err != nil {
		fail(c, err, msgInternal)
		return
	}
	claims := middleware.ClaimsFromCtx(c.Context())
	if !claims.IsAdmin() && !order.OwnedBy(middleware.UserIDFromCtx(c.Context())) {
		order = order.Redacted()
	}
	c.Success(order)
}

