package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

type PaymentController struct {
	payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{payments: payments}
}

// CreateIntent returns the client secret the browser confirms a card
// payment with.
func (pc *PaymentController) CreateIntent(c *ctx.Context) {
	var in struct {
		Amount   money.Amount `json:"amount"   validate:"required,gt=0"`
		Currency string       `json:"currency" validate:"nullable,max=8"`
	}
	if !c.BindJSON(&in) {
		return
	}

	intent, err := pc.payments.CreateIntent(c.Context(), in.Amount, in.Currency)
	switch {
	case errors.Is(err, services.ErrPaymentNotConfigured):
		c.Error(http.StatusServiceUnavailable, "Payments are not available")
	case err != nil:
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.ValidationError(verr.Fields)
			return
		}
		logger.WithCtx(c.Context()).Error("payment: create intent failed", "error", err)
		c.Fail(http.StatusBadGateway, "Payment processor unavailable", nil)
	default:
		c.Success(map[string]string{"client_secret": intent.ClientSecret})
	}
}
