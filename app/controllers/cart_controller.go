package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
)

type CartController struct {
	validator *services.StockValidator
}

func NewCartController(validator *services.StockValidator) *CartController {
	return &CartController{validator: validator}
}

type stockLineInput struct {
	ID       string `json:"id"`
	Size     string `json:"size"`
	Quantity int    `json:"quantity"`
}

// ValidateStock reports per-line availability for a cart. It reserves
// nothing and answers with the bare result, not an envelope.
func (cc *CartController) ValidateStock(c *ctx.Context) {
	var body struct {
		Items []stockLineInput `json:"items"`
	}
	if _, err := c.ShouldBindJSON(&body); err != nil || body.Items == nil {
		c.Error(http.StatusBadRequest, "Invalid request format")
		return
	}

	lines := make([]services.StockRequest, len(body.Items))
	for i, it := range body.Items {
		lines[i] = services.StockRequest{ProductID: it.ID, Size: it.Size, Quantity: it.Quantity}
	}
	result, err := cc.validator.Validate(c.Context(), lines)
	if err != nil {
		fail(c, err, "Failed to validate stock")
		return
	}
	c.JSON(http.StatusOK, result)
}
