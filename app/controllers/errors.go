package controllers

import (
	"errors"
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/logger"
)

const (
	msgInternal      = "Something went wrong"
	msgOrderInternal = "Something went wrong while placing your order"
)

// fail writes err as an HTTP response. Stock failures name the cart line
// so the client can correct it in place; storage failures are logged and
// shown as internalMsg.
func fail(c *ctx.Context, err error, internalMsg string) {
	if line, ok := services.AsLineFailure(err); ok {
		c.Fail(http.StatusConflict, err.Error(), line)
		return
	}

	var (
		verr  *services.ValidationError
		empty services.EmptyCartError
		rerr  *services.ReferentialIntegrityError
		uerr  *services.UpstreamStorageError
	)
	switch {
	case errors.As(err, &verr):
		c.ValidationError(verr.Fields)
	case errors.As(err, &empty):
		c.Fail(http.StatusUnprocessableEntity, "No items in order",
			map[string]string{"items": "The order must contain at least one item."})
	case errors.As(err, &rerr):
		details := map[string]any{"entity": rerr.Entity, "id": rerr.ID}
		if rerr.Line >= 0 {
			details["line"] = rerr.Line
		}
		c.Fail(http.StatusUnprocessableEntity, rerr.Error(), details)
	case errors.Is(err, services.ErrNotFound):
		c.NotFound()
	case errors.As(err, &uerr):
		logger.WithCtx(c.Context()).Error("http: storage failure", "op", uerr.Op, "error", uerr.Err)
		c.Error(http.StatusInternalServerError, internalMsg)
	default:
		logger.WithCtx(c.Context()).Error("http: request failed", "error", err)
		c.Error(http.StatusInternalServerError, internalMsg)
	}
}
