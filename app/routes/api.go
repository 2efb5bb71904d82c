// Package routes is the storefront route table.
package routes

import (
	"net/http"

	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/router"
)

// Controllers are the handlers the route table mounts.
type Controllers struct {
	Cart     *controllers.CartController
	Orders   *controllers.OrderController
	Products *controllers.ProductController
	Admin    *controllers.AdminController
	Payments *controllers.PaymentController
	GraphQL  http.HandlerFunc
}

// RegisterAPI mounts every /api route. Authenticate must already be in the
// router's middleware stack; admin routes additionally require the admin role.
func RegisterAPI(r *router.Router, c Controllers) {
	api := r.Group("/api")

	api.Post("/cart/validate-stock", "cart.validate_stock", ctx.Wrap(c.Cart.ValidateStock))
	api.Post("/orders", "orders.store", ctx.Wrap(c.Orders.Store))
	api.Get("/orders/{id}", "orders.show", ctx.Wrap(c.Orders.Show))

	api.Get("/products", "products.index", ctx.Wrap(c.Products.Index))
	api.Get("/products/{id}", "products.show", ctx.Wrap(c.Products.Show))
	api.Get("/categories", "categories.index", ctx.Wrap(c.Products.Categories))

	api.Post("/payment-intents", "payments.intent", ctx.Wrap(c.Payments.CreateIntent))
	api.Post("/graphql", "graphql", c.GraphQL)

	admin := api.Group("", middleware.RequireRole(auth.RoleAdmin))
	admin.Post("/products", "products.store", ctx.Wrap(c.Products.Store))
	admin.Put("/products/{id}", "products.update", ctx.Wrap(c.Products.Update))
	admin.Delete("/products/{id}", "products.destroy", ctx.Wrap(c.Products.Destroy))
	admin.Get("/transactions", "transactions.index", ctx.Wrap(c.Admin.Transactions))
	admin.Get("/admin/backfill-transactions", "admin.backfill", ctx.Wrap(c.Admin.Backfill))
	admin.Get("/admin/backfill-reports", "admin.backfill_reports", ctx.Wrap(c.Admin.BackfillReports))
	admin.Post("/admin/migrate-sizes", "admin.migrate_sizes", ctx.Wrap(c.Admin.MigrateSizes))
}
