// Package kernel assembles the service graph and the HTTP handler.
package kernel

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/controllers"
	appgraphql "github.com/shashiranjanraj/storefront/app/graphql"
	"github.com/shashiranjanraj/storefront/app/routes"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
	apigraphql "github.com/shashiranjanraj/storefront/pkg/graphql"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/router"
	"github.com/shashiranjanraj/storefront/pkg/storage"
)

// Services is the application service graph. Every service shares one
// *gorm.DB.
type Services struct {
	DB        *gorm.DB
	Validator *services.StockValidator
	Orders    *services.OrderService
	Inventory *services.InventoryService
	Catalog   *services.CatalogService
	Ledger    *services.LedgerService
	Payments  *services.PaymentService
}

// NewServices wires the services on db. Backfill reports are archived to
// disk; nil disables archiving.
func NewServices(db *gorm.DB, disk storage.Disk) *Services {
	inventory := services.NewInventoryService(db)
	return &Services{
		DB:        db,
		Validator: services.NewStockValidator(db),
		Orders:    services.NewOrderService(db),
		Inventory: inventory,
		Catalog:   services.NewCatalogService(db, inventory),
		Ledger:    services.NewLedgerService(db, disk),
		Payments:  services.NewPaymentService(),
	}
}

// NewRouter builds the router with the global middleware stack, /metrics,
// /healthz and the API routes.
func NewRouter(svc *Services) (*router.Router, error) {
	shipping, err := services.ShippingFee()
	if err != nil {
		return nil, err
	}
	schema, err := appgraphql.NewSchema(svc.Catalog, svc.Orders, svc.Ledger)
	if err != nil {
		return nil, fmt.Errorf("kernel: graphql schema: %w", err)
	}

	r := router.New()

	// Outermost first.
	r.Use(
		metrics.Middleware(),
		middleware.Recovery,
		reqid.Middleware(),
		middleware.Logger,
		middleware.CORS(middleware.DefaultCORSOptions()),
		middleware.RateLimit(config.RateLimitPerMinute(), time.Minute),
		middleware.Authenticate,
	)

	r.HandleFunc("/metrics", metrics.Handler())
	r.Get("/healthz", "health", ctx.Wrap(healthz(svc.DB)))

	routes.RegisterAPI(r, routes.Controllers{
		Cart:     controllers.NewCartController(svc.Validator),
		Orders:   controllers.NewOrderController(svc.Orders, shipping),
		Products: controllers.NewProductController(svc.Catalog),
		Admin:    controllers.NewAdminController(svc.Ledger, svc.Inventory),
		Payments: controllers.NewPaymentController(svc.Payments),
		GraphQL:  apigraphql.Handler(schema),
	})
	return r, nil
}

// Probe pings the database; it backs /healthz and gRPC health.
func Probe(db *gorm.DB) func(context.Context) error {
	return func(c context.Context) error {
		if db == nil {
			return fmt.Errorf("database not connected")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(c)
	}
}

func healthz(db *gorm.DB) ctx.HandlerFunc {
	probe := Probe(db)
	return func(c *ctx.Context) {
		pctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := probe(pctx); err != nil {
			c.Fail(http.StatusServiceUnavailable, "unhealthy", map[string]string{"database": err.Error()})
			return
		}
		c.Success(map[string]string{"status": "ok"})
	}
}
