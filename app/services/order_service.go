package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/money"
)

// CustomerInfo is the contact block submitted at checkout.
type CustomerInfo struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// PlaceOrderCommand is the typed checkout request.
type PlaceOrderCommand struct {
	Customer CustomerInfo
	Cart     *Cart
	// TotalAmount is what the client displayed; nil when not sent.
	TotalAmount    *money.Amount
	UserID         string
	IdempotencyKey string
}

// PlaceOrderResult carries the order and whether it was created by an
// earlier request with the same idempotency key.
type PlaceOrderResult struct {
	Order    models.Order
	Replayed bool
}

// OrderService is the order writer.
type OrderService struct {
	db        *gorm.DB
	products  *repositories.ProductRepository
	sizes     *repositories.SizeStockRepository
	customers *repositories.CustomerRepository
	orders    *repositories.OrderRepository
	ledger    *repositories.LedgerRepository
	currency  string
	timeout   time.Duration
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{
		db:        db,
		products:  repositories.NewProductRepository(),
		sizes:     repositories.NewSizeStockRepository(),
		customers: repositories.NewCustomerRepository(),
		orders:    repositories.NewOrderRepository(),
		ledger:    repositories.NewLedgerRepository(),
		currency:  config.Currency(),
		timeout:   config.CheckoutTimeout(),
	}
}

// PlaceOrder validates cmd and writes the customer, order, items, stock
// decrements and ledger entries in one transaction. Any failure rolls all
// of it back. The transaction is detached from ctx cancellation so a client
// disconnect cannot abandon it halfway; it is bounded by the checkout
// timeout instead.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (PlaceOrderResult, error) {
	log := logger.WithCtx(ctx)

	if err := s.check(cmd); err != nil {
		metrics.OrdersPlaced.WithLabelValues("rejected").Inc()
		return PlaceOrderResult{}, err
	}

	hash := fingerprint(cmd)
	if cmd.IdempotencyKey != "" {
		if existing, ok, err := s.replay(ctx, cmd.IdempotencyKey, hash); err != nil {
			return PlaceOrderResult{}, err
		} else if ok {
			metrics.OrdersPlaced.WithLabelValues("replayed").Inc()
			log.Info("checkout: replayed order", "order_id", existing.ID, "idempotency_key", cmd.IdempotencyKey)
			return PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	var (
		order   models.Order
		touched []models.Product
	)
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, touched, err = s.write(tx, cmd, hash)
		return err
	})
	if err != nil {
		return s.fail(ctx, cmd, hash, err)
	}

	metrics.OrdersPlaced.WithLabelValues("committed").Inc()
	log.Info("checkout: order placed",
		"order_id", order.ID, "order_number", order.OrderNumber,
		"lines", len(order.Items), "total", order.TotalAmount.String())

	invalidateCatalog(ctx, productIDs(touched)...)
	event.FireAsync(ctx, EventOrderPlaced, newOrderPlaced(order))
	trackLowStock(ctx, touched)

	return PlaceOrderResult{Order: order}, nil
}

func (s *OrderService) check(cmd PlaceOrderCommand) error {
	if cmd.Cart == nil || cmd.Cart.Len() == 0 {
		return EmptyCartError{}
	}
	fields := map[string]string{}
	if strings.TrimSpace(cmd.Customer.Name) == "" {
		fields["customer_name"] = "The customer name field is required."
	}
	if strings.TrimSpace(cmd.Customer.Email) == "" {
		fields["email"] = "The email field is required."
	}
	if cmd.TotalAmount != nil && *cmd.TotalAmount != cmd.Cart.Total() {
		fields["total_amount"] = "The total amount must equal " + cmd.Cart.Total().String() +
			" (subtotal " + cmd.Cart.Subtotal().String() + " plus shipping " + cmd.Cart.Shipping().String() + ")."
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// write runs inside the transaction. Lines are processed in cart order;
// each stock check and decrement is a single conditional UPDATE.
func (s *OrderService) write(tx *gorm.DB, cmd PlaceOrderCommand, hash string) (models.Order, []models.Product, error) {
	customer, err := s.customers.Upsert(tx, models.Customer{
		Email:    strings.ToLower(strings.TrimSpace(cmd.Customer.Email)),
		FullName: cmd.Customer.Name,
		Phone:    cmd.Customer.Phone,
		Address:  cmd.Customer.Address,
	})
	if err != nil {
		return models.Order{}, nil, upstream("upsert customer", err)
	}

	order := models.Order{
		CustomerID:  customer.ID,
		FullName:    customer.FullName,
		Email:       customer.Email,
		Phone:       customer.Phone,
		Address:     customer.Address,
		Subtotal:    cmd.Cart.Subtotal(),
		ShippingFee: cmd.Cart.Shipping(),
		TotalAmount: cmd.Cart.Total(),
		Currency:    s.currency,
		Status:      models.OrderStatusPending,
	}
	if cmd.UserID != "" {
		order.UserID = &cmd.UserID
	}
	if cmd.IdempotencyKey != "" {
		order.IdempotencyKey = &cmd.IdempotencyKey
		order.RequestHash = &hash
	}
	if err := s.orders.Create(tx, &order); err != nil {
		return models.Order{}, nil, upstream("create order", err)
	}

	lines := cmd.Cart.Lines()
	items := make([]models.OrderItem, 0, len(lines))
	seen := map[string]bool{}
	var ids []string

	for _, line := range lines {
		product, err := s.products.Get(tx, line.ProductID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Order{}, nil, &ReferentialIntegrityError{Entity: "product", ID: line.ProductID, Line: line.Index}
		}
		if err != nil {
			return models.Order{}, nil, upstream("load product", err)
		}

		ok, err := s.sizes.Decrement(tx, line.ProductID, line.Size, line.Quantity)
		if err != nil {
			return models.Order{}, nil, upstream("decrement stock", err)
		}
		if !ok {
			return models.Order{}, nil, s.rejectLine(tx, line, product)
		}

		if err := s.products.RecomputeStock(tx, line.ProductID); err != nil {
			return models.Order{}, nil, upstream("recompute stock", err)
		}

		items = append(items, models.OrderItem{
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Size:      line.Size,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}

	if err := s.orders.CreateItems(tx, items); err != nil {
		return models.Order{}, nil, upstream("create order items", err)
	}

	entries := make([]models.LedgerEntry, len(items))
	for i := range items {
		entries[i] = models.LedgerEntry{
			ProductID:   items[i].ProductID,
			OrderID:     &order.ID,
			OrderItemID: &items[i].ID,
			Type:        models.LedgerTypeOrder,
			Size:        items[i].Size,
			Quantity:    items[i].Quantity,
			TotalPrice:  items[i].LineTotal(),
		}
	}
	if err := s.ledger.Append(tx, entries); err != nil {
		return models.Order{}, nil, upstream("append ledger", err)
	}

	touched, err := s.products.FindMany(tx, ids)
	if err != nil {
		return models.Order{}, nil, upstream("reload products", err)
	}

	order.Items = items
	return order, touched, nil
}

// rejectLine classifies a decrement that matched no row.
func (s *OrderService) rejectLine(tx *gorm.DB, line CartLine, product models.Product) error {
	failure := LineFailure{
		Line:        line.Index,
		ProductID:   line.ProductID,
		ProductName: product.Name,
		Size:        line.Size,
		Requested:   line.Quantity,
	}

	row, err := s.sizes.Find(tx, line.ProductID, line.Size)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.StockRejections.WithLabelValues("size_not_found").Inc()
		return &SizeNotFoundError{LineFailure: failure}
	}
	if err != nil {
		return upstream("load size stock", err)
	}
	failure.Available = row.Quantity
	metrics.StockRejections.WithLabelValues("insufficient_stock").Inc()
	return &InsufficientStockError{LineFailure: failure}
}

// replay finds the order an earlier request placed under key. A key that
// was used for a different payload is a validation error; orders stored
// without a hash replay unconditionally.
func (s *OrderService) replay(ctx context.Context, key, hash string) (models.Order, bool, error) {
	o, err := s.orders.FindByIdempotencyKey(s.db.WithContext(ctx), key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, false, nil
	}
	if err != nil {
		return models.Order{}, false, upstream("find order by idempotency key", err)
	}
	if o.RequestHash != nil && *o.RequestHash != hash {
		metrics.OrdersPlaced.WithLabelValues("rejected").Inc()
		return models.Order{}, false, invalid("idempotency_key",
			"The idempotency key was already used for a different order.")
	}
	return o, true, nil
}

// fingerprint identifies the checkout payload an idempotency key is bound to.
func fingerprint(cmd PlaceOrderCommand) string {
	h := sha256.New()
	fmt.Fprintf(h, "%q|%q|%q|%q|%q|",
		strings.ToLower(strings.TrimSpace(cmd.Customer.Email)),
		strings.TrimSpace(cmd.Customer.Name),
		strings.TrimSpace(cmd.Customer.Phone),
		strings.TrimSpace(cmd.Customer.Address),
		cmd.UserID)
	if cmd.Cart != nil {
		for _, l := range cmd.Cart.Lines() {
			fmt.Fprintf(h, "%q/%q/%d/%d|", l.ProductID, l.Size, l.Quantity, l.Price)
		}
		fmt.Fprintf(h, "%d", cmd.Cart.Shipping())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// fail maps a rolled-back transaction to the returned error. A storage
// error on a keyed request may be a lost race on the idempotency key, in
// which case the winner's order is returned.
func (s *OrderService) fail(ctx context.Context, cmd PlaceOrderCommand, hash string, err error) (PlaceOrderResult, error) {
	log := logger.WithCtx(ctx)

	var storage *UpstreamStorageError
	if !errors.As(err, &storage) {
		if _, ok := AsLineFailure(err); !ok && !isDomain(err) {
			err = upstream("transaction", err)
			errors.As(err, &storage)
		}
	}

	if storage == nil {
		metrics.OrdersPlaced.WithLabelValues("rejected").Inc()
		log.Info("checkout: order rejected", "error", err)
		return PlaceOrderResult{}, err
	}

	if cmd.IdempotencyKey != "" {
		existing, ok, lookupErr := s.replay(context.WithoutCancel(ctx), cmd.IdempotencyKey, hash)
		var verr *ValidationError
		if errors.As(lookupErr, &verr) {
			return PlaceOrderResult{}, lookupErr
		}
		if lookupErr == nil && ok {
			metrics.OrdersPlaced.WithLabelValues("replayed").Inc()
			return PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
	}

	metrics.OrdersPlaced.WithLabelValues("failed").Inc()
	log.Error("checkout: storage failure",
		"op", storage.Op, "error", storage.Err,
		"payload", checkoutPayload(cmd))
	return PlaceOrderResult{}, err
}

func isDomain(err error) bool {
	var (
		v  *ValidationError
		ri *ReferentialIntegrityError
		ec EmptyCartError
	)
	return errors.As(err, &v) || errors.As(err, &ri) || errors.As(err, &ec)
}

// checkoutPayload is the attempted order as logged on storage failures.
func checkoutPayload(cmd PlaceOrderCommand) map[string]any {
	lines := cmd.Cart.Lines()
	items := make([]map[string]any, len(lines))
	for i, l := range lines {
		items[i] = map[string]any{
			"line": l.Index, "product_id": l.ProductID, "size": l.Size,
			"quantity": l.Quantity, "price": l.Price.String(),
		}
	}
	return map[string]any{
		"email":           cmd.Customer.Email,
		"user_id":         cmd.UserID,
		"idempotency_key": cmd.IdempotencyKey,
		"total":           cmd.Cart.Total().String(),
		"items":           items,
	}
}

// Find loads an order with its items.
func (s *OrderService) Find(ctx context.Context, id string) (models.Order, error) {
	o, err := s.orders.Find(s.db.WithContext(ctx), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, upstream("find order", err)
	}
	return o, nil
}

func productIDs(products []models.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}
