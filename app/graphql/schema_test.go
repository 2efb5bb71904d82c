package graphql_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appgraphql "github.com/shashiranjanraj/storefront/app/graphql"
	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	apigraphql "github.com/shashiranjanraj/storefront/pkg/graphql"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
)

type fakeCatalog struct{ products []services.ProductView }

func (f fakeCatalog) Products(_ context.Context, categoryID string) ([]services.ProductView, error) {
	var out []services.ProductView
	for _, p := range f.products {
		if categoryID == "" || p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f fakeCatalog) Product(_ context.Context, id string) (services.ProductView, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return services.ProductView{}, services.ErrNotFound
}

func (fakeCatalog) Categories(context.Context) ([]models.Category, error) {
	return []models.Category{{Base: models.Base{ID: "c1"}, Name: "Formal Edit", Slug: "formal-edit"}}, nil
}

type fakeOrders struct{}

func (fakeOrders) Find(_ context.Context, id string) (models.Order, error) {
	if id != "o1" {
		return models.Order{}, services.ErrNotFound
	}
	return models.Order{
		Base:        models.Base{ID: "o1", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		OrderNumber: "ORD-20260102-0000000A",
		FullName:    "Ayesha Khan",
		Status:      models.OrderStatusPending,
		Subtotal:    900000,
		ShippingFee: 25000,
		TotalAmount: 925000,
		Currency:    "PKR",
		Items:       []models.OrderItem{{ProductID: "p1", Size: "M", Quantity: 2, Price: 450000}},
	}, nil
}

type fakeLedger struct{}

func (fakeLedger) Recent(_ context.Context, limit int) ([]repositories.LedgerRow, error) {
	name := "Silk Kurta"
	rows := []repositories.LedgerRow{{ID: "t1", ProductID: "p1", ProductName: &name, Type: "order", Size: "M", Quantity: 2, TotalPrice: 900000}}
	return rows[:min(limit, len(rows))], nil
}

func handler(t *testing.T) http.Handler {
	t.Helper()
	product := services.ProductView{
		Product: models.Product{
			Base:       models.Base{ID: "p1"},
			Name:       "Silk Kurta",
			SKU:        "FE-001",
			Price:      450000,
			CategoryID: "c1",
			StockCount: 7,
			Sizes:      []models.SizeStock{{Size: "S", Quantity: 3}, {Size: "M", Quantity: 4}},
		},
		Sizes:          map[string]int{"S": 3, "M": 4},
		Currency:       "PKR",
		AvailableSizes: []string{"S", "M"},
	}
	schema, err := appgraphql.NewSchema(fakeCatalog{products: []services.ProductView{product}}, fakeOrders{}, fakeLedger{})
	require.NoError(t, err)
	return middleware.Authenticate(apigraphql.Handler(schema))
}

func query(t *testing.T, h http.Handler, q, token string) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]string{"query": q})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/graphql", strings.NewReader(string(body)))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestProductsQuery(t *testing.T) {
	out := query(t, handler(t), `{ products(categoryId:"c1") { id name price stockCount sizes { size quantity } } }`, "")

	assert.Nil(t, out["errors"])
	products := out["data"].(map[string]any)["products"].([]any)
	require.Len(t, products, 1)
	p := products[0].(map[string]any)
	assert.Equal(t, "p1", p["id"])
	assert.Equal(t, "4500.00", p["price"])
	assert.EqualValues(t, 7, p["stockCount"])
	assert.Len(t, p["sizes"], 2)
}

func TestMissingProductAndOrderResolveToNull(t *testing.T) {
	out := query(t, handler(t), `{ product(id:"nope") { id } order(id:"nope") { id } }`, "")

	assert.Nil(t, out["errors"])
	data := out["data"].(map[string]any)
	assert.Nil(t, data["product"])
	assert.Nil(t, data["order"])
}

func TestOrderQuery(t *testing.T) {
	out := query(t, handler(t), `{ order(id:"o1") { orderNumber totalAmount createdAt items { size quantity price } } }`, "")

	assert.Nil(t, out["errors"])
	order := out["data"].(map[string]any)["order"].(map[string]any)
	assert.Equal(t, "ORD-20260102-0000000A", order["orderNumber"])
	assert.Equal(t, "9250.00", order["totalAmount"])
	assert.Equal(t, "2026-01-02T03:04:05Z", order["createdAt"])
	assert.Len(t, order["items"], 1)
}

func TestOrderCustomerNameNeedsOwnerOrAdmin(t *testing.T) {
	h := handler(t)
	q := `{ order(id:"o1") { customerName } }`
	name := func(out map[string]any) any {
		return out["data"].(map[string]any)["order"].(map[string]any)["customerName"]
	}

	assert.Equal(t, "", name(query(t, h, q, "")))

	stranger, err := auth.GenerateToken("u-9", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "", name(query(t, h, q, stranger)))

	admin, err := auth.GenerateToken("u2", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "Ayesha Khan", name(query(t, h, q, admin)))
}

func TestTransactionsRequireAdmin(t *testing.T) {
	h := handler(t)
	q := `{ transactions(limit: 10) { id productName quantity totalPrice } }`

	anon := query(t, h, q, "")
	assert.NotNil(t, anon["errors"])

	customer, err := auth.GenerateToken("u1", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)
	assert.NotNil(t, query(t, h, q, customer)["errors"])

	admin, err := auth.GenerateToken("u2", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	out := query(t, h, q, admin)
	assert.Nil(t, out["errors"])
	rows := out["data"].(map[string]any)["transactions"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Silk Kurta", rows[0].(map[string]any)["productName"])
}
