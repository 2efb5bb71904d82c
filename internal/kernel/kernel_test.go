package kernel_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/kernel"
	"github.com/shashiranjanraj/storefront/pkg/auth"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/storage"
	"github.com/shashiranjanraj/storefront/pkg/testkit"
)

const adminPlaceholder = "Bearer {{admin_token}}"

// seedCatalog loads the "catalog" fixture: one category, a sized kurta
// (S=3, M=1) and a one-size dupatta.
func seedCatalog(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&models.Category{Base: models.Base{ID: "cat-formal"}, Name: "Formal Edit", Slug: "formal-edit"}).Error)
	require.NoError(t, db.Create(&models.Product{
		Base: models.Base{ID: "p-kurta"}, Name: "Silk Kurta", SKU: "FE-001",
		Price: 450000, CategoryID: "cat-formal", StockCount: 4,
	}).Error)
	require.NoError(t, db.Create(&models.Product{
		Base: models.Base{ID: "p-dupatta"}, Name: "Chiffon Dupatta", SKU: "FE-002",
		Price: 150000, CategoryID: "cat-formal", StockCount: 10,
	}).Error)
	require.NoError(t, db.Create(&[]models.SizeStock{
		{ProductID: "p-kurta", Size: models.SizeS, Quantity: 3},
		{ProductID: "p-kurta", Size: models.SizeM, Quantity: 1},
		{ProductID: "p-dupatta", Size: models.SizeStandard, Quantity: 10},
	}).Error)
}

type stack struct {
	db      *gorm.DB
	handler http.Handler
	admin   string
}

func newStack(t *testing.T, fixture string) *stack {
	t.Helper()
	cache.Use(cache.NewMemoryStore())
	event.Flush()
	t.Cleanup(event.Flush)
	config.Set("PAYMENT_API_URL", "https://payments.example.test")
	config.Set("PAYMENT_SECRET_KEY", "sk_test_kernel")
	t.Cleanup(func() { config.Set("PAYMENT_SECRET_KEY", "") })

	db := testkit.NewDB(t)
	if fixture == "catalog" {
		seedCatalog(t, db)
	}

	r, err := kernel.NewRouter(kernel.NewServices(db, storage.NewLocalDisk(t.TempDir(), "")))
	require.NoError(t, err)

	token, err := auth.GenerateToken("admin-1", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	return &stack{db: db, handler: r.Handler(), admin: "Bearer " + token}
}

// ServeHTTP swaps the admin placeholder for a freshly signed token.
func (s *stack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == adminPlaceholder {
		r.Header.Set("Authorization", s.admin)
	}
	s.handler.ServeHTTP(w, r)
}

func (s *stack) do(t *testing.T, method, url string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestAPIScenarios(t *testing.T) {
	testkit.RunDirWith(t, "testdata", func(t *testing.T, s *testkit.Scenario) http.Handler {
		return newStack(t, s.Fixture)
	})
}

func checkout(qty int, key string) map[string]any {
	return map[string]any{
		"items":           []map[string]any{{"id": "p-kurta", "price": 4500, "selectedSize": "S", "quantity": qty}},
		"customer_name":   "Ayesha Khan",
		"email":           "ayesha@example.com",
		"phone":           "03001234567",
		"address":         "12 Mall Road, Lahore",
		"idempotency_key": key,
	}
}

func TestRetriedCheckoutIsReplayed(t *testing.T) {
	s := newStack(t, "catalog")

	first := s.do(t, http.MethodPost, "/api/orders", checkout(1, ""), map[string]string{"Idempotency-Key": "attempt-1"})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(t, http.MethodPost, "/api/orders", checkout(1, ""), map[string]string{"Idempotency-Key": "attempt-1"})
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	var a, b struct {
		Data struct {
			ID       string `json:"id"`
			Replayed bool   `json:"replayed"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Data.ID, b.Data.ID)
	assert.False(t, a.Data.Replayed)
	assert.True(t, b.Data.Replayed)

	var row models.SizeStock
	require.NoError(t, s.db.Where("product_id = ? AND size = ?", "p-kurta", "S").Take(&row).Error)
	assert.Equal(t, 2, row.Quantity, "stock is taken once")
}

func TestPlacedOrderCanBeLookedUp(t *testing.T) {
	s := newStack(t, "catalog")

	placed := s.do(t, http.MethodPost, "/api/orders", checkout(2, "body-key"), nil)
	require.Equal(t, http.StatusCreated, placed.Code, placed.Body.String())
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(placed.Body.Bytes(), &out))
	assert.Equal(t, "/api/orders/"+out.Data.ID, placed.Header().Get("Location"))

	got := s.do(t, http.MethodGet, "/api/orders/"+out.Data.ID, nil, map[string]string{"Authorization": adminPlaceholder})
	require.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), `"customer_name":"Ayesha Khan"`)
	assert.Contains(t, got.Body.String(), `"quantity":2`)
}

func TestOrderLookupHidesContactFromStrangers(t *testing.T) {
	s := newStack(t, "catalog")
	owner, err := auth.GenerateToken("u-owner", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)
	other, err := auth.GenerateToken("u-other", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)

	placed := s.do(t, http.MethodPost, "/api/orders", checkout(1, ""), map[string]string{"Authorization": "Bearer " + owner})
	require.Equal(t, http.StatusCreated, placed.Code, placed.Body.String())
	path := placed.Header().Get("Location")

	for name, headers := range map[string]map[string]string{
		"anonymous":      nil,
		"other customer": {"Authorization": "Bearer " + other},
	} {
		got := s.do(t, http.MethodGet, path, nil, headers)
		require.Equal(t, http.StatusOK, got.Code, name)
		body := got.Body.String()
		assert.NotContains(t, body, "Ayesha", name)
		assert.NotContains(t, body, "ayesha@example.com", name)
		assert.NotContains(t, body, "03001234567", name)
		assert.NotContains(t, body, "Mall Road", name)
		assert.Contains(t, body, `"quantity":1`, name)
	}

	got := s.do(t, http.MethodGet, path, nil, map[string]string{"Authorization": "Bearer " + owner})
	require.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), `"email":"ayesha@example.com"`)
}

func TestCheckoutRejectsAmountsThatDoNotFit(t *testing.T) {
	s := newStack(t, "catalog")

	body := checkout(2, "")
	body["items"].([]map[string]any)[0]["price"] = "92233720368547758.07"
	rec := s.do(t, http.MethodPost, "/api/orders", body, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "items.0.price")

	body["items"].([]map[string]any)[0]["price"] = "100000000000000000000"
	rec = s.do(t, http.MethodPost, "/api/orders", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	var row models.SizeStock
	require.NoError(t, s.db.Where("product_id = ? AND size = ?", "p-kurta", "S").Take(&row).Error)
	assert.Equal(t, 3, row.Quantity)
	var orders int64
	require.NoError(t, s.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
}

func TestReusedKeyWithDifferentCartIsRejected(t *testing.T) {
	s := newStack(t, "catalog")
	headers := map[string]string{"Idempotency-Key": "attempt-9"}

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", checkout(1, ""), headers).Code)
	rec := s.do(t, http.MethodPost, "/api/orders", checkout(2, ""), headers)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "idempotency_key")
}

func TestBackfillRendersHTML(t *testing.T) {
	s := newStack(t, "catalog")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders", checkout(1, ""), nil).Code)
	require.NoError(t, s.db.Where("1 = 1").Delete(&models.LedgerEntry{}).Error)

	rec := s.do(t, http.MethodGet, "/api/admin/backfill-transactions", nil, map[string]string{
		"Authorization": adminPlaceholder,
		"Accept":        "text/html",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))
	assert.Contains(t, rec.Body.String(), "<td>1</td>")
	assert.Contains(t, rec.Body.String(), "Inserted 1 transactions")

	reports := s.do(t, http.MethodGet, "/api/admin/backfill-reports", nil, map[string]string{"Authorization": adminPlaceholder})
	require.Equal(t, http.StatusOK, reports.Code)
	assert.Contains(t, reports.Body.String(), "reports/ledger-backfill/")
}

func TestCustomerTokenCannotReachAdmin(t *testing.T) {
	s := newStack(t, "")
	token, err := auth.GenerateToken("u-1", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/transactions", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/transactions", nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouteNames(t *testing.T) {
	r, err := kernel.NewRouter(kernel.NewServices(nil, nil))
	require.NoError(t, err)

	url, err := r.URL("orders.show", map[string]string{"id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "/api/orders/abc", url)

	names := map[string]bool{}
	for _, ri := range r.Routes() {
		names[ri.Name] = true
	}
	for _, want := range []string{
		"cart.validate_stock", "orders.store", "products.index", "products.store",
		"transactions.index", "admin.backfill", "admin.migrate_sizes", "payments.intent", "graphql", "health",
	} {
		assert.True(t, names[want], want)
	}
}

func TestHealthzReportsMissingDatabase(t *testing.T) {
	r, err := kernel.NewRouter(kernel.NewServices(nil, nil))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
