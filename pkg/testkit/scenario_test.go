package testkit_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/shashiranjanraj/storefront/pkg/http"
	"github.com/shashiranjanraj/storefront/pkg/testkit"
)

var testHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/health":
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case "/quote":
		var in struct {
			City string `json:"city"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)

		var rate struct {
			Rate int `json:"rate"`
		}
		resp, err := apphttp.Get("https://rates.example.test/" + in.City).WithContext(r.Context()).Send()
		if err != nil || resp.Decode(&rate) != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"city": in.City, "rate": rate.Rate, "cached": false})
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	}
})

func TestRunDir(t *testing.T) {
	testkit.RunDir(t, testHandler, "testdata")
}

func TestRunDirWithBuildsHandlerPerScenario(t *testing.T) {
	var names []string
	testkit.RunDirWith(t, "testdata", func(_ *testing.T, s *testkit.Scenario) http.Handler {
		names = append(names, s.Name)
		return testHandler
	})
	assert.Equal(t, []string{"health reports ok", "quote proxies upstream rate"}, names)
}

func TestLoadScenarioDefaults(t *testing.T) {
	s, err := testkit.LoadScenario("testdata/health.json")
	require.NoError(t, err)
	assert.Equal(t, testkit.MatchExact, s.ResponseMatch)

	body, err := s.ExpectedBytes()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestSubsetDiff(t *testing.T) {
	var expected, actual any
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"code":"insufficient_stock","details":{"available":1}}}`), &expected))
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"code":"insufficient_stock","message":"x","details":{"available":1,"requested":2}}}`), &actual))
	assert.Empty(t, testkit.SubsetDiff("", expected, actual))

	require.NoError(t, json.Unmarshal([]byte(`{"error":{"code":"insufficient_stock","details":{"available":0}}}`), &actual))
	diffs := testkit.SubsetDiff("", expected, actual)
	require.Len(t, diffs, 1)
	assert.Contains(t, diffs[0], "error.details.available")
}

func TestMockTransportRequiresMatch(t *testing.T) {
	mt := testkit.NewMockTransport(&testkit.Scenario{IsMockRequired: true})
	req, _ := http.NewRequest(http.MethodGet, "https://unmocked.test/", nil)
	_, err := mt.RoundTrip(req)
	assert.Error(t, err)
	assert.Len(t, mt.Calls(), 1)
}

func TestNewDBIsMigrated(t *testing.T) {
	db := testkit.NewDB(t)
	for _, table := range []string{"products", "product_sizes", "customers", "orders", "order_items", "transactions", "failed_jobs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
