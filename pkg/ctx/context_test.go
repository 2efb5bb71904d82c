package ctx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	appctx "github.com/shashiranjanraj/storefront/pkg/ctx"
)

func TestSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Success(map[string]any{"id": "p1"})
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"data":{"id":"p1"}}`, rec.Body.String())
}

func TestParamAndQuery(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/orders/{id}", appctx.Wrap(func(c *appctx.Context) {
		assert.Equal(t, "o-7", c.Param("id"))
		assert.Equal(t, 25, c.QueryInt("limit", 50))
		assert.Equal(t, 50, c.QueryInt("missing", 50))
		c.Success(nil)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-7?limit=25", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBindJSONValid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ayesha","email":"ayesha@example.com"}`))

	appctx.Wrap(func(c *appctx.Context) {
		var input struct {
			Name  string `json:"name"  validate:"required"`
			Email string `json:"email" validate:"required,email"`
		}
		if !assert.True(t, c.BindJSON(&input)) {
			return
		}
		assert.Equal(t, "Ayesha", input.Name)
		c.Success(nil)
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBindJSONInvalid(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))

	appctx.Wrap(func(c *appctx.Context) {
		var input struct {
			Name string `json:"name" validate:"required"`
		}
		assert.False(t, c.BindJSON(&input))
	})(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name"`)
}

func TestBindJSONMalformed(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))

	appctx.Wrap(func(c *appctx.Context) {
		var input struct{ Name string }
		assert.False(t, c.BindJSON(&input))
	})(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailCarriesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Fail(http.StatusConflict, "Insufficient stock", map[string]any{"line": 1})
		assert.Equal(t, http.StatusConflict, c.WrittenStatus())
	})(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.JSONEq(t, `{"status":409,"message":"Insufficient stock","errors":{"line":1}}`, rec.Body.String())
}

func TestHTML(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.HTML(http.StatusOK, []byte("<p>ok</p>"))
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<p>ok</p>", rec.Body.String())
}
