// Package ctx provides the request context every storefront handler receives.
//
// Instead of accepting (http.ResponseWriter, *http.Request), a handler takes
// a single *Context:
//
//	func ShowOrder(c *ctx.Context) {
//	    order, err := svc.Find(c.Context(), c.Param("id"))
//	    ...
//	    c.Success(order)
//	}
//
//	r.Get("/orders/{id}", "orders.show", ctx.Wrap(ShowOrder))
package ctx

import (
	"context"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shashiranjanraj/storefront/pkg/bind"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int
}

var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter ("/orders/{id}" → c.Param("id")).
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

// QueryInt parses a query-string integer, returning def when absent or malformed.
func (c *Context) QueryInt(key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

// Context returns the underlying request context.
func (c *Context) Context() context.Context { return c.R.Context() }

// ─── Binding ──────────────────────────────────────────────────────────────────

// BindJSON decodes the JSON body into dest and runs validation.
// It writes 400 on malformed JSON and 422 on rule failures, and returns
// true only when dest is ready to use.
func (c *Context) BindJSON(dest any) bool {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return false
	}
	if validate.HasErrors(errs) {
		c.ValidationError(errs)
		return false
	}
	return true
}

// ShouldBindJSON is BindJSON without writing a response.
func (c *Context) ShouldBindJSON(dest any) (map[string]string, error) {
	return bind.JSON(c.R, dest)
}

// ─── Response helpers ─────────────────────────────────────────────────────────

func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

// JSON writes v as the body with the given status code.
func (c *Context) JSON(code int, v any) {
	c.status = code
	response.Write(c.W, code, v)
}

// Success sends a 200 envelope: {"status":200,"data":...}
func (c *Context) Success(data any) {
	c.JSON(http.StatusOK, response.Envelope{Status: http.StatusOK, Data: data})
}

func (c *Context) Created(data any) {
	c.JSON(http.StatusCreated, response.Envelope{Status: http.StatusCreated, Data: data})
}

func (c *Context) Error(code int, message string) {
	c.JSON(code, response.Envelope{Status: code, Message: message})
}

// Fail sends an error envelope carrying structured details.
func (c *Context) Fail(code int, message string, details any) {
	c.JSON(code, response.Envelope{Status: code, Message: message, Errors: details})
}

// ValidationError sends a 422 with field-level errors.
func (c *Context) ValidationError(errs map[string]string) {
	c.Fail(http.StatusUnprocessableEntity, "Validation failed", errs)
}

func (c *Context) NotFound(message ...string) {
	msg := "Not found"
	if len(message) > 0 {
		msg = message[0]
	}
	c.Error(http.StatusNotFound, msg)
}

// HTML writes a pre-rendered HTML document.
func (c *Context) HTML(code int, body []byte) {
	c.W.Header().Set("Content-Type", "text/html; charset=utf-8")
	c.W.WriteHeader(code)
	c.status = code
	c.W.Write(body) //nolint:errcheck
}

// WrittenStatus returns the status written so far, or 0.
func (c *Context) WrittenStatus() int { return c.status }
