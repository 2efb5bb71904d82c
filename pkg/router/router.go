// Package router mounts named routes on chi. Names feed route:list and
// URL building; unknown paths and methods answer with the JSON envelope.
package router

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/pkg/response"
)

type Middleware func(http.Handler) http.Handler

// RouteInfo describes one named route.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Router is the root of the route tree.
type Router struct {
	top *Group
	mux chi.Router

	mu    sync.RWMutex
	named map[string]RouteInfo
}

// Group mounts routes under a prefix with extra middleware.
type Group struct {
	root   *Router
	prefix string
	mws    []Middleware
}

func New() *Router {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) { response.NotFound(w) })
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r := &Router{mux: mux, named: map[string]RouteInfo{}}
	r.top = &Group{root: r, prefix: "/"}
	return r
}

func (r *Router) Group(prefix string, mws ...Middleware) *Group { return r.top.Group(prefix, mws...) }

func (r *Router) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.top.Get(path, name, h, mws...)
}

func (r *Router) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	r.top.Post(path, name, h, mws...)
}

func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.mux.ServeHTTP(w, req) }

// Use adds global middleware. chi requires it before the first route.
func (r *Router) Use(mws ...Middleware) {
	for _, mw := range mws {
		r.mux.Use(mw)
	}
}

// HandleFunc mounts an unnamed handler for every method.
func (r *Router) HandleFunc(path string, h http.HandlerFunc) {
	r.mux.Handle(joinPath(path), h)
}

// URL fills the {params} of a named route.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	r.mu.RLock()
	info, ok := r.named[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("router: no route named %q", name)
	}

	path := info.Path
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	if strings.ContainsAny(path, "{}") {
		return "", fmt.Errorf("router: missing parameters for %q", name)
	}
	return path, nil
}

// Routes lists the named routes in no particular order.
func (r *Router) Routes() []RouteInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RouteInfo, 0, len(r.named))
	for _, info := range r.named {
		out = append(out, info)
	}
	return out
}

func (r *Router) mount(method, path, name string, h http.Handler) {
	r.mux.Method(method, path, h)
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, dup := r.named[name]; dup {
		panic(fmt.Sprintf("router: route name %q already used by %s %s", name, prev.Method, prev.Path))
	}
	r.named[name] = RouteInfo{Method: method, Path: path, Name: name}
}

// Group returns a child group; its middleware runs after the parent's.
func (g *Group) Group(prefix string, mws ...Middleware) *Group {
	return &Group{
		root:   g.root,
		prefix: joinPath(g.prefix, prefix),
		mws:    append(append([]Middleware(nil), g.mws...), mws...),
	}
}

func (g *Group) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.handle(http.MethodGet, path, name, h, mws)
}

func (g *Group) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.handle(http.MethodPost, path, name, h, mws)
}

func (g *Group) Put(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.handle(http.MethodPut, path, name, h, mws)
}

func (g *Group) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.handle(http.MethodDelete, path, name, h, mws)
}

func (g *Group) handle(method, path, name string, h http.HandlerFunc, extra []Middleware) {
	var wrapped http.Handler = h
	all := append(append([]Middleware(nil), g.mws...), extra...)
	for i := len(all) - 1; i >= 0; i-- {
		wrapped = all[i](wrapped)
	}
	g.root.mount(method, joinPath(g.prefix, path), name, wrapped)
}

// joinPath joins segments into a clean absolute path.
func joinPath(parts ...string) string {
	var segs []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segs = append(segs, p)
		}
	}
	return "/" + strings.Join(segs, "/")
}
