// Package gateway turns a grpc-gateway runtime.ServeMux into a small router
// with route groups and middleware chains.
package gateway

import (
	"net/http"

	gwruntime "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"

	"github.com/hb-chen/mkbi/pkg/logger"
)

// HTTPMiddlewareFunc wraps the whole mux.
type HTTPMiddlewareFunc func(http.Handler) http.Handler

// MiddlewareFunc wraps a single route.
type MiddlewareFunc func(gwruntime.HandlerFunc) gwruntime.HandlerFunc

// Gateway ...
type Gateway struct {
	mux        *gwruntime.ServeMux
	middleware []HTTPMiddlewareFunc
}

// New ...
func New(opts ...gwruntime.ServeMuxOption) *Gateway {
	return &Gateway{mux: gwruntime.NewServeMux(opts...)}
}

// Mux ...
func (gw *Gateway) Mux() *gwruntime.ServeMux {
	return gw.mux
}

// Use adds middleware around the mux. The first one added is outermost.
func (gw *Gateway) Use(middleware ...HTTPMiddlewareFunc) {
	gw.middleware = append(gw.middleware, middleware...)
}

// Handle mounts a plain http.Handler on method and path.
func (gw *Gateway) Handle(method, path string, h http.Handler) {
	gw.register(method, path, func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		h.ServeHTTP(w, r)
	})
}

// ServeHTTP ...
func (gw *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var h http.Handler = gw.mux
	for i := len(gw.middleware) - 1; i >= 0; i-- {
		h = gw.middleware[i](h)
	}
	h.ServeHTTP(w, r)
}

// Group ...
func (gw *Gateway) Group(prefix string, m ...MiddlewareFunc) (g *Group) {
	g = &Group{
		prefix: prefix,
		gw:     gw,
	}
	g.Use(m...)
	return
}

func (gw *Gateway) register(method, path string, h gwruntime.HandlerFunc) {
	if err := gw.mux.HandlePath(method, path, h); err != nil {
		logger.Fatalf("Failed to register route %s %s: %v", method, path, err)
	}
}

// Group is a set of routes sharing a prefix and middleware.
type Group struct {
	prefix     string
	gw         *Gateway
	middleware []MiddlewareFunc
}

// Use ...
func (g *Group) Use(middleware ...MiddlewareFunc) {
	g.middleware = append(g.middleware, middleware...)
}

// GET ...
func (g *Group) GET(path string, h gwruntime.HandlerFunc, m ...MiddlewareFunc) {
	g.add(http.MethodGet, path, h, m)
}

// POST ...
func (g *Group) POST(path string, h gwruntime.HandlerFunc, m ...MiddlewareFunc) {
	g.add(http.MethodPost, path, h, m)
}

func (g *Group) add(method, path string, h gwruntime.HandlerFunc, m []MiddlewareFunc) {
	chain := make([]MiddlewareFunc, 0, len(g.middleware)+len(m))
	chain = append(chain, g.middleware...)
	chain = append(chain, m...)
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	g.gw.register(method, g.prefix+path, h)
}
