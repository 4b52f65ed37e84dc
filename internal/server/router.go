package server

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// BasicRouter is an [http.ServeMux] backed implementation of [Router].
//
// Each path pattern owns a table of methods, so the same path may be registered once per method. A request
// with an unregistered method gets a JSON 405 with an Allow header. GET routes also answer HEAD.
type BasicRouter struct {
	mux         *http.ServeMux
	routes      map[string]*route
	middlewares []Middleware
}

type route struct {
	methods map[string]http.Handler
}

func (rt *route) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	method := strings.ToUpper(req.Method)
	h, ok := rt.methods[method]
	if !ok && method == http.MethodHead {
		h, ok = rt.methods[http.MethodGet]
	}
	if !ok {
		w.Header().Set("Allow", rt.allow())
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"error":  "method " + req.Method + " not allowed",
			"status": "405",
		})
		return
	}
	h.ServeHTTP(w, req)
}

func (rt *route) allow() string {
	methods := slices.Sorted(maps.Keys(rt.methods))
	if _, ok := rt.methods[http.MethodGet]; ok && !slices.Contains(methods, http.MethodHead) {
		methods = append(methods, http.MethodHead)
	}
	return strings.Join(methods, ", ")
}

// NewBasicRouter creates an empty [BasicRouter].
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:    http.NewServeMux(),
		routes: make(map[string]*route),
	}
}

// Use appends [Middleware] to the stack. The first middleware added is the outermost.
//
// Middleware only wraps handlers registered after the call.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method on the path pattern, wrapped in the current middleware stack.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	rt, ok := r.routes[path]
	if !ok {
		rt = &route{methods: make(map[string]http.Handler)}
		r.routes[path] = rt
		r.mux.Handle(path, rt)
	}
	rt.methods[strings.ToUpper(method)] = r.Apply(handler)
}

// HandleFunc is [BasicRouter.Handle] for a plain function.
func (r *BasicRouter) HandleFunc(method, path string, fn func(http.ResponseWriter, *http.Request)) {
	r.Handle(method, path, http.HandlerFunc(fn))
}

// Handler registers a [Handler] on every pattern from [Handler.Routes], for any method.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, pattern := range handler.Routes() {
		r.mux.Handle(pattern, wrapped)
	}
}

func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps handler in the middleware stack.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(r.middlewares) {
		handler = mw(handler)
	}
	return handler
}
