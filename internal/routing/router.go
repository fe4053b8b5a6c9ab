package routing

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

type Router struct {
	classifier *Classifier
	routes     map[string]map[string]http.Handler
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]http.Handler),
	}
}

// Handle registers a route. The allowlist is the source of truth:
// registering a method+path it does not carry, or under a class other
// than the one it declares, is a programming error and panics at wiring
// time rather than serving an unlisted route.
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	if !r.classifier.Allowed(method, path) {
		panic(fmt.Sprintf("routing: %s %s not in allowlist", method, path))
	}
	if got := r.classifier.Classify(path); got != rc {
		panic(fmt.Sprintf("routing: %s declared %s but allowlist says %s", path, rc, got))
	}
	if r.routes[path] == nil {
		r.routes[path] = make(map[string]http.Handler)
	}

	r.routes[path][method] = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				_ = debug.Stack()
				WriteError(w, req, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		WriteError(w, req, http.StatusNotFound, "not_found", "not found")
		return
	}
	h, ok := methods[req.Method]
	if !ok {
		WriteError(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	h.ServeHTTP(w, req)
}
