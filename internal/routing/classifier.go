package routing

import (
	"errors"
	"strings"
)

type RouteClass string

// The engine serves one JSON API plus an ops health probe. The internal
// and ui classes exist only as fallback labels for unlisted paths.
const (
	RouteClassUI          RouteClass = "ui"
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassPublicAPI   RouteClass = "public_api"
	RouteClassOps         RouteClass = "ops"
)

func validRouteClass(rc RouteClass) bool {
	switch rc {
	case RouteClassUI, RouteClassInternalAPI, RouteClassPublicAPI, RouteClassOps:
		return true
	}
	return false
}

type Classifier struct {
	entrypoint        string
	allowExact        map[string]allowRoute
	allowPathPatterns []patternRoute
}

type allowRoute struct {
	rc      RouteClass
	methods map[string]bool
}

type patternRoute struct {
	pattern PathPattern
	allowRoute
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	exact := make(map[string]allowRoute, len(ep.Routes))
	var patterns []patternRoute
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" {
			return nil, errors.New("allowlist: invalid route")
		}
		if !validRouteClass(RouteClass(r.RouteClass)) {
			return nil, errors.New("allowlist: unknown route class " + r.RouteClass)
		}
		if len(r.Methods) == 0 {
			return nil, errors.New("allowlist: route without methods: " + r.Path)
		}
		ar := allowRoute{rc: RouteClass(r.RouteClass), methods: make(map[string]bool, len(r.Methods))}
		for _, m := range r.Methods {
			ar.methods[strings.ToUpper(m)] = true
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, patternRoute{pattern: p, allowRoute: ar})
			continue
		}
		exact[r.Path] = ar
	}
	return &Classifier{entrypoint: entrypoint, allowExact: exact, allowPathPatterns: patterns}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if ar, ok := c.allowExact[path]; ok {
		return ar.rc
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, "/api/v1"):
		return RouteClassPublicAPI
	case isModuleInternalAPI(path):
		return RouteClassInternalAPI
	default:
		return RouteClassUI
	}
}

// Allowed reports whether the allowlist carries the method+path pair.
// The router refuses to register anything Allowed does not cover.
func (c *Classifier) Allowed(method string, path string) bool {
	if ar, ok := c.allowExact[path]; ok {
		return ar.methods[method]
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.methods[method]
		}
	}
	return false
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func isModuleInternalAPI(path string) bool {
	// /{module}/api/*
	// segment-boundary: module must be a single segment.
	if !strings.HasPrefix(path, "/") {
		return false
	}
	rest := strings.TrimPrefix(path, "/")
	module, after, ok := strings.Cut(rest, "/")
	if !ok || module == "" {
		return false
	}
	return hasPrefixSegment("/"+after, "/api")
}
