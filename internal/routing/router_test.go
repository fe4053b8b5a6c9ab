package routing

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func routerAllowlist() Allowlist {
	return Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{
				{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"},
				{Path: "/api/v1/ping", Methods: []string{"GET"}, RouteClass: "public_api"},
			}},
		},
	}
}

func TestRouter_PanicBecomes500JSON(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(routerAllowlist(), "server")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(c)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/v1/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
}

func TestRouter_MethodNotAllowed_JSON(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(routerAllowlist(), "server")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(c)
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/v1/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatalf("content-type=%q", rec.Header().Get("Content-Type"))
	}
}

func TestRouter_HandleRefusesUnlistedRoute(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(routerAllowlist(), "server")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(c)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on unlisted route")
		}
	}()
	r.Handle(RouteClassPublicAPI, http.MethodGet, "/api/v1/unlisted", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
}

func TestRouter_HandleRefusesClassMismatch(t *testing.T) {
	t.Parallel()

	c, err := NewClassifier(routerAllowlist(), "server")
	if err != nil {
		t.Fatal(err)
	}
	r := NewRouter(c)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on class mismatch")
		}
	}()
	r.Handle(RouteClassOps, http.MethodGet, "/api/v1/ping", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
}
