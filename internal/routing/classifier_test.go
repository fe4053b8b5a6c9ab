package routing

import (
	"net/http"
	"testing"
)

func TestClassifier_SegmentBoundary(t *testing.T) {
	t.Parallel()

	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"}}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/api/v1"); got != RouteClassPublicAPI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/api/v1x"); got == RouteClassPublicAPI {
		t.Fatalf("unexpected public api: %q", got)
	}
	if got := c.Classify("/org/api"); got != RouteClassInternalAPI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/org/apix"); got == RouteClassInternalAPI {
		t.Fatalf("unexpected internal api: %q", got)
	}

	if got := c.Classify("taxonomy/api"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
	if got := c.Classify("/"); got != RouteClassUI {
		t.Fatalf("got=%q", got)
	}
}

func TestNewClassifier_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: nil}}}, "server")
	if err == nil {
		t.Fatal("expected empty routes error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{"server": {Routes: []Route{{}}}}}, "server")
	if err == nil {
		t.Fatal("expected invalid route error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{
		"server": {Routes: []Route{{Path: "/ws", Methods: []string{"GET"}, RouteClass: "websocket"}}},
	}}, "server")
	if err == nil {
		t.Fatal("expected unknown route class error")
	}

	_, err = NewClassifier(Allowlist{Version: 1, Entrypoints: map[string]Entrypoint{
		"server": {Routes: []Route{{Path: "/health", RouteClass: "ops"}}},
	}}, "server")
	if err == nil {
		t.Fatal("expected missing methods error")
	}
}

func TestClassifier_Allowed(t *testing.T) {
	t.Parallel()

	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{
				{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"},
				{Path: "/api/v1/capas", Methods: []string{"GET", "POST"}, RouteClass: "public_api"},
			}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/health", true},
		{http.MethodPost, "/health", false},
		{http.MethodGet, "/api/v1/capas", true},
		{http.MethodPost, "/api/v1/capas", true},
		{http.MethodDelete, "/api/v1/capas", false},
		{http.MethodGet, "/api/v1/unlisted", false},
	}
	for _, tc := range cases {
		if got := c.Allowed(tc.method, tc.path); got != tc.want {
			t.Fatalf("Allowed(%s %s)=%v want %v", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestClassifier_PathPattern(t *testing.T) {
	t.Parallel()

	a := Allowlist{
		Version: 1,
		Entrypoints: map[string]Entrypoint{
			"server": {Routes: []Route{
				{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"},
				{Path: "/api/v1/plans/{plan_id}/close", Methods: []string{"POST"}, RouteClass: "public_api"},
			}},
		},
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}

	if got := c.Classify("/api/v1/plans/abc/close"); got != RouteClassPublicAPI {
		t.Fatalf("got=%q", got)
	}
	if !c.Allowed(http.MethodPost, "/api/v1/plans/abc/close") {
		t.Fatal("expected pattern route allowed")
	}
	if c.Allowed(http.MethodGet, "/api/v1/plans/abc/close") {
		t.Fatal("unexpected method allowed on pattern route")
	}
}
