package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/inforlary/belkys-sub012/internal/routing"
	"github.com/inforlary/belkys-sub012/modules/iam/infrastructure/directory"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/authz"
)

func serverClassifier(t *testing.T) *routing.Classifier {
	t.Helper()
	a := routing.Allowlist{
		Version: 1,
		Entrypoints: map[string]routing.Entrypoint{
			"server": {Routes: []routing.Route{
				{Path: "/health", Methods: []string{"GET"}, RouteClass: "ops"},
				{Path: "/api/v1/actions", Methods: []string{"GET", "POST"}, RouteClass: "public_api"},
			}},
		},
	}
	c, err := routing.NewClassifier(a, "server")
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestWithScopeHeadersRequiresBoth(t *testing.T) {
	h := withScopeHeaders(nil, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without scope")
	}))

	for _, tc := range []struct{ org, plan string }{
		{"", ""},
		{"org-1", ""},
		{"", "plan-1"},
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
		if tc.org != "" {
			req.Header.Set("X-Org-ID", tc.org)
		}
		if tc.plan != "" {
			req.Header.Set("X-Plan-ID", tc.plan)
		}
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("org=%q plan=%q: status %d", tc.org, tc.plan, rec.Code)
		}
	}
}

func TestWithScopeHeadersPassesScope(t *testing.T) {
	var got Scope
	h := withScopeHeaders(nil, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = currentScope(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	req.Header.Set("X-Org-ID", "org-1")
	req.Header.Set("X-Plan-ID", "plan-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.OrganizationID != "org-1" || got.PlanID != "plan-1" {
		t.Fatalf("scope: %+v", got)
	}
}

func TestWithScopeHeadersHealthBypass(t *testing.T) {
	called := false
	h := withScopeHeaders(serverClassifier(t), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if !called {
		t.Fatal("health probe must not require scope headers")
	}
}

type resolverStub struct {
	principal directory.Principal
	err       error
}

func (s resolverStub) Whoami(context.Context, string) (directory.Principal, error) {
	return s.principal, s.err
}

func TestWithIdentityNoTokenIsAnonymous(t *testing.T) {
	var role string
	h := withIdentity(resolverStub{err: errors.New("must not be called")},
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			role = currentRole(r.Context())
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil))
	if role != authz.RoleAnonymous {
		t.Fatalf("role: %q", role)
	}
}

func TestWithIdentityOutageReads503(t *testing.T) {
	h := withIdentity(resolverStub{err: apperr.NewCollaboratorUnavailable("directory", errors.New("dial tcp: refused"))},
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler must not run on outage")
		}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	req.Header.Set("X-Session-Token", "tok")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestWithIdentityInvalidSessionReads401(t *testing.T) {
	h := withIdentity(resolverStub{err: errors.New("no session")},
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	req.Header.Set("X-Session-Token", "tok")
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestWithIdentityResolvesPrincipal(t *testing.T) {
	var got Principal
	h := withIdentity(resolverStub{principal: directory.Principal{
		UserID:      "u1",
		DisplayName: "Dana",
		RoleSlug:    "ic_coordinator",
	}}, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = currentPrincipal(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/actions", nil)
	req.Header.Set("X-Session-Token", "tok")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got.ID != "u1" || got.RoleSlug != "ic_coordinator" {
		t.Fatalf("principal: %+v", got)
	}
}

type authorizerStub struct {
	allowed  bool
	enforced bool

	subject string
	object  string
	action  string
}

func (s *authorizerStub) Authorize(subject, _, object, action string) (bool, bool, error) {
	s.subject, s.object, s.action = subject, object, action
	return s.allowed, s.enforced, nil
}

func scopedRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	ctx := withScope(req.Context(), Scope{OrganizationID: "org-1", PlanID: "plan-1"})
	return req.WithContext(ctx)
}

func TestWithAuthzDeniesEnforcedWrite(t *testing.T) {
	a := &authorizerStub{allowed: false, enforced: true}
	h := withAuthz(nil, a, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run when denied")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, scopedRequest(http.MethodPost, "/api/v1/categories"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status: %d", rec.Code)
	}
	if a.object != authz.ObjectTaxonomyNodes || a.action != authz.ActionWrite {
		t.Fatalf("checked %s %s", a.object, a.action)
	}
}

func TestWithAuthzAnonymousSubject(t *testing.T) {
	a := &authorizerStub{allowed: true, enforced: true}
	h := withAuthz(nil, a, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), scopedRequest(http.MethodGet, "/api/v1/hierarchy"))
	if a.subject != "role:anonymous" {
		t.Fatalf("subject: %q", a.subject)
	}
}

func TestWithAuthzHealthBypass(t *testing.T) {
	called := false
	h := withAuthz(serverClassifier(t), &authorizerStub{}, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if !called {
		t.Fatal("health probe must bypass authorization")
	}
}

func TestAuthzRequirementForRoute(t *testing.T) {
	cases := []struct {
		method string
		path   string
		object string
		action string
	}{
		{http.MethodGet, "/api/v1/hierarchy", authz.ObjectTaxonomyNodes, authz.ActionRead},
		{http.MethodPost, "/api/v1/nodes:delete", authz.ObjectTaxonomyNodes, authz.ActionWrite},
		{http.MethodPost, "/api/v1/sub-standard-status", authz.ObjectTaxonomyActions, authz.ActionWrite},
		{http.MethodGet, "/api/v1/actions", authz.ObjectTaxonomyActions, authz.ActionRead},
		{http.MethodPost, "/api/v1/actions:ensure-plan", authz.ObjectActionPlans, authz.ActionWrite},
		{http.MethodGet, "/api/v1/action-plans", authz.ObjectActionPlans, authz.ActionRead},
		{http.MethodPost, "/api/v1/action-plans:decide", authz.ObjectActionPlans, authz.ActionWrite},
		{http.MethodPost, "/api/v1/capas:update", authz.ObjectLifecycleRecords, authz.ActionWrite},
		{http.MethodGet, "/api/v1/findings", authz.ObjectLifecycleRecords, authz.ActionRead},
		{http.MethodGet, "/api/v1/rollup/due-sets", authz.ObjectRollups, authz.ActionRead},
	}
	for _, tc := range cases {
		object, action, ok := authzRequirementForRoute(tc.method, tc.path)
		if !ok {
			t.Fatalf("%s %s: no requirement", tc.method, tc.path)
		}
		if object != tc.object || action != tc.action {
			t.Fatalf("%s %s: got %s %s", tc.method, tc.path, object, action)
		}
	}

	if _, _, ok := authzRequirementForRoute(http.MethodGet, "/api/v1/unknown"); ok {
		t.Fatal("unknown route must not carry a requirement")
	}
}
