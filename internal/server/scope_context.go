package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/inforlary/belkys-sub012/internal/routing"
)

// Scope carries the organization and compliance plan period every API
// request operates in. Every store read and write is bounded by it.
type Scope struct {
	OrganizationID string
	PlanID         string
}

type scopeCtxKey struct{}

func withScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeCtxKey{}, s)
}

func currentScope(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeCtxKey{}).(Scope)
	return s, ok
}

// withScopeHeaders requires X-Org-ID and X-Plan-ID on every route except
// the ops class. An id that belongs to another organization is not
// detected here; row-level scoping downstream turns it into NOT_FOUND.
func withScopeHeaders(classifier *routing.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if classifier != nil && classifier.Classify(r.URL.Path) == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		orgID := strings.TrimSpace(r.Header.Get("X-Org-ID"))
		planID := strings.TrimSpace(r.Header.Get("X-Plan-ID"))
		if orgID == "" || planID == "" {
			routing.WriteError(w, r, http.StatusBadRequest, "missing_scope", "X-Org-ID and X-Plan-ID headers are required")
			return
		}

		next.ServeHTTP(w, r.WithContext(withScope(r.Context(), Scope{
			OrganizationID: orgID,
			PlanID:         planID,
		})))
	})
}
