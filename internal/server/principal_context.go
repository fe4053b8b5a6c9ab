package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/inforlary/belkys-sub012/internal/routing"
	"github.com/inforlary/belkys-sub012/modules/iam/infrastructure/directory"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/authz"
)

type Principal struct {
	ID          string
	DisplayName string
	RoleSlug    string
}

type principalCtxKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

func currentPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(Principal)
	return p, ok
}

func currentRole(ctx context.Context) string {
	if p, ok := currentPrincipal(ctx); ok {
		return p.RoleSlug
	}
	return authz.RoleAnonymous
}

// IdentityResolver resolves a session token to a principal. Implemented by
// the directory client; stubbed in tests.
type IdentityResolver interface {
	Whoami(ctx context.Context, sessionToken string) (directory.Principal, error)
}

// withIdentity resolves X-Session-Token when present. Requests without a
// token proceed as anonymous; the policy decides what anonymous may do. A
// directory outage is reported as 503, never mistaken for anonymity.
func withIdentity(resolver IdentityResolver, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-Session-Token"))
		if token == "" || resolver == nil {
			next.ServeHTTP(w, r)
			return
		}

		p, err := resolver.Whoami(r.Context(), token)
		if err != nil {
			if apperr.IsCollaboratorUnavailable(err) {
				routing.WriteError(w, r, http.StatusServiceUnavailable, "collaborator_unavailable", "identity collaborator unavailable")
				return
			}
			routing.WriteError(w, r, http.StatusUnauthorized, "invalid_session", "invalid session")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), Principal{
			ID:          p.UserID,
			DisplayName: p.DisplayName,
			RoleSlug:    p.RoleSlug,
		})))
	})
}
