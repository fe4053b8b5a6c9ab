package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/inforlary/belkys-sub012/internal/routing"
	"github.com/inforlary/belkys-sub012/pkg/authz"
)

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := findConfigUpward("config/access/model.conf")
		if err != nil {
			return nil, errors.New("server: authz model not found")
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := findConfigUpward("config/access/policy.csv")
		if err != nil {
			return nil, errors.New("server: authz policy not found")
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

// findConfigUpward walks up to eight parent directories so binaries run
// from cmd/* or test working directories still find repo config.
func findConfigUpward(rel string) (string, error) {
	path := rel
	for i := 0; i < 8; i++ {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: config not found: " + rel)
}

type authorizer interface {
	Authorize(subject string, domain string, object string, action string) (allowed bool, enforced bool, err error)
}

func withAuthz(classifier *routing.Classifier, a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if classifier != nil && classifier.Classify(path) == routing.RouteClassOps {
			next.ServeHTTP(w, r)
			return
		}

		scope, ok := currentScope(r.Context())
		if !ok {
			routing.WriteError(w, r, http.StatusInternalServerError, "scope_missing", "scope missing")
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		subject := authz.SubjectFromRoleSlug(currentRole(r.Context()))
		domain := authz.DomainFromOrganizationID(scope.OrganizationID)

		allowed, enforced, err := a.Authorize(subject, domain, object, action)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	switch path {
	case "/api/v1/hierarchy":
		if method == http.MethodGet {
			return authz.ObjectTaxonomyNodes, authz.ActionRead, true
		}
		return "", "", false
	case "/api/v1/categories", "/api/v1/main-standards", "/api/v1/sub-standards", "/api/v1/nodes:delete":
		if method == http.MethodPost {
			return authz.ObjectTaxonomyNodes, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/sub-standard-status":
		// organization-scoped instance data, not shared taxonomy
		if method == http.MethodPost {
			return authz.ObjectTaxonomyActions, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/actions":
		if method == http.MethodGet {
			return authz.ObjectTaxonomyActions, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectTaxonomyActions, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/actions:update", "/api/v1/actions:delete":
		if method == http.MethodPost {
			return authz.ObjectTaxonomyActions, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/actions:ensure-plan":
		if method == http.MethodPost {
			return authz.ObjectActionPlans, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/action-plans":
		if method == http.MethodGet {
			return authz.ObjectActionPlans, authz.ActionRead, true
		}
		return "", "", false
	case "/api/v1/action-plans:update", "/api/v1/action-plans:delete", "/api/v1/action-plans:submit", "/api/v1/action-plans:decide":
		if method == http.MethodPost {
			return authz.ObjectActionPlans, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/controls", "/api/v1/control-tests", "/api/v1/findings", "/api/v1/capas":
		if method == http.MethodGet {
			return authz.ObjectLifecycleRecords, authz.ActionRead, true
		}
		if method == http.MethodPost {
			return authz.ObjectLifecycleRecords, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/controls:update", "/api/v1/controls:delete",
		"/api/v1/control-tests:update", "/api/v1/control-tests:delete",
		"/api/v1/findings:update", "/api/v1/findings:delete",
		"/api/v1/capas:update", "/api/v1/capas:delete":
		if method == http.MethodPost {
			return authz.ObjectLifecycleRecords, authz.ActionWrite, true
		}
		return "", "", false
	case "/api/v1/rollup/plan-counts", "/api/v1/rollup/component-progress", "/api/v1/rollup/due-sets":
		if method == http.MethodGet {
			return authz.ObjectRollups, authz.ActionRead, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
