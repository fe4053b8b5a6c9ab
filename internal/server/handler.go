// Package server assembles the HTTP surface: route allowlist, scope and
// identity middleware, authorization, and the module controllers wired
// to their Postgres stores.
package server

import (
	"context"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inforlary/belkys-sub012/internal/routing"
	apcontrollers "github.com/inforlary/belkys-sub012/modules/actionplan/presentation/controllers"
	apports "github.com/inforlary/belkys-sub012/modules/actionplan/domain/ports"
	apservices "github.com/inforlary/belkys-sub012/modules/actionplan/services"
	"github.com/inforlary/belkys-sub012/modules/iam/infrastructure/directory"
	lifecontrollers "github.com/inforlary/belkys-sub012/modules/lifecycle/presentation/controllers"
	lifeports "github.com/inforlary/belkys-sub012/modules/lifecycle/domain/ports"
	lifepersistence "github.com/inforlary/belkys-sub012/modules/lifecycle/infrastructure/persistence"
	lifeservices "github.com/inforlary/belkys-sub012/modules/lifecycle/services"
	appersistence "github.com/inforlary/belkys-sub012/modules/actionplan/infrastructure/persistence"
	rollcontrollers "github.com/inforlary/belkys-sub012/modules/rollup/presentation/controllers"
	rollports "github.com/inforlary/belkys-sub012/modules/rollup/domain/ports"
	rollpersistence "github.com/inforlary/belkys-sub012/modules/rollup/infrastructure/persistence"
	rollservices "github.com/inforlary/belkys-sub012/modules/rollup/services"
	taxcontrollers "github.com/inforlary/belkys-sub012/modules/taxonomy/presentation/controllers"
	taxports "github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	taxpersistence "github.com/inforlary/belkys-sub012/modules/taxonomy/infrastructure/persistence"
	taxservices "github.com/inforlary/belkys-sub012/modules/taxonomy/services"
	taxtypes "github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	lifetypes "github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/codes"
	"github.com/inforlary/belkys-sub012/pkg/pgscope"
)

// HandlerOptions carries every injectable dependency. Zero-value fields
// fall back to the production wiring: Postgres stores over Pool, the
// filesystem allowlist, and the env-configured authorizer.
type HandlerOptions struct {
	Pool *pgxpool.Pool

	TaxonomyStore   taxports.TaxonomyStore
	ActionPlanStore apports.ActionPlanStore
	LifecycleStore  lifeports.LifecycleStore
	RollupStore     rollports.RollupStore

	Identity   IdentityResolver
	Authorizer authorizer

	TransitionPolicy *lifeservices.TransitionPolicy

	AllowlistPath string
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	if opts.TaxonomyStore == nil {
		opts.TaxonomyStore = taxpersistence.NewTaxonomyPGStore(opts.Pool)
	}
	if opts.ActionPlanStore == nil {
		opts.ActionPlanStore = appersistence.NewActionPlanPGStore(opts.Pool)
	}
	if opts.LifecycleStore == nil {
		opts.LifecycleStore = lifepersistence.NewLifecyclePGStore(opts.Pool)
	}
	if opts.RollupStore == nil {
		opts.RollupStore = rollpersistence.NewRollupPGStore(opts.Pool)
	}
	if opts.Authorizer == nil {
		a, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		opts.Authorizer = a
	}
	if opts.TransitionPolicy == nil {
		if path, err := findConfigUpward("config/lifecycle/transition_rules.yaml"); err == nil {
			policy, err := lifeservices.LoadTransitionPolicy(path)
			if err != nil {
				return nil, err
			}
			opts.TransitionPolicy = policy
		}
	}

	allowlistPath := opts.AllowlistPath
	if allowlistPath == "" {
		p, err := findConfigUpward("config/routes/allowlist.yaml")
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}
	allowlist, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(allowlist, "server")
	if err != nil {
		return nil, err
	}

	planAllocator := codes.NewAllocator(opts.ActionPlanStore, pgscope.IsUniqueViolation)
	lifecycleAllocator := codes.NewAllocator(opts.LifecycleStore, pgscope.IsUniqueViolation)

	projector := apservices.NewProjectorService(opts.ActionPlanStore, actionSourceAdapter{store: opts.TaxonomyStore}, planAllocator)
	hierarchy := taxservices.NewHierarchyService(opts.TaxonomyStore)
	taxonomyWriter := taxservices.NewTaxonomyWriteService(opts.TaxonomyStore, planProjectorAdapter{projector: projector})
	tracker := lifeservices.NewTrackerService(opts.LifecycleStore, actionRefAdapter{store: opts.TaxonomyStore}, lifecycleAllocator, opts.TransitionPolicy)
	aggregator := rollservices.NewAggregatorService(opts.RollupStore,
		taxonomySourceAdapter{store: opts.TaxonomyStore},
		capaSourceAdapter{tracker: tracker})

	scopeGetter := func(ctx context.Context) (string, string, bool) {
		scope, ok := currentScope(ctx)
		return scope.OrganizationID, scope.PlanID, ok
	}

	taxonomyController := taxcontrollers.TaxonomyController{
		Scope:   scopeGetter,
		Loader:  hierarchy,
		Writer:  taxonomyWriter,
		Actions: opts.TaxonomyStore,
	}
	plansController := apcontrollers.PlansController{
		Scope:  scopeGetter,
		Role:   currentRole,
		Facade: projector,
	}
	trackerController := lifecontrollers.TrackerController{
		Scope:  scopeGetter,
		Role:   currentRole,
		Facade: tracker,
	}
	rollupController := rollcontrollers.RollupController{
		Scope:      scopeGetter,
		Aggregator: aggregator,
	}

	router := routing.NewRouter(classifier)
	api := routing.RouteClassPublicAPI

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(handleHealth))

	router.Handle(api, http.MethodGet, "/api/v1/hierarchy", http.HandlerFunc(taxonomyController.HandleHierarchyAPI))
	router.Handle(api, http.MethodPost, "/api/v1/categories", http.HandlerFunc(taxonomyController.HandleCategoriesAPI))
	router.Handle(api, http.MethodPost, "/api/v1/main-standards", http.HandlerFunc(taxonomyController.HandleMainStandardsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/sub-standards", http.HandlerFunc(taxonomyController.HandleSubStandardsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/sub-standard-status", http.HandlerFunc(taxonomyController.HandleSubStandardStatusAPI))
	router.Handle(api, http.MethodPost, "/api/v1/nodes:delete", http.HandlerFunc(taxonomyController.HandleNodesDeleteAPI))
	router.Handle(api, http.MethodGet, "/api/v1/actions", http.HandlerFunc(taxonomyController.HandleActionsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/actions", http.HandlerFunc(taxonomyController.HandleActionsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/actions:update", http.HandlerFunc(taxonomyController.HandleActionsUpdateAPI))
	router.Handle(api, http.MethodPost, "/api/v1/actions:delete", http.HandlerFunc(taxonomyController.HandleActionsDeleteAPI))

	router.Handle(api, http.MethodPost, "/api/v1/actions:ensure-plan", http.HandlerFunc(plansController.HandleEnsurePlanAPI))
	router.Handle(api, http.MethodGet, "/api/v1/action-plans", http.HandlerFunc(plansController.HandlePlansAPI))
	router.Handle(api, http.MethodPost, "/api/v1/action-plans:update", http.HandlerFunc(plansController.HandlePlansUpdateAPI))
	router.Handle(api, http.MethodPost, "/api/v1/action-plans:delete", http.HandlerFunc(plansController.HandlePlansDeleteAPI))
	router.Handle(api, http.MethodPost, "/api/v1/action-plans:submit", http.HandlerFunc(plansController.HandlePlansSubmitAPI))
	router.Handle(api, http.MethodPost, "/api/v1/action-plans:decide", http.HandlerFunc(plansController.HandlePlansDecideAPI))

	router.Handle(api, http.MethodGet, "/api/v1/controls", http.HandlerFunc(trackerController.HandleControlsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/controls", http.HandlerFunc(trackerController.HandleControlsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/controls:update", http.HandlerFunc(trackerController.HandleControlsUpdateAPI))
	router.Handle(api, http.MethodPost, "/api/v1/controls:delete", http.HandlerFunc(trackerController.HandleControlsDeleteAPI))
	router.Handle(api, http.MethodGet, "/api/v1/control-tests", http.HandlerFunc(trackerController.HandleControlTestsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/control-tests", http.HandlerFunc(trackerController.HandleControlTestsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/control-tests:update", http.HandlerFunc(trackerController.HandleControlTestsUpdateAPI))
	router.Handle(api, http.MethodPost, "/api/v1/control-tests:delete", http.HandlerFunc(trackerController.HandleControlTestsDeleteAPI))
	router.Handle(api, http.MethodGet, "/api/v1/findings", http.HandlerFunc(trackerController.HandleFindingsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/findings", http.HandlerFunc(trackerController.HandleFindingsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/findings:update", http.HandlerFunc(trackerController.HandleFindingsUpdateAPI))
	router.Handle(api, http.MethodPost, "/api/v1/findings:delete", http.HandlerFunc(trackerController.HandleFindingsDeleteAPI))
	router.Handle(api, http.MethodGet, "/api/v1/capas", http.HandlerFunc(trackerController.HandleCAPAsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/capas", http.HandlerFunc(trackerController.HandleCAPAsAPI))
	router.Handle(api, http.MethodPost, "/api/v1/capas:update", http.HandlerFunc(trackerController.HandleCAPAsUpdateAPI))
	router.Handle(api, http.MethodPost, "/api/v1/capas:delete", http.HandlerFunc(trackerController.HandleCAPAsDeleteAPI))

	router.Handle(api, http.MethodGet, "/api/v1/rollup/plan-counts", http.HandlerFunc(rollupController.HandlePlanCountsAPI))
	router.Handle(api, http.MethodGet, "/api/v1/rollup/component-progress", http.HandlerFunc(rollupController.HandleComponentProgressAPI))
	router.Handle(api, http.MethodGet, "/api/v1/rollup/due-sets", http.HandlerFunc(rollupController.HandleDueSetsAPI))

	// Outermost first: scope headers, then identity, then authorization.
	var h http.Handler = router
	h = withAuthz(classifier, opts.Authorizer, h)
	h = withIdentity(opts.Identity, h)
	h = withScopeHeaders(classifier, h)
	return h, nil
}

// NewMux builds the production handler from environment configuration.
func NewMux() http.Handler {
	pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
	if err != nil {
		log.Fatalf("server: connect database: %v", err)
	}

	var identity IdentityResolver
	if base := getenvDefault("DIRECTORY_BASE_URL", ""); base != "" {
		client, err := directory.New(base)
		if err != nil {
			log.Fatalf("server: directory client: %v", err)
		}
		identity = client
	}

	h, err := NewHandlerWithOptions(HandlerOptions{Pool: pool, Identity: identity})
	if err != nil {
		log.Fatalf("server: build handler: %v", err)
	}
	return h
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// actionSourceAdapter feeds taxonomy reads to the plan projector. A
// missing status row reads as empty text, not an error.
type actionSourceAdapter struct {
	store taxports.TaxonomyStore
}

func (a actionSourceAdapter) GetAction(ctx context.Context, organizationID string, planID string, actionID string) (taxtypes.Action, error) {
	return a.store.GetAction(ctx, taxports.Scope{OrganizationID: organizationID, PlanID: planID}, actionID)
}

func (a actionSourceAdapter) GetSubStandardStatusText(ctx context.Context, organizationID string, subStandardID string) (string, error) {
	st, err := a.store.GetSubStandardStatus(ctx, organizationID, subStandardID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return st.CurrentStatusText, nil
}

// actionRefAdapter answers the lifecycle tracker's action existence
// checks from the taxonomy store.
type actionRefAdapter struct {
	store taxports.TaxonomyStore
}

func (a actionRefAdapter) ActionExists(ctx context.Context, organizationID string, planID string, actionID string) (bool, error) {
	_, err := a.store.GetAction(ctx, taxports.Scope{OrganizationID: organizationID, PlanID: planID}, actionID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type planProjectorAdapter struct {
	projector *apservices.ProjectorService
}

func (a planProjectorAdapter) PropagateActionEdit(ctx context.Context, scope taxports.Scope, action taxtypes.Action) error {
	return a.projector.PropagateActionEdit(ctx, apports.Scope{OrganizationID: scope.OrganizationID, PlanID: scope.PlanID}, action)
}

type taxonomySourceAdapter struct {
	store taxports.TaxonomyStore
}

func (a taxonomySourceAdapter) ListActions(ctx context.Context, organizationID string, planID string) ([]taxtypes.Action, error) {
	return a.store.ListActions(ctx, taxports.Scope{OrganizationID: organizationID, PlanID: planID})
}

func (a taxonomySourceAdapter) ListSubStandards(ctx context.Context) ([]taxtypes.SubStandard, error) {
	return a.store.ListSubStandards(ctx)
}

type capaSourceAdapter struct {
	tracker *lifeservices.TrackerService
}

func (a capaSourceAdapter) ListCAPAs(ctx context.Context, organizationID string, planID string) ([]lifetypes.CAPA, error) {
	return a.tracker.ListCAPAs(ctx, lifeports.Scope{OrganizationID: organizationID, PlanID: planID}, "")
}
