package ports

import (
	"context"

	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/codes"
)

// Scope identifies the caller's organization and compliance plan period.
type Scope struct {
	OrganizationID string
	PlanID         string
}

// LifecycleStore is the persistence port for controls, control tests,
// findings, and CAPAs. Code columns carry a uniqueness constraint per
// allocation scope; MaxSuffix serves the code allocator's read side.
type LifecycleStore interface {
	codes.SuffixReader

	InsertControl(ctx context.Context, c types.Control) error
	UpdateControl(ctx context.Context, scope Scope, c types.Control) error
	GetControl(ctx context.Context, scope Scope, id string) (types.Control, error)
	ListControls(ctx context.Context, scope Scope, actionID string) ([]types.Control, error)
	DeleteControl(ctx context.Context, scope Scope, id string) error
	// CountControlDependents counts control tests and findings still
	// referencing the control, separately.
	CountControlDependents(ctx context.Context, scope Scope, controlID string) (tests int, findings int, err error)

	InsertControlTest(ctx context.Context, t types.ControlTest) error
	UpdateControlTest(ctx context.Context, scope Scope, t types.ControlTest) error
	GetControlTest(ctx context.Context, scope Scope, id string) (types.ControlTest, error)
	ListControlTests(ctx context.Context, scope Scope, controlID string) ([]types.ControlTest, error)
	DeleteControlTest(ctx context.Context, scope Scope, id string) error

	InsertFinding(ctx context.Context, f types.Finding) error
	UpdateFinding(ctx context.Context, scope Scope, f types.Finding) error
	GetFinding(ctx context.Context, scope Scope, id string) (types.Finding, error)
	ListFindings(ctx context.Context, scope Scope, actionPlanID string) ([]types.Finding, error)
	DeleteFinding(ctx context.Context, scope Scope, id string) error
	CountFindingDependents(ctx context.Context, scope Scope, findingID string) (capas int, err error)

	InsertCAPA(ctx context.Context, c types.CAPA) error
	UpdateCAPA(ctx context.Context, scope Scope, c types.CAPA) error
	GetCAPA(ctx context.Context, scope Scope, id string) (types.CAPA, error)
	ListCAPAs(ctx context.Context, scope Scope, actionPlanID string) ([]types.CAPA, error)
	DeleteCAPA(ctx context.Context, scope Scope, id string) error
}
