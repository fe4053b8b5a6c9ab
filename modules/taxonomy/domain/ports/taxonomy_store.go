package ports

import (
	"context"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
)

// Scope identifies the caller's organization and compliance plan period.
// Every organization-scoped read/write is bounded by it.
type Scope struct {
	OrganizationID string
	PlanID         string
}

// TaxonomyStore is the persistence port for the four-level hierarchy.
// Hierarchy loads are one bulk fetch per level; the service groups in
// memory rather than fanning out per node.
type TaxonomyStore interface {
	ListCategories(ctx context.Context) ([]types.Category, error)
	ListMainStandards(ctx context.Context) ([]types.MainStandard, error)
	ListSubStandards(ctx context.Context) ([]types.SubStandard, error)
	ListActions(ctx context.Context, scope Scope) ([]types.Action, error)
	ListSubStandardStatuses(ctx context.Context, organizationID string) ([]types.SubStandardStatus, error)

	GetAction(ctx context.Context, scope Scope, actionID string) (types.Action, error)
	GetSubStandard(ctx context.Context, subStandardID string) (types.SubStandard, error)
	GetSubStandardStatus(ctx context.Context, organizationID string, subStandardID string) (types.SubStandardStatus, error)

	InsertCategory(ctx context.Context, c types.Category) error
	InsertMainStandard(ctx context.Context, m types.MainStandard) error
	InsertSubStandard(ctx context.Context, s types.SubStandard) error
	UpsertSubStandardStatus(ctx context.Context, st types.SubStandardStatus) error
	InsertAction(ctx context.Context, a types.Action) error
	UpdateAction(ctx context.Context, scope Scope, a types.Action) error
	DeleteAction(ctx context.Context, scope Scope, actionID string) error

	// CountDescendantInstanceData counts organization-scoped records
	// (actions, plans, lifecycle rows) referencing the node or any
	// descendant. The delete guard refuses to cascade while it is non-zero.
	CountDescendantInstanceData(ctx context.Context, nodeKind string, nodeID string) (int, error)
	DeleteNodeCascade(ctx context.Context, nodeKind string, nodeID string) error
}

// Node kinds accepted by the delete guard.
const (
	NodeCategory     = "category"
	NodeMainStandard = "main_standard"
	NodeSubStandard  = "sub_standard"
)
