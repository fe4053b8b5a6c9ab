package ports

import (
	"context"

	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/codes"
)

type Scope struct {
	OrganizationID string
	PlanID         string
}

// ActionPlanStore persists plans and serves the allocator's suffix reads.
// The plan table carries two uniqueness constraints the services lean on:
// (organization_id, plan_id, action_id) for idempotent EnsurePlan and
// (organization_id, plan_code) for EP code allocation.
type ActionPlanStore interface {
	codes.SuffixReader

	Insert(ctx context.Context, p types.ActionPlan) error
	Update(ctx context.Context, scope Scope, p types.ActionPlan) error
	Get(ctx context.Context, scope Scope, planID string) (types.ActionPlan, error)
	GetByAction(ctx context.Context, scope Scope, actionID string) (types.ActionPlan, error)
	List(ctx context.Context, scope Scope) ([]types.ActionPlan, error)
	Delete(ctx context.Context, scope Scope, planID string) error
}
