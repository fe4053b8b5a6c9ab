package services

import (
	"context"

	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/authz"
)

const (
	reasonRoleCannotSubmit = "ROLE_CANNOT_SUBMIT_PLAN"
	reasonRoleCannotDecide = "ROLE_CANNOT_DECIDE_AT_THIS_STAGE"
)

// SubmitForApproval moves a draft (or previously rejected) plan into the
// unit review stage. Any writer role may submit.
func (s *ProjectorService) SubmitForApproval(ctx context.Context, scope ports.Scope, planID string, role string) (types.ActionPlan, error) {
	if !authz.IsWriterRole(role) {
		return types.ActionPlan{}, apperr.NewAuthorizationDenied(reasonRoleCannotSubmit)
	}
	plan, err := s.store.Get(ctx, scope, planID)
	if err != nil {
		return types.ActionPlan{}, err
	}
	if plan.ApprovalStatus != types.ApprovalDraft && plan.ApprovalStatus != types.ApprovalRejected {
		return types.ActionPlan{}, apperr.NewValidation("approval_status")
	}
	plan.ApprovalStatus = types.ApprovalUnitPending
	if err := s.store.Update(ctx, scope, plan); err != nil {
		return types.ActionPlan{}, err
	}
	return plan, nil
}

// DecideApproval records one stage's approve/reject decision. The unit
// stage belongs to the IC coordinator; the management stage to the vice
// president or an admin. Approving the unit stage forwards the plan to
// management; approving the management stage finalizes it.
func (s *ProjectorService) DecideApproval(ctx context.Context, scope ports.Scope, planID string, role string, approve bool) (types.ActionPlan, error) {
	plan, err := s.store.Get(ctx, scope, planID)
	if err != nil {
		return types.ActionPlan{}, err
	}

	switch plan.ApprovalStatus {
	case types.ApprovalUnitPending:
		if role != authz.RoleICCoordinator && role != authz.RoleAdmin {
			return types.ActionPlan{}, apperr.NewAuthorizationDenied(reasonRoleCannotDecide)
		}
		if approve {
			plan.ApprovalStatus = types.ApprovalManagementPending
		} else {
			plan.ApprovalStatus = types.ApprovalRejected
		}
	case types.ApprovalManagementPending:
		if role != authz.RoleVicePresident && role != authz.RoleAdmin {
			return types.ActionPlan{}, apperr.NewAuthorizationDenied(reasonRoleCannotDecide)
		}
		if approve {
			plan.ApprovalStatus = types.ApprovalApproved
		} else {
			plan.ApprovalStatus = types.ApprovalRejected
		}
	default:
		return types.ActionPlan{}, apperr.NewValidation("approval_status")
	}

	if err := s.store.Update(ctx, scope, plan); err != nil {
		return types.ActionPlan{}, err
	}
	return plan, nil
}
