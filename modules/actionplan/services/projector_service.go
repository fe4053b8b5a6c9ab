package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/types"
	taxtypes "github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/codes"
)

var newPlanID = func() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ErrPlanExists is returned by stores when the one-plan-per-action
// constraint fires under a concurrent EnsurePlan.
var ErrPlanExists = errors.New("action_plan_exists")

// ActionSource reads the taxonomy data a plan projects from.
type ActionSource interface {
	GetAction(ctx context.Context, organizationID string, planID string, actionID string) (taxtypes.Action, error)
	// GetSubStandardStatusText returns "" when the organization has not
	// recorded a status yet; that is not an error.
	GetSubStandardStatusText(ctx context.Context, organizationID string, subStandardID string) (string, error)
}

type ProjectorService struct {
	store     ports.ActionPlanStore
	actions   ActionSource
	allocator *codes.Allocator
	logf      func(format string, args ...any)
}

func NewProjectorService(store ports.ActionPlanStore, actions ActionSource, allocator *codes.Allocator) *ProjectorService {
	return &ProjectorService{store: store, actions: actions, allocator: allocator, logf: log.Printf}
}

func planStatusFromAction(s taxtypes.ActionStatus) types.PlanStatus {
	switch s {
	case taxtypes.ActionNotStarted:
		return types.PlanPlanned
	case taxtypes.ActionInProgress:
		return types.PlanInProgress
	case taxtypes.ActionCompleted:
		return types.PlanCompleted
	case taxtypes.ActionDelayed:
		return types.PlanDelayed
	default:
		return types.PlanPlanned
	}
}

// EnsurePlan returns the action's plan for the scope, creating it on first
// call. Idempotent: repeated calls return the same plan id. The new plan
// snapshots the sub-standard's current status text; later status edits do
// not rewrite existing plans.
func (s *ProjectorService) EnsurePlan(ctx context.Context, scope ports.Scope, actionID string) (types.ActionPlan, error) {
	existing, err := s.store.GetByAction(ctx, scope, actionID)
	if err == nil {
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return types.ActionPlan{}, err
	}

	action, err := s.actions.GetAction(ctx, scope.OrganizationID, scope.PlanID, actionID)
	if err != nil {
		return types.ActionPlan{}, err
	}
	situation, err := s.actions.GetSubStandardStatusText(ctx, scope.OrganizationID, action.SubStandardID)
	if err != nil {
		return types.ActionPlan{}, err
	}

	id, err := newPlanID()
	if err != nil {
		return types.ActionPlan{}, err
	}
	plan := types.ActionPlan{
		ID:               id,
		OrganizationID:   scope.OrganizationID,
		PlanID:           scope.PlanID,
		ActionID:         actionID,
		PlannedActions:   action.Description,
		CurrentSituation: situation,
		CompletionDate:   action.TargetDate,
		Status:           planStatusFromAction(action.Status),
		ApprovalStatus:   types.ApprovalDraft,
	}

	codeScope := codes.Scope{
		OrganizationID: scope.OrganizationID,
		PlanID:         scope.PlanID,
		RecordType:     codes.RecordActionPlan,
	}
	_, err = s.allocator.Allocate(ctx, codeScope, func(ctx context.Context, code string) error {
		plan.PlanCode = code
		return s.store.Insert(ctx, plan)
	})
	if errors.Is(err, ErrPlanExists) {
		// lost the create race; the winner's plan is the answer
		return s.store.GetByAction(ctx, scope, actionID)
	}
	if err != nil {
		return types.ActionPlan{}, err
	}
	return plan, nil
}

// PropagateActionEdit pushes an action edit into its existing plan:
// description to planned actions, target date to completion date, and the
// not_started→planned status mapping only. Other action statuses leave the
// plan status untouched. Callers treat failure as a warning, never a
// rollback of the action edit.
func (s *ProjectorService) PropagateActionEdit(ctx context.Context, scope ports.Scope, action taxtypes.Action) error {
	plan, err := s.store.GetByAction(ctx, scope, action.ID)
	if err != nil {
		return err
	}

	plan.PlannedActions = action.Description
	plan.CompletionDate = action.TargetDate
	if action.Status == taxtypes.ActionNotStarted {
		plan.Status = types.PlanPlanned
	}
	return s.store.Update(ctx, scope, plan)
}

type UpdatePlanRequest struct {
	PlanID             string
	PlannedActions     *string
	ResponsibleUnit    *string
	CollaboratingUnits []string
	CompletionDate     *time.Time
	ProgressPercentage *int
}

func (s *ProjectorService) UpdatePlan(ctx context.Context, scope ports.Scope, req UpdatePlanRequest) (types.ActionPlan, error) {
	plan, err := s.store.Get(ctx, scope, req.PlanID)
	if err != nil {
		return types.ActionPlan{}, err
	}

	var invalid []string
	if req.ProgressPercentage != nil && (*req.ProgressPercentage < 0 || *req.ProgressPercentage > 100) {
		invalid = append(invalid, "progress_percentage")
	}
	if req.PlannedActions != nil && strings.TrimSpace(*req.PlannedActions) == "" {
		invalid = append(invalid, "planned_actions")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.ActionPlan{}, err
	}

	if req.PlannedActions != nil {
		plan.PlannedActions = *req.PlannedActions
	}
	if req.ResponsibleUnit != nil {
		plan.ResponsibleUnit = *req.ResponsibleUnit
	}
	if req.CollaboratingUnits != nil {
		plan.CollaboratingUnits = req.CollaboratingUnits
	}
	if req.CompletionDate != nil {
		plan.CompletionDate = *req.CompletionDate
	}
	if req.ProgressPercentage != nil {
		plan.ProgressPercentage = *req.ProgressPercentage
	}
	if err := s.store.Update(ctx, scope, plan); err != nil {
		return types.ActionPlan{}, err
	}
	return plan, nil
}

func (s *ProjectorService) GetPlan(ctx context.Context, scope ports.Scope, planID string) (types.ActionPlan, error) {
	return s.store.Get(ctx, scope, planID)
}

func (s *ProjectorService) ListPlans(ctx context.Context, scope ports.Scope) ([]types.ActionPlan, error) {
	return s.store.List(ctx, scope)
}

func (s *ProjectorService) DeletePlan(ctx context.Context, scope ports.Scope, planID string) error {
	if _, err := s.store.Get(ctx, scope, planID); err != nil {
		return err
	}
	return s.store.Delete(ctx, scope, planID)
}
