package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

var newRecordID = func() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PlanProjector is the narrow seam to the action-plan module. Propagation
// failures must not roll back the action write; they surface as warnings.
type PlanProjector interface {
	PropagateActionEdit(ctx context.Context, scope ports.Scope, action types.Action) error
}

type CreateActionRequest struct {
	SubStandardID      string
	Code               string
	Description        string
	OutputResult       string
	Status             types.ActionStatus
	TargetDate         time.Time
	ResponsibleUnits   types.UnitAssignment
	CollaboratingUnits types.UnitAssignment
	TargetQuantity     int
	CurrentQuantity    int
}

type UpdateActionRequest struct {
	ActionID        string
	Description     *string
	OutputResult    *string
	Status          *types.ActionStatus
	TargetDate      *time.Time
	CurrentQuantity *int
}

// ActionResult carries the written action plus a non-fatal warning when
// plan propagation failed and the records transiently diverge.
type ActionResult struct {
	Action  types.Action
	Warning string
}

type TaxonomyWriteService struct {
	store     ports.TaxonomyStore
	projector PlanProjector
	logf      func(format string, args ...any)
}

func NewTaxonomyWriteService(store ports.TaxonomyStore, projector PlanProjector) *TaxonomyWriteService {
	return &TaxonomyWriteService{store: store, projector: projector, logf: log.Printf}
}

func (s *TaxonomyWriteService) CreateCategory(ctx context.Context, c types.Category) (types.Category, error) {
	var missing []string
	if strings.TrimSpace(c.Code) == "" {
		missing = append(missing, "code")
	}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if err := apperr.NewValidation(missing...); err != nil {
		return types.Category{}, err
	}
	if c.ID == "" {
		id, err := newRecordID()
		if err != nil {
			return types.Category{}, err
		}
		c.ID = id
	}
	if err := s.store.InsertCategory(ctx, c); err != nil {
		return types.Category{}, err
	}
	return c, nil
}

func (s *TaxonomyWriteService) CreateMainStandard(ctx context.Context, m types.MainStandard) (types.MainStandard, error) {
	var missing []string
	if strings.TrimSpace(m.CategoryID) == "" {
		missing = append(missing, "category_id")
	}
	if strings.TrimSpace(m.Code) == "" {
		missing = append(missing, "code")
	}
	if strings.TrimSpace(m.Title) == "" {
		missing = append(missing, "title")
	}
	if err := apperr.NewValidation(missing...); err != nil {
		return types.MainStandard{}, err
	}
	if m.ID == "" {
		id, err := newRecordID()
		if err != nil {
			return types.MainStandard{}, err
		}
		m.ID = id
	}
	if err := s.store.InsertMainStandard(ctx, m); err != nil {
		return types.MainStandard{}, err
	}
	return m, nil
}

func (s *TaxonomyWriteService) CreateSubStandard(ctx context.Context, sub types.SubStandard) (types.SubStandard, error) {
	var missing []string
	if strings.TrimSpace(sub.MainStandardID) == "" {
		missing = append(missing, "main_standard_id")
	}
	if strings.TrimSpace(sub.Code) == "" {
		missing = append(missing, "code")
	}
	if strings.TrimSpace(sub.Title) == "" {
		missing = append(missing, "title")
	}
	if err := apperr.NewValidation(missing...); err != nil {
		return types.SubStandard{}, err
	}
	if sub.ID == "" {
		id, err := newRecordID()
		if err != nil {
			return types.SubStandard{}, err
		}
		sub.ID = id
	}
	if err := s.store.InsertSubStandard(ctx, sub); err != nil {
		return types.SubStandard{}, err
	}
	return sub, nil
}

// RecordSubStandardStatus records or replaces one organization's status text
// for a sub-standard. Plans snapshot this text at creation; later edits here
// never rewrite existing plans.
func (s *TaxonomyWriteService) RecordSubStandardStatus(ctx context.Context, st types.SubStandardStatus) error {
	var missing []string
	if strings.TrimSpace(st.SubStandardID) == "" {
		missing = append(missing, "sub_standard_id")
	}
	if strings.TrimSpace(st.OrganizationID) == "" {
		missing = append(missing, "organization_id")
	}
	if strings.TrimSpace(st.CurrentStatusText) == "" {
		missing = append(missing, "current_status_text")
	}
	if err := apperr.NewValidation(missing...); err != nil {
		return err
	}
	return s.store.UpsertSubStandardStatus(ctx, st)
}

// DeleteNode cascades only when no organization-scoped instance data hangs
// below the node; otherwise the delete is refused with the dependent count.
func (s *TaxonomyWriteService) DeleteNode(ctx context.Context, nodeKind string, nodeID string) error {
	switch nodeKind {
	case ports.NodeCategory, ports.NodeMainStandard, ports.NodeSubStandard:
	default:
		return apperr.NewValidation("node_kind")
	}
	count, err := s.store.CountDescendantInstanceData(ctx, nodeKind, nodeID)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.NewDependencyConflict("Action", count)
	}
	return s.store.DeleteNodeCascade(ctx, nodeKind, nodeID)
}

func (s *TaxonomyWriteService) CreateAction(ctx context.Context, scope ports.Scope, req CreateActionRequest) (ActionResult, error) {
	var missing []string
	if strings.TrimSpace(req.SubStandardID) == "" {
		missing = append(missing, "sub_standard_id")
	}
	if strings.TrimSpace(req.Code) == "" {
		missing = append(missing, "code")
	}
	if strings.TrimSpace(req.Description) == "" {
		missing = append(missing, "description")
	}
	status := req.Status
	if status == "" {
		status = types.ActionNotStarted
	}
	if !status.Valid() {
		missing = append(missing, "status")
	}
	if err := apperr.NewValidation(missing...); err != nil {
		return ActionResult{}, err
	}

	// The parent must exist before instance data may reference it.
	if _, err := s.store.GetSubStandard(ctx, req.SubStandardID); err != nil {
		return ActionResult{}, err
	}

	id, err := newRecordID()
	if err != nil {
		return ActionResult{}, err
	}
	action := types.Action{
		ID:                 id,
		SubStandardID:      req.SubStandardID,
		OrganizationID:     scope.OrganizationID,
		PlanID:             scope.PlanID,
		Code:               strings.TrimSpace(req.Code),
		Description:        req.Description,
		OutputResult:       req.OutputResult,
		Status:             status,
		TargetDate:         req.TargetDate,
		ResponsibleUnits:   req.ResponsibleUnits,
		CollaboratingUnits: req.CollaboratingUnits,
		TargetQuantity:     req.TargetQuantity,
		CurrentQuantity:    req.CurrentQuantity,
	}
	if err := s.store.InsertAction(ctx, action); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Action: action}, nil
}

// UpdateAction applies the edit, then pushes the mapped fields into the
// action's plan. The records may transiently diverge when propagation
// fails; the edit itself is never rolled back for that.
func (s *TaxonomyWriteService) UpdateAction(ctx context.Context, scope ports.Scope, req UpdateActionRequest) (ActionResult, error) {
	action, err := s.store.GetAction(ctx, scope, req.ActionID)
	if err != nil {
		return ActionResult{}, err
	}

	if req.Status != nil && !req.Status.Valid() {
		return ActionResult{}, apperr.NewValidation("status")
	}
	if req.Description != nil {
		action.Description = *req.Description
	}
	if req.OutputResult != nil {
		action.OutputResult = *req.OutputResult
	}
	if req.Status != nil {
		action.Status = *req.Status
	}
	if req.TargetDate != nil {
		action.TargetDate = *req.TargetDate
	}
	if req.CurrentQuantity != nil {
		action.CurrentQuantity = *req.CurrentQuantity
	}

	if err := s.store.UpdateAction(ctx, scope, action); err != nil {
		return ActionResult{}, err
	}

	result := ActionResult{Action: action}
	if s.projector != nil {
		if err := s.projector.PropagateActionEdit(ctx, scope, action); err != nil {
			s.logf("taxonomy: action %s plan propagation failed: %v", action.ID, err)
			result.Warning = "action plan propagation failed; records will converge on next plan write"
		}
	}
	return result, nil
}

func (s *TaxonomyWriteService) DeleteAction(ctx context.Context, scope ports.Scope, actionID string) error {
	if _, err := s.store.GetAction(ctx, scope, actionID); err != nil {
		return err
	}
	return s.store.DeleteAction(ctx, scope, actionID)
}
