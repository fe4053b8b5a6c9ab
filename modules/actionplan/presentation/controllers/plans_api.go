package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/types"
	"github.com/inforlary/belkys-sub012/modules/actionplan/services"
	"github.com/inforlary/belkys-sub012/pkg/httperr"
)

type ScopeGetter func(ctx context.Context) (organizationID string, planID string, ok bool)

type RoleGetter func(ctx context.Context) string

// PlanFacade is the projector surface the controller drives.
type PlanFacade interface {
	EnsurePlan(ctx context.Context, scope ports.Scope, actionID string) (types.ActionPlan, error)
	GetPlan(ctx context.Context, scope ports.Scope, planID string) (types.ActionPlan, error)
	ListPlans(ctx context.Context, scope ports.Scope) ([]types.ActionPlan, error)
	UpdatePlan(ctx context.Context, scope ports.Scope, req services.UpdatePlanRequest) (types.ActionPlan, error)
	DeletePlan(ctx context.Context, scope ports.Scope, planID string) error
	SubmitForApproval(ctx context.Context, scope ports.Scope, planID string, role string) (types.ActionPlan, error)
	DecideApproval(ctx context.Context, scope ports.Scope, planID string, role string, approve bool) (types.ActionPlan, error)
}

type PlansController struct {
	Scope  ScopeGetter
	Role   RoleGetter
	Facade PlanFacade
}

func (c PlansController) scope(w http.ResponseWriter, r *http.Request) (ports.Scope, bool) {
	orgID, planID, ok := c.Scope(r.Context())
	if !ok {
		httperr.Write(w, r, http.StatusInternalServerError, "scope_missing", "scope missing")
		return ports.Scope{}, false
	}
	return ports.Scope{OrganizationID: orgID, PlanID: planID}, true
}

func (c PlansController) role(r *http.Request) string {
	if c.Role == nil {
		return ""
	}
	return c.Role(r.Context())
}

func (c PlansController) HandlePlansAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		plan, err := c.Facade.GetPlan(r.Context(), scope, id)
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		writeJSON(w, plan)
		return
	}
	plans, err := c.Facade.ListPlans(r.Context(), scope)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	if plans == nil {
		plans = make([]types.ActionPlan, 0)
	}
	writeJSON(w, map[string]any{"action_plans": plans})
}

type ensurePlanAPIRequest struct {
	ActionID string `json:"action_id"`
}

// HandleEnsurePlanAPI is idempotent: repeat calls for the same action
// return the plan created by the first.
func (c PlansController) HandleEnsurePlanAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req ensurePlanAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.ActionID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_action_id", "action_id is required")
		return
	}
	plan, err := c.Facade.EnsurePlan(r.Context(), scope, req.ActionID)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

type planUpdateAPIRequest struct {
	PlanID             string   `json:"plan_id"`
	PlannedActions     *string  `json:"planned_actions"`
	ResponsibleUnit    *string  `json:"responsible_unit"`
	CollaboratingUnits []string `json:"collaborating_units"`
	CompletionDate     *string  `json:"completion_date"`
	ProgressPercentage *int     `json:"progress_percentage"`
}

func (c PlansController) HandlePlansUpdateAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req planUpdateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_plan_id", "plan_id is required")
		return
	}

	update := services.UpdatePlanRequest{
		PlanID:             req.PlanID,
		PlannedActions:     req.PlannedActions,
		ResponsibleUnit:    req.ResponsibleUnit,
		CollaboratingUnits: req.CollaboratingUnits,
		ProgressPercentage: req.ProgressPercentage,
	}
	if req.CompletionDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.CompletionDate)
		if err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "invalid_completion_date", "invalid completion_date")
			return
		}
		update.CompletionDate = &parsed
	}

	plan, err := c.Facade.UpdatePlan(r.Context(), scope, update)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

type planIDAPIRequest struct {
	PlanID string `json:"plan_id"`
}

func (c PlansController) HandlePlansDeleteAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req planIDAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_plan_id", "plan_id is required")
		return
	}
	if err := c.Facade.DeletePlan(r.Context(), scope, req.PlanID); err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": true, "plan_id": req.PlanID})
}

func (c PlansController) HandlePlansSubmitAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req planIDAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_plan_id", "plan_id is required")
		return
	}
	plan, err := c.Facade.SubmitForApproval(r.Context(), scope, req.PlanID, c.role(r))
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

type planDecideAPIRequest struct {
	PlanID  string `json:"plan_id"`
	Approve bool   `json:"approve"`
}

func (c PlansController) HandlePlansDecideAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req planDecideAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_plan_id", "plan_id is required")
		return
	}
	plan, err := c.Facade.DecideApproval(r.Context(), scope, req.PlanID, c.role(r), req.Approve)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, plan)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
