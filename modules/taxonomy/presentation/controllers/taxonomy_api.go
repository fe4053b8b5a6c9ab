package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/services"
	"github.com/inforlary/belkys-sub012/pkg/httperr"
)

type ScopeGetter func(ctx context.Context) (organizationID string, planID string, ok bool)

type HierarchyLoader interface {
	LoadHierarchy(ctx context.Context, scope ports.Scope, filter services.UnitFilter) ([]types.CategoryNode, error)
}

type TaxonomyWriter interface {
	CreateCategory(ctx context.Context, c types.Category) (types.Category, error)
	CreateMainStandard(ctx context.Context, m types.MainStandard) (types.MainStandard, error)
	CreateSubStandard(ctx context.Context, sub types.SubStandard) (types.SubStandard, error)
	RecordSubStandardStatus(ctx context.Context, st types.SubStandardStatus) error
	DeleteNode(ctx context.Context, nodeKind string, nodeID string) error
	CreateAction(ctx context.Context, scope ports.Scope, req services.CreateActionRequest) (services.ActionResult, error)
	UpdateAction(ctx context.Context, scope ports.Scope, req services.UpdateActionRequest) (services.ActionResult, error)
	DeleteAction(ctx context.Context, scope ports.Scope, actionID string) error
}

type ActionReader interface {
	GetAction(ctx context.Context, scope ports.Scope, actionID string) (types.Action, error)
	ListActions(ctx context.Context, scope ports.Scope) ([]types.Action, error)
}

type TaxonomyController struct {
	Scope   ScopeGetter
	Loader  HierarchyLoader
	Writer  TaxonomyWriter
	Actions ActionReader
}

func (c TaxonomyController) scope(w http.ResponseWriter, r *http.Request) (ports.Scope, bool) {
	orgID, planID, ok := c.Scope(r.Context())
	if !ok {
		httperr.Write(w, r, http.StatusInternalServerError, "scope_missing", "scope missing")
		return ports.Scope{}, false
	}
	return ports.Scope{OrganizationID: orgID, PlanID: planID}, true
}

func (c TaxonomyController) HandleHierarchyAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	filter := services.UnitFilter{
		ResponsibleUnit:   strings.TrimSpace(r.URL.Query().Get("responsible_unit")),
		CollaboratingUnit: strings.TrimSpace(r.URL.Query().Get("collaborating_unit")),
	}
	nodes, err := c.Loader.LoadHierarchy(r.Context(), scope, filter)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = make([]types.CategoryNode, 0)
	}
	writeJSON(w, map[string]any{"hierarchy": nodes})
}

type categoryAPIRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

func (c TaxonomyController) HandleCategoriesAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.scope(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req categoryAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	created, err := c.Writer.CreateCategory(r.Context(), types.Category{
		Code:  req.Code,
		Name:  req.Name,
		Order: req.Order,
	})
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, created)
}

type mainStandardAPIRequest struct {
	CategoryID         string               `json:"category_id"`
	Code               string               `json:"code"`
	Title              string               `json:"title"`
	ResponsibleUnits   types.UnitAssignment `json:"responsible_units"`
	CollaboratingUnits types.UnitAssignment `json:"collaborating_units"`
}

func (c TaxonomyController) HandleMainStandardsAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.scope(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req mainStandardAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	created, err := c.Writer.CreateMainStandard(r.Context(), types.MainStandard{
		CategoryID:         req.CategoryID,
		Code:               req.Code,
		Title:              req.Title,
		ResponsibleUnits:   req.ResponsibleUnits,
		CollaboratingUnits: req.CollaboratingUnits,
	})
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, created)
}

type subStandardAPIRequest struct {
	MainStandardID     string               `json:"main_standard_id"`
	Code               string               `json:"code"`
	Title              string               `json:"title"`
	ResponsibleUnits   types.UnitAssignment `json:"responsible_units"`
	CollaboratingUnits types.UnitAssignment `json:"collaborating_units"`
}

func (c TaxonomyController) HandleSubStandardsAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.scope(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req subStandardAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	created, err := c.Writer.CreateSubStandard(r.Context(), types.SubStandard{
		MainStandardID:     req.MainStandardID,
		Code:               req.Code,
		Title:              req.Title,
		ResponsibleUnits:   req.ResponsibleUnits,
		CollaboratingUnits: req.CollaboratingUnits,
	})
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, created)
}

type subStandardStatusAPIRequest struct {
	SubStandardID               string `json:"sub_standard_id"`
	CurrentStatusText           string `json:"current_status_text"`
	ProvidesReasonableAssurance bool   `json:"provides_reasonable_assurance"`
}

func (c TaxonomyController) HandleSubStandardStatusAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req subStandardStatusAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	st := types.SubStandardStatus{
		SubStandardID:               req.SubStandardID,
		OrganizationID:              scope.OrganizationID,
		CurrentStatusText:           req.CurrentStatusText,
		ProvidesReasonableAssurance: req.ProvidesReasonableAssurance,
	}
	if err := c.Writer.RecordSubStandardStatus(r.Context(), st); err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, st)
}

type nodesDeleteAPIRequest struct {
	NodeKind string `json:"node_kind"`
	NodeID   string `json:"node_id"`
}

func (c TaxonomyController) HandleNodesDeleteAPI(w http.ResponseWriter, r *http.Request) {
	if _, ok := c.scope(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req nodesDeleteAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if err := c.Writer.DeleteNode(r.Context(), req.NodeKind, req.NodeID); err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": true, "node_id": req.NodeID})
}

type actionAPIRequest struct {
	SubStandardID      string               `json:"sub_standard_id"`
	Code               string               `json:"code"`
	Description        string               `json:"description"`
	OutputResult       string               `json:"output_result"`
	Status             string               `json:"status"`
	TargetDate         string               `json:"target_date"`
	ResponsibleUnits   types.UnitAssignment `json:"responsible_units"`
	CollaboratingUnits types.UnitAssignment `json:"collaborating_units"`
	TargetQuantity     int                  `json:"target_quantity"`
	CurrentQuantity    int                  `json:"current_quantity"`
}

type actionUpdateAPIRequest struct {
	ActionID        string  `json:"action_id"`
	Description     *string `json:"description"`
	OutputResult    *string `json:"output_result"`
	Status          *string `json:"status"`
	TargetDate      *string `json:"target_date"`
	CurrentQuantity *int    `json:"current_quantity"`
}

type actionResultResponse struct {
	Action  types.Action `json:"action"`
	Warning string       `json:"warning,omitempty"`
}

func (c TaxonomyController) HandleActionsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			action, err := c.Actions.GetAction(r.Context(), scope, id)
			if err != nil {
				httperr.WriteAppError(w, r, err)
				return
			}
			writeJSON(w, action)
			return
		}
		actions, err := c.Actions.ListActions(r.Context(), scope)
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		if actions == nil {
			actions = make([]types.Action, 0)
		}
		writeJSON(w, map[string]any{"actions": actions})

	case http.MethodPost:
		var req actionAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		var targetDate time.Time
		if req.TargetDate != "" {
			parsed, err := time.Parse("2006-01-02", req.TargetDate)
			if err != nil {
				httperr.Write(w, r, http.StatusBadRequest, "invalid_target_date", "invalid target_date")
				return
			}
			targetDate = parsed
		}
		result, err := c.Writer.CreateAction(r.Context(), scope, services.CreateActionRequest{
			SubStandardID:      req.SubStandardID,
			Code:               req.Code,
			Description:        req.Description,
			OutputResult:       req.OutputResult,
			Status:             types.ActionStatus(req.Status),
			TargetDate:         targetDate,
			ResponsibleUnits:   req.ResponsibleUnits,
			CollaboratingUnits: req.CollaboratingUnits,
			TargetQuantity:     req.TargetQuantity,
			CurrentQuantity:    req.CurrentQuantity,
		})
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		writeJSON(w, actionResultResponse{Action: result.Action, Warning: result.Warning})

	default:
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c TaxonomyController) HandleActionsUpdateAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req actionUpdateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.ActionID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_action_id", "action_id is required")
		return
	}

	update := services.UpdateActionRequest{
		ActionID:        req.ActionID,
		Description:     req.Description,
		OutputResult:    req.OutputResult,
		CurrentQuantity: req.CurrentQuantity,
	}
	if req.Status != nil {
		status := types.ActionStatus(*req.Status)
		update.Status = &status
	}
	if req.TargetDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.TargetDate)
		if err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "invalid_target_date", "invalid target_date")
			return
		}
		update.TargetDate = &parsed
	}

	result, err := c.Writer.UpdateAction(r.Context(), scope, update)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, actionResultResponse{Action: result.Action, Warning: result.Warning})
}

type actionDeleteAPIRequest struct {
	ActionID string `json:"action_id"`
}

func (c TaxonomyController) HandleActionsDeleteAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req actionDeleteAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.ActionID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_action_id", "action_id is required")
		return
	}
	if err := c.Writer.DeleteAction(r.Context(), scope, req.ActionID); err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": true, "action_id": req.ActionID})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
