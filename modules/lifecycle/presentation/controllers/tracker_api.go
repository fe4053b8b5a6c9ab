package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/modules/lifecycle/services"
	"github.com/inforlary/belkys-sub012/pkg/httperr"
)

type ScopeGetter func(ctx context.Context) (organizationID string, planID string, ok bool)

type RoleGetter func(ctx context.Context) string

// TrackerFacade is the lifecycle surface the controller drives: controls,
// control tests, findings and CAPAs.
type TrackerFacade interface {
	CreateControl(ctx context.Context, scope ports.Scope, req services.CreateControlRequest) (types.Control, error)
	UpdateControl(ctx context.Context, scope ports.Scope, role string, req services.UpdateControlRequest) (types.Control, error)
	GetControl(ctx context.Context, scope ports.Scope, id string) (types.Control, error)
	ListControls(ctx context.Context, scope ports.Scope, actionID string) ([]types.Control, error)
	DeleteControl(ctx context.Context, scope ports.Scope, id string) error

	CreateControlTest(ctx context.Context, scope ports.Scope, req services.CreateControlTestRequest) (types.ControlTest, error)
	UpdateControlTest(ctx context.Context, scope ports.Scope, req services.UpdateControlTestRequest) (types.ControlTest, error)
	GetControlTest(ctx context.Context, scope ports.Scope, id string) (types.ControlTest, error)
	ListControlTests(ctx context.Context, scope ports.Scope, controlID string) ([]types.ControlTest, error)
	DeleteControlTest(ctx context.Context, scope ports.Scope, id string) error

	CreateFinding(ctx context.Context, scope ports.Scope, req services.CreateFindingRequest) (types.Finding, error)
	UpdateFinding(ctx context.Context, scope ports.Scope, role string, req services.UpdateFindingRequest) (types.Finding, error)
	GetFinding(ctx context.Context, scope ports.Scope, id string) (types.Finding, error)
	ListFindings(ctx context.Context, scope ports.Scope, actionPlanID string) ([]types.Finding, error)
	DeleteFinding(ctx context.Context, scope ports.Scope, id string) error

	CreateCAPA(ctx context.Context, scope ports.Scope, req services.CreateCAPARequest) (types.CAPA, error)
	UpdateCAPA(ctx context.Context, scope ports.Scope, role string, req services.UpdateCAPARequest) (types.CAPA, error)
	GetCAPA(ctx context.Context, scope ports.Scope, id string) (types.CAPA, error)
	ListCAPAs(ctx context.Context, scope ports.Scope, actionPlanID string) ([]types.CAPA, error)
	DeleteCAPA(ctx context.Context, scope ports.Scope, id string) error
}

type TrackerController struct {
	Scope  ScopeGetter
	Role   RoleGetter
	Facade TrackerFacade
}

func (c TrackerController) scope(w http.ResponseWriter, r *http.Request) (ports.Scope, bool) {
	orgID, planID, ok := c.Scope(r.Context())
	if !ok {
		httperr.Write(w, r, http.StatusInternalServerError, "scope_missing", "scope missing")
		return ports.Scope{}, false
	}
	return ports.Scope{OrganizationID: orgID, PlanID: planID}, true
}

func (c TrackerController) role(r *http.Request) string {
	if c.Role == nil {
		return ""
	}
	return c.Role(r.Context())
}

// ---- controls ----

type controlAPIRequest struct {
	ActionID               string `json:"action_id"`
	Name                   string `json:"name"`
	Type                   string `json:"type"`
	Nature                 string `json:"nature"`
	Frequency              string `json:"frequency"`
	Owner                  string `json:"owner"`
	Performer              string `json:"performer"`
	Status                 string `json:"status"`
	DesignEffectiveness    string `json:"design_effectiveness"`
	OperatingEffectiveness string `json:"operating_effectiveness"`
}

type controlUpdateAPIRequest struct {
	ControlID              string  `json:"control_id"`
	Name                   *string `json:"name"`
	Type                   *string `json:"type"`
	Nature                 *string `json:"nature"`
	Frequency              *string `json:"frequency"`
	Owner                  *string `json:"owner"`
	Performer              *string `json:"performer"`
	Status                 *string `json:"status"`
	DesignEffectiveness    *string `json:"design_effectiveness"`
	OperatingEffectiveness *string `json:"operating_effectiveness"`
}

func (c TrackerController) HandleControlsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			control, err := c.Facade.GetControl(r.Context(), scope, id)
			if err != nil {
				httperr.WriteAppError(w, r, err)
				return
			}
			writeJSON(w, control)
			return
		}
		controls, err := c.Facade.ListControls(r.Context(), scope, strings.TrimSpace(r.URL.Query().Get("action_id")))
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		if controls == nil {
			controls = make([]types.Control, 0)
		}
		writeJSON(w, map[string]any{"controls": controls})

	case http.MethodPost:
		var req controlAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		control, err := c.Facade.CreateControl(r.Context(), scope, services.CreateControlRequest{
			ActionID:               req.ActionID,
			Name:                   req.Name,
			Type:                   types.ControlType(req.Type),
			Nature:                 types.ControlNature(req.Nature),
			Frequency:              req.Frequency,
			Owner:                  req.Owner,
			Performer:              req.Performer,
			Status:                 types.ControlStatus(req.Status),
			DesignEffectiveness:    types.Effectiveness(req.DesignEffectiveness),
			OperatingEffectiveness: types.Effectiveness(req.OperatingEffectiveness),
		})
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		writeJSON(w, control)

	default:
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c TrackerController) HandleControlsUpdateAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req controlUpdateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.ControlID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_control_id", "control_id is required")
		return
	}

	update := services.UpdateControlRequest{
		ControlID: req.ControlID,
		Name:      req.Name,
		Frequency: req.Frequency,
		Owner:     req.Owner,
		Performer: req.Performer,
	}
	if req.Type != nil {
		v := types.ControlType(*req.Type)
		update.Type = &v
	}
	if req.Nature != nil {
		v := types.ControlNature(*req.Nature)
		update.Nature = &v
	}
	if req.Status != nil {
		v := types.ControlStatus(*req.Status)
		update.Status = &v
	}
	if req.DesignEffectiveness != nil {
		v := types.Effectiveness(*req.DesignEffectiveness)
		update.DesignEffectiveness = &v
	}
	if req.OperatingEffectiveness != nil {
		v := types.Effectiveness(*req.OperatingEffectiveness)
		update.OperatingEffectiveness = &v
	}

	control, err := c.Facade.UpdateControl(r.Context(), scope, c.role(r), update)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, control)
}

type recordIDAPIRequest struct {
	ID string `json:"id"`
}

func (c TrackerController) HandleControlsDeleteAPI(w http.ResponseWriter, r *http.Request) {
	c.handleDelete(w, r, "control", func(ctx context.Context, scope ports.Scope, id string) error {
		return c.Facade.DeleteControl(ctx, scope, id)
	})
}

func (c TrackerController) HandleControlTestsDeleteAPI(w http.ResponseWriter, r *http.Request) {
	c.handleDelete(w, r, "control_test", func(ctx context.Context, scope ports.Scope, id string) error {
		return c.Facade.DeleteControlTest(ctx, scope, id)
	})
}

func (c TrackerController) HandleFindingsDeleteAPI(w http.ResponseWriter, r *http.Request) {
	c.handleDelete(w, r, "finding", func(ctx context.Context, scope ports.Scope, id string) error {
		return c.Facade.DeleteFinding(ctx, scope, id)
	})
}

func (c TrackerController) HandleCAPAsDeleteAPI(w http.ResponseWriter, r *http.Request) {
	c.handleDelete(w, r, "capa", func(ctx context.Context, scope ports.Scope, id string) error {
		return c.Facade.DeleteCAPA(ctx, scope, id)
	})
}

func (c TrackerController) handleDelete(w http.ResponseWriter, r *http.Request, kind string, del func(context.Context, ports.Scope, string) error) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req recordIDAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_id", "id is required")
		return
	}
	if err := del(r.Context(), scope, req.ID); err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"deleted": true, "kind": kind, "id": req.ID})
}

// ---- control tests ----

type controlTestAPIRequest struct {
	ControlID string `json:"control_id"`
	ActionID  string `json:"action_id"`
	TestDate  string `json:"test_date"`
	Result    string `json:"result"`
	Tester    string `json:"tester"`
}

type controlTestUpdateAPIRequest struct {
	TestID   string  `json:"test_id"`
	TestDate *string `json:"test_date"`
	Result   *string `json:"result"`
	Tester   *string `json:"tester"`
}

func (c TrackerController) HandleControlTestsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			test, err := c.Facade.GetControlTest(r.Context(), scope, id)
			if err != nil {
				httperr.WriteAppError(w, r, err)
				return
			}
			writeJSON(w, test)
			return
		}
		tests, err := c.Facade.ListControlTests(r.Context(), scope, strings.TrimSpace(r.URL.Query().Get("control_id")))
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		if tests == nil {
			tests = make([]types.ControlTest, 0)
		}
		writeJSON(w, map[string]any{"control_tests": tests})

	case http.MethodPost:
		var req controlTestAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		var testDate time.Time
		if req.TestDate != "" {
			parsed, err := time.Parse("2006-01-02", req.TestDate)
			if err != nil {
				httperr.Write(w, r, http.StatusBadRequest, "invalid_test_date", "invalid test_date")
				return
			}
			testDate = parsed
		}
		test, err := c.Facade.CreateControlTest(r.Context(), scope, services.CreateControlTestRequest{
			ControlID: req.ControlID,
			ActionID:  req.ActionID,
			TestDate:  testDate,
			Result:    req.Result,
			Tester:    req.Tester,
		})
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		writeJSON(w, test)

	default:
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c TrackerController) HandleControlTestsUpdateAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req controlTestUpdateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.TestID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_test_id", "test_id is required")
		return
	}

	update := services.UpdateControlTestRequest{
		TestID: req.TestID,
		Result: req.Result,
		Tester: req.Tester,
	}
	if req.TestDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.TestDate)
		if err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "invalid_test_date", "invalid test_date")
			return
		}
		update.TestDate = &parsed
	}

	test, err := c.Facade.UpdateControlTest(r.Context(), scope, update)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, test)
}

// ---- findings ----

type findingAPIRequest struct {
	ActionPlanID  string `json:"action_plan_id"`
	FindingTitle  string `json:"finding_title"`
	Severity      string `json:"severity"`
	Source        string `json:"source"`
	ControlID     string `json:"control_id"`
	ControlTestID string `json:"control_test_id"`
	RootCause     string `json:"root_cause"`
}

type findingUpdateAPIRequest struct {
	FindingID    string  `json:"finding_id"`
	FindingTitle *string `json:"finding_title"`
	Severity     *string `json:"severity"`
	Source       *string `json:"source"`
	Status       *string `json:"status"`
	RootCause    *string `json:"root_cause"`
}

func (c TrackerController) HandleFindingsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			finding, err := c.Facade.GetFinding(r.Context(), scope, id)
			if err != nil {
				httperr.WriteAppError(w, r, err)
				return
			}
			writeJSON(w, finding)
			return
		}
		findings, err := c.Facade.ListFindings(r.Context(), scope, strings.TrimSpace(r.URL.Query().Get("action_plan_id")))
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		if findings == nil {
			findings = make([]types.Finding, 0)
		}
		writeJSON(w, map[string]any{"findings": findings})

	case http.MethodPost:
		var req findingAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		finding, err := c.Facade.CreateFinding(r.Context(), scope, services.CreateFindingRequest{
			ActionPlanID:  req.ActionPlanID,
			Title:         req.FindingTitle,
			Severity:      types.Severity(req.Severity),
			Source:        types.FindingSource(req.Source),
			ControlID:     req.ControlID,
			ControlTestID: req.ControlTestID,
			RootCause:     req.RootCause,
		})
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		writeJSON(w, finding)

	default:
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c TrackerController) HandleFindingsUpdateAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req findingUpdateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.FindingID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_finding_id", "finding_id is required")
		return
	}

	update := services.UpdateFindingRequest{
		FindingID: req.FindingID,
		Title:     req.FindingTitle,
		RootCause: req.RootCause,
	}
	if req.Severity != nil {
		v := types.Severity(*req.Severity)
		update.Severity = &v
	}
	if req.Source != nil {
		v := types.FindingSource(*req.Source)
		update.Source = &v
	}
	if req.Status != nil {
		v := types.FindingStatus(*req.Status)
		update.Status = &v
	}

	finding, err := c.Facade.UpdateFinding(r.Context(), scope, c.role(r), update)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, finding)
}

// ---- CAPAs ----

type capaAPIRequest struct {
	ActionPlanID          string `json:"action_plan_id"`
	Type                  string `json:"type"`
	FindingID             string `json:"finding_id"`
	RootCause             string `json:"root_cause"`
	ProposedAction        string `json:"proposed_action"`
	ResponsibleUser       string `json:"responsible_user"`
	ResponsibleDepartment string `json:"responsible_department"`
	DueDate               string `json:"due_date"`
	Priority              string `json:"priority"`
}

type capaUpdateAPIRequest struct {
	CAPAID                string  `json:"capa_id"`
	RootCause             *string `json:"root_cause"`
	ProposedAction        *string `json:"proposed_action"`
	ResponsibleUser       *string `json:"responsible_user"`
	ResponsibleDepartment *string `json:"responsible_department"`
	DueDate               *string `json:"due_date"`
	ActualCompletionDate  *string `json:"actual_completion_date"`
	Status                *string `json:"status"`
	Priority              *string `json:"priority"`
	CompletionPercentage  *int    `json:"completion_percentage"`
	IsEffective           *bool   `json:"is_effective"`
}

func (c TrackerController) HandleCAPAsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			capa, err := c.Facade.GetCAPA(r.Context(), scope, id)
			if err != nil {
				httperr.WriteAppError(w, r, err)
				return
			}
			writeJSON(w, capa)
			return
		}
		capas, err := c.Facade.ListCAPAs(r.Context(), scope, strings.TrimSpace(r.URL.Query().Get("action_plan_id")))
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		if capas == nil {
			capas = make([]types.CAPA, 0)
		}
		writeJSON(w, map[string]any{"capas": capas})

	case http.MethodPost:
		var req capaAPIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
			return
		}
		var dueDate time.Time
		if req.DueDate != "" {
			parsed, err := time.Parse("2006-01-02", req.DueDate)
			if err != nil {
				httperr.Write(w, r, http.StatusBadRequest, "invalid_due_date", "invalid due_date")
				return
			}
			dueDate = parsed
		}
		capa, err := c.Facade.CreateCAPA(r.Context(), scope, services.CreateCAPARequest{
			ActionPlanID:          req.ActionPlanID,
			Type:                  types.CAPAType(req.Type),
			FindingID:             req.FindingID,
			RootCause:             req.RootCause,
			ProposedAction:        req.ProposedAction,
			ResponsibleUser:       req.ResponsibleUser,
			ResponsibleDepartment: req.ResponsibleDepartment,
			DueDate:               dueDate,
			Priority:              types.Priority(req.Priority),
		})
		if err != nil {
			httperr.WriteAppError(w, r, err)
			return
		}
		writeJSON(w, capa)

	default:
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (c TrackerController) HandleCAPAsUpdateAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	var req capaUpdateAPIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperr.Write(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if strings.TrimSpace(req.CAPAID) == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_capa_id", "capa_id is required")
		return
	}

	update := services.UpdateCAPARequest{
		CAPAID:                req.CAPAID,
		RootCause:             req.RootCause,
		ProposedAction:        req.ProposedAction,
		ResponsibleUser:       req.ResponsibleUser,
		ResponsibleDepartment: req.ResponsibleDepartment,
		CompletionPercentage:  req.CompletionPercentage,
		IsEffective:           req.IsEffective,
	}
	if req.DueDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "invalid_due_date", "invalid due_date")
			return
		}
		update.DueDate = &parsed
	}
	if req.ActualCompletionDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.ActualCompletionDate)
		if err != nil {
			httperr.Write(w, r, http.StatusBadRequest, "invalid_actual_completion_date", "invalid actual_completion_date")
			return
		}
		update.ActualCompletionDate = &parsed
	}
	if req.Status != nil {
		v := types.CAPAStatus(*req.Status)
		update.Status = &v
	}
	if req.Priority != nil {
		v := types.Priority(*req.Priority)
		update.Priority = &v
	}

	capa, err := c.Facade.UpdateCAPA(r.Context(), scope, c.role(r), update)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, capa)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
