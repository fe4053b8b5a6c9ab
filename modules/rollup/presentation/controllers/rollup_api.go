package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/inforlary/belkys-sub012/modules/rollup/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/rollup/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/httperr"
)

type ScopeGetter func(ctx context.Context) (organizationID string, planID string, ok bool)

// Aggregator serves the fresh-computed rollup reads. Nothing here is
// cached or materialized; every request recomputes.
type Aggregator interface {
	PlanCounts(ctx context.Context, scope ports.Scope, actionPlanID string) (types.PlanCounts, error)
	ComponentProgress(ctx context.Context, scope ports.Scope, mainStandardID string) (float64, error)
	DueSets(ctx context.Context, scope ports.Scope) (types.DueSets, error)
}

type RollupController struct {
	Scope      ScopeGetter
	Aggregator Aggregator
}

func (c RollupController) scope(w http.ResponseWriter, r *http.Request) (ports.Scope, bool) {
	orgID, planID, ok := c.Scope(r.Context())
	if !ok {
		httperr.Write(w, r, http.StatusInternalServerError, "scope_missing", "scope missing")
		return ports.Scope{}, false
	}
	return ports.Scope{OrganizationID: orgID, PlanID: planID}, true
}

func (c RollupController) HandlePlanCountsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	actionPlanID := strings.TrimSpace(r.URL.Query().Get("action_plan_id"))
	if actionPlanID == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_action_plan_id", "action_plan_id is required")
		return
	}
	counts, err := c.Aggregator.PlanCounts(r.Context(), scope, actionPlanID)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"action_plan_id": actionPlanID, "counts": counts})
}

func (c RollupController) HandleComponentProgressAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	mainStandardID := strings.TrimSpace(r.URL.Query().Get("main_standard_id"))
	if mainStandardID == "" {
		httperr.Write(w, r, http.StatusBadRequest, "missing_main_standard_id", "main_standard_id is required")
		return
	}
	progress, err := c.Aggregator.ComponentProgress(r.Context(), scope, mainStandardID)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"main_standard_id": mainStandardID, "progress": progress})
}

func (c RollupController) HandleDueSetsAPI(w http.ResponseWriter, r *http.Request) {
	scope, ok := c.scope(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodGet {
		httperr.Write(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	sets, err := c.Aggregator.DueSets(r.Context(), scope)
	if err != nil {
		httperr.WriteAppError(w, r, err)
		return
	}
	writeJSON(w, sets)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
