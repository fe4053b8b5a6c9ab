package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inforlary/belkys-sub012/modules/rollup/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/rollup/domain/types"
)

func testScope(context.Context) (string, string, bool) { return "org-1", "plan-1", true }

type aggregatorStub struct {
	counts   types.PlanCounts
	progress float64
	sets     types.DueSets
}

func (s aggregatorStub) PlanCounts(context.Context, ports.Scope, string) (types.PlanCounts, error) {
	return s.counts, nil
}

func (s aggregatorStub) ComponentProgress(context.Context, ports.Scope, string) (float64, error) {
	return s.progress, nil
}

func (s aggregatorStub) DueSets(context.Context, ports.Scope) (types.DueSets, error) {
	return s.sets, nil
}

func TestPlanCountsRequiresActionPlanID(t *testing.T) {
	c := RollupController{Scope: testScope, Aggregator: aggregatorStub{}}
	rec := httptest.NewRecorder()
	c.HandlePlanCountsAPI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rollup/plan-counts", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestPlanCountsResponseShape(t *testing.T) {
	c := RollupController{Scope: testScope, Aggregator: aggregatorStub{
		counts: types.PlanCounts{Controls: 2, ControlTests: 1, Findings: 3, CAPAs: 4},
	}}
	rec := httptest.NewRecorder()
	c.HandlePlanCountsAPI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rollup/plan-counts?action_plan_id=ap1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var out struct {
		ActionPlanID string           `json:"action_plan_id"`
		Counts       types.PlanCounts `json:"counts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ActionPlanID != "ap1" || out.Counts.CAPAs != 4 {
		t.Fatalf("out: %+v", out)
	}
}

func TestComponentProgressRequiresMainStandardID(t *testing.T) {
	c := RollupController{Scope: testScope, Aggregator: aggregatorStub{}}
	rec := httptest.NewRecorder()
	c.HandleComponentProgressAPI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rollup/component-progress", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestDueSetsResponse(t *testing.T) {
	due := time.Date(2025, 5, 22, 0, 0, 0, 0, time.UTC)
	c := RollupController{Scope: testScope, Aggregator: aggregatorStub{sets: types.DueSets{
		Overdue: []types.DueCAPA{{ID: "c1", CAPACode: "CAPA-2025-001", DueDate: due, Status: "in_progress", DaysOverdue: 10}},
		DueSoon: []types.DueCAPA{},
	}}}
	rec := httptest.NewRecorder()
	c.HandleDueSetsAPI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rollup/due-sets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var sets types.DueSets
	if err := json.Unmarshal(rec.Body.Bytes(), &sets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sets.Overdue) != 1 || sets.Overdue[0].DaysOverdue != 10 {
		t.Fatalf("sets: %+v", sets)
	}
	if sets.DueSoon == nil || len(sets.DueSoon) != 0 {
		t.Fatalf("due soon must be an empty array: %+v", sets.DueSoon)
	}
}
