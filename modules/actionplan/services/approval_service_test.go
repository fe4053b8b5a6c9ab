package services

import (
	"context"
	"testing"

	taxtypes "github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/authz"
)

func draftPlan(t *testing.T) (*ProjectorService, types.ActionPlan) {
	t.Helper()
	store := newMemPlanStore()
	src := actionSourceStub{action: taxtypes.Action{ID: "a1", SubStandardID: "s1", Description: "d"}}
	svc := newProjector(store, src)
	plan, err := svc.EnsurePlan(context.Background(), testScope, "a1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	return svc, plan
}

func TestApprovalHappyPath(t *testing.T) {
	svc, plan := draftPlan(t)
	ctx := context.Background()

	p, err := svc.SubmitForApproval(ctx, testScope, plan.ID, authz.RoleICCoordinator)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.ApprovalStatus != types.ApprovalUnitPending {
		t.Fatalf("got %s", p.ApprovalStatus)
	}

	p, err = svc.DecideApproval(ctx, testScope, plan.ID, authz.RoleICCoordinator, true)
	if err != nil {
		t.Fatalf("unit approve: %v", err)
	}
	if p.ApprovalStatus != types.ApprovalManagementPending {
		t.Fatalf("got %s", p.ApprovalStatus)
	}

	p, err = svc.DecideApproval(ctx, testScope, plan.ID, authz.RoleVicePresident, true)
	if err != nil {
		t.Fatalf("management approve: %v", err)
	}
	if p.ApprovalStatus != types.ApprovalApproved {
		t.Fatalf("got %s", p.ApprovalStatus)
	}
}

func TestSubmitRequiresWriterRole(t *testing.T) {
	svc, plan := draftPlan(t)
	_, err := svc.SubmitForApproval(context.Background(), testScope, plan.ID, authz.RoleMember)
	if !apperr.IsAuthorizationDenied(err) {
		t.Fatalf("expected AuthorizationDenied, got %v", err)
	}
}

func TestUnitStageRejectsWrongRole(t *testing.T) {
	svc, plan := draftPlan(t)
	ctx := context.Background()
	if _, err := svc.SubmitForApproval(ctx, testScope, plan.ID, authz.RoleAdmin); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := svc.DecideApproval(ctx, testScope, plan.ID, authz.RoleVicePresident, true)
	if !apperr.IsAuthorizationDenied(err) {
		t.Fatalf("vice_president must not decide the unit stage, got %v", err)
	}
}

func TestRejectAtManagementStage(t *testing.T) {
	svc, plan := draftPlan(t)
	ctx := context.Background()
	if _, err := svc.SubmitForApproval(ctx, testScope, plan.ID, authz.RoleAdmin); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.DecideApproval(ctx, testScope, plan.ID, authz.RoleICCoordinator, true); err != nil {
		t.Fatalf("unit approve: %v", err)
	}
	p, err := svc.DecideApproval(ctx, testScope, plan.ID, authz.RoleAdmin, false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if p.ApprovalStatus != types.ApprovalRejected {
		t.Fatalf("got %s", p.ApprovalStatus)
	}

	// a rejected plan may be resubmitted
	p, err = svc.SubmitForApproval(ctx, testScope, plan.ID, authz.RoleICCoordinator)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if p.ApprovalStatus != types.ApprovalUnitPending {
		t.Fatalf("got %s", p.ApprovalStatus)
	}
}

func TestDecideOnDraftIsValidationError(t *testing.T) {
	svc, plan := draftPlan(t)
	_, err := svc.DecideApproval(context.Background(), testScope, plan.ID, authz.RoleAdmin, true)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
