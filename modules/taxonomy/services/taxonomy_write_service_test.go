package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

type projectorStub struct {
	calls []types.Action
	err   error
}

func (p *projectorStub) PropagateActionEdit(ctx context.Context, scope ports.Scope, action types.Action) error {
	p.calls = append(p.calls, action)
	return p.err
}

func TestCreateCategoryValidatesAllFields(t *testing.T) {
	svc := NewTaxonomyWriteService(taxonomyStoreStub{}, nil)
	_, err := svc.CreateCategory(context.Background(), types.Category{})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected both code and name reported, got %v", verr.Fields)
	}
}

func TestCreateActionRequiresExistingSubStandard(t *testing.T) {
	store := taxonomyStoreStub{
		getSubStandardFn: func(ctx context.Context, id string) (types.SubStandard, error) {
			return types.SubStandard{}, apperr.NewNotFound("SubStandard", id)
		},
	}
	svc := NewTaxonomyWriteService(store, nil)
	_, err := svc.CreateAction(context.Background(), testScope, CreateActionRequest{
		SubStandardID: "missing", Code: "ACT-9", Description: "d",
	})
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestCreateActionDefaultsStatusAndScope(t *testing.T) {
	var inserted types.Action
	store := taxonomyStoreStub{
		getSubStandardFn: func(ctx context.Context, id string) (types.SubStandard, error) {
			return types.SubStandard{ID: id}, nil
		},
		insertActionFn: func(ctx context.Context, a types.Action) error {
			inserted = a
			return nil
		},
	}
	svc := NewTaxonomyWriteService(store, nil)
	res, err := svc.CreateAction(context.Background(), testScope, CreateActionRequest{
		SubStandardID: "s1", Code: "ACT-9", Description: "draft charter",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Action.Status != types.ActionNotStarted {
		t.Fatalf("expected default not_started, got %s", res.Action.Status)
	}
	if inserted.OrganizationID != testScope.OrganizationID || inserted.PlanID != testScope.PlanID {
		t.Fatalf("scope not stamped: %+v", inserted)
	}
	if inserted.ID == "" {
		t.Fatal("expected generated id")
	}
}

func TestUpdateActionPropagatesToPlan(t *testing.T) {
	stored := types.Action{ID: "a1", Status: types.ActionNotStarted, Description: "old"}
	store := taxonomyStoreStub{
		getActionFn: func(ctx context.Context, scope ports.Scope, id string) (types.Action, error) {
			return stored, nil
		},
		updateActionFn: func(ctx context.Context, scope ports.Scope, a types.Action) error {
			stored = a
			return nil
		},
	}
	proj := &projectorStub{}
	svc := NewTaxonomyWriteService(store, proj)

	completed := types.ActionCompleted
	target := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := svc.UpdateAction(context.Background(), testScope, UpdateActionRequest{
		ActionID: "a1", Status: &completed, TargetDate: &target,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.Warning != "" {
		t.Fatalf("unexpected warning %q", res.Warning)
	}
	if len(proj.calls) != 1 {
		t.Fatalf("expected one propagation call, got %d", len(proj.calls))
	}
	if proj.calls[0].Status != types.ActionCompleted || !proj.calls[0].TargetDate.Equal(target) {
		t.Fatalf("propagated stale action: %+v", proj.calls[0])
	}
}

func TestUpdateActionPropagationFailureIsWarningNotRollback(t *testing.T) {
	updated := false
	store := taxonomyStoreStub{
		getActionFn: func(ctx context.Context, scope ports.Scope, id string) (types.Action, error) {
			return types.Action{ID: id, Status: types.ActionInProgress}, nil
		},
		updateActionFn: func(ctx context.Context, scope ports.Scope, a types.Action) error {
			updated = true
			return nil
		},
	}
	proj := &projectorStub{err: errors.New("plan missing")}
	svc := NewTaxonomyWriteService(store, proj)
	svc.logf = func(string, ...any) {}

	desc := "new description"
	res, err := svc.UpdateAction(context.Background(), testScope, UpdateActionRequest{ActionID: "a1", Description: &desc})
	if err != nil {
		t.Fatalf("edit must not fail on propagation error, got %v", err)
	}
	if !updated {
		t.Fatal("action edit must persist")
	}
	if res.Warning == "" {
		t.Fatal("expected non-fatal warning")
	}
}

func TestUpdateActionRejectsBadStatus(t *testing.T) {
	store := taxonomyStoreStub{
		getActionFn: func(ctx context.Context, scope ports.Scope, id string) (types.Action, error) {
			return types.Action{ID: id}, nil
		},
	}
	svc := NewTaxonomyWriteService(store, nil)
	bad := types.ActionStatus("paused")
	_, err := svc.UpdateAction(context.Background(), testScope, UpdateActionRequest{ActionID: "a1", Status: &bad})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDeleteNodeBlockedByInstanceData(t *testing.T) {
	cascaded := false
	store := taxonomyStoreStub{
		countDescendantsFn: func(ctx context.Context, kind, id string) (int, error) { return 3, nil },
		deleteNodeCascadeFn: func(ctx context.Context, kind, id string) error {
			cascaded = true
			return nil
		},
	}
	svc := NewTaxonomyWriteService(store, nil)
	err := svc.DeleteNode(context.Background(), ports.NodeSubStandard, "s1")
	var dep *apperr.DependencyConflictError
	if !errors.As(err, &dep) {
		t.Fatalf("expected DependencyConflict, got %v", err)
	}
	if dep.Count != 3 {
		t.Fatalf("expected count 3, got %d", dep.Count)
	}
	if cascaded {
		t.Fatal("cascade must not run when instance data exists")
	}
}

func TestDeleteNodeCascadesWhenClean(t *testing.T) {
	cascaded := false
	store := taxonomyStoreStub{
		deleteNodeCascadeFn: func(ctx context.Context, kind, id string) error {
			cascaded = true
			return nil
		},
	}
	svc := NewTaxonomyWriteService(store, nil)
	if err := svc.DeleteNode(context.Background(), ports.NodeCategory, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !cascaded {
		t.Fatal("expected cascade")
	}
}

func TestDeleteNodeRejectsUnknownKind(t *testing.T) {
	svc := NewTaxonomyWriteService(taxonomyStoreStub{}, nil)
	if err := svc.DeleteNode(context.Background(), "galaxy", "g1"); !apperr.IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRecordSubStandardStatusValidation(t *testing.T) {
	svc := NewTaxonomyWriteService(taxonomyStoreStub{}, nil)
	err := svc.RecordSubStandardStatus(context.Background(), types.SubStandardStatus{})
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %v", verr.Fields)
	}
}
