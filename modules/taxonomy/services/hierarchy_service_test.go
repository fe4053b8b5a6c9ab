package services

import (
	"context"
	"testing"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
)

var testScope = ports.Scope{OrganizationID: "org-1", PlanID: "plan-1"}

func fixtureStore() taxonomyStoreStub {
	return taxonomyStoreStub{
		listCategoriesFn: func(ctx context.Context) ([]types.Category, error) {
			return []types.Category{
				{ID: "c2", Code: "C2", Name: "Operations", Order: 2},
				{ID: "c1", Code: "C1", Name: "Governance", Order: 1},
			}, nil
		},
		listMainStandardsFn: func(ctx context.Context) ([]types.MainStandard, error) {
			return []types.MainStandard{
				{ID: "m1", CategoryID: "c1", Code: "C1-1", Title: "Board oversight", ResponsibleUnits: types.AllUnits()},
				{ID: "m2", CategoryID: "c2", Code: "C2-1", Title: "Risk register", ResponsibleUnits: types.SpecificUnits("u-risk")},
			}, nil
		},
		listSubStandardsFn: func(ctx context.Context) ([]types.SubStandard, error) {
			return []types.SubStandard{
				{ID: "s1", MainStandardID: "m1", Code: "C1-1-1", Title: "Charter"},
				{ID: "s2", MainStandardID: "m2", Code: "C2-1-1", Title: "Assessments"},
				{ID: "s3", MainStandardID: "m2", Code: "C2-1-2", Title: "Mitigation"},
			}, nil
		},
		listActionsFn: func(ctx context.Context, scope ports.Scope) ([]types.Action, error) {
			return []types.Action{
				{ID: "a1", SubStandardID: "s1", Code: "ACT-1", ResponsibleUnits: types.SpecificUnits("u-gov")},
				{ID: "a2", SubStandardID: "s2", Code: "ACT-2", ResponsibleUnits: types.AllUnits()},
				{ID: "a3", SubStandardID: "s2", Code: "ACT-3", ResponsibleUnits: types.SpecificUnits("u-risk"), CollaboratingUnits: types.SpecificUnits("u-gov")},
			}, nil
		},
		listSubStandardStatusesFn: func(ctx context.Context, organizationID string) ([]types.SubStandardStatus, error) {
			return []types.SubStandardStatus{
				{SubStandardID: "s2", OrganizationID: organizationID, CurrentStatusText: "partially implemented"},
			}, nil
		},
	}
}

func TestLoadHierarchyUnfilteredPrunesEmptyBranches(t *testing.T) {
	svc := NewHierarchyService(fixtureStore())
	tree, err := svc.LoadHierarchy(context.Background(), testScope, UnitFilter{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tree) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(tree))
	}
	// s3 has no actions and must never appear.
	for _, c := range tree {
		for _, m := range c.MainStandards {
			for _, sub := range m.SubStandards {
				if sub.ID == "s3" {
					t.Fatal("sub-standard without actions leaked into the tree")
				}
				if len(sub.Actions) == 0 {
					t.Fatalf("hollow sub-standard %s returned", sub.ID)
				}
			}
		}
	}
}

func TestLoadHierarchyCategoriesSortedByOrder(t *testing.T) {
	svc := NewHierarchyService(fixtureStore())
	tree, err := svc.LoadHierarchy(context.Background(), testScope, UnitFilter{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tree[0].ID != "c1" || tree[1].ID != "c2" {
		t.Fatalf("expected order c1,c2 got %s,%s", tree[0].ID, tree[1].ID)
	}
}

func TestLoadHierarchyResponsibleUnitFilter(t *testing.T) {
	svc := NewHierarchyService(fixtureStore())
	tree, err := svc.LoadHierarchy(context.Background(), testScope, UnitFilter{ResponsibleUnit: "u-risk"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// a2 (all units) and a3 (explicit u-risk) match; a1 does not, so the
	// whole c1 branch disappears even though its ancestors carry no unit
	// fields of their own.
	if len(tree) != 1 || tree[0].ID != "c2" {
		t.Fatalf("expected only c2, got %+v", tree)
	}
	sub := tree[0].MainStandards[0].SubStandards[0]
	if sub.ID != "s2" || len(sub.Actions) != 2 {
		t.Fatalf("expected s2 with 2 actions, got %s with %d", sub.ID, len(sub.Actions))
	}
}

func TestLoadHierarchyCollaboratingUnitFilter(t *testing.T) {
	svc := NewHierarchyService(fixtureStore())
	tree, err := svc.LoadHierarchy(context.Background(), testScope, UnitFilter{CollaboratingUnit: "u-gov"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("expected 1 category, got %d", len(tree))
	}
	actions := tree[0].MainStandards[0].SubStandards[0].Actions
	if len(actions) != 1 || actions[0].ID != "a3" {
		t.Fatalf("expected only a3, got %+v", actions)
	}
}

func TestLoadHierarchyNoMatchesReturnsEmptyForest(t *testing.T) {
	svc := NewHierarchyService(fixtureStore())
	tree, err := svc.LoadHierarchy(context.Background(), testScope, UnitFilter{ResponsibleUnit: "u-nobody"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// AllUnits actions still match any filter, so a2 survives.
	if len(tree) != 1 || tree[0].ID != "c2" {
		t.Fatalf("expected c2 only via all-units action, got %+v", tree)
	}
}

func TestLoadHierarchyAttachesSubStandardStatus(t *testing.T) {
	svc := NewHierarchyService(fixtureStore())
	tree, err := svc.LoadHierarchy(context.Background(), testScope, UnitFilter{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, c := range tree {
		for _, m := range c.MainStandards {
			for _, sub := range m.SubStandards {
				switch sub.ID {
				case "s2":
					if sub.Status == nil || sub.Status.CurrentStatusText != "partially implemented" {
						t.Fatalf("s2 status missing: %+v", sub.Status)
					}
				case "s1":
					if sub.Status != nil {
						t.Fatal("s1 has no recorded status and must stay nil")
					}
				}
			}
		}
	}
}
