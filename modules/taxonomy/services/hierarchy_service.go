package services

import (
	"context"
	"sort"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
)

// UnitFilter narrows a hierarchy load to actions a unit is responsible for
// or collaborating on. Zero value means no filtering.
type UnitFilter struct {
	ResponsibleUnit   string
	CollaboratingUnit string
}

func (f UnitFilter) empty() bool {
	return f.ResponsibleUnit == "" && f.CollaboratingUnit == ""
}

func (f UnitFilter) matches(a types.Action) bool {
	if f.ResponsibleUnit != "" && !a.ResponsibleUnits.Matches(f.ResponsibleUnit) {
		return false
	}
	if f.CollaboratingUnit != "" && !a.CollaboratingUnits.Matches(f.CollaboratingUnit) {
		return false
	}
	return true
}

type HierarchyService struct {
	store ports.TaxonomyStore
}

func NewHierarchyService(store ports.TaxonomyStore) *HierarchyService {
	return &HierarchyService{store: store}
}

// LoadHierarchy returns the filtered tree for one organization and plan.
// Each level is fetched once and grouped in memory by parent id. Matching
// runs bottom-up: an action matches the unit filter directly; every
// ancestor is retained only while at least one descendant survives. A
// top-down filter on ancestor unit fields would wrongly drop branches whose
// ancestors carry no matching unit of their own.
func (s *HierarchyService) LoadHierarchy(ctx context.Context, scope ports.Scope, filter UnitFilter) ([]types.CategoryNode, error) {
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	mains, err := s.store.ListMainStandards(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubStandards(ctx)
	if err != nil {
		return nil, err
	}
	actions, err := s.store.ListActions(ctx, scope)
	if err != nil {
		return nil, err
	}
	statuses, err := s.store.ListSubStandardStatuses(ctx, scope.OrganizationID)
	if err != nil {
		return nil, err
	}

	actionsBySub := make(map[string][]types.Action)
	for _, a := range actions {
		if !filter.empty() && !filter.matches(a) {
			continue
		}
		actionsBySub[a.SubStandardID] = append(actionsBySub[a.SubStandardID], a)
	}

	statusBySub := make(map[string]types.SubStandardStatus, len(statuses))
	for _, st := range statuses {
		statusBySub[st.SubStandardID] = st
	}

	subsByMain := make(map[string][]types.SubStandardNode)
	for _, sub := range subs {
		matched := actionsBySub[sub.ID]
		if len(matched) == 0 {
			continue
		}
		node := types.SubStandardNode{SubStandard: sub, Actions: matched}
		if st, ok := statusBySub[sub.ID]; ok {
			stCopy := st
			node.Status = &stCopy
		}
		subsByMain[sub.MainStandardID] = append(subsByMain[sub.MainStandardID], node)
	}

	mainsByCategory := make(map[string][]types.MainStandardNode)
	for _, m := range mains {
		children := subsByMain[m.ID]
		if len(children) == 0 {
			continue
		}
		mainsByCategory[m.CategoryID] = append(mainsByCategory[m.CategoryID], types.MainStandardNode{
			MainStandard: m,
			SubStandards: children,
		})
	}

	out := make([]types.CategoryNode, 0, len(categories))
	for _, c := range categories {
		children := mainsByCategory[c.ID]
		if len(children) == 0 {
			continue
		}
		out = append(out, types.CategoryNode{Category: c, MainStandards: children})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}
