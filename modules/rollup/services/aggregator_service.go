package services

import (
	"context"
	"math"
	"sort"
	"time"

	lifetypes "github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/modules/rollup/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/rollup/domain/types"
	taxtypes "github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/duestatus"
)

// TaxonomySource reads the action and sub-standard data the component
// rollup walks. Implemented by the taxonomy store.
type TaxonomySource interface {
	ListActions(ctx context.Context, organizationID string, planID string) ([]taxtypes.Action, error)
	ListSubStandards(ctx context.Context) ([]taxtypes.SubStandard, error)
}

// CAPASource reads the scope's CAPAs for due-status partitioning.
// Implemented by the lifecycle tracker.
type CAPASource interface {
	ListCAPAs(ctx context.Context, organizationID string, planID string) ([]lifetypes.CAPA, error)
}

type AggregatorService struct {
	store    ports.RollupStore
	taxonomy TaxonomySource
	capas    CAPASource
	now      func() time.Time
}

func NewAggregatorService(store ports.RollupStore, taxonomy TaxonomySource, capas CAPASource) *AggregatorService {
	return &AggregatorService{store: store, taxonomy: taxonomy, capas: capas, now: time.Now}
}

// PlanCounts tallies the lifecycle records under one action plan,
// freshly per call.
func (s *AggregatorService) PlanCounts(ctx context.Context, scope ports.Scope, actionPlanID string) (types.PlanCounts, error) {
	return s.store.CountPlanRecords(ctx, scope, actionPlanID)
}

// ActionProgress is the quantitative completion percentage for one
// action: current over target, capped at 100. Non-quantitative actions
// (target zero) report 0.
func ActionProgress(a taxtypes.Action) int {
	if a.TargetQuantity <= 0 {
		return 0
	}
	pct := int(math.Round(float64(a.CurrentQuantity) / float64(a.TargetQuantity) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// ComponentProgress is the arithmetic mean of ActionProgress over the
// scope's actions whose sub-standard resolves to the main standard.
// Actions whose chain does not resolve are excluded from the mean, not
// counted as zero. A component with no resolvable actions reports 0.
func (s *AggregatorService) ComponentProgress(ctx context.Context, scope ports.Scope, mainStandardID string) (float64, error) {
	actions, err := s.taxonomy.ListActions(ctx, scope.OrganizationID, scope.PlanID)
	if err != nil {
		return 0, err
	}
	subs, err := s.taxonomy.ListSubStandards(ctx)
	if err != nil {
		return 0, err
	}

	parentOf := make(map[string]string, len(subs))
	for _, sub := range subs {
		parentOf[sub.ID] = sub.MainStandardID
	}

	sum, n := 0, 0
	for _, a := range actions {
		parent, ok := parentOf[a.SubStandardID]
		if !ok || parent != mainStandardID {
			continue
		}
		sum += ActionProgress(a)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

// DueSets partitions the scope's CAPAs into overdue and due-soon sets
// against the default window. Derived fresh on every call.
func (s *AggregatorService) DueSets(ctx context.Context, scope ports.Scope) (types.DueSets, error) {
	capas, err := s.capas.ListCAPAs(ctx, scope.OrganizationID, scope.PlanID)
	if err != nil {
		return types.DueSets{}, err
	}

	now := s.now()
	sets := types.DueSets{Overdue: []types.DueCAPA{}, DueSoon: []types.DueCAPA{}}
	for _, c := range capas {
		entry := types.DueCAPA{
			ID:       c.ID,
			CAPACode: c.CAPACode,
			DueDate:  c.DueDate,
			Status:   string(c.Status),
		}
		// pending_verification is out of the responsible user's hands
		if c.Status == lifetypes.CAPAPendingVerification {
			continue
		}
		switch {
		case duestatus.IsOverdue(now, c.DueDate, string(c.Status)):
			entry.DaysOverdue = duestatus.DaysOverdue(now, c.DueDate)
			sets.Overdue = append(sets.Overdue, entry)
		case duestatus.IsDueSoon(now, c.DueDate, 0, string(c.Status)):
			sets.DueSoon = append(sets.DueSoon, entry)
		}
	}
	sort.Slice(sets.Overdue, func(i, j int) bool { return sets.Overdue[i].CAPACode < sets.Overdue[j].CAPACode })
	sort.Slice(sets.DueSoon, func(i, j int) bool { return sets.DueSoon[i].CAPACode < sets.DueSoon[j].CAPACode })
	return sets, nil
}
