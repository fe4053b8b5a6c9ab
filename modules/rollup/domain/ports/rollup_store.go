package ports

import (
	"context"

	"github.com/inforlary/belkys-sub012/modules/rollup/domain/types"
)

// Scope identifies the caller's organization and compliance plan period.
type Scope struct {
	OrganizationID string
	PlanID         string
}

// RollupStore serves the count-only aggregate queries. Counts are read
// fresh per call; there are no materialized counters to drift.
type RollupStore interface {
	CountPlanRecords(ctx context.Context, scope Scope, actionPlanID string) (types.PlanCounts, error)
}
