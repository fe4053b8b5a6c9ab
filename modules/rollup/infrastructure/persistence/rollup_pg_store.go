package persistence

import (
	"context"

	"github.com/inforlary/belkys-sub012/modules/rollup/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/rollup/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/pgscope"
)

type RollupPGStore struct {
	pool pgscope.Beginner
}

func NewRollupPGStore(pool pgscope.Beginner) ports.RollupStore {
	return &RollupPGStore{pool: pool}
}

// CountPlanRecords reads the four tallies in one round trip. Controls
// and tests hang off the plan's action; findings and CAPAs reference
// the plan directly.
func (s *RollupPGStore) CountPlanRecords(ctx context.Context, scope ports.Scope, actionPlanID string) (types.PlanCounts, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.PlanCounts{}, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return types.PlanCounts{}, pgscope.MapError(err)
	}

	var counts types.PlanCounts
	if err := tx.QueryRow(ctx, `
SELECT
  (SELECT count(*) FROM lifecycle.controls c
   JOIN actionplan.action_plans p ON p.action_id = c.action_id
     AND p.organization_id = c.organization_id AND p.plan_id = c.plan_id
   WHERE c.organization_id = $1::uuid AND c.plan_id = $2::uuid AND p.id = $3::uuid),
  (SELECT count(*) FROM lifecycle.control_tests t
   JOIN lifecycle.controls c ON c.id = t.control_id
   JOIN actionplan.action_plans p ON p.action_id = c.action_id
     AND p.organization_id = c.organization_id AND p.plan_id = c.plan_id
   WHERE t.organization_id = $1::uuid AND t.plan_id = $2::uuid AND p.id = $3::uuid),
  (SELECT count(*) FROM lifecycle.findings f
   WHERE f.organization_id = $1::uuid AND f.plan_id = $2::uuid AND f.action_plan_id = $3::uuid),
  (SELECT count(*) FROM lifecycle.capas ca
   WHERE ca.organization_id = $1::uuid AND ca.plan_id = $2::uuid AND ca.action_plan_id = $3::uuid)
`, scope.OrganizationID, scope.PlanID, actionPlanID).Scan(&counts.Controls, &counts.ControlTests, &counts.Findings, &counts.CAPAs); err != nil {
		return types.PlanCounts{}, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.PlanCounts{}, pgscope.MapError(err)
	}
	return counts, nil
}
