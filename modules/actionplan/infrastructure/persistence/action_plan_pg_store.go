package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/actionplan/domain/types"
	"github.com/inforlary/belkys-sub012/modules/actionplan/services"
	"github.com/inforlary/belkys-sub012/pkg/codes"
	"github.com/inforlary/belkys-sub012/pkg/pgscope"
)

// action uniqueness is a distinct constraint from code uniqueness: the
// former means EnsurePlan lost a create race, the latter drives allocator
// retries.
const actionUniqueConstraint = "action_plans_org_plan_action_key"

type ActionPlanPGStore struct {
	pool pgscope.Beginner
}

func NewActionPlanPGStore(pool pgscope.Beginner) ports.ActionPlanStore {
	return &ActionPlanPGStore{pool: pool}
}

func (s *ActionPlanPGStore) MaxSuffix(ctx context.Context, scope codes.Scope) (int, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return 0, pgscope.MapError(err)
	}

	// EP codes are organization-wide: strip the prefix, take the numeric max
	var max int
	if err := tx.QueryRow(ctx, `
SELECT COALESCE(MAX(split_part(plan_code, '-', 2)::int), 0)
FROM actionplan.action_plans
WHERE organization_id = $1::uuid
`, scope.OrganizationID).Scan(&max); err != nil {
		return 0, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, pgscope.MapError(err)
	}
	return max, nil
}

func (s *ActionPlanPGStore) Insert(ctx context.Context, p types.ActionPlan) error {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, p.OrganizationID); err != nil {
		return pgscope.MapError(err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO actionplan.action_plans
  (id, organization_id, plan_id, plan_code, action_id, planned_actions, current_situation,
   responsible_unit, collaborating_unit_ids, completion_date, status, approval_status, progress_percentage)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::uuid, $6, $7, $8, $9, $10, $11, $12, $13)
`, p.ID, p.OrganizationID, p.PlanID, p.PlanCode, p.ActionID, p.PlannedActions, p.CurrentSituation,
		p.ResponsibleUnit, p.CollaboratingUnits, nullableTime(p.CompletionDate), string(p.Status), string(p.ApprovalStatus), p.ProgressPercentage); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == actionUniqueConstraint {
			return services.ErrPlanExists
		}
		return pgscope.MapError(err)
	}

	return pgscope.MapError(tx.Commit(ctx))
}

func (s *ActionPlanPGStore) Update(ctx context.Context, scope ports.Scope, p types.ActionPlan) error {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return pgscope.MapError(err)
	}

	tag, err := tx.Exec(ctx, `
UPDATE actionplan.action_plans
SET planned_actions = $4, responsible_unit = $5, collaborating_unit_ids = $6,
    completion_date = $7, status = $8, approval_status = $9, progress_percentage = $10
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, p.ID, p.PlannedActions, p.ResponsibleUnit, p.CollaboratingUnits,
		nullableTime(p.CompletionDate), string(p.Status), string(p.ApprovalStatus), p.ProgressPercentage)
	if err != nil {
		return pgscope.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return pgscope.NotFoundOr(pgx.ErrNoRows, "ActionPlan", p.ID)
	}

	return pgscope.MapError(tx.Commit(ctx))
}

func (s *ActionPlanPGStore) Get(ctx context.Context, scope ports.Scope, planID string) (types.ActionPlan, error) {
	return s.getWhere(ctx, scope, `id = $3::uuid`, planID)
}

func (s *ActionPlanPGStore) GetByAction(ctx context.Context, scope ports.Scope, actionID string) (types.ActionPlan, error) {
	return s.getWhere(ctx, scope, `action_id = $3::uuid`, actionID)
}

func (s *ActionPlanPGStore) getWhere(ctx context.Context, scope ports.Scope, cond string, arg string) (types.ActionPlan, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.ActionPlan{}, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return types.ActionPlan{}, pgscope.MapError(err)
	}

	p, err := scanPlan(tx.QueryRow(ctx, `
SELECT id::text, organization_id::text, plan_id::text, plan_code, action_id::text, planned_actions, current_situation,
       responsible_unit, collaborating_unit_ids, completion_date, status, approval_status, progress_percentage
FROM actionplan.action_plans
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND `+cond, scope.OrganizationID, scope.PlanID, arg))
	if err != nil {
		return types.ActionPlan{}, pgscope.NotFoundOr(err, "ActionPlan", arg)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.ActionPlan{}, pgscope.MapError(err)
	}
	return p, nil
}

func (s *ActionPlanPGStore) List(ctx context.Context, scope ports.Scope) ([]types.ActionPlan, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return nil, pgscope.MapError(err)
	}

	rows, err := tx.Query(ctx, `
SELECT id::text, organization_id::text, plan_id::text, plan_code, action_id::text, planned_actions, current_situation,
       responsible_unit, collaborating_unit_ids, completion_date, status, approval_status, progress_percentage
FROM actionplan.action_plans
WHERE organization_id = $1::uuid AND plan_id = $2::uuid
ORDER BY plan_code ASC
`, scope.OrganizationID, scope.PlanID)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer rows.Close()

	out := make([]types.ActionPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, pgscope.MapError(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgscope.MapError(err)
	}
	return out, nil
}

func (s *ActionPlanPGStore) Delete(ctx context.Context, scope ports.Scope, planID string) error {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return pgscope.MapError(err)
	}

	if _, err := tx.Exec(ctx, `
DELETE FROM actionplan.action_plans
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, planID); err != nil {
		return pgscope.MapError(err)
	}

	return pgscope.MapError(tx.Commit(ctx))
}

func scanPlan(row pgx.Row) (types.ActionPlan, error) {
	var p types.ActionPlan
	var status, approval string
	var completion *time.Time
	if err := row.Scan(&p.ID, &p.OrganizationID, &p.PlanID, &p.PlanCode, &p.ActionID, &p.PlannedActions, &p.CurrentSituation,
		&p.ResponsibleUnit, &p.CollaboratingUnits, &completion, &status, &approval, &p.ProgressPercentage); err != nil {
		return types.ActionPlan{}, err
	}
	p.Status = types.PlanStatus(status)
	p.ApprovalStatus = types.ApprovalStatus(approval)
	if completion != nil {
		p.CompletionDate = *completion
	}
	return p, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
