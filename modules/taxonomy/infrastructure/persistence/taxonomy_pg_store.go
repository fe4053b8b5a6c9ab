package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/taxonomy/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/pgscope"
)

type TaxonomyPGStore struct {
	pool pgscope.Beginner
}

func NewTaxonomyPGStore(pool pgscope.Beginner) ports.TaxonomyStore {
	return &TaxonomyPGStore{pool: pool}
}

// shared taxonomy levels are not organization scoped; no set_config needed.

func (s *TaxonomyPGStore) ListCategories(ctx context.Context) ([]types.Category, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, code, name, sort_order
FROM taxonomy.categories
ORDER BY sort_order ASC
`)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer rows.Close()

	out := make([]types.Category, 0)
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Order); err != nil {
			return nil, pgscope.MapError(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgscope.MapError(err)
	}
	return out, nil
}

func (s *TaxonomyPGStore) ListMainStandards(ctx context.Context) ([]types.MainStandard, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, category_id::text, code, title, all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids
FROM taxonomy.main_standards
ORDER BY code ASC
`)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer rows.Close()

	out := make([]types.MainStandard, 0)
	for rows.Next() {
		var m types.MainStandard
		var allResp, allCollab bool
		var respIDs, collabIDs []string
		if err := rows.Scan(&m.ID, &m.CategoryID, &m.Code, &m.Title, &allResp, &respIDs, &allCollab, &collabIDs); err != nil {
			return nil, pgscope.MapError(err)
		}
		m.ResponsibleUnits = unitAssignment(allResp, respIDs)
		m.CollaboratingUnits = unitAssignment(allCollab, collabIDs)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgscope.MapError(err)
	}
	return out, nil
}

func (s *TaxonomyPGStore) ListSubStandards(ctx context.Context) ([]types.SubStandard, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, main_standard_id::text, code, title, all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids
FROM taxonomy.sub_standards
ORDER BY code ASC
`)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer rows.Close()

	out := make([]types.SubStandard, 0)
	for rows.Next() {
		var sub types.SubStandard
		var allResp, allCollab bool
		var respIDs, collabIDs []string
		if err := rows.Scan(&sub.ID, &sub.MainStandardID, &sub.Code, &sub.Title, &allResp, &respIDs, &allCollab, &collabIDs); err != nil {
			return nil, pgscope.MapError(err)
		}
		sub.ResponsibleUnits = unitAssignment(allResp, respIDs)
		sub.CollaboratingUnits = unitAssignment(allCollab, collabIDs)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgscope.MapError(err)
	}
	return out, nil
}

func (s *TaxonomyPGStore) ListActions(ctx context.Context, scope ports.Scope) ([]types.Action, error) {
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
SELECT id::text, sub_standard_id::text, code, description, output_result, status, target_date,
       all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids,
       target_quantity, current_quantity
FROM taxonomy.actions
WHERE organization_id = $1::uuid AND plan_id = $2::uuid
ORDER BY code ASC
`, scope.OrganizationID, scope.PlanID)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer rows.Close()

	out := make([]types.Action, 0)
	for rows.Next() {
		a, err := scanAction(rows, scope)
		if err != nil {
			return nil, pgscope.MapError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgscope.MapError(err)
	}
	return out, nil
}

func (s *TaxonomyPGStore) ListSubStandardStatuses(ctx context.Context, organizationID string) ([]types.SubStandardStatus, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, organizationID); err != nil {
		return nil, pgscope.MapError(err)
	}

	rows, err := tx.Query(ctx, `
SELECT sub_standard_id::text, organization_id::text, current_status_text, provides_reasonable_assurance
FROM taxonomy.sub_standard_statuses
WHERE organization_id = $1::uuid
`, organizationID)
	if err != nil {
		return nil, pgscope.MapError(err)
	}
	defer rows.Close()

	out := make([]types.SubStandardStatus, 0)
	for rows.Next() {
		var st types.SubStandardStatus
		if err := rows.Scan(&st.SubStandardID, &st.OrganizationID, &st.CurrentStatusText, &st.ProvidesReasonableAssurance); err != nil {
			return nil, pgscope.MapError(err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, pgscope.MapError(err)
	}
	return out, nil
}

func (s *TaxonomyPGStore) GetAction(ctx context.Context, scope ports.Scope, actionID string) (types.Action, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Action{}, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return types.Action{}, pgscope.MapError(err)
	}

	row := tx.QueryRow(ctx, `
SELECT id::text, sub_standard_id::text, code, description, output_result, status, target_date,
       all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids,
       target_quantity, current_quantity
FROM taxonomy.actions
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, actionID)
	a, err := scanAction(row, scope)
	if err != nil {
		return types.Action{}, pgscope.NotFoundOr(err, "Action", actionID)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Action{}, pgscope.MapError(err)
	}
	return a, nil
}

func (s *TaxonomyPGStore) GetSubStandard(ctx context.Context, subStandardID string) (types.SubStandard, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.SubStandard{}, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var sub types.SubStandard
	var allResp, allCollab bool
	var respIDs, collabIDs []string
	if err := tx.QueryRow(ctx, `
SELECT id::text, main_standard_id::text, code, title, all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids
FROM taxonomy.sub_standards
WHERE id = $1::uuid
`, subStandardID).Scan(&sub.ID, &sub.MainStandardID, &sub.Code, &sub.Title, &allResp, &respIDs, &allCollab, &collabIDs); err != nil {
		return types.SubStandard{}, pgscope.NotFoundOr(err, "SubStandard", subStandardID)
	}
	sub.ResponsibleUnits = unitAssignment(allResp, respIDs)
	sub.CollaboratingUnits = unitAssignment(allCollab, collabIDs)

	if err := tx.Commit(ctx); err != nil {
		return types.SubStandard{}, pgscope.MapError(err)
	}
	return sub, nil
}

func (s *TaxonomyPGStore) GetSubStandardStatus(ctx context.Context, organizationID string, subStandardID string) (types.SubStandardStatus, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.SubStandardStatus{}, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, organizationID); err != nil {
		return types.SubStandardStatus{}, pgscope.MapError(err)
	}

	var st types.SubStandardStatus
	if err := tx.QueryRow(ctx, `
SELECT sub_standard_id::text, organization_id::text, current_status_text, provides_reasonable_assurance
FROM taxonomy.sub_standard_statuses
WHERE organization_id = $1::uuid AND sub_standard_id = $2::uuid
`, organizationID, subStandardID).Scan(&st.SubStandardID, &st.OrganizationID, &st.CurrentStatusText, &st.ProvidesReasonableAssurance); err != nil {
		return types.SubStandardStatus{}, pgscope.NotFoundOr(err, "SubStandardStatus", subStandardID)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.SubStandardStatus{}, pgscope.MapError(err)
	}
	return st, nil
}

func (s *TaxonomyPGStore) InsertCategory(ctx context.Context, c types.Category) error {
	return s.exec(ctx, "", `
INSERT INTO taxonomy.categories (id, code, name, sort_order)
VALUES ($1::uuid, $2, $3, $4)
`, c.ID, c.Code, c.Name, c.Order)
}

func (s *TaxonomyPGStore) InsertMainStandard(ctx context.Context, m types.MainStandard) error {
	return s.exec(ctx, "", `
INSERT INTO taxonomy.main_standards (id, category_id, code, title, all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8)
`, m.ID, m.CategoryID, m.Code, m.Title, m.ResponsibleUnits.All(), m.ResponsibleUnits.UnitIDs(), m.CollaboratingUnits.All(), m.CollaboratingUnits.UnitIDs())
}

func (s *TaxonomyPGStore) InsertSubStandard(ctx context.Context, sub types.SubStandard) error {
	return s.exec(ctx, "", `
INSERT INTO taxonomy.sub_standards (id, main_standard_id, code, title, all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids)
VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8)
`, sub.ID, sub.MainStandardID, sub.Code, sub.Title, sub.ResponsibleUnits.All(), sub.ResponsibleUnits.UnitIDs(), sub.CollaboratingUnits.All(), sub.CollaboratingUnits.UnitIDs())
}

func (s *TaxonomyPGStore) UpsertSubStandardStatus(ctx context.Context, st types.SubStandardStatus) error {
	return s.exec(ctx, st.OrganizationID, `
INSERT INTO taxonomy.sub_standard_statuses (sub_standard_id, organization_id, current_status_text, provides_reasonable_assurance, recorded_at)
VALUES ($1::uuid, $2::uuid, $3, $4, $5)
ON CONFLICT (sub_standard_id, organization_id)
DO UPDATE SET current_status_text = EXCLUDED.current_status_text,
              provides_reasonable_assurance = EXCLUDED.provides_reasonable_assurance,
              recorded_at = EXCLUDED.recorded_at
`, st.SubStandardID, st.OrganizationID, st.CurrentStatusText, st.ProvidesReasonableAssurance, time.Now().UTC())
}

func (s *TaxonomyPGStore) InsertAction(ctx context.Context, a types.Action) error {
	return s.exec(ctx, a.OrganizationID, `
INSERT INTO taxonomy.actions (id, sub_standard_id, organization_id, plan_id, code, description, output_result, status, target_date,
                              all_units_responsible, responsible_unit_ids, all_units_collaborating, collaborating_unit_ids,
                              target_quantity, current_quantity)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`, a.ID, a.SubStandardID, a.OrganizationID, a.PlanID, a.Code, a.Description, a.OutputResult, string(a.Status), nullableTime(a.TargetDate),
		a.ResponsibleUnits.All(), a.ResponsibleUnits.UnitIDs(), a.CollaboratingUnits.All(), a.CollaboratingUnits.UnitIDs(),
		a.TargetQuantity, a.CurrentQuantity)
}

func (s *TaxonomyPGStore) UpdateAction(ctx context.Context, scope ports.Scope, a types.Action) error {
	return s.exec(ctx, scope.OrganizationID, `
UPDATE taxonomy.actions
SET description = $4, output_result = $5, status = $6, target_date = $7, current_quantity = $8
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, a.ID, a.Description, a.OutputResult, string(a.Status), nullableTime(a.TargetDate), a.CurrentQuantity)
}

func (s *TaxonomyPGStore) DeleteAction(ctx context.Context, scope ports.Scope, actionID string) error {
	return s.exec(ctx, scope.OrganizationID, `
DELETE FROM taxonomy.actions
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, actionID)
}

func (s *TaxonomyPGStore) CountDescendantInstanceData(ctx context.Context, nodeKind string, nodeID string) (int, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var count int
	if err := tx.QueryRow(ctx, `
SELECT count(*)
FROM taxonomy.actions a
JOIN taxonomy.sub_standards s ON s.id = a.sub_standard_id
JOIN taxonomy.main_standards m ON m.id = s.main_standard_id
WHERE ($1 = 'sub_standard' AND s.id = $2::uuid)
   OR ($1 = 'main_standard' AND m.id = $2::uuid)
   OR ($1 = 'category' AND m.category_id = $2::uuid)
`, nodeKind, nodeID).Scan(&count); err != nil {
		return 0, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, pgscope.MapError(err)
	}
	return count, nil
}

func (s *TaxonomyPGStore) DeleteNodeCascade(ctx context.Context, nodeKind string, nodeID string) error {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var q string
	switch nodeKind {
	case ports.NodeCategory:
		q = `DELETE FROM taxonomy.categories WHERE id = $1::uuid`
	case ports.NodeMainStandard:
		q = `DELETE FROM taxonomy.main_standards WHERE id = $1::uuid`
	case ports.NodeSubStandard:
		q = `DELETE FROM taxonomy.sub_standards WHERE id = $1::uuid`
	default:
		return pgx.ErrNoRows
	}
	// descendants go through ON DELETE CASCADE foreign keys
	if _, err := tx.Exec(ctx, q, nodeID); err != nil {
		return pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return pgscope.MapError(err)
	}
	return nil
}

func (s *TaxonomyPGStore) exec(ctx context.Context, organizationID string, sql string, args ...any) error {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if organizationID != "" {
		if err := pgscope.SetCurrentOrg(ctx, tx, organizationID); err != nil {
			return pgscope.MapError(err)
		}
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return pgscope.MapError(err)
	}
	return pgscope.MapError(tx.Commit(ctx))
}

func scanAction(row pgx.Row, scope ports.Scope) (types.Action, error) {
	var a types.Action
	var status string
	var target *time.Time
	var allResp, allCollab bool
	var respIDs, collabIDs []string
	if err := row.Scan(&a.ID, &a.SubStandardID, &a.Code, &a.Description, &a.OutputResult, &status, &target,
		&allResp, &respIDs, &allCollab, &collabIDs, &a.TargetQuantity, &a.CurrentQuantity); err != nil {
		return types.Action{}, err
	}
	a.OrganizationID = scope.OrganizationID
	a.PlanID = scope.PlanID
	a.Status = types.ActionStatus(status)
	if target != nil {
		a.TargetDate = *target
	}
	a.ResponsibleUnits = unitAssignment(allResp, respIDs)
	a.CollaboratingUnits = unitAssignment(allCollab, collabIDs)
	return a, nil
}

func unitAssignment(all bool, ids []string) types.UnitAssignment {
	if all {
		return types.AllUnits()
	}
	return types.SpecificUnits(ids...)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
