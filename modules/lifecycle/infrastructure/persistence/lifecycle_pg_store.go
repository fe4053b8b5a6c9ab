package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/codes"
	"github.com/inforlary/belkys-sub012/pkg/pgscope"
)

type LifecyclePGStore struct {
	pool pgscope.Beginner
}

func NewLifecyclePGStore(pool pgscope.Beginner) ports.LifecycleStore {
	return &LifecyclePGStore{pool: pool}
}

// code columns per allocation family; every one carries a uniqueness
// constraint scoped to (organization_id, plan_id).
var codeColumns = map[codes.RecordType]struct {
	table  string
	column string
}{
	codes.RecordControl:     {table: "lifecycle.controls", column: "control_code"},
	codes.RecordControlTest: {table: "lifecycle.control_tests", column: "test_code"},
	codes.RecordFinding:     {table: "lifecycle.findings", column: "finding_code"},
	codes.RecordCAPA:        {table: "lifecycle.capas", column: "capa_code"},
}

func (s *LifecyclePGStore) MaxSuffix(ctx context.Context, scope codes.Scope) (int, error) {
	loc, ok := codeColumns[scope.RecordType]
	if !ok {
		return 0, fmt.Errorf("lifecycle: no code column for record type %q", scope.RecordType)
	}

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

	// PREFIX-YYYY-NNN: the year segment narrows the counter, the last
	// segment is the suffix
	var max int
	q := fmt.Sprintf(`
SELECT COALESCE(MAX(split_part(%s, '-', 3)::int), 0)
FROM %s
WHERE organization_id = $1::uuid AND plan_id = $2::uuid
  AND split_part(%s, '-', 2)::int = $3
`, loc.column, loc.table, loc.column)
	if err := tx.QueryRow(ctx, q, scope.OrganizationID, scope.PlanID, scope.Year).Scan(&max); err != nil {
		return 0, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, pgscope.MapError(err)
	}
	return max, nil
}

// ---- controls ----

func (s *LifecyclePGStore) InsertControl(ctx context.Context, c types.Control) error {
	return s.exec(ctx, c.OrganizationID, `
INSERT INTO lifecycle.controls (id, organization_id, plan_id, control_code, action_id, name, control_type, nature, frequency,
                                design_effectiveness, operating_effectiveness, owner, performer, status)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::uuid, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`, c.ID, c.OrganizationID, c.PlanID, c.ControlCode, c.ActionID, c.Name, string(c.Type), string(c.Nature), c.Frequency,
		string(c.DesignEffectiveness), string(c.OperatingEffectiveness), c.Owner, c.Performer, string(c.Status))
}

func (s *LifecyclePGStore) UpdateControl(ctx context.Context, scope ports.Scope, c types.Control) error {
	return s.exec(ctx, scope.OrganizationID, `
UPDATE lifecycle.controls
SET name = $4, control_type = $5, nature = $6, frequency = $7,
    design_effectiveness = $8, operating_effectiveness = $9, owner = $10, performer = $11, status = $12
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, c.ID, c.Name, string(c.Type), string(c.Nature), c.Frequency,
		string(c.DesignEffectiveness), string(c.OperatingEffectiveness), c.Owner, c.Performer, string(c.Status))
}

const controlColumns = `id::text, organization_id::text, plan_id::text, control_code, action_id::text, name, control_type, nature, frequency,
       design_effectiveness, operating_effectiveness, owner, performer, status`

func (s *LifecyclePGStore) GetControl(ctx context.Context, scope ports.Scope, id string) (types.Control, error) {
	var c types.Control
	err := s.queryRow(ctx, scope, `
SELECT `+controlColumns+`
FROM lifecycle.controls
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, []any{scope.OrganizationID, scope.PlanID, id}, func(row pgx.Row) error {
		var err error
		c, err = scanControl(row)
		return err
	})
	if err != nil {
		return types.Control{}, pgscope.NotFoundOr(err, "Control", id)
	}
	return c, nil
}

func (s *LifecyclePGStore) ListControls(ctx context.Context, scope ports.Scope, actionID string) ([]types.Control, error) {
	q := `
SELECT ` + controlColumns + `
FROM lifecycle.controls
WHERE organization_id = $1::uuid AND plan_id = $2::uuid`
	args := []any{scope.OrganizationID, scope.PlanID}
	if actionID != "" {
		q += ` AND action_id = $3::uuid`
		args = append(args, actionID)
	}
	q += ` ORDER BY control_code ASC`

	out := make([]types.Control, 0)
	err := s.queryRows(ctx, scope, q, args, func(rows pgx.Rows) error {
		c, err := scanControl(rows)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LifecyclePGStore) DeleteControl(ctx context.Context, scope ports.Scope, id string) error {
	return s.exec(ctx, scope.OrganizationID, `
DELETE FROM lifecycle.controls
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, id)
}

func (s *LifecyclePGStore) CountControlDependents(ctx context.Context, scope ports.Scope, controlID string) (int, int, error) {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, scope.OrganizationID); err != nil {
		return 0, 0, pgscope.MapError(err)
	}

	var tests, findings int
	if err := tx.QueryRow(ctx, `
SELECT
  (SELECT count(*) FROM lifecycle.control_tests
   WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND control_id = $3::uuid),
  (SELECT count(*) FROM lifecycle.findings
   WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND control_id = $3::uuid)
`, scope.OrganizationID, scope.PlanID, controlID).Scan(&tests, &findings); err != nil {
		return 0, 0, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, pgscope.MapError(err)
	}
	return tests, findings, nil
}

// ---- control tests ----

func (s *LifecyclePGStore) InsertControlTest(ctx context.Context, t types.ControlTest) error {
	return s.exec(ctx, t.OrganizationID, `
INSERT INTO lifecycle.control_tests (id, organization_id, plan_id, test_code, control_id, action_id, test_date, result, tester)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::uuid, $6::uuid, $7, $8, $9)
`, t.ID, t.OrganizationID, t.PlanID, t.TestCode, nullableID(t.ControlID), nullableID(t.ActionID), t.TestDate, t.Result, t.Tester)
}

func (s *LifecyclePGStore) UpdateControlTest(ctx context.Context, scope ports.Scope, t types.ControlTest) error {
	return s.exec(ctx, scope.OrganizationID, `
UPDATE lifecycle.control_tests
SET test_date = $4, result = $5, tester = $6
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, t.ID, t.TestDate, t.Result, t.Tester)
}

const testColumns = `id::text, organization_id::text, plan_id::text, test_code, control_id::text, action_id::text, test_date, result, tester`

func (s *LifecyclePGStore) GetControlTest(ctx context.Context, scope ports.Scope, id string) (types.ControlTest, error) {
	var t types.ControlTest
	err := s.queryRow(ctx, scope, `
SELECT `+testColumns+`
FROM lifecycle.control_tests
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, []any{scope.OrganizationID, scope.PlanID, id}, func(row pgx.Row) error {
		var err error
		t, err = scanControlTest(row)
		return err
	})
	if err != nil {
		return types.ControlTest{}, pgscope.NotFoundOr(err, "ControlTest", id)
	}
	return t, nil
}

func (s *LifecyclePGStore) ListControlTests(ctx context.Context, scope ports.Scope, controlID string) ([]types.ControlTest, error) {
	q := `
SELECT ` + testColumns + `
FROM lifecycle.control_tests
WHERE organization_id = $1::uuid AND plan_id = $2::uuid`
	args := []any{scope.OrganizationID, scope.PlanID}
	if controlID != "" {
		q += ` AND control_id = $3::uuid`
		args = append(args, controlID)
	}
	q += ` ORDER BY test_code ASC`

	out := make([]types.ControlTest, 0)
	err := s.queryRows(ctx, scope, q, args, func(rows pgx.Rows) error {
		t, err := scanControlTest(rows)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LifecyclePGStore) DeleteControlTest(ctx context.Context, scope ports.Scope, id string) error {
	return s.exec(ctx, scope.OrganizationID, `
DELETE FROM lifecycle.control_tests
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, id)
}

// ---- findings ----

func (s *LifecyclePGStore) InsertFinding(ctx context.Context, f types.Finding) error {
	return s.exec(ctx, f.OrganizationID, `
INSERT INTO lifecycle.findings (id, organization_id, plan_id, finding_code, action_plan_id, title, severity, source, status,
                                control_id, control_test_id, root_cause)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::uuid, $6, $7, $8, $9, $10::uuid, $11::uuid, $12)
`, f.ID, f.OrganizationID, f.PlanID, f.FindingCode, f.ActionPlanID, f.Title, string(f.Severity), string(f.Source), string(f.Status),
		nullableID(f.ControlID), nullableID(f.ControlTestID), f.RootCause)
}

func (s *LifecyclePGStore) UpdateFinding(ctx context.Context, scope ports.Scope, f types.Finding) error {
	return s.exec(ctx, scope.OrganizationID, `
UPDATE lifecycle.findings
SET title = $4, severity = $5, source = $6, status = $7, root_cause = $8
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, f.ID, f.Title, string(f.Severity), string(f.Source), string(f.Status), f.RootCause)
}

const findingColumns = `id::text, organization_id::text, plan_id::text, finding_code, action_plan_id::text, title, severity, source, status,
       control_id::text, control_test_id::text, root_cause`

func (s *LifecyclePGStore) GetFinding(ctx context.Context, scope ports.Scope, id string) (types.Finding, error) {
	var f types.Finding
	err := s.queryRow(ctx, scope, `
SELECT `+findingColumns+`
FROM lifecycle.findings
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, []any{scope.OrganizationID, scope.PlanID, id}, func(row pgx.Row) error {
		var err error
		f, err = scanFinding(row)
		return err
	})
	if err != nil {
		return types.Finding{}, pgscope.NotFoundOr(err, "Finding", id)
	}
	return f, nil
}

func (s *LifecyclePGStore) ListFindings(ctx context.Context, scope ports.Scope, actionPlanID string) ([]types.Finding, error) {
	q := `
SELECT ` + findingColumns + `
FROM lifecycle.findings
WHERE organization_id = $1::uuid AND plan_id = $2::uuid`
	args := []any{scope.OrganizationID, scope.PlanID}
	if actionPlanID != "" {
		q += ` AND action_plan_id = $3::uuid`
		args = append(args, actionPlanID)
	}
	q += ` ORDER BY finding_code ASC`

	out := make([]types.Finding, 0)
	err := s.queryRows(ctx, scope, q, args, func(rows pgx.Rows) error {
		f, err := scanFinding(rows)
		if err != nil {
			return err
		}
		out = append(out, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LifecyclePGStore) DeleteFinding(ctx context.Context, scope ports.Scope, id string) error {
	return s.exec(ctx, scope.OrganizationID, `
DELETE FROM lifecycle.findings
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, id)
}

func (s *LifecyclePGStore) CountFindingDependents(ctx context.Context, scope ports.Scope, findingID string) (int, error) {
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

	var capas int
	if err := tx.QueryRow(ctx, `
SELECT count(*)
FROM lifecycle.capas
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND finding_id = $3::uuid
`, scope.OrganizationID, scope.PlanID, findingID).Scan(&capas); err != nil {
		return 0, pgscope.MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, pgscope.MapError(err)
	}
	return capas, nil
}

// ---- CAPAs ----

func (s *LifecyclePGStore) InsertCAPA(ctx context.Context, c types.CAPA) error {
	// DerivedStatus is read-time only; only the stored status persists
	return s.exec(ctx, c.OrganizationID, `
INSERT INTO lifecycle.capas (id, organization_id, plan_id, capa_code, action_plan_id, capa_type, finding_id, root_cause,
                             proposed_action, responsible_user, responsible_department, due_date, actual_completion_date,
                             status, priority, completion_percentage, is_effective)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5::uuid, $6, $7::uuid, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`, c.ID, c.OrganizationID, c.PlanID, c.CAPACode, c.ActionPlanID, string(c.Type), nullableID(c.FindingID), c.RootCause,
		c.ProposedAction, c.ResponsibleUser, c.ResponsibleDepartment, c.DueDate, nullableTime(c.ActualCompletionDate),
		string(c.Status), string(c.Priority), c.CompletionPercentage, c.IsEffective)
}

func (s *LifecyclePGStore) UpdateCAPA(ctx context.Context, scope ports.Scope, c types.CAPA) error {
	return s.exec(ctx, scope.OrganizationID, `
UPDATE lifecycle.capas
SET root_cause = $4, proposed_action = $5, responsible_user = $6, responsible_department = $7,
    due_date = $8, actual_completion_date = $9, status = $10, priority = $11, completion_percentage = $12, is_effective = $13
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, c.ID, c.RootCause, c.ProposedAction, c.ResponsibleUser, c.ResponsibleDepartment,
		c.DueDate, nullableTime(c.ActualCompletionDate), string(c.Status), string(c.Priority), c.CompletionPercentage, c.IsEffective)
}

const capaColumns = `id::text, organization_id::text, plan_id::text, capa_code, action_plan_id::text, capa_type, finding_id::text, root_cause,
       proposed_action, responsible_user, responsible_department, due_date, actual_completion_date, status, priority,
       completion_percentage, is_effective`

func (s *LifecyclePGStore) GetCAPA(ctx context.Context, scope ports.Scope, id string) (types.CAPA, error) {
	var c types.CAPA
	err := s.queryRow(ctx, scope, `
SELECT `+capaColumns+`
FROM lifecycle.capas
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, []any{scope.OrganizationID, scope.PlanID, id}, func(row pgx.Row) error {
		var err error
		c, err = scanCAPA(row)
		return err
	})
	if err != nil {
		return types.CAPA{}, pgscope.NotFoundOr(err, "CAPA", id)
	}
	return c, nil
}

func (s *LifecyclePGStore) ListCAPAs(ctx context.Context, scope ports.Scope, actionPlanID string) ([]types.CAPA, error) {
	q := `
SELECT ` + capaColumns + `
FROM lifecycle.capas
WHERE organization_id = $1::uuid AND plan_id = $2::uuid`
	args := []any{scope.OrganizationID, scope.PlanID}
	if actionPlanID != "" {
		q += ` AND action_plan_id = $3::uuid`
		args = append(args, actionPlanID)
	}
	q += ` ORDER BY capa_code ASC`

	out := make([]types.CAPA, 0)
	err := s.queryRows(ctx, scope, q, args, func(rows pgx.Rows) error {
		c, err := scanCAPA(rows)
		if err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LifecyclePGStore) DeleteCAPA(ctx context.Context, scope ports.Scope, id string) error {
	return s.exec(ctx, scope.OrganizationID, `
DELETE FROM lifecycle.capas
WHERE organization_id = $1::uuid AND plan_id = $2::uuid AND id = $3::uuid
`, scope.OrganizationID, scope.PlanID, id)
}

// ---- helpers ----

func (s *LifecyclePGStore) exec(ctx context.Context, organizationID string, sql string, args ...any) error {
	ctx, cancel := pgscope.WithTimeout(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if err := pgscope.SetCurrentOrg(ctx, tx, organizationID); err != nil {
		return pgscope.MapError(err)
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return pgscope.MapError(err)
	}
	return pgscope.MapError(tx.Commit(ctx))
}

func (s *LifecyclePGStore) queryRow(ctx context.Context, scope ports.Scope, sql string, args []any, scan func(pgx.Row) error) error {
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
	if err := scan(tx.QueryRow(ctx, sql, args...)); err != nil {
		return err
	}
	return pgscope.MapError(tx.Commit(ctx))
}

func (s *LifecyclePGStore) queryRows(ctx context.Context, scope ports.Scope, sql string, args []any, scan func(pgx.Rows) error) error {
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

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return pgscope.MapError(err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return pgscope.MapError(err)
		}
	}
	if err := rows.Err(); err != nil {
		return pgscope.MapError(err)
	}
	return pgscope.MapError(tx.Commit(ctx))
}

func scanControl(row pgx.Row) (types.Control, error) {
	var c types.Control
	var ctype, nature, design, operating, status string
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.PlanID, &c.ControlCode, &c.ActionID, &c.Name, &ctype, &nature, &c.Frequency,
		&design, &operating, &c.Owner, &c.Performer, &status); err != nil {
		return types.Control{}, err
	}
	c.Type = types.ControlType(ctype)
	c.Nature = types.ControlNature(nature)
	c.DesignEffectiveness = types.Effectiveness(design)
	c.OperatingEffectiveness = types.Effectiveness(operating)
	c.Status = types.ControlStatus(status)
	return c, nil
}

func scanControlTest(row pgx.Row) (types.ControlTest, error) {
	var t types.ControlTest
	var controlID, actionID *string
	if err := row.Scan(&t.ID, &t.OrganizationID, &t.PlanID, &t.TestCode, &controlID, &actionID, &t.TestDate, &t.Result, &t.Tester); err != nil {
		return types.ControlTest{}, err
	}
	if controlID != nil {
		t.ControlID = *controlID
	}
	if actionID != nil {
		t.ActionID = *actionID
	}
	return t, nil
}

func scanFinding(row pgx.Row) (types.Finding, error) {
	var f types.Finding
	var severity, source, status string
	var controlID, testID *string
	if err := row.Scan(&f.ID, &f.OrganizationID, &f.PlanID, &f.FindingCode, &f.ActionPlanID, &f.Title, &severity, &source, &status,
		&controlID, &testID, &f.RootCause); err != nil {
		return types.Finding{}, err
	}
	f.Severity = types.Severity(severity)
	f.Source = types.FindingSource(source)
	f.Status = types.FindingStatus(status)
	if controlID != nil {
		f.ControlID = *controlID
	}
	if testID != nil {
		f.ControlTestID = *testID
	}
	return f, nil
}

func scanCAPA(row pgx.Row) (types.CAPA, error) {
	var c types.CAPA
	var ctype, status, priority string
	var findingID *string
	var completed *time.Time
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.PlanID, &c.CAPACode, &c.ActionPlanID, &ctype, &findingID, &c.RootCause,
		&c.ProposedAction, &c.ResponsibleUser, &c.ResponsibleDepartment, &c.DueDate, &completed, &status, &priority,
		&c.CompletionPercentage, &c.IsEffective); err != nil {
		return types.CAPA{}, err
	}
	c.Type = types.CAPAType(ctype)
	c.Status = types.CAPAStatus(status)
	c.Priority = types.Priority(priority)
	if findingID != nil {
		c.FindingID = *findingID
	}
	if completed != nil {
		c.ActualCompletionDate = *completed
	}
	return c, nil
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
