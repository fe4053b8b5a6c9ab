// dbtool carries the operational database probes: an RLS smoke test that
// proves organization isolation fails closed, and a validator that scans
// the allocated record codes for format drift, duplicates, and sequence
// gaps.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <rls-smoke|codes-validate> [args]")
	}

	switch os.Args[1] {
	case "rls-smoke":
		rlsSmoke(os.Args[2:])
	case "codes-validate":
		codesValidate(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func rlsSmoke(args []string) {
	fs := flag.NewFlagSet("rls-smoke", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	_ = tryEnsureRole(ctx, conn, "app_nobypassrls")

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx, "app_nobypassrls")
	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE rls_smoke (organization_id uuid NOT NULL, val text NOT NULL);`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `ALTER TABLE rls_smoke ENABLE ROW LEVEL SECURITY;`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `ALTER TABLE rls_smoke FORCE ROW LEVEL SECURITY;`); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `
CREATE POLICY org_isolation ON rls_smoke
USING (organization_id = current_setting('app.current_org', false)::uuid)
WITH CHECK (organization_id = current_setting('app.current_org', false)::uuid);`); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_failclosed;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `SELECT count(*) FROM rls_smoke;`)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_failclosed;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected fail-closed error when app.current_org is missing")
	}

	orgA := "00000000-0000-0000-0000-00000000000a"
	orgB := "00000000-0000-0000-0000-00000000000b"
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, orgA); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO rls_smoke (organization_id, val) VALUES ($1, 'a');`, orgA); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_cross_insert;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO rls_smoke (organization_id, val) VALUES ($1, 'b');`, orgB)
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_cross_insert;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected RLS rejection on cross-organization insert")
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM rls_smoke;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 under org A, got %d", count)
	}

	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}

	tx2, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx2.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx2, "app_nobypassrls")
	if _, err := tx2.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, orgB); err != nil {
		fatal(err)
	}
	if err := tx2.QueryRow(ctx, `SELECT count(*) FROM rls_smoke;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 0 {
		fatalf("expected count=0 under org B, got %d", count)
	}
	if _, err := tx2.Exec(ctx, `INSERT INTO rls_smoke (organization_id, val) VALUES ($1, 'b');`, orgB); err != nil {
		fatal(err)
	}
	if err := tx2.QueryRow(ctx, `SELECT count(*) FROM rls_smoke;`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 after insert under org B, got %d", count)
	}

	if err := tx2.Commit(ctx); err != nil {
		fatal(err)
	}

	fmt.Println("[rls-smoke] OK")
}

// codeFamily describes one allocated code shape. Year-scoped families
// restart their counter per (organization, plan, year); the plan family
// keeps a single organization-wide counter.
type codeFamily struct {
	name       string
	prefix     string
	yearScoped bool
	query      string
}

var codeFamilies = []codeFamily{
	{
		name: "control", prefix: "CTRL", yearScoped: true,
		query: `SELECT organization_id::text, plan_id::text, control_code FROM lifecycle.controls`,
	},
	{
		name: "control_test", prefix: "TEST", yearScoped: true,
		query: `SELECT organization_id::text, plan_id::text, test_code FROM lifecycle.control_tests`,
	},
	{
		name: "finding", prefix: "FND", yearScoped: true,
		query: `SELECT organization_id::text, plan_id::text, finding_code FROM lifecycle.findings`,
	},
	{
		name: "capa", prefix: "CAPA", yearScoped: true,
		query: `SELECT organization_id::text, plan_id::text, capa_code FROM lifecycle.capas`,
	},
	{
		name: "action_plan", prefix: "EP", yearScoped: false,
		query: `SELECT organization_id::text, plan_id::text, plan_code FROM actionplan.action_plans`,
	},
}

type codeRow struct {
	organizationID string
	planID         string
	code           string
}

type codeConflict struct {
	family string
	code   string
	reason string
}

func codesValidate(args []string) {
	fs := flag.NewFlagSet("codes-validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	var org string
	fs.StringVar(&url, "url", "", "postgres connection string")
	fs.StringVar(&org, "org", "", "organization id to scan")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}
	if org == "" {
		fatalf("missing --org")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_org', $1, true);`, org); err != nil {
		fatal(err)
	}

	total := 0
	var allConflicts []codeConflict
	for _, fam := range codeFamilies {
		rows, err := tx.Query(ctx, fam.query+` WHERE organization_id = $1::uuid`, org)
		if err != nil {
			fatal(err)
		}
		var collected []codeRow
		for rows.Next() {
			var row codeRow
			if err := rows.Scan(&row.organizationID, &row.planID, &row.code); err != nil {
				rows.Close()
				fatal(err)
			}
			collected = append(collected, row)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			fatal(err)
		}

		conflicts := validateCodeRows(fam, collected)
		total += len(collected)
		allConflicts = append(allConflicts, conflicts...)
	}

	for _, c := range allConflicts {
		fmt.Printf("[codes-validate] %s %s: %s\n", c.family, c.code, c.reason)
	}
	if len(allConflicts) > 0 {
		fatalf("scanned %d codes, found %d conflicts", total, len(allConflicts))
	}
	fmt.Printf("[codes-validate] OK: %d codes, 0 conflicts\n", total)
}

var yearCodePattern = regexp.MustCompile(`^([A-Z]+)-(\d{4})-(\d{3,})$`)
var flatCodePattern = regexp.MustCompile(`^([A-Z]+)-(\d{3,})$`)

// validateCodeRows checks one family's codes within one organization:
// format, duplicate codes, and counter continuity. A gap means a code was
// deleted or an allocation escaped the uniqueness constraint; both are
// worth a look, so gaps report as conflicts too.
func validateCodeRows(fam codeFamily, rows []codeRow) []codeConflict {
	var conflicts []codeConflict
	seen := make(map[string]bool)
	// counter key: plan + year for year-scoped families, plan otherwise
	suffixes := make(map[string][]int)

	for _, row := range rows {
		if seen[row.code] {
			conflicts = append(conflicts, codeConflict{family: fam.name, code: row.code, reason: "duplicate_code"})
			continue
		}
		seen[row.code] = true

		var key string
		var suffix int
		if fam.yearScoped {
			m := yearCodePattern.FindStringSubmatch(row.code)
			if m == nil || m[1] != fam.prefix {
				conflicts = append(conflicts, codeConflict{family: fam.name, code: row.code, reason: "bad_format"})
				continue
			}
			key = row.planID + "/" + m[2]
			suffix, _ = strconv.Atoi(m[3])
		} else {
			m := flatCodePattern.FindStringSubmatch(row.code)
			if m == nil || m[1] != fam.prefix {
				conflicts = append(conflicts, codeConflict{family: fam.name, code: row.code, reason: "bad_format"})
				continue
			}
			key = row.planID
			suffix, _ = strconv.Atoi(m[2])
		}
		if suffix == 0 {
			conflicts = append(conflicts, codeConflict{family: fam.name, code: row.code, reason: "zero_suffix"})
			continue
		}
		suffixes[key] = append(suffixes[key], suffix)
	}

	for key, nums := range suffixes {
		sort.Ints(nums)
		expected := 1
		for _, n := range nums {
			if n != expected {
				conflicts = append(conflicts, codeConflict{
					family: fam.name,
					code:   key,
					reason: fmt.Sprintf("sequence_gap: expected %d, found %d", expected, n),
				})
				expected = n
			}
			expected++
		}
	}

	return conflicts
}

func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	_, err := conn.Exec(ctx, `
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '`+role+`') THEN
    CREATE ROLE `+role+` NOBYPASSRLS;
  END IF;
END
$$;`)
	return err
}

func trySetRole(ctx context.Context, tx pgx.Tx, role string) error {
	_, err := tx.Exec(ctx, `SET LOCAL ROLE `+role+`;`)
	return err
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "dbtool:", err)
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fatal(fmt.Errorf(format, args...))
}
