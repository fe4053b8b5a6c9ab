// Package codes allocates human-readable sequential record codes. The
// read-then-increment is not atomic against concurrent allocators, so the
// persistence layer carries a uniqueness constraint over the code column and
// the allocator retries on conflict with a fresh max read.
package codes

import (
	"context"
	"fmt"

	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

type RecordType string

const (
	RecordControl     RecordType = "control"
	RecordControlTest RecordType = "control_test"
	RecordFinding     RecordType = "finding"
	RecordCAPA        RecordType = "capa"
	RecordActionPlan  RecordType = "action_plan"
)

// Spec configures one record type's code shape. Year-scoped types produce
// PREFIX-YYYY-NNN with a counter per (organization, plan, type, year);
// the rest produce PREFIX-NNN with an organization-wide counter.
type Spec struct {
	Prefix     string
	YearScoped bool
}

// DefaultSpecs mirrors the dashboard's code families. Action plans keep the
// legacy organization-wide EP counter; everything else restarts each year.
var DefaultSpecs = map[RecordType]Spec{
	RecordControl:     {Prefix: "CTRL", YearScoped: true},
	RecordControlTest: {Prefix: "TEST", YearScoped: true},
	RecordFinding:     {Prefix: "FND", YearScoped: true},
	RecordCAPA:        {Prefix: "CAPA", YearScoped: true},
	RecordActionPlan:  {Prefix: "EP", YearScoped: false},
}

// Scope identifies one allocation counter. Year is ignored for non-year
// scoped record types.
type Scope struct {
	OrganizationID string
	PlanID         string
	RecordType     RecordType
	Year           int
}

func (s Scope) String() string {
	spec, ok := DefaultSpecs[s.RecordType]
	if ok && !spec.YearScoped {
		return fmt.Sprintf("%s/%s/%s", s.OrganizationID, s.PlanID, s.RecordType)
	}
	return fmt.Sprintf("%s/%s/%s/%d", s.OrganizationID, s.PlanID, s.RecordType, s.Year)
}

// SuffixReader reads the highest numeric suffix already allocated in a
// scope, zero when none exists.
type SuffixReader interface {
	MaxSuffix(ctx context.Context, scope Scope) (int, error)
}

// ConflictFunc reports whether an insert failure was a uniqueness violation
// worth retrying. Wired to pgscope.IsUniqueViolation in production.
type ConflictFunc func(error) bool

const maxAttempts = 5

type Allocator struct {
	specs      map[RecordType]Spec
	reader     SuffixReader
	isConflict ConflictFunc
}

func NewAllocator(reader SuffixReader, isConflict ConflictFunc) *Allocator {
	return &Allocator{specs: DefaultSpecs, reader: reader, isConflict: isConflict}
}

// Format renders the code for one suffix in one scope.
func (a *Allocator) Format(scope Scope, suffix int) (string, error) {
	spec, ok := a.specs[scope.RecordType]
	if !ok {
		return "", fmt.Errorf("codes: unknown record type %q", scope.RecordType)
	}
	if spec.YearScoped {
		return fmt.Sprintf("%s-%04d-%03d", spec.Prefix, scope.Year, suffix), nil
	}
	return fmt.Sprintf("%s-%03d", spec.Prefix, suffix), nil
}

// Allocate reads the scope's max suffix, formats the next code, and hands it
// to insert. A uniqueness violation from insert means a concurrent allocator
// won the same suffix: re-read and try again, up to maxAttempts, then
// surface CODE_ALLOCATION_EXHAUSTED. Any other insert error aborts at once.
func (a *Allocator) Allocate(ctx context.Context, scope Scope, insert func(ctx context.Context, code string) error) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		max, err := a.reader.MaxSuffix(ctx, scope)
		if err != nil {
			return "", err
		}
		code, err := a.Format(scope, max+1)
		if err != nil {
			return "", err
		}
		err = insert(ctx, code)
		if err == nil {
			return code, nil
		}
		if a.isConflict != nil && a.isConflict(err) {
			continue
		}
		return "", err
	}
	return "", apperr.NewAllocationExhausted(scope.String(), maxAttempts)
}
