package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/codes"
)

var errUniqueCode = errors.New("unique constraint violated: code")

func isUniqueCode(err error) bool {
	return err != nil && strings.Contains(err.Error(), "unique constraint")
}

// memLifecycleStore mimics the persistence layer including the per-scope
// code uniqueness constraint the allocator leans on.
type memLifecycleStore struct {
	mu       sync.Mutex
	controls map[string]types.Control
	tests    map[string]types.ControlTest
	findings map[string]types.Finding
	capas    map[string]types.CAPA
}

func newMemLifecycleStore() *memLifecycleStore {
	return &memLifecycleStore{
		controls: map[string]types.Control{},
		tests:    map[string]types.ControlTest{},
		findings: map[string]types.Finding{},
		capas:    map[string]types.CAPA{},
	}
}

func (m *memLifecycleStore) inScope(scope ports.Scope, orgID, planID string) bool {
	return scope.OrganizationID == orgID && scope.PlanID == planID
}

func (m *memLifecycleStore) MaxSuffix(_ context.Context, scope codes.Scope) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	consider := func(orgID, planID, code string) {
		if orgID != scope.OrganizationID || planID != scope.PlanID {
			return
		}
		var prefix string
		var year, n int
		if _, err := fmt.Sscanf(code, "%4s-%d-%d", &prefix, &year, &n); err != nil {
			return
		}
		if year == scope.Year && n > max {
			max = n
		}
	}
	switch scope.RecordType {
	case codes.RecordControl:
		for _, c := range m.controls {
			consider(c.OrganizationID, c.PlanID, c.ControlCode)
		}
	case codes.RecordControlTest:
		for _, t := range m.tests {
			consider(t.OrganizationID, t.PlanID, t.TestCode)
		}
	case codes.RecordFinding:
		for _, f := range m.findings {
			consider(f.OrganizationID, f.PlanID, f.FindingCode)
		}
	case codes.RecordCAPA:
		for _, c := range m.capas {
			consider(c.OrganizationID, c.PlanID, c.CAPACode)
		}
	}
	return max, nil
}

func (m *memLifecycleStore) InsertControl(_ context.Context, c types.Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.controls {
		if existing.OrganizationID == c.OrganizationID && existing.PlanID == c.PlanID && existing.ControlCode == c.ControlCode {
			return errUniqueCode
		}
	}
	m.controls[c.ID] = c
	return nil
}

func (m *memLifecycleStore) UpdateControl(_ context.Context, scope ports.Scope, c types.Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.controls[c.ID]
	if !ok || !m.inScope(scope, existing.OrganizationID, existing.PlanID) {
		return apperr.NewNotFound("Control", c.ID)
	}
	m.controls[c.ID] = c
	return nil
}

func (m *memLifecycleStore) GetControl(_ context.Context, scope ports.Scope, id string) (types.Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controls[id]
	if !ok || !m.inScope(scope, c.OrganizationID, c.PlanID) {
		return types.Control{}, apperr.NewNotFound("Control", id)
	}
	return c, nil
}

func (m *memLifecycleStore) ListControls(_ context.Context, scope ports.Scope, actionID string) ([]types.Control, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Control, 0)
	for _, c := range m.controls {
		if m.inScope(scope, c.OrganizationID, c.PlanID) && (actionID == "" || c.ActionID == actionID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memLifecycleStore) DeleteControl(_ context.Context, scope ports.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.controls, id)
	return nil
}

func (m *memLifecycleStore) CountControlDependents(_ context.Context, scope ports.Scope, controlID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tests, findings := 0, 0
	for _, t := range m.tests {
		if t.ControlID == controlID {
			tests++
		}
	}
	for _, f := range m.findings {
		if f.ControlID == controlID {
			findings++
		}
	}
	return tests, findings, nil
}

func (m *memLifecycleStore) InsertControlTest(_ context.Context, t types.ControlTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tests {
		if existing.OrganizationID == t.OrganizationID && existing.PlanID == t.PlanID && existing.TestCode == t.TestCode {
			return errUniqueCode
		}
	}
	m.tests[t.ID] = t
	return nil
}

func (m *memLifecycleStore) UpdateControlTest(_ context.Context, scope ports.Scope, t types.ControlTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.tests[t.ID]
	if !ok || !m.inScope(scope, existing.OrganizationID, existing.PlanID) {
		return apperr.NewNotFound("ControlTest", t.ID)
	}
	m.tests[t.ID] = t
	return nil
}

func (m *memLifecycleStore) GetControlTest(_ context.Context, scope ports.Scope, id string) (types.ControlTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tests[id]
	if !ok || !m.inScope(scope, t.OrganizationID, t.PlanID) {
		return types.ControlTest{}, apperr.NewNotFound("ControlTest", id)
	}
	return t, nil
}

func (m *memLifecycleStore) ListControlTests(_ context.Context, scope ports.Scope, controlID string) ([]types.ControlTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ControlTest, 0)
	for _, t := range m.tests {
		if m.inScope(scope, t.OrganizationID, t.PlanID) && (controlID == "" || t.ControlID == controlID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memLifecycleStore) DeleteControlTest(_ context.Context, scope ports.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tests, id)
	return nil
}

func (m *memLifecycleStore) InsertFinding(_ context.Context, f types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.findings {
		if existing.OrganizationID == f.OrganizationID && existing.PlanID == f.PlanID && existing.FindingCode == f.FindingCode {
			return errUniqueCode
		}
	}
	m.findings[f.ID] = f
	return nil
}

func (m *memLifecycleStore) UpdateFinding(_ context.Context, scope ports.Scope, f types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.findings[f.ID]
	if !ok || !m.inScope(scope, existing.OrganizationID, existing.PlanID) {
		return apperr.NewNotFound("Finding", f.ID)
	}
	m.findings[f.ID] = f
	return nil
}

func (m *memLifecycleStore) GetFinding(_ context.Context, scope ports.Scope, id string) (types.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.findings[id]
	if !ok || !m.inScope(scope, f.OrganizationID, f.PlanID) {
		return types.Finding{}, apperr.NewNotFound("Finding", id)
	}
	return f, nil
}

func (m *memLifecycleStore) ListFindings(_ context.Context, scope ports.Scope, actionPlanID string) ([]types.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Finding, 0)
	for _, f := range m.findings {
		if m.inScope(scope, f.OrganizationID, f.PlanID) && (actionPlanID == "" || f.ActionPlanID == actionPlanID) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memLifecycleStore) DeleteFinding(_ context.Context, scope ports.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.findings, id)
	return nil
}

func (m *memLifecycleStore) CountFindingDependents(_ context.Context, scope ports.Scope, findingID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	capas := 0
	for _, c := range m.capas {
		if c.FindingID == findingID {
			capas++
		}
	}
	return capas, nil
}

func (m *memLifecycleStore) InsertCAPA(_ context.Context, c types.CAPA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.capas {
		if existing.OrganizationID == c.OrganizationID && existing.PlanID == c.PlanID && existing.CAPACode == c.CAPACode {
			return errUniqueCode
		}
	}
	m.capas[c.ID] = c
	return nil
}

func (m *memLifecycleStore) UpdateCAPA(_ context.Context, scope ports.Scope, c types.CAPA) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.capas[c.ID]
	if !ok || !m.inScope(scope, existing.OrganizationID, existing.PlanID) {
		return apperr.NewNotFound("CAPA", c.ID)
	}
	m.capas[c.ID] = c
	return nil
}

func (m *memLifecycleStore) GetCAPA(_ context.Context, scope ports.Scope, id string) (types.CAPA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.capas[id]
	if !ok || !m.inScope(scope, c.OrganizationID, c.PlanID) {
		return types.CAPA{}, apperr.NewNotFound("CAPA", id)
	}
	return c, nil
}

func (m *memLifecycleStore) ListCAPAs(_ context.Context, scope ports.Scope, actionPlanID string) ([]types.CAPA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.CAPA, 0)
	for _, c := range m.capas {
		if m.inScope(scope, c.OrganizationID, c.PlanID) && (actionPlanID == "" || c.ActionPlanID == actionPlanID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memLifecycleStore) DeleteCAPA(_ context.Context, scope ports.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.capas, id)
	return nil
}
