package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/ports"
	"github.com/inforlary/belkys-sub012/modules/lifecycle/domain/types"
	"github.com/inforlary/belkys-sub012/pkg/apperr"
	"github.com/inforlary/belkys-sub012/pkg/codes"
	"github.com/inforlary/belkys-sub012/pkg/duestatus"
)

var newLifecycleID = func() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// ActionSource answers whether an action exists in scope. Actions live
// in the taxonomy module; the tracker only validates references against
// it.
type ActionSource interface {
	ActionExists(ctx context.Context, organizationID string, planID string, actionID string) (bool, error)
}

// TrackerService owns the four lifecycle record families. Every create
// allocates a code through the shared allocator; every CAPA read derives
// the overdue overlay fresh so it can never go stale.
type TrackerService struct {
	store     ports.LifecycleStore
	actions   ActionSource
	allocator *codes.Allocator
	policy    *TransitionPolicy
	now       func() time.Time
}

func NewTrackerService(store ports.LifecycleStore, actions ActionSource, allocator *codes.Allocator, policy *TransitionPolicy) *TrackerService {
	return &TrackerService{store: store, actions: actions, allocator: allocator, policy: policy, now: time.Now}
}

// checkActionRef turns a dangling action reference into NOT_FOUND before
// a record is created against it.
func (s *TrackerService) checkActionRef(ctx context.Context, scope ports.Scope, actionID string) error {
	if s.actions == nil {
		return nil
	}
	ok, err := s.actions.ActionExists(ctx, scope.OrganizationID, scope.PlanID, actionID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NewNotFound("Action", actionID)
	}
	return nil
}

func (s *TrackerService) codeScope(scope ports.Scope, rt codes.RecordType) codes.Scope {
	return codes.Scope{
		OrganizationID: scope.OrganizationID,
		PlanID:         scope.PlanID,
		RecordType:     rt,
		Year:           s.now().UTC().Year(),
	}
}

// checkTransition consults the configured policy only when the stored
// status actually changes.
func (s *TrackerService) checkTransition(recordType string, from, to, role string) error {
	if from == to {
		return nil
	}
	return s.policy.Check(recordType, from, to, role)
}

// ---- controls ----

type CreateControlRequest struct {
	ActionID               string
	Name                   string
	Type                   types.ControlType
	Nature                 types.ControlNature
	Frequency              string
	Owner                  string
	Performer              string
	Status                 types.ControlStatus
	DesignEffectiveness    types.Effectiveness
	OperatingEffectiveness types.Effectiveness
}

func (s *TrackerService) CreateControl(ctx context.Context, scope ports.Scope, req CreateControlRequest) (types.Control, error) {
	var invalid []string
	if strings.TrimSpace(req.ActionID) == "" {
		invalid = append(invalid, "action_id")
	}
	if strings.TrimSpace(req.Name) == "" {
		invalid = append(invalid, "name")
	}
	if !req.Type.Valid() {
		invalid = append(invalid, "type")
	}
	if !req.Nature.Valid() {
		invalid = append(invalid, "nature")
	}
	status := req.Status
	if status == "" {
		status = types.ControlActive
	}
	if !status.Valid() {
		invalid = append(invalid, "status")
	}
	design := req.DesignEffectiveness
	if design == "" {
		design = types.NotAssessed
	}
	operating := req.OperatingEffectiveness
	if operating == "" {
		operating = types.NotAssessed
	}
	if !design.Valid() {
		invalid = append(invalid, "design_effectiveness")
	}
	if !operating.Valid() {
		invalid = append(invalid, "operating_effectiveness")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.Control{}, err
	}
	if err := s.checkActionRef(ctx, scope, req.ActionID); err != nil {
		return types.Control{}, err
	}

	id, err := newLifecycleID()
	if err != nil {
		return types.Control{}, err
	}
	control := types.Control{
		ID:                     id,
		OrganizationID:         scope.OrganizationID,
		PlanID:                 scope.PlanID,
		ActionID:               req.ActionID,
		Name:                   req.Name,
		Type:                   req.Type,
		Nature:                 req.Nature,
		Frequency:              req.Frequency,
		Owner:                  req.Owner,
		Performer:              req.Performer,
		Status:                 status,
		DesignEffectiveness:    design,
		OperatingEffectiveness: operating,
	}
	_, err = s.allocator.Allocate(ctx, s.codeScope(scope, codes.RecordControl), func(ctx context.Context, code string) error {
		control.ControlCode = code
		return s.store.InsertControl(ctx, control)
	})
	if err != nil {
		return types.Control{}, err
	}
	return control, nil
}

type UpdateControlRequest struct {
	ControlID              string
	Name                   *string
	Type                   *types.ControlType
	Nature                 *types.ControlNature
	Frequency              *string
	Owner                  *string
	Performer              *string
	Status                 *types.ControlStatus
	DesignEffectiveness    *types.Effectiveness
	OperatingEffectiveness *types.Effectiveness
}

func (s *TrackerService) UpdateControl(ctx context.Context, scope ports.Scope, role string, req UpdateControlRequest) (types.Control, error) {
	control, err := s.store.GetControl(ctx, scope, req.ControlID)
	if err != nil {
		return types.Control{}, err
	}

	var invalid []string
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		invalid = append(invalid, "name")
	}
	if req.Type != nil && !req.Type.Valid() {
		invalid = append(invalid, "type")
	}
	if req.Nature != nil && !req.Nature.Valid() {
		invalid = append(invalid, "nature")
	}
	if req.Status != nil && !req.Status.Valid() {
		invalid = append(invalid, "status")
	}
	if req.DesignEffectiveness != nil && !req.DesignEffectiveness.Valid() {
		invalid = append(invalid, "design_effectiveness")
	}
	if req.OperatingEffectiveness != nil && !req.OperatingEffectiveness.Valid() {
		invalid = append(invalid, "operating_effectiveness")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.Control{}, err
	}

	if req.Status != nil {
		if err := s.checkTransition("control", string(control.Status), string(*req.Status), role); err != nil {
			return types.Control{}, err
		}
		control.Status = *req.Status
	}
	if req.Name != nil {
		control.Name = *req.Name
	}
	if req.Type != nil {
		control.Type = *req.Type
	}
	if req.Nature != nil {
		control.Nature = *req.Nature
	}
	if req.Frequency != nil {
		control.Frequency = *req.Frequency
	}
	if req.Owner != nil {
		control.Owner = *req.Owner
	}
	if req.Performer != nil {
		control.Performer = *req.Performer
	}
	// the two effectiveness axes move independently
	if req.DesignEffectiveness != nil {
		control.DesignEffectiveness = *req.DesignEffectiveness
	}
	if req.OperatingEffectiveness != nil {
		control.OperatingEffectiveness = *req.OperatingEffectiveness
	}

	if err := s.store.UpdateControl(ctx, scope, control); err != nil {
		return types.Control{}, err
	}
	return control, nil
}

func (s *TrackerService) GetControl(ctx context.Context, scope ports.Scope, id string) (types.Control, error) {
	return s.store.GetControl(ctx, scope, id)
}

func (s *TrackerService) ListControls(ctx context.Context, scope ports.Scope, actionID string) ([]types.Control, error) {
	return s.store.ListControls(ctx, scope, actionID)
}

// DeleteControl refuses while control tests or findings still reference
// the control, naming whichever dependent family blocks it.
func (s *TrackerService) DeleteControl(ctx context.Context, scope ports.Scope, id string) error {
	if _, err := s.store.GetControl(ctx, scope, id); err != nil {
		return err
	}
	tests, findings, err := s.store.CountControlDependents(ctx, scope, id)
	if err != nil {
		return err
	}
	if tests > 0 {
		return apperr.NewDependencyConflict("ControlTest", tests)
	}
	if findings > 0 {
		return apperr.NewDependencyConflict("Finding", findings)
	}
	return s.store.DeleteControl(ctx, scope, id)
}

// ---- control tests ----

type CreateControlTestRequest struct {
	ControlID string
	ActionID  string
	TestDate  time.Time
	Result    string
	Tester    string
}

func (s *TrackerService) CreateControlTest(ctx context.Context, scope ports.Scope, req CreateControlTestRequest) (types.ControlTest, error) {
	var invalid []string
	if strings.TrimSpace(req.ControlID) == "" && strings.TrimSpace(req.ActionID) == "" {
		invalid = append(invalid, "control_id")
	}
	if req.TestDate.IsZero() {
		invalid = append(invalid, "test_date")
	}
	if strings.TrimSpace(req.Tester) == "" {
		invalid = append(invalid, "tester")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.ControlTest{}, err
	}

	// either reference may carry the test; both must resolve in scope
	if req.ControlID != "" {
		if _, err := s.store.GetControl(ctx, scope, req.ControlID); err != nil {
			return types.ControlTest{}, err
		}
	}
	if req.ActionID != "" {
		if err := s.checkActionRef(ctx, scope, req.ActionID); err != nil {
			return types.ControlTest{}, err
		}
	}

	id, err := newLifecycleID()
	if err != nil {
		return types.ControlTest{}, err
	}
	test := types.ControlTest{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		PlanID:         scope.PlanID,
		ControlID:      req.ControlID,
		ActionID:       req.ActionID,
		TestDate:       req.TestDate,
		Result:         req.Result,
		Tester:         req.Tester,
	}
	_, err = s.allocator.Allocate(ctx, s.codeScope(scope, codes.RecordControlTest), func(ctx context.Context, code string) error {
		test.TestCode = code
		return s.store.InsertControlTest(ctx, test)
	})
	if err != nil {
		return types.ControlTest{}, err
	}
	return test, nil
}

type UpdateControlTestRequest struct {
	TestID   string
	TestDate *time.Time
	Result   *string
	Tester   *string
}

func (s *TrackerService) UpdateControlTest(ctx context.Context, scope ports.Scope, req UpdateControlTestRequest) (types.ControlTest, error) {
	test, err := s.store.GetControlTest(ctx, scope, req.TestID)
	if err != nil {
		return types.ControlTest{}, err
	}

	var invalid []string
	if req.TestDate != nil && req.TestDate.IsZero() {
		invalid = append(invalid, "test_date")
	}
	if req.Tester != nil && strings.TrimSpace(*req.Tester) == "" {
		invalid = append(invalid, "tester")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.ControlTest{}, err
	}

	if req.TestDate != nil {
		test.TestDate = *req.TestDate
	}
	if req.Result != nil {
		test.Result = *req.Result
	}
	if req.Tester != nil {
		test.Tester = *req.Tester
	}
	if err := s.store.UpdateControlTest(ctx, scope, test); err != nil {
		return types.ControlTest{}, err
	}
	return test, nil
}

func (s *TrackerService) GetControlTest(ctx context.Context, scope ports.Scope, id string) (types.ControlTest, error) {
	return s.store.GetControlTest(ctx, scope, id)
}

func (s *TrackerService) ListControlTests(ctx context.Context, scope ports.Scope, controlID string) ([]types.ControlTest, error) {
	return s.store.ListControlTests(ctx, scope, controlID)
}

func (s *TrackerService) DeleteControlTest(ctx context.Context, scope ports.Scope, id string) error {
	if _, err := s.store.GetControlTest(ctx, scope, id); err != nil {
		return err
	}
	return s.store.DeleteControlTest(ctx, scope, id)
}

// ---- findings ----

type CreateFindingRequest struct {
	ActionPlanID  string
	Title         string
	Severity      types.Severity
	Source        types.FindingSource
	ControlID     string
	ControlTestID string
	RootCause     string
}

func (s *TrackerService) CreateFinding(ctx context.Context, scope ports.Scope, req CreateFindingRequest) (types.Finding, error) {
	var invalid []string
	if strings.TrimSpace(req.ActionPlanID) == "" {
		invalid = append(invalid, "action_plan_id")
	}
	if strings.TrimSpace(req.Title) == "" {
		invalid = append(invalid, "finding_title")
	}
	if !req.Severity.Valid() {
		invalid = append(invalid, "severity")
	}
	source := req.Source
	if source == "" {
		source = types.SourceOther
	}
	if !source.Valid() {
		invalid = append(invalid, "source")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.Finding{}, err
	}

	id, err := newLifecycleID()
	if err != nil {
		return types.Finding{}, err
	}
	finding := types.Finding{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		PlanID:         scope.PlanID,
		ActionPlanID:   req.ActionPlanID,
		Title:          req.Title,
		Severity:       req.Severity,
		Source:         source,
		Status:         types.FindingOpen,
		ControlID:      req.ControlID,
		ControlTestID:  req.ControlTestID,
		RootCause:      req.RootCause,
	}
	_, err = s.allocator.Allocate(ctx, s.codeScope(scope, codes.RecordFinding), func(ctx context.Context, code string) error {
		finding.FindingCode = code
		return s.store.InsertFinding(ctx, finding)
	})
	if err != nil {
		return types.Finding{}, err
	}
	return finding, nil
}

type UpdateFindingRequest struct {
	FindingID string
	Title     *string
	Severity  *types.Severity
	Source    *types.FindingSource
	// Status may jump to any known state; finding transitions are not
	// sequential.
	Status    *types.FindingStatus
	RootCause *string
}

func (s *TrackerService) UpdateFinding(ctx context.Context, scope ports.Scope, role string, req UpdateFindingRequest) (types.Finding, error) {
	finding, err := s.store.GetFinding(ctx, scope, req.FindingID)
	if err != nil {
		return types.Finding{}, err
	}

	var invalid []string
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		invalid = append(invalid, "finding_title")
	}
	if req.Severity != nil && !req.Severity.Valid() {
		invalid = append(invalid, "severity")
	}
	if req.Source != nil && !req.Source.Valid() {
		invalid = append(invalid, "source")
	}
	if req.Status != nil && !req.Status.Valid() {
		invalid = append(invalid, "status")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.Finding{}, err
	}

	if req.Status != nil {
		if err := s.checkTransition("finding", string(finding.Status), string(*req.Status), role); err != nil {
			return types.Finding{}, err
		}
		finding.Status = *req.Status
	}
	if req.Title != nil {
		finding.Title = *req.Title
	}
	if req.Severity != nil {
		finding.Severity = *req.Severity
	}
	if req.Source != nil {
		finding.Source = *req.Source
	}
	if req.RootCause != nil {
		finding.RootCause = *req.RootCause
	}
	if err := s.store.UpdateFinding(ctx, scope, finding); err != nil {
		return types.Finding{}, err
	}
	return finding, nil
}

func (s *TrackerService) GetFinding(ctx context.Context, scope ports.Scope, id string) (types.Finding, error) {
	return s.store.GetFinding(ctx, scope, id)
}

func (s *TrackerService) ListFindings(ctx context.Context, scope ports.Scope, actionPlanID string) ([]types.Finding, error) {
	return s.store.ListFindings(ctx, scope, actionPlanID)
}

func (s *TrackerService) DeleteFinding(ctx context.Context, scope ports.Scope, id string) error {
	if _, err := s.store.GetFinding(ctx, scope, id); err != nil {
		return err
	}
	capas, err := s.store.CountFindingDependents(ctx, scope, id)
	if err != nil {
		return err
	}
	if capas > 0 {
		return apperr.NewDependencyConflict("CAPA", capas)
	}
	return s.store.DeleteFinding(ctx, scope, id)
}

// ---- CAPAs ----

type CreateCAPARequest struct {
	ActionPlanID          string
	Type                  types.CAPAType
	FindingID             string
	RootCause             string
	ProposedAction        string
	ResponsibleUser       string
	ResponsibleDepartment string
	DueDate               time.Time
	Priority              types.Priority
}

func (s *TrackerService) CreateCAPA(ctx context.Context, scope ports.Scope, req CreateCAPARequest) (types.CAPA, error) {
	var invalid []string
	if strings.TrimSpace(req.ActionPlanID) == "" {
		invalid = append(invalid, "action_plan_id")
	}
	if strings.TrimSpace(req.ProposedAction) == "" {
		invalid = append(invalid, "proposed_action")
	}
	if req.DueDate.IsZero() {
		invalid = append(invalid, "due_date")
	}
	if !req.Type.Valid() {
		invalid = append(invalid, "type")
	}
	priority := req.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !priority.Valid() {
		invalid = append(invalid, "priority")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.CAPA{}, err
	}

	// a CAPA may stand alone, but a named finding must exist in scope
	if req.FindingID != "" {
		if _, err := s.store.GetFinding(ctx, scope, req.FindingID); err != nil {
			return types.CAPA{}, err
		}
	}

	id, err := newLifecycleID()
	if err != nil {
		return types.CAPA{}, err
	}
	capa := types.CAPA{
		ID:                    id,
		OrganizationID:        scope.OrganizationID,
		PlanID:                scope.PlanID,
		ActionPlanID:          req.ActionPlanID,
		Type:                  req.Type,
		FindingID:             req.FindingID,
		RootCause:             req.RootCause,
		ProposedAction:        req.ProposedAction,
		ResponsibleUser:       req.ResponsibleUser,
		ResponsibleDepartment: req.ResponsibleDepartment,
		DueDate:               req.DueDate,
		Status:                types.CAPAOpen,
		Priority:              priority,
	}
	_, err = s.allocator.Allocate(ctx, s.codeScope(scope, codes.RecordCAPA), func(ctx context.Context, code string) error {
		capa.CAPACode = code
		return s.store.InsertCAPA(ctx, capa)
	})
	if err != nil {
		return types.CAPA{}, err
	}
	return s.deriveCAPA(capa), nil
}

type UpdateCAPARequest struct {
	CAPAID                string
	RootCause             *string
	ProposedAction        *string
	ResponsibleUser       *string
	ResponsibleDepartment *string
	DueDate               *time.Time
	ActualCompletionDate  *time.Time
	Status                *types.CAPAStatus
	Priority              *types.Priority
	// CompletionPercentage and Status are deliberately uncorrelated;
	// 100% with status open is representable.
	CompletionPercentage *int
	IsEffective          *bool
}

func (s *TrackerService) UpdateCAPA(ctx context.Context, scope ports.Scope, role string, req UpdateCAPARequest) (types.CAPA, error) {
	capa, err := s.store.GetCAPA(ctx, scope, req.CAPAID)
	if err != nil {
		return types.CAPA{}, err
	}

	var invalid []string
	if req.ProposedAction != nil && strings.TrimSpace(*req.ProposedAction) == "" {
		invalid = append(invalid, "proposed_action")
	}
	if req.DueDate != nil && req.DueDate.IsZero() {
		invalid = append(invalid, "due_date")
	}
	if req.Status != nil && !req.Status.Valid() {
		invalid = append(invalid, "status")
	}
	if req.Priority != nil && !req.Priority.Valid() {
		invalid = append(invalid, "priority")
	}
	if req.CompletionPercentage != nil && (*req.CompletionPercentage < 0 || *req.CompletionPercentage > 100) {
		invalid = append(invalid, "completion_percentage")
	}
	if err := apperr.NewValidation(invalid...); err != nil {
		return types.CAPA{}, err
	}

	if req.Status != nil {
		if err := s.checkTransition("capa", string(capa.Status), string(*req.Status), role); err != nil {
			return types.CAPA{}, err
		}
		capa.Status = *req.Status
	}
	if req.RootCause != nil {
		capa.RootCause = *req.RootCause
	}
	if req.ProposedAction != nil {
		capa.ProposedAction = *req.ProposedAction
	}
	if req.ResponsibleUser != nil {
		capa.ResponsibleUser = *req.ResponsibleUser
	}
	if req.ResponsibleDepartment != nil {
		capa.ResponsibleDepartment = *req.ResponsibleDepartment
	}
	if req.DueDate != nil {
		capa.DueDate = *req.DueDate
	}
	if req.ActualCompletionDate != nil {
		capa.ActualCompletionDate = *req.ActualCompletionDate
	}
	if req.Priority != nil {
		capa.Priority = *req.Priority
	}
	if req.CompletionPercentage != nil {
		capa.CompletionPercentage = *req.CompletionPercentage
	}
	if req.IsEffective != nil {
		capa.IsEffective = req.IsEffective
	}
	if err := s.store.UpdateCAPA(ctx, scope, capa); err != nil {
		return types.CAPA{}, err
	}
	return s.deriveCAPA(capa), nil
}

func (s *TrackerService) GetCAPA(ctx context.Context, scope ports.Scope, id string) (types.CAPA, error) {
	capa, err := s.store.GetCAPA(ctx, scope, id)
	if err != nil {
		return types.CAPA{}, err
	}
	return s.deriveCAPA(capa), nil
}

func (s *TrackerService) ListCAPAs(ctx context.Context, scope ports.Scope, actionPlanID string) ([]types.CAPA, error) {
	capas, err := s.store.ListCAPAs(ctx, scope, actionPlanID)
	if err != nil {
		return nil, err
	}
	for i := range capas {
		capas[i] = s.deriveCAPA(capas[i])
	}
	return capas, nil
}

func (s *TrackerService) DeleteCAPA(ctx context.Context, scope ports.Scope, id string) error {
	if _, err := s.store.GetCAPA(ctx, scope, id); err != nil {
		return err
	}
	return s.store.DeleteCAPA(ctx, scope, id)
}

// deriveCAPA overlays the read-time overdue state. pending_verification
// sits outside duestatus's shared terminal set but still suppresses the
// overlay: the record is out of the responsible user's hands.
func (s *TrackerService) deriveCAPA(c types.CAPA) types.CAPA {
	c.DerivedStatus = c.Status
	if c.Status == types.CAPAPendingVerification {
		return c
	}
	if duestatus.IsOverdue(s.now(), c.DueDate, string(c.Status)) {
		c.DerivedStatus = types.CAPAOverdue
	}
	return c
}
