// Package types holds the lifecycle record types: controls, control
// tests, findings, and corrective/preventive actions (CAPAs). Every
// record is organization+plan scoped and linked back to an action plan.
package types

import "time"

type ControlType string

const (
	ControlPreventive ControlType = "preventive"
	ControlDetective  ControlType = "detective"
	ControlCorrective ControlType = "corrective"
	ControlDirective  ControlType = "directive"
)

func (t ControlType) Valid() bool {
	switch t {
	case ControlPreventive, ControlDetective, ControlCorrective, ControlDirective:
		return true
	}
	return false
}

type ControlNature string

const (
	NatureManual      ControlNature = "manual"
	NatureAutomated   ControlNature = "automated"
	NatureITDependent ControlNature = "it_dependent"
)

func (n ControlNature) Valid() bool {
	switch n {
	case NatureManual, NatureAutomated, NatureITDependent:
		return true
	}
	return false
}

// Effectiveness is assessed on two independent axes (design and
// operating); there is no combined rating.
type Effectiveness string

const (
	Effective          Effectiveness = "effective"
	PartiallyEffective Effectiveness = "partially_effective"
	Ineffective        Effectiveness = "ineffective"
	NotAssessed        Effectiveness = "not_assessed"
)

func (e Effectiveness) Valid() bool {
	switch e {
	case Effective, PartiallyEffective, Ineffective, NotAssessed:
		return true
	}
	return false
}

type ControlStatus string

const (
	ControlActive      ControlStatus = "active"
	ControlInactive    ControlStatus = "inactive"
	ControlUnderReview ControlStatus = "under_review"
)

func (s ControlStatus) Valid() bool {
	switch s {
	case ControlActive, ControlInactive, ControlUnderReview:
		return true
	}
	return false
}

type Control struct {
	ID                     string        `json:"id"`
	OrganizationID         string        `json:"organization_id"`
	PlanID                 string        `json:"plan_id"`
	ControlCode            string        `json:"control_code"`
	ActionID               string        `json:"action_id"`
	Name                   string        `json:"name"`
	Type                   ControlType   `json:"type"`
	Nature                 ControlNature `json:"nature"`
	Frequency              string        `json:"frequency"`
	DesignEffectiveness    Effectiveness `json:"design_effectiveness"`
	OperatingEffectiveness Effectiveness `json:"operating_effectiveness"`
	Owner                  string        `json:"owner"`
	Performer              string        `json:"performer"`
	Status                 ControlStatus `json:"status"`
}

type ControlTest struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	PlanID         string `json:"plan_id"`
	TestCode       string `json:"test_code"`
	// a test attaches to a control, or directly to an action when no
	// control exists yet
	ControlID string    `json:"control_id"`
	ActionID  string    `json:"action_id"`
	TestDate  time.Time `json:"test_date"`
	Result    string    `json:"result"`
	Tester    string    `json:"tester"`
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type FindingSource string

const (
	SourceControlTest    FindingSource = "control_test"
	SourceInternalAudit  FindingSource = "internal_audit"
	SourceExternalAudit  FindingSource = "external_audit"
	SourceSelfAssessment FindingSource = "self_assessment"
	SourceOther          FindingSource = "other"
)

func (s FindingSource) Valid() bool {
	switch s {
	case SourceControlTest, SourceInternalAudit, SourceExternalAudit, SourceSelfAssessment, SourceOther:
		return true
	}
	return false
}

// FindingStatus states are settable directly by a privileged editor;
// there are no automatic transitions.
type FindingStatus string

const (
	FindingOpen       FindingStatus = "open"
	FindingInProgress FindingStatus = "in_progress"
	FindingResolved   FindingStatus = "resolved"
	FindingClosed     FindingStatus = "closed"
)

func (s FindingStatus) Valid() bool {
	switch s {
	case FindingOpen, FindingInProgress, FindingResolved, FindingClosed:
		return true
	}
	return false
}

type Finding struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	PlanID         string        `json:"plan_id"`
	FindingCode    string        `json:"finding_code"`
	ActionPlanID   string        `json:"action_plan_id"`
	Title          string        `json:"finding_title"`
	Severity       Severity      `json:"severity"`
	Source         FindingSource `json:"source"`
	Status         FindingStatus `json:"status"`
	ControlID      string        `json:"control_id"`
	ControlTestID  string        `json:"control_test_id"`
	RootCause      string        `json:"root_cause"`
}

type CAPAType string

const (
	CAPACorrective CAPAType = "corrective"
	CAPAPreventive CAPAType = "preventive"
	CAPABoth       CAPAType = "both"
)

func (t CAPAType) Valid() bool {
	switch t {
	case CAPACorrective, CAPAPreventive, CAPABoth:
		return true
	}
	return false
}

// CAPAStatus covers the stored states only. The overdue overlay is
// derived per read and never written back; see DerivedStatus.
type CAPAStatus string

const (
	CAPAOpen                CAPAStatus = "open"
	CAPAInProgress          CAPAStatus = "in_progress"
	CAPAPendingVerification CAPAStatus = "pending_verification"
	CAPAVerified            CAPAStatus = "verified"
	CAPAClosed              CAPAStatus = "closed"

	// CAPAOverdue is a read-time overlay, never a stored state.
	CAPAOverdue CAPAStatus = "overdue"
)

func (s CAPAStatus) Valid() bool {
	switch s {
	case CAPAOpen, CAPAInProgress, CAPAPendingVerification, CAPAVerified, CAPAClosed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type CAPA struct {
	ID                    string    `json:"id"`
	OrganizationID        string    `json:"organization_id"`
	PlanID                string    `json:"plan_id"`
	CAPACode              string    `json:"capa_code"`
	ActionPlanID          string    `json:"action_plan_id"`
	Type                  CAPAType  `json:"type"`
	FindingID             string    `json:"finding_id"`
	RootCause             string    `json:"root_cause"`
	ProposedAction        string    `json:"proposed_action"`
	ResponsibleUser       string    `json:"responsible_user"`
	ResponsibleDepartment string    `json:"responsible_department"`
	DueDate               time.Time `json:"due_date"`
	ActualCompletionDate  time.Time `json:"actual_completion_date"`
	Status                CAPAStatus `json:"status"`
	// DerivedStatus is Status, or CAPAOverdue when the due date has
	// passed and the stored state is not terminal. Populated by the
	// tracker on every read; the zero value means not yet derived.
	DerivedStatus        CAPAStatus `json:"derived_status"`
	Priority             Priority   `json:"priority"`
	CompletionPercentage int        `json:"completion_percentage"`
	IsEffective          *bool      `json:"is_effective"`
}
