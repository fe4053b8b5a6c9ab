// Package types holds the organization-specific execution record for one
// taxonomy action within one compliance plan period.
package types

import "time"

type ApprovalStatus string

const (
	ApprovalDraft             ApprovalStatus = "draft"
	ApprovalUnitPending       ApprovalStatus = "unit_pending"
	ApprovalManagementPending ApprovalStatus = "management_pending"
	ApprovalApproved          ApprovalStatus = "approved"
	ApprovalRejected          ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalDraft, ApprovalUnitPending, ApprovalManagementPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

type PlanStatus string

const (
	PlanPlanned    PlanStatus = "planned"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanDelayed    PlanStatus = "delayed"
)

// ActionPlan is 1:1 with its action per (organization, plan period).
// CurrentSituation snapshots the sub-standard status text at creation time;
// later status edits never rewrite it.
type ActionPlan struct {
	ID                 string         `json:"id"`
	OrganizationID     string         `json:"organization_id"`
	PlanID             string         `json:"plan_id"`
	PlanCode           string         `json:"plan_code"`
	ActionID           string         `json:"action_id"`
	PlannedActions     string         `json:"planned_actions"`
	CurrentSituation   string         `json:"current_situation"`
	ResponsibleUnit    string         `json:"responsible_unit"`
	CollaboratingUnits []string       `json:"collaborating_units"`
	CompletionDate     time.Time      `json:"completion_date"`
	Status             PlanStatus     `json:"status"`
	ApprovalStatus     ApprovalStatus `json:"approval_status"`
	ProgressPercentage int            `json:"progress_percentage"`
}
