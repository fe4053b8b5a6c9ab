// Package types holds the four-level compliance taxonomy:
// Category → MainStandard → SubStandard → Action. Categories through
// sub-standards are created once by an administrator and shared by every
// organization; Actions carry per-organization, per-plan instance data.
package types

import "time"

type Category struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type MainStandard struct {
	ID                 string         `json:"id"`
	CategoryID         string         `json:"category_id"`
	Code               string         `json:"code"`
	Title              string         `json:"title"`
	ResponsibleUnits   UnitAssignment `json:"responsible_units"`
	CollaboratingUnits UnitAssignment `json:"collaborating_units"`
}

type SubStandard struct {
	ID                 string         `json:"id"`
	MainStandardID     string         `json:"main_standard_id"`
	Code               string         `json:"code"`
	Title              string         `json:"title"`
	ResponsibleUnits   UnitAssignment `json:"responsible_units"`
	CollaboratingUnits UnitAssignment `json:"collaborating_units"`
}

// SubStandardStatus is organization-scoped and absent until the
// organization records one.
type SubStandardStatus struct {
	SubStandardID               string `json:"sub_standard_id"`
	OrganizationID              string `json:"organization_id"`
	CurrentStatusText           string `json:"current_status_text"`
	ProvidesReasonableAssurance bool   `json:"provides_reasonable_assurance"`
}

type ActionStatus string

const (
	ActionNotStarted ActionStatus = "not_started"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionDelayed    ActionStatus = "delayed"
)

func (s ActionStatus) Valid() bool {
	switch s {
	case ActionNotStarted, ActionInProgress, ActionCompleted, ActionDelayed:
		return true
	}
	return false
}

// Action is the taxonomy leaf. Target/current quantity drive linked-module
// progress; both zero for purely qualitative actions.
type Action struct {
	ID                 string         `json:"id"`
	SubStandardID      string         `json:"sub_standard_id"`
	OrganizationID     string         `json:"organization_id"`
	PlanID             string         `json:"plan_id"`
	Code               string         `json:"code"`
	Description        string         `json:"description"`
	OutputResult       string         `json:"output_result"`
	Status             ActionStatus   `json:"status"`
	TargetDate         time.Time      `json:"target_date"`
	ResponsibleUnits   UnitAssignment `json:"responsible_units"`
	CollaboratingUnits UnitAssignment `json:"collaborating_units"`
	TargetQuantity     int            `json:"target_quantity"`
	CurrentQuantity    int            `json:"current_quantity"`
}

// Quantitative reports whether progress can be derived from quantities.
func (a Action) Quantitative() bool { return a.TargetQuantity > 0 }

// Tree node shapes returned by hierarchy loads. Children are always
// non-empty: branches with no matching descendant are pruned, not returned
// hollow.

type CategoryNode struct {
	Category
	MainStandards []MainStandardNode `json:"main_standards"`
}

type MainStandardNode struct {
	MainStandard
	SubStandards []SubStandardNode `json:"sub_standards"`
}

type SubStandardNode struct {
	SubStandard
	Status  *SubStandardStatus `json:"status,omitempty"`
	Actions []Action           `json:"actions"`
}
