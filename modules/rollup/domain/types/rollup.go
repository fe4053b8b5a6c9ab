// Package types holds the on-demand aggregate shapes. Nothing here is
// ever materialized; every value is computed fresh from current state.
package types

import "time"

// PlanCounts is the per-action-plan record tally.
type PlanCounts struct {
	Controls     int `json:"controls"`
	ControlTests int `json:"control_tests"`
	Findings     int `json:"findings"`
	CAPAs        int `json:"capas"`
}

// DueCAPA is one CAPA's time-relative view for due-status listings.
type DueCAPA struct {
	ID          string    `json:"id"`
	CAPACode    string    `json:"capa_code"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	DaysOverdue int       `json:"days_overdue,omitempty"`
}

// DueSets partitions the scope's CAPAs into overdue and due-soon. The
// two sets are disjoint: a record past due is never also due soon.
type DueSets struct {
	Overdue []DueCAPA `json:"overdue"`
	DueSoon []DueCAPA `json:"due_soon"`
}
