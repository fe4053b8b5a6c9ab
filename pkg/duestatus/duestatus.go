// Package duestatus is the single source of truth for time-relative record
// status. Every dashboard widget and list view derives overdue/due-soon
// through these functions; the derived value is never persisted.
package duestatus

import "time"

// DefaultDueSoonWindowDays is the look-ahead used when a caller does not
// supply its own window.
const DefaultDueSoonWindowDays = 7

const dayMillis = 24 * 60 * 60 * 1000

// Terminal statuses are never overdue regardless of date.
var terminalStatuses = map[string]struct{}{
	"closed":    {},
	"verified":  {},
	"completed": {},
	"cancelled": {},
}

func IsTerminal(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// DaysBetween returns whole days from a to b, flooring the millisecond
// difference. Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	ms := b.UnixMilli() - a.UnixMilli()
	if ms >= 0 {
		return int(ms / dayMillis)
	}
	// floor, not truncate, for negative spans
	return int((ms - dayMillis + 1) / dayMillis)
}

// IsOverdue reports whether a record with the given due date and stored
// status should read as overdue at now.
func IsOverdue(now time.Time, dueDate time.Time, status string) bool {
	if dueDate.IsZero() || IsTerminal(status) {
		return false
	}
	return DaysBetween(dueDate, now) > 0
}

// DaysOverdue is zero for records that are not yet past due.
func DaysOverdue(now time.Time, dueDate time.Time) int {
	if dueDate.IsZero() {
		return 0
	}
	d := DaysBetween(dueDate, now)
	if d < 0 {
		return 0
	}
	return d
}

// IsDueSoon reports whether dueDate falls within windowDays from now for a
// record that is not already past due and not terminal. windowDays <= 0
// selects the default window.
func IsDueSoon(now time.Time, dueDate time.Time, windowDays int, status string) bool {
	if dueDate.IsZero() || IsTerminal(status) {
		return false
	}
	if windowDays <= 0 {
		windowDays = DefaultDueSoonWindowDays
	}
	remaining := DaysBetween(now, dueDate)
	return remaining >= 0 && remaining <= windowDays
}
