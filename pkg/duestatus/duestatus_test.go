package duestatus

import (
	"testing"
	"time"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestIsOverdue(t *testing.T) {
	cases := []struct {
		name   string
		due    time.Time
		status string
		want   bool
	}{
		{name: "past due in progress", due: now.AddDate(0, 0, -3), status: "in_progress", want: true},
		{name: "past due closed", due: now.AddDate(0, 0, -3), status: "closed", want: false},
		{name: "past due verified", due: now.AddDate(0, 0, -3), status: "verified", want: false},
		{name: "past due completed", due: now.AddDate(0, 0, -10), status: "completed", want: false},
		{name: "past due cancelled", due: now.AddDate(0, 0, -10), status: "cancelled", want: false},
		{name: "due today", due: now, status: "open", want: false},
		{name: "past due under a day", due: now.Add(-13 * time.Hour), status: "open", want: false},
		{name: "due later same day", due: now.Add(6 * time.Hour), status: "open", want: false},
		{name: "future", due: now.AddDate(0, 0, 2), status: "open", want: false},
		{name: "zero due date", due: time.Time{}, status: "open", want: false},
	}
	for _, tc := range cases {
		if got := IsOverdue(now, tc.due, tc.status); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestDaysOverdueWholeDayFloor(t *testing.T) {
	// 1.75 days past due floors to 1.
	due := now.Add(-42 * time.Hour)
	if got := DaysOverdue(now, due); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := DaysOverdue(now, now.AddDate(0, 0, 5)); got != 0 {
		t.Fatalf("future due date must report 0, got %d", got)
	}
	if got := DaysOverdue(now, time.Time{}); got != 0 {
		t.Fatalf("zero due date must report 0, got %d", got)
	}
}

func TestDaysBetweenNegativeFloors(t *testing.T) {
	a := now
	b := now.Add(-25 * time.Hour)
	if got := DaysBetween(a, b); got != -2 {
		t.Fatalf("expected floor of -25h to be -2 days, got %d", got)
	}
}

func TestIsDueSoon(t *testing.T) {
	cases := []struct {
		name   string
		due    time.Time
		window int
		status string
		want   bool
	}{
		{name: "inside default window", due: now.AddDate(0, 0, 5), window: 0, status: "open", want: true},
		{name: "outside default window", due: now.AddDate(0, 0, 9), window: 0, status: "open", want: false},
		{name: "custom window", due: now.AddDate(0, 0, 9), window: 10, status: "open", want: true},
		{name: "already past due", due: now.AddDate(0, 0, -1), window: 0, status: "open", want: false},
		{name: "terminal", due: now.AddDate(0, 0, 2), window: 0, status: "closed", want: false},
		{name: "zero date", due: time.Time{}, window: 0, status: "open", want: false},
	}
	for _, tc := range cases {
		if got := IsDueSoon(now, tc.due, tc.window, tc.status); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
