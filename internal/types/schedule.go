// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// EntryKind classifies a schedule entry.
type EntryKind string

// Entry kinds. An item that fits inside one day is scheduled as a single
// New entry; an item split across days becomes Continued entries only.
const (
	EntryNew       EntryKind = "new"
	EntryReview    EntryKind = "review"
	EntryContinued EntryKind = "continued"
)

// ScheduleEntry is one block of allocated study time.
type ScheduleEntry struct {
	DayIndex         int       `json:"day_index"` // 1-based
	ItemRef          string    `json:"item_ref"`  // paper ID
	Title            string    `json:"title,omitempty"`
	AllocatedMinutes int       `json:"allocated_minutes"`
	Kind             EntryKind `json:"kind"`
}

// ScheduleDay groups the entries assigned to one day.
type ScheduleDay struct {
	Index   int             `json:"index"` // 1-based
	Entries []ScheduleEntry `json:"entries"`
}

// TotalMinutes sums the allocated minutes of the day's entries.
func (d ScheduleDay) TotalMinutes() int {
	total := 0
	for _, e := range d.Entries {
		total += e.AllocatedMinutes
	}
	return total
}

// Schedule is the day-by-day study plan produced by the scheduler.
type Schedule struct {
	Days []ScheduleDay `json:"days"`
	// DailyBudgetMinutes and PlannedDays echo the configuration the
	// schedule was built against.
	DailyBudgetMinutes int `json:"daily_budget_minutes"`
	PlannedDays        int `json:"planned_days"`
	// OverflowDays counts days past PlannedDays that were needed to fit
	// everything. Zero when the plan fits.
	OverflowDays int `json:"overflow_days,omitempty"`
}

// Entries returns all schedule entries flattened in day order.
func (s *Schedule) Entries() []ScheduleEntry {
	var out []ScheduleEntry
	for _, d := range s.Days {
		out = append(out, d.Entries...)
	}
	return out
}

// TotalMinutes sums allocated minutes across all days.
func (s *Schedule) TotalMinutes() int {
	total := 0
	for _, d := range s.Days {
		total += d.TotalMinutes()
	}
	return total
}

// CompletionDay returns the day index on which the last chunk of the
// given item is scheduled, or 0 if the item is not scheduled.
func (s *Schedule) CompletionDay(itemRef string) int {
	day := 0
	for _, d := range s.Days {
		for _, e := range d.Entries {
			if e.ItemRef == itemRef && e.Kind != EntryReview && d.Index > day {
				day = d.Index
			}
		}
	}
	return day
}
