// Package schedule turns a topologically ordered set of papers into a
// day-by-day study plan under a fixed daily time budget.
package schedule

import (
	"fmt"

	"github.com/binliang/learnpilot/internal/config"
	"github.com/binliang/learnpilot/internal/types"
)

const (
	// MinChunkMinutes is the smallest slice of a split item worth
	// scheduling at the end of a day.
	MinChunkMinutes = 15
	// ReviewSlotMinutes is the time allocated to revisit one previously
	// completed item on a review day.
	ReviewSlotMinutes = 15
)

// Options configure plan construction.
type Options struct {
	DailyBudgetMinutes int
	TotalDays          int
	// ReviewIntervalDays inserts review entries after every N days of
	// new content, referencing items completed 3 and 7 days earlier.
	ReviewIntervalDays int
}

// Build packs the papers of an acyclic dependency graph into study days.
//
// Items are taken in the graph's topological order and each day is
// filled up to the budget before the next one opens, so a paper never
// lands on a day earlier than any of its prerequisites. An item that
// does not fit into the space left on a day is split into continued
// chunks across consecutive days; chunks shorter than MinChunkMinutes
// are not worth starting and move the item to the next day instead.
//
// When everything does not fit into opts.TotalDays the plan keeps
// growing past the horizon and the overflow is reported as a warning,
// never an error. The function is pure: identical inputs produce an
// identical plan.
func Build(g *types.DependencyGraph, opts Options) (*types.Schedule, []types.Warning, error) {
	if opts.DailyBudgetMinutes <= 0 {
		return nil, nil, &config.InvalidConfigurationError{
			Field: "daily_time_budget_minutes", Message: "must be positive",
		}
	}
	if opts.TotalDays <= 0 {
		return nil, nil, &config.InvalidConfigurationError{
			Field: "total_days", Message: "must be positive",
		}
	}
	if opts.ReviewIntervalDays <= 0 {
		return nil, nil, &config.InvalidConfigurationError{
			Field: "review_interval_days", Message: "must be positive",
		}
	}

	budget := opts.DailyBudgetMinutes

	type item struct {
		id      string
		title   string
		minutes int
	}
	items := make([]item, 0, len(g.Order))
	for _, id := range g.Order {
		node := g.Paper(id)
		if node == nil {
			continue
		}
		minutes := node.EstimatedMinutes
		if minutes <= 0 {
			minutes = MinChunkMinutes
		}
		items = append(items, item{id: id, title: node.Title, minutes: minutes})
	}

	days := make([]types.ScheduleDay, 0, opts.TotalDays)
	current := types.ScheduleDay{Index: 1}
	used := 0
	newDays := 0                       // closed days holding new content since the last review
	completion := make(map[string]int) // item ID -> day its final chunk landed on

	dayHasNewContent := func(d types.ScheduleDay) bool {
		for _, e := range d.Entries {
			if e.Kind != types.EntryReview {
				return true
			}
		}
		return false
	}

	// openReviews adds review entries at the top of a freshly opened day
	// when the cadence calls for one.
	openReviews := func() {
		if newDays < opts.ReviewIntervalDays {
			return
		}
		newDays = 0
		for _, back := range []int{7, 3} {
			target := current.Index - back
			if target < 1 {
				continue
			}
			for _, it := range items {
				if completion[it.id] != target {
					continue
				}
				alloc := ReviewSlotMinutes
				if budget-used < alloc {
					alloc = budget - used
				}
				if alloc <= 0 {
					return
				}
				current.Entries = append(current.Entries, types.ScheduleEntry{
					DayIndex:         current.Index,
					ItemRef:          it.id,
					Title:            it.title,
					AllocatedMinutes: alloc,
					Kind:             types.EntryReview,
				})
				used += alloc
			}
		}
	}

	advanceDay := func() {
		if dayHasNewContent(current) {
			newDays++
		}
		days = append(days, current)
		current = types.ScheduleDay{Index: current.Index + 1}
		used = 0
		openReviews()
	}

	for _, it := range items {
		remaining := it.minutes
		split := false
		for remaining > 0 {
			capacity := budget - used
			// A day too full for a meaningful chunk is closed, unless it
			// is empty: an empty day always takes something, or items
			// larger than the whole budget would never make progress.
			if capacity <= 0 || (capacity < MinChunkMinutes && capacity < remaining && used > 0) {
				advanceDay()
				continue
			}

			alloc := remaining
			kind := types.EntryNew
			if alloc > capacity {
				alloc = capacity
				split = true
			}
			if split {
				kind = types.EntryContinued
			}
			current.Entries = append(current.Entries, types.ScheduleEntry{
				DayIndex:         current.Index,
				ItemRef:          it.id,
				Title:            it.title,
				AllocatedMinutes: alloc,
				Kind:             kind,
			})
			used += alloc
			remaining -= alloc
			if remaining == 0 {
				completion[it.id] = current.Index
			}
		}
	}
	if len(current.Entries) > 0 {
		days = append(days, current)
	}

	plan := &types.Schedule{
		Days:               days,
		DailyBudgetMinutes: budget,
		PlannedDays:        opts.TotalDays,
	}

	var warnings []types.Warning
	if len(days) > 0 {
		lastDay := days[len(days)-1].Index
		if lastDay > opts.TotalDays {
			plan.OverflowDays = lastDay - opts.TotalDays
			overflowMinutes := 0
			for _, d := range days {
				if d.Index > opts.TotalDays {
					overflowMinutes += d.TotalMinutes()
				}
			}
			warnings = append(warnings, types.Warning{
				Code: types.WarnBudgetExceeded,
				Message: fmt.Sprintf("plan needs %d days for a %d-day horizon (%d minutes past the budget)",
					lastDay, opts.TotalDays, overflowMinutes),
			})
		}
	}

	return plan, warnings, nil
}
