// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Stage names in pipeline execution order.
const (
	StageAnalysis   = "analysis"
	StageExtraction = "extraction"
	StageGraph      = "graph"
	StageSchedule   = "schedule"
	StageTasks      = "task_generation"
	StageGuidance   = "guidance"
)

// StageStatus is the execution status of one stage for one paper.
type StageStatus string

// Stage statuses. Blocked is derived at report time for stages that were
// skipped because an upstream stage failed; the state machine itself
// never transitions into it.
const (
	StagePending   StageStatus = "pending"
	StageRunning   StageStatus = "running"
	StageRetrying  StageStatus = "retrying"
	StageSucceeded StageStatus = "succeeded"
	StageCached    StageStatus = "cached"
	StageFailed    StageStatus = "failed"
	StageDeferred  StageStatus = "deferred"
	StageBlocked   StageStatus = "blocked"
)

// Terminal reports whether the status is final for this run.
func (s StageStatus) Terminal() bool {
	switch s {
	case StageSucceeded, StageCached, StageFailed, StageDeferred, StageBlocked:
		return true
	default:
		return false
	}
}

// StageTransition is one recorded status change.
type StageTransition struct {
	From StageStatus `json:"from"`
	To   StageStatus `json:"to"`
	At   time.Time   `json:"at"`
	Note string      `json:"note,omitempty"`
}

// StageState is the execution record of one stage for one paper. History
// is append-only; the newest transition determines Status.
type StageState struct {
	PaperID    string            `json:"paper_id,omitempty"`
	Stage      string            `json:"stage"`
	Status     StageStatus       `json:"status"`
	Attempts   int               `json:"attempts"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitzero"`
	FinishedAt time.Time         `json:"finished_at,omitzero"`
	History    []StageTransition `json:"history,omitempty"`
}

// PaperReport is the per-paper slice of the pipeline report.
type PaperReport struct {
	PaperID string       `json:"paper_id"`
	Title   string       `json:"title"`
	Status  PaperStatus  `json:"status"`
	Stages  []StageState `json:"stages"`
}

// WarningCode classifies a non-fatal condition recorded in the report.
type WarningCode string

// Warning codes.
const (
	WarnCycleBroken    WarningCode = "cycle_broken"
	WarnBudgetExceeded WarningCode = "budget_exceeded"
	WarnPartialFailure WarningCode = "partial_failure"
	WarnCostDeferred   WarningCode = "cost_deferred"
	WarnCanceled       WarningCode = "canceled"
)

// Warning is a non-fatal condition the pipeline recorded instead of
// raising.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// RunSettings is the configuration snapshot embedded in a report.
type RunSettings struct {
	DailyTimeBudgetMinutes int     `json:"daily_time_budget_minutes"`
	TotalDays              int     `json:"total_days"`
	ReviewIntervalDays     int     `json:"review_interval_days"`
	MaxRetryAttempts       int     `json:"max_retry_attempts"`
	MinSuccessRatio        float64 `json:"min_success_ratio"`
	WorkerConcurrency      int     `json:"worker_concurrency"`
	MaxCostBudget          float64 `json:"max_cost_budget_usd"`
	UserLevel              string  `json:"user_level,omitempty"`
	Language               string  `json:"language,omitempty"`
}

// PipelineReport is the complete result of a pipeline run: per-paper
// stage outcomes, the batched artifacts, usage accounting, and every
// warning raised along the way.
type PipelineReport struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Settings   RunSettings `json:"settings"`

	Papers []PaperReport `json:"papers"`
	// Batched holds stage states for the graph and schedule stages, which
	// run once per batch rather than once per paper.
	Batched    []StageState          `json:"batched_stages,omitempty"`
	Graph      *DependencyGraph      `json:"graph,omitempty"`
	Schedule   *Schedule             `json:"schedule,omitempty"`
	TaskSheets map[string]*TaskSheet `json:"task_sheets,omitempty"`
	Usage      UsageSummary          `json:"usage"`
	Warnings   []Warning             `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning with the given code was recorded.
func (r *PipelineReport) HasWarning(code WarningCode) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// PaperByID returns the per-paper report for the given ID, or nil.
func (r *PipelineReport) PaperByID(id string) *PaperReport {
	for i := range r.Papers {
		if r.Papers[i].PaperID == id {
			return &r.Papers[i]
		}
	}
	return nil
}

// SucceededPapers counts papers whose status is succeeded.
func (r *PipelineReport) SucceededPapers() int {
	n := 0
	for _, p := range r.Papers {
		if p.Status == PaperSucceeded {
			n++
		}
	}
	return n
}
