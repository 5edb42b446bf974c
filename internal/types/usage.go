// Package types provides type definitions for structured data used throughout the learnpilot system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Usage is the token accounting for a single external model call.
type Usage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int {
	return u.InputTokens + u.OutputTokens
}

// UsageRecord is one priced external call. PaperID is empty for batched
// stages that are not attributable to a single paper.
type UsageRecord struct {
	Stage        string    `json:"stage"`
	PaperID      string    `json:"paper_id,omitempty"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	Cost         float64   `json:"cost_usd"`
	Timestamp    time.Time `json:"timestamp"`
}

// UsageBucket aggregates records under one key of a breakdown.
type UsageBucket struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost_usd"`
}

// UsageSummary is the full cost accounting for a pipeline run.
type UsageSummary struct {
	Records      []UsageRecord          `json:"records"`
	Calls        int                    `json:"calls"`
	CacheHits    int                    `json:"cache_hits"`
	InputTokens  int                    `json:"input_tokens"`
	OutputTokens int                    `json:"output_tokens"`
	TotalCost    float64                `json:"total_cost_usd"`
	ByStage      map[string]UsageBucket `json:"by_stage,omitempty"`
	ByPaper      map[string]UsageBucket `json:"by_paper,omitempty"`
	// CostBudget echoes the configured ceiling; zero means unlimited.
	CostBudget float64 `json:"cost_budget_usd,omitempty"`
	// BudgetExhausted is set when the ceiling was reached and work was
	// deferred.
	BudgetExhausted bool `json:"budget_exhausted,omitempty"`
}
