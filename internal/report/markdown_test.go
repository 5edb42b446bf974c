package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binliang/learnpilot/internal/types"
)

func sampleReport() *types.PipelineReport {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &types.PipelineReport{
		RunID:      "run-123",
		StartedAt:  started,
		FinishedAt: started.Add(92 * time.Second),
		Settings: types.RunSettings{
			DailyTimeBudgetMinutes: 120,
			TotalDays:              7,
			ReviewIntervalDays:     3,
			UserLevel:              "intermediate",
			Language:               "English",
		},
		Papers: []types.PaperReport{
			{PaperID: "paper_1", Title: "Attention Is All You Need", Status: types.PaperSucceeded},
			{PaperID: "paper_2", Title: "Sparse Transformers", Status: types.PaperSucceeded},
		},
		Graph: &types.DependencyGraph{
			Papers: []types.PaperNode{
				{ID: "paper_1", Title: "Attention Is All You Need", Difficulty: types.DifficultyIntermediate, EstimatedMinutes: 60},
				{ID: "paper_2", Title: "Sparse Transformers", Difficulty: types.DifficultyAdvanced, EstimatedMinutes: 90},
			},
			Concepts: []types.ConceptNode{
				{ID: "attention mechanism", Name: "attention mechanism", Frequency: 2},
				{ID: "sparse attention", Name: "sparse attention", Frequency: 1},
			},
			Order: []string{"paper_1", "paper_2"},
		},
		Schedule: &types.Schedule{
			Days: []types.ScheduleDay{
				{Index: 1, Entries: []types.ScheduleEntry{
					{DayIndex: 1, ItemRef: "paper_1", Title: "Attention Is All You Need", AllocatedMinutes: 60, Kind: types.EntryNew},
					{DayIndex: 1, ItemRef: "paper_2", Title: "Sparse Transformers", AllocatedMinutes: 60, Kind: types.EntryContinued},
				}},
				{Index: 2, Entries: []types.ScheduleEntry{
					{DayIndex: 2, ItemRef: "paper_2", Title: "Sparse Transformers", AllocatedMinutes: 30, Kind: types.EntryContinued},
				}},
				{Index: 4, Entries: []types.ScheduleEntry{
					{DayIndex: 4, ItemRef: "paper_1", Title: "Attention Is All You Need", AllocatedMinutes: 15, Kind: types.EntryReview},
				}},
			},
			DailyBudgetMinutes: 120,
			PlannedDays:        7,
		},
		Usage: types.UsageSummary{
			Calls:        6,
			CacheHits:    2,
			InputTokens:  6000,
			OutputTokens: 600,
			TotalCost:    0.0123,
			ByStage: map[string]types.UsageBucket{
				types.StageTasks:    {Calls: 2, InputTokens: 2000, OutputTokens: 200, Cost: 0.006},
				types.StageAnalysis: {Calls: 2, InputTokens: 2000, OutputTokens: 200, Cost: 0.003},
			},
		},
	}
}

func TestRender_FullReport(t *testing.T) {
	out := Render(sampleReport())

	assert.True(t, strings.HasPrefix(out, "# Study Plan Report\n"))
	assert.Contains(t, out, "- Run: `run-123`")
	assert.Contains(t, out, "- Duration: 1m32s")
	assert.Contains(t, out, "- Papers: 2 processed, 2 succeeded")
	assert.Contains(t, out, "- Level: intermediate, language: English")
	assert.Contains(t, out, "- Daily budget: 120 minutes over 7 days")
	assert.Contains(t, out, "- Outcome: 2 succeeded")
	assert.Contains(t, out, "- Difficulty: 1 intermediate, 1 advanced")
	assert.Contains(t, out, "- Estimated study time: 150 minutes (2.5 hours)")
	assert.Contains(t, out, "*Generated by learnpilot*")
}

func TestRender_ConceptsSortedByFrequency(t *testing.T) {
	out := Render(sampleReport())

	require.Contains(t, out, "## Key Concepts")
	first := strings.Index(out, "**attention mechanism** (2 papers)")
	second := strings.Index(out, "**sparse attention** (1 paper)")
	require.Positive(t, first)
	require.Positive(t, second)
	assert.Less(t, first, second)
}

func TestRender_ReadingOrderNumbered(t *testing.T) {
	out := Render(sampleReport())

	require.Contains(t, out, "## Recommended Reading Order")
	assert.Contains(t, out, "1. **Attention Is All You Need** (intermediate, 60 min)")
	assert.Contains(t, out, "2. **Sparse Transformers** (advanced, 90 min)")
}

func TestRender_ScheduleTable(t *testing.T) {
	out := Render(sampleReport())

	require.Contains(t, out, "## Schedule")
	assert.Contains(t, out, "| Day | Paper | Kind | Minutes |")
	assert.Contains(t, out, "| 1 | Attention Is All You Need | new | 60 |")
	assert.Contains(t, out, "| 1 | Sparse Transformers | continued | 60 |")
	assert.Contains(t, out, "| 2 | Sparse Transformers | continued | 30 |")
	assert.Contains(t, out, "| 4 | Attention Is All You Need | review | 15 |")
}

func TestRender_UsageBreakdown(t *testing.T) {
	out := Render(sampleReport())

	require.Contains(t, out, "## Usage")
	assert.Contains(t, out, "- Model calls: 6 (2 served from cache)")
	assert.Contains(t, out, "- Tokens: 6000 in, 600 out")
	assert.Contains(t, out, "- Total cost: $0.0123")

	// Stage rows come out in pipeline order, not map order.
	analysisRow := strings.Index(out, "| analysis | 2 |")
	tasksRow := strings.Index(out, "| task_generation | 2 |")
	require.Positive(t, analysisRow)
	require.Positive(t, tasksRow)
	assert.Less(t, analysisRow, tasksRow)
}

func TestRender_OverflowNote(t *testing.T) {
	rep := sampleReport()
	rep.Schedule.OverflowDays = 3
	out := Render(rep)

	assert.Contains(t, out, "needs 3 days beyond the configured 7")
}

func TestRender_BudgetNotes(t *testing.T) {
	rep := sampleReport()
	rep.Usage.CostBudget = 5
	out := Render(rep)
	assert.Contains(t, out, "- Cost budget: $5.00\n")
	assert.NotContains(t, out, "deferred)")

	rep.Usage.BudgetExhausted = true
	out = Render(rep)
	assert.Contains(t, out, "- Cost budget: $5.00 (reached; later stages deferred)")
}

func TestRender_WarningsSection(t *testing.T) {
	rep := sampleReport()
	rep.Warnings = []types.Warning{
		{Code: types.WarnCycleBroken, Message: "dependency cycle detected: removed edge paper_2 -> paper_1 (confidence 0.60)"},
		{Code: types.WarnBudgetExceeded, Message: "3 days overflow the configured horizon"},
	}
	out := Render(rep)

	require.Contains(t, out, "## Warnings")
	assert.Contains(t, out, "- **cycle_broken**: dependency cycle detected")
	assert.Contains(t, out, "- **budget_exceeded**: 3 days overflow")
}

func TestRender_NeedsAttention(t *testing.T) {
	rep := sampleReport()
	rep.Papers = append(rep.Papers, types.PaperReport{
		PaperID: "paper_3",
		Title:   "Broken Paper",
		Status:  types.PaperFailed,
		Stages: []types.StageState{
			{Stage: types.StageAnalysis, Status: types.StageFailed, Error: "analysis stage (fatal): bad output"},
			{Stage: types.StageExtraction, Status: types.StageBlocked},
		},
	})
	out := Render(rep)

	require.Contains(t, out, "### Needs attention")
	assert.Contains(t, out, "- **Broken Paper** (`paper_3`): failed - analysis stage (fatal): bad output")
	assert.Contains(t, out, "- Outcome: 2 succeeded, 1 failed")
}

func TestRender_AbortedRunSkipsGraphSections(t *testing.T) {
	rep := sampleReport()
	rep.Graph = nil
	rep.Schedule = nil
	out := Render(rep)

	assert.NotContains(t, out, "## Key Concepts")
	assert.NotContains(t, out, "## Recommended Reading Order")
	assert.NotContains(t, out, "## Schedule")
	// Usage accounting is always present.
	assert.Contains(t, out, "## Usage")
}
