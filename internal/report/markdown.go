// Package report renders a pipeline report as a human-readable markdown
// study plan: what to read, in what order, on which days, and what the
// run cost.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/binliang/learnpilot/internal/types"
)

const topConceptCount = 10

// Render produces the markdown study report for a run. Sections whose
// inputs are missing (an aborted run has no graph or schedule) are left
// out rather than rendered empty.
func Render(rep *types.PipelineReport) string {
	var b strings.Builder

	b.WriteString("# Study Plan Report\n\n")
	writeRunSummary(&b, rep)
	writeSettings(&b, rep)
	writePapers(&b, rep)
	writeConcepts(&b, rep)
	writeReadingOrder(&b, rep)
	writeSchedule(&b, rep)
	writeWarnings(&b, rep)
	writeUsage(&b, rep)

	b.WriteString("---\n")
	b.WriteString("*Generated by learnpilot*\n")
	return b.String()
}

func writeRunSummary(b *strings.Builder, rep *types.PipelineReport) {
	fmt.Fprintf(b, "- Run: `%s`\n", rep.RunID)
	fmt.Fprintf(b, "- Started: %s\n", rep.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(b, "- Duration: %s\n", rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second))
	fmt.Fprintf(b, "- Papers: %d processed, %d succeeded\n\n", len(rep.Papers), rep.SucceededPapers())
}

func writeSettings(b *strings.Builder, rep *types.PipelineReport) {
	s := rep.Settings
	b.WriteString("## Settings\n\n")
	fmt.Fprintf(b, "- Level: %s, language: %s\n", s.UserLevel, s.Language)
	fmt.Fprintf(b, "- Daily budget: %d minutes over %d days\n", s.DailyTimeBudgetMinutes, s.TotalDays)
	fmt.Fprintf(b, "- Review every %d days\n\n", s.ReviewIntervalDays)
}

func writePapers(b *strings.Builder, rep *types.PipelineReport) {
	if len(rep.Papers) == 0 {
		return
	}
	b.WriteString("## Papers\n\n")

	counts := make(map[types.PaperStatus]int)
	for _, p := range rep.Papers {
		counts[p.Status]++
	}
	var parts []string
	for _, status := range []types.PaperStatus{
		types.PaperSucceeded, types.PaperFailed, types.PaperBlocked,
		types.PaperDeferred, types.PaperPending,
	} {
		if counts[status] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[status], status))
		}
	}
	fmt.Fprintf(b, "- Outcome: %s\n", strings.Join(parts, ", "))

	if rep.Graph != nil {
		diffCounts := make(map[types.Difficulty]int)
		totalMinutes := 0
		for _, p := range rep.Graph.Papers {
			diffCounts[p.Difficulty]++
			totalMinutes += p.EstimatedMinutes
		}
		b.WriteString("- Difficulty: ")
		var diffs []string
		for _, d := range []types.Difficulty{
			types.DifficultyBeginner, types.DifficultyIntermediate,
			types.DifficultyAdvanced, types.DifficultyExpert,
		} {
			if diffCounts[d] > 0 {
				diffs = append(diffs, fmt.Sprintf("%d %s", diffCounts[d], d))
			}
		}
		b.WriteString(strings.Join(diffs, ", "))
		b.WriteString("\n")
		fmt.Fprintf(b, "- Estimated study time: %d minutes (%.1f hours)\n", totalMinutes, float64(totalMinutes)/60)
	}
	b.WriteString("\n")

	writeAttention(b, rep)
}

// writeAttention lists papers that did not make it through, with the
// first stage error as the reason.
func writeAttention(b *strings.Builder, rep *types.PipelineReport) {
	var lines []string
	for _, p := range rep.Papers {
		if p.Status == types.PaperSucceeded {
			continue
		}
		reason := ""
		for _, st := range p.Stages {
			if st.Error != "" {
				reason = st.Error
				break
			}
		}
		line := fmt.Sprintf("- **%s** (`%s`): %s", p.Title, p.PaperID, p.Status)
		if reason != "" {
			line += " - " + reason
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return
	}
	b.WriteString("### Needs attention\n\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func writeConcepts(b *strings.Builder, rep *types.PipelineReport) {
	if rep.Graph == nil || len(rep.Graph.Concepts) == 0 {
		return
	}
	concepts := make([]types.ConceptNode, len(rep.Graph.Concepts))
	copy(concepts, rep.Graph.Concepts)
	sort.SliceStable(concepts, func(i, j int) bool {
		if concepts[i].Frequency != concepts[j].Frequency {
			return concepts[i].Frequency > concepts[j].Frequency
		}
		return concepts[i].Name < concepts[j].Name
	})
	if len(concepts) > topConceptCount {
		concepts = concepts[:topConceptCount]
	}

	b.WriteString("## Key Concepts\n\n")
	for _, c := range concepts {
		noun := "papers"
		if c.Frequency == 1 {
			noun = "paper"
		}
		fmt.Fprintf(b, "- **%s** (%d %s)\n", c.Name, c.Frequency, noun)
	}
	b.WriteString("\n")
}

func writeReadingOrder(b *strings.Builder, rep *types.PipelineReport) {
	if rep.Graph == nil || len(rep.Graph.Order) == 0 {
		return
	}
	b.WriteString("## Recommended Reading Order\n\n")
	for i, id := range rep.Graph.Order {
		p := rep.Graph.Paper(id)
		if p == nil {
			continue
		}
		fmt.Fprintf(b, "%d. **%s** (%s, %d min)\n", i+1, p.Title, p.Difficulty, p.EstimatedMinutes)
	}
	b.WriteString("\n")
}

func writeSchedule(b *strings.Builder, rep *types.PipelineReport) {
	if rep.Schedule == nil || len(rep.Schedule.Days) == 0 {
		return
	}
	b.WriteString("## Schedule\n\n")
	b.WriteString("| Day | Paper | Kind | Minutes |\n")
	b.WriteString("|-----|-------|------|---------|\n")
	for _, day := range rep.Schedule.Days {
		for _, e := range day.Entries {
			title := e.Title
			if title == "" {
				title = e.ItemRef
			}
			fmt.Fprintf(b, "| %d | %s | %s | %d |\n", day.Index, title, e.Kind, e.AllocatedMinutes)
		}
	}
	b.WriteString("\n")
	if rep.Schedule.OverflowDays > 0 {
		fmt.Fprintf(b, "The plan needs %d days beyond the configured %d.\n\n",
			rep.Schedule.OverflowDays, rep.Schedule.PlannedDays)
	}
}

func writeWarnings(b *strings.Builder, rep *types.PipelineReport) {
	if len(rep.Warnings) == 0 {
		return
	}
	b.WriteString("## Warnings\n\n")
	for _, w := range rep.Warnings {
		fmt.Fprintf(b, "- **%s**: %s\n", w.Code, w.Message)
	}
	b.WriteString("\n")
}

func writeUsage(b *strings.Builder, rep *types.PipelineReport) {
	u := rep.Usage
	b.WriteString("## Usage\n\n")
	fmt.Fprintf(b, "- Model calls: %d (%d served from cache)\n", u.Calls, u.CacheHits)
	fmt.Fprintf(b, "- Tokens: %d in, %d out\n", u.InputTokens, u.OutputTokens)
	fmt.Fprintf(b, "- Total cost: $%.4f\n", u.TotalCost)
	if u.CostBudget > 0 {
		note := ""
		if u.BudgetExhausted {
			note = " (reached; later stages deferred)"
		}
		fmt.Fprintf(b, "- Cost budget: $%.2f%s\n", u.CostBudget, note)
	}
	b.WriteString("\n")

	if len(u.ByStage) == 0 {
		return
	}
	b.WriteString("| Stage | Calls | Tokens in | Tokens out | Cost |\n")
	b.WriteString("|-------|-------|-----------|------------|------|\n")
	for _, stage := range stageOrder(u.ByStage) {
		s := u.ByStage[stage]
		fmt.Fprintf(b, "| %s | %d | %d | %d | $%.4f |\n",
			stage, s.Calls, s.InputTokens, s.OutputTokens, s.Cost)
	}
	b.WriteString("\n")
}

// stageOrder lists the breakdown keys in pipeline order, with anything
// unexpected sorted after.
func stageOrder(byStage map[string]types.UsageBucket) []string {
	canonical := []string{
		types.StageAnalysis, types.StageExtraction, types.StageGraph,
		types.StageSchedule, types.StageTasks, types.StageGuidance,
	}
	var out []string
	seen := make(map[string]bool)
	for _, s := range canonical {
		if _, ok := byStage[s]; ok {
			out = append(out, s)
			seen[s] = true
		}
	}
	var rest []string
	for s := range byStage {
		if !seen[s] {
			rest = append(rest, s)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
