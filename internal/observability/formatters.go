// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/binliang/learnpilot/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s for display inside a box line.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// PrintGraph outputs a summary of the dependency graph and its reading order.
func (p *Printer) PrintGraph(g *types.DependencyGraph) {
	if g == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Papers: %d   Concepts: %d   Edges: %d\n\n",
		len(g.Papers), len(g.Concepts), len(g.Edges)))

	sb.WriteString("Reading order:\n")
	count := min(len(g.Order), maxItemsToShow)
	for i := 0; i < count; i++ {
		title := g.Order[i]
		if node := g.Paper(g.Order[i]); node != nil {
			title = node.Title
		}
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, truncate(title, 45)))
	}
	if len(g.Order) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(g.Order)-maxItemsToShow))
	}

	p.printBox("DEPENDENCY GRAPH", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSchedule outputs the day-by-day plan.
func (p *Printer) PrintSchedule(s *types.Schedule) {
	if s == nil || len(s.Days) == 0 {
		return
	}

	var sb strings.Builder
	count := min(len(s.Days), maxItemsToShow)
	for i := 0; i < count; i++ {
		day := s.Days[i]
		sb.WriteString(fmt.Sprintf("Day %d (%d min):\n", day.Index, day.TotalMinutes()))
		for _, e := range day.Entries {
			title := e.Title
			if title == "" {
				title = e.ItemRef
			}
			sb.WriteString(fmt.Sprintf("  • %s (%d min, %s)\n", truncate(title, 30), e.AllocatedMinutes, e.Kind))
		}
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(s.Days) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more days\n", len(s.Days)-maxItemsToShow))
	}
	if s.OverflowDays > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠ %d days overflow the %d-day plan\n", s.OverflowDays, s.PlannedDays))
	}

	p.printBox("STUDY SCHEDULE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPaperStatus outputs the per-paper pipeline outcome, with the
// failing stage for papers that did not succeed.
func (p *Printer) PrintPaperStatus(rep *types.PipelineReport) {
	if rep == nil || len(rep.Papers) == 0 {
		return
	}

	var sb strings.Builder
	for i, paper := range rep.Papers {
		mark := "⚠"
		switch paper.Status {
		case types.PaperSucceeded:
			mark = "✓"
		case types.PaperFailed:
			mark = "✗"
		}
		sb.WriteString(fmt.Sprintf("%s %s (%s)\n", mark, truncate(paper.Title, 40), paper.Status))

		for _, st := range paper.Stages {
			if st.Status == types.StageFailed && st.Error != "" {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", st.Stage, truncate(st.Error, 45)))
			}
		}
		if i < len(rep.Papers)-1 && paper.Status != types.PaperSucceeded {
			sb.WriteString("\n")
		}
	}

	p.printBox("PAPER STATUS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintUsage outputs the cost accounting, per stage.
func (p *Printer) PrintUsage(u types.UsageSummary) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Calls:      %d (%d cached)\n", u.Calls, u.CacheHits))
	sb.WriteString(fmt.Sprintf("Tokens:     %d in / %d out\n", u.InputTokens, u.OutputTokens))
	sb.WriteString(fmt.Sprintf("Total cost: $%.4f\n", u.TotalCost))
	if u.CostBudget > 0 {
		sb.WriteString(fmt.Sprintf("Budget:     $%.2f", u.CostBudget))
		if u.BudgetExhausted {
			sb.WriteString(" (exhausted)")
		}
		sb.WriteString("\n")
	}

	if len(u.ByStage) > 0 {
		sb.WriteString("\n")
		for _, stage := range []string{
			types.StageAnalysis, types.StageExtraction, types.StageGraph,
			types.StageSchedule, types.StageTasks, types.StageGuidance,
		} {
			bucket, ok := u.ByStage[stage]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("%-16s %2d calls  $%.4f\n", stage, bucket.Calls, bucket.Cost))
		}
	}

	p.printBox("USAGE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintWarnings outputs the run's warnings, or a clean bill when there
// are none.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintWarnings(warnings []types.Warning) {
	if len(warnings) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO WARNINGS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d warnings:\n\n", len(warnings)))
	for i, w := range warnings {
		sb.WriteString(fmt.Sprintf("⚠ %s\n", w.Code))
		sb.WriteString(fmt.Sprintf("  %s\n", truncate(w.Message, 45)))
		if i < len(warnings)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("WARNINGS", sb.String())
}
