// Package executor defines the boundary to the model-backed stage
// implementations: analyzing papers, extracting concepts, and generating
// study material. The orchestrator only sees this interface; whether a
// result costs money, how prompts are built, and which provider answers
// are all behind it.
package executor

import (
	"context"

	"github.com/binliang/learnpilot/internal/types"
)

// StageExecutor executes the model-backed pipeline stages. Every call
// returns the token usage it consumed; implementations must honor
// context cancellation and deadlines.
type StageExecutor interface {
	// Analyze assesses a paper's difficulty, reading time, and core ideas.
	Analyze(ctx context.Context, paper types.PaperRecord) (*types.AnalysisResult, types.Usage, error)

	// ExtractConcepts maps the concepts a paper teaches and the
	// background it assumes. The analysis result for the same paper is
	// available as context.
	ExtractConcepts(ctx context.Context, paper types.PaperRecord, analysis *types.AnalysisResult) (*types.ExtractionResult, types.Usage, error)

	// GenerateTasks produces a study task sheet for one paper given its
	// place in the dependency graph.
	GenerateTasks(ctx context.Context, paper types.PaperRecord, graphCtx types.GraphContext) (*types.TaskSheet, types.Usage, error)

	// GenerateGuidance reviews a learner submission and returns feedback.
	GenerateGuidance(ctx context.Context, submission types.Submission) (*types.Feedback, types.Usage, error)

	// ModelFor reports which model serves a stage. Cache keys include it
	// so switching models invalidates prior results.
	ModelFor(stage string) string
}
