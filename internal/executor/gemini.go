package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/binliang/learnpilot/internal/llm"
	"github.com/binliang/learnpilot/internal/prompts"
	"github.com/binliang/learnpilot/internal/schemas"
	"github.com/binliang/learnpilot/internal/types"
)

// maxContentChars bounds how much paper text goes into a single prompt.
// Long papers are truncated; the opening sections carry the abstract,
// problem statement, and method, which is what the stages need.
const maxContentChars = 24000

// Gemini is the production StageExecutor backed by the Gemini API.
type Gemini struct {
	client    llm.Client
	language  string
	userLevel string
}

// NewGemini builds a stage executor that answers in the given language
// and calibrates output to the learner's level.
func NewGemini(client llm.Client, language, userLevel string) *Gemini {
	if language == "" {
		language = "English"
	}
	if userLevel == "" {
		userLevel = "intermediate"
	}
	return &Gemini{client: client, language: language, userLevel: userLevel}
}

// Analyze assesses difficulty, reading time, and core ideas of a paper.
func (g *Gemini) Analyze(ctx context.Context, paper types.PaperRecord) (*types.AnalysisResult, types.Usage, error) {
	schema := llm.PaperAnalysisSchema()
	preamble := prompts.MustGet("analysis.json", "analyze-paper")
	schema.Description = prompts.Format(preamble, map[string]string{
		"Title":     paper.Title,
		"Language":  g.language,
		"UserLevel": g.userLevel,
	})
	prompt := llm.BuildExtractionPrompt(schema, truncateContent(paper.Content))

	raw, usage, err := g.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, toUsage(usage), classify(types.StageAnalysis, err)
	}
	if err := schemas.ValidateStageOutput(types.StageAnalysis, raw); err != nil {
		return nil, toUsage(usage), Fatal(types.StageAnalysis, "model output failed schema validation", err)
	}
	var out types.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, toUsage(usage), Fatal(types.StageAnalysis, "model output is not valid analysis JSON", err)
	}
	out.Difficulty = types.ParseDifficulty(string(out.Difficulty))
	if out.Title == "" {
		out.Title = paper.Title
	}
	return &out, toUsage(usage), nil
}

// ExtractConcepts maps taught concepts, prerequisites, and relationships.
func (g *Gemini) ExtractConcepts(ctx context.Context, paper types.PaperRecord, analysis *types.AnalysisResult) (*types.ExtractionResult, types.Usage, error) {
	known := ""
	if analysis != nil {
		known = strings.Join(analysis.CoreConcepts, ", ")
	}
	schema := llm.ConceptExtractionSchema()
	preamble := prompts.MustGet("extraction.json", "extract-concepts")
	schema.Description = prompts.Format(preamble, map[string]string{
		"Title":         paper.Title,
		"KnownConcepts": known,
		"UserLevel":     g.userLevel,
	})
	prompt := llm.BuildExtractionPrompt(schema, truncateContent(paper.Content))

	raw, usage, err := g.client.GenerateJSON(ctx, prompt, llm.TierStandard)
	if err != nil {
		return nil, toUsage(usage), classify(types.StageExtraction, err)
	}
	if err := schemas.ValidateStageOutput(types.StageExtraction, raw); err != nil {
		return nil, toUsage(usage), Fatal(types.StageExtraction, "model output failed schema validation", err)
	}
	var out types.ExtractionResult
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, toUsage(usage), Fatal(types.StageExtraction, "model output is not valid extraction JSON", err)
	}
	return &out, toUsage(usage), nil
}

// GenerateTasks produces a task sheet for a paper in its graph context.
func (g *Gemini) GenerateTasks(ctx context.Context, paper types.PaperRecord, graphCtx types.GraphContext) (*types.TaskSheet, types.Usage, error) {
	ctxJSON, err := json.MarshalIndent(graphCtx, "", "  ")
	if err != nil {
		return nil, types.Usage{}, Fatal(types.StageTasks, "failed to encode graph context", err)
	}
	tmpl := prompts.MustGet("tasks.json", "generate-tasks")
	prompt := prompts.Format(tmpl, map[string]string{
		"Title":        paper.Title,
		"Language":     g.language,
		"UserLevel":    g.userLevel,
		"GraphContext": string(ctxJSON),
		"Content":      truncateContent(paper.Content),
	})

	raw, usage, err := g.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, toUsage(usage), classify(types.StageTasks, err)
	}
	if err := schemas.ValidateStageOutput(types.StageTasks, raw); err != nil {
		return nil, toUsage(usage), Fatal(types.StageTasks, "model output failed schema validation", err)
	}
	var out types.TaskSheet
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, toUsage(usage), Fatal(types.StageTasks, "model output is not a valid task sheet", err)
	}
	out.PaperID = paper.ID
	return &out, toUsage(usage), nil
}

// GenerateGuidance reviews a learner submission and returns feedback.
func (g *Gemini) GenerateGuidance(ctx context.Context, submission types.Submission) (*types.Feedback, types.Usage, error) {
	tmpl := prompts.MustGet("guidance.json", "generate-guidance")
	prompt := prompts.Format(tmpl, map[string]string{
		"PaperID":    submission.PaperID,
		"TaskRef":    submission.TaskRef,
		"Language":   g.language,
		"UserLevel":  g.userLevel,
		"Submission": truncateContent(submission.Content),
	})

	raw, usage, err := g.client.GenerateJSON(ctx, prompt, llm.TierAdvanced)
	if err != nil {
		return nil, toUsage(usage), classify(types.StageGuidance, err)
	}
	if err := schemas.ValidateStageOutput(types.StageGuidance, raw); err != nil {
		return nil, toUsage(usage), Fatal(types.StageGuidance, "model output failed schema validation", err)
	}
	var out types.Feedback
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, toUsage(usage), Fatal(types.StageGuidance, "model output is not valid feedback JSON", err)
	}
	return &out, toUsage(usage), nil
}

// ModelFor maps stages to the tier that serves them. Analysis and
// extraction run on the standard tier; task generation and guidance need
// the advanced tier's reasoning.
func (g *Gemini) ModelFor(stage string) string {
	switch stage {
	case types.StageTasks, types.StageGuidance:
		return g.client.GetModel(llm.TierAdvanced)
	default:
		return g.client.GetModel(llm.TierStandard)
	}
}

func toUsage(u llm.Usage) types.Usage {
	return types.Usage{Model: u.Model, InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
}

// classify sorts provider failures into transient and fatal. Structured
// status codes win; the substring check catches gRPC errors that only
// surface as text.
func classify(stage string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(stage, "call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return Fatal(stage, "call canceled", err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 408, 429, 500, 502, 503, 504:
			return Transient(stage, fmt.Sprintf("provider returned status %d", gerr.Code), err)
		}
		return Fatal(stage, fmt.Sprintf("provider returned status %d", gerr.Code), err)
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "quota", "exhausted", "unavailable", "overloaded", "connection reset", "timeout", "deadline"} {
		if strings.Contains(msg, marker) {
			return Transient(stage, "transient provider failure", err)
		}
	}
	return Fatal(stage, "model call failed", err)
}

func truncateContent(s string) string {
	if len(s) <= maxContentChars {
		return s
	}
	cut := maxContentChars
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "\n[content truncated]"
}
