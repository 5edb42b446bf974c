package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/binliang/learnpilot/internal/llm"
	"github.com/binliang/learnpilot/internal/types"
)

// fakeClient returns canned responses and records the last call so tests
// can assert on prompt construction and tier routing.
type fakeClient struct {
	response string
	usage    llm.Usage
	err      error

	lastPrompt string
	lastTier   llm.ModelTier
}

func (f *fakeClient) GenerateContent(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.lastPrompt = prompt
	f.lastTier = tier
	return f.response, f.err
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	f.lastPrompt = prompt
	f.lastTier = tier
	return f.response, f.usage, f.err
}

func (f *fakeClient) GetModel(tier llm.ModelTier) string {
	if tier == llm.TierAdvanced {
		return "fake-advanced"
	}
	return "fake-standard"
}

func (f *fakeClient) Close() error { return nil }

func samplePaper() types.PaperRecord {
	return types.PaperRecord{
		ID:      "paper_1",
		Title:   "Attention Is All You Need",
		Content: "We propose the Transformer, a model architecture relying entirely on attention.",
	}
}

const validAnalysisJSON = `{
	"title": "Attention Is All You Need",
	"research_problem": "sequence transduction without recurrence",
	"main_method": "self-attention",
	"key_contributions": ["the Transformer architecture"],
	"difficulty": "Advanced",
	"estimated_minutes": 90,
	"core_concepts": ["attention mechanism", "positional encoding"]
}`

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"googleapi 429", &googleapi.Error{Code: 429}, true},
		{"googleapi 503", &googleapi.Error{Code: 503}, true},
		{"googleapi 400", &googleapi.Error{Code: 400}, false},
		{"googleapi 404", &googleapi.Error{Code: 404}, false},
		{"rate limit text", errors.New("rate limit exceeded for project"), true},
		{"quota text", errors.New("Quota exceeded for quota metric"), true},
		{"connection reset text", errors.New("transport: connection reset by peer"), true},
		{"plain failure", errors.New("invalid argument"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stageErr := classify(types.StageAnalysis, tc.err)
			assert.Equal(t, types.StageAnalysis, stageErr.Stage)
			assert.Equal(t, tc.retryable, stageErr.Retryable)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(Transient("analysis", "rate limited", nil)))
	assert.False(t, IsRetryable(Fatal("analysis", "bad output", nil)))
	assert.True(t, IsRetryable(fmt.Errorf("attempt 2: %w", Transient("analysis", "rate limited", nil))))
	assert.False(t, IsRetryable(errors.New("some other error")))
}

func TestErrorMessage(t *testing.T) {
	transient := Transient("extraction", "provider returned status 429", errors.New("googleapi: Error 429"))
	assert.Contains(t, transient.Error(), "extraction stage (transient)")
	assert.Contains(t, transient.Error(), "googleapi: Error 429")

	fatal := Fatal("guidance", "model output failed schema validation", nil)
	assert.Equal(t, "guidance stage (fatal): model output failed schema validation", fatal.Error())
}

func TestTruncateContent(t *testing.T) {
	short := "a short paper"
	assert.Equal(t, short, truncateContent(short))

	exact := strings.Repeat("a", maxContentChars)
	assert.Equal(t, exact, truncateContent(exact))

	long := strings.Repeat("a", maxContentChars+500)
	got := truncateContent(long)
	assert.True(t, strings.HasSuffix(got, "\n[content truncated]"))
	assert.Len(t, got, maxContentChars+len("\n[content truncated]"))
}

func TestTruncateContentKeepsRunesIntact(t *testing.T) {
	// Place a multi-byte rune across the cut position so a naive slice
	// would split it.
	long := strings.Repeat("a", maxContentChars-1) + strings.Repeat("é", 300)
	got := truncateContent(long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "\n[content truncated]"))
}

func TestNewGeminiDefaults(t *testing.T) {
	g := NewGemini(&fakeClient{}, "", "")
	assert.Equal(t, "English", g.language)
	assert.Equal(t, "intermediate", g.userLevel)

	g = NewGemini(&fakeClient{}, "German", "expert")
	assert.Equal(t, "German", g.language)
	assert.Equal(t, "expert", g.userLevel)
}

func TestModelFor(t *testing.T) {
	g := NewGemini(&fakeClient{}, "", "")

	assert.Equal(t, "fake-standard", g.ModelFor(types.StageAnalysis))
	assert.Equal(t, "fake-standard", g.ModelFor(types.StageExtraction))
	assert.Equal(t, "fake-advanced", g.ModelFor(types.StageTasks))
	assert.Equal(t, "fake-advanced", g.ModelFor(types.StageGuidance))
	assert.Equal(t, "fake-standard", g.ModelFor("something else"))
}

func TestAnalyze_Success(t *testing.T) {
	client := &fakeClient{
		response: validAnalysisJSON,
		usage:    llm.Usage{Model: "fake-standard", InputTokens: 1200, OutputTokens: 300},
	}
	g := NewGemini(client, "English", "beginner")

	result, usage, err := g.Analyze(context.Background(), samplePaper())
	require.NoError(t, err)

	assert.Equal(t, "Attention Is All You Need", result.Title)
	// Difficulty is normalized regardless of the model's casing.
	assert.Equal(t, types.DifficultyAdvanced, result.Difficulty)
	assert.Equal(t, 90, result.EstimatedMinutes)
	assert.Equal(t, []string{"attention mechanism", "positional encoding"}, result.CoreConcepts)

	assert.Equal(t, 1200, usage.InputTokens)
	assert.Equal(t, 300, usage.OutputTokens)
	assert.Equal(t, llm.TierStandard, client.lastTier)

	// The prompt carries the paper, the learner level, and the output shape.
	assert.Contains(t, client.lastPrompt, "relying entirely on attention")
	assert.Contains(t, client.lastPrompt, "beginner")
	assert.Contains(t, client.lastPrompt, "estimated_minutes")
}

func TestAnalyze_TitleFallsBackToRecord(t *testing.T) {
	client := &fakeClient{
		response: `{"title":"","research_problem":"p","main_method":"m","difficulty":"intermediate","estimated_minutes":45,"core_concepts":["x"]}`,
	}
	g := NewGemini(client, "", "")

	result, _, err := g.Analyze(context.Background(), samplePaper())
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", result.Title)
}

func TestAnalyze_RejectsSchemaViolations(t *testing.T) {
	client := &fakeClient{response: `{"title":"T"}`}
	g := NewGemini(client, "", "")

	_, _, err := g.Analyze(context.Background(), samplePaper())
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "schema validation")
}

func TestAnalyze_ClassifiesProviderErrors(t *testing.T) {
	client := &fakeClient{
		err:   &googleapi.Error{Code: 429, Message: "rate limited"},
		usage: llm.Usage{Model: "fake-standard"},
	}
	g := NewGemini(client, "", "")

	_, usage, err := g.Analyze(context.Background(), samplePaper())
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	// Usage reporting survives the failure so costs stay accounted.
	assert.Equal(t, "fake-standard", usage.Model)
}

func TestExtractConcepts_CarriesAnalysisContext(t *testing.T) {
	client := &fakeClient{
		response: `{
			"core_concepts": [{"name": "attention mechanism", "importance": 0.9}],
			"prerequisites": [{"name": "linear algebra", "level": "basic"}]
		}`,
	}
	g := NewGemini(client, "", "")

	analysis := &types.AnalysisResult{CoreConcepts: []string{"attention mechanism", "positional encoding"}}
	result, _, err := g.ExtractConcepts(context.Background(), samplePaper(), analysis)
	require.NoError(t, err)

	require.Len(t, result.CoreConcepts, 1)
	assert.Equal(t, "attention mechanism", result.CoreConcepts[0].Name)
	require.Len(t, result.Prerequisites, 1)
	assert.Equal(t, types.PrereqBasic, result.Prerequisites[0].Level)

	assert.Equal(t, llm.TierStandard, client.lastTier)
	assert.Contains(t, client.lastPrompt, "attention mechanism, positional encoding")
}

func TestExtractConcepts_NilAnalysis(t *testing.T) {
	client := &fakeClient{
		response: `{"core_concepts": [], "prerequisites": []}`,
	}
	g := NewGemini(client, "", "")

	_, _, err := g.ExtractConcepts(context.Background(), samplePaper(), nil)
	require.NoError(t, err)
}

func TestGenerateTasks_Success(t *testing.T) {
	client := &fakeClient{
		response: `{
			"paper_id": "whatever-the-model-said",
			"questions": [{"prompt": "Why attention instead of recurrence?", "kind": "comprehension"}],
			"coding_tasks": [{"title": "Implement scaled dot-product attention", "description": "From scratch in your language of choice.", "difficulty": "medium", "estimated_minutes": 60}]
		}`,
		usage: llm.Usage{Model: "fake-advanced", InputTokens: 3000, OutputTokens: 700},
	}
	g := NewGemini(client, "", "")

	graphCtx := types.GraphContext{
		PaperID:       "paper_1",
		OrderPosition: 2,
		OrderTotal:    5,
		Prerequisites: []string{"Neural Machine Translation by Jointly Learning to Align and Translate"},
	}
	sheet, usage, err := g.GenerateTasks(context.Background(), samplePaper(), graphCtx)
	require.NoError(t, err)

	// The sheet is keyed by our paper ID, not whatever the model echoed.
	assert.Equal(t, "paper_1", sheet.PaperID)
	require.Len(t, sheet.Questions, 1)
	require.Len(t, sheet.CodingTasks, 1)
	assert.Equal(t, 3000, usage.InputTokens)

	assert.Equal(t, llm.TierAdvanced, client.lastTier)
	assert.Contains(t, client.lastPrompt, "Jointly Learning to Align and Translate")
	assert.Contains(t, client.lastPrompt, `"order_position": 2`)
}

func TestGenerateTasks_RejectsEmptyQuestions(t *testing.T) {
	client := &fakeClient{response: `{"questions": []}`}
	g := NewGemini(client, "", "")

	_, _, err := g.GenerateTasks(context.Background(), samplePaper(), types.GraphContext{PaperID: "paper_1"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "schema validation")
}

func TestGenerateGuidance_Success(t *testing.T) {
	client := &fakeClient{
		response: `{
			"advice": "Your summary captures the encoder but skips multi-head attention.",
			"study_tips": ["draw the attention matrix for a short sentence"],
			"next_steps": ["re-read section 3.2"]
		}`,
	}
	g := NewGemini(client, "", "")

	feedback, _, err := g.GenerateGuidance(context.Background(), types.Submission{
		PaperID: "paper_1",
		TaskRef: "question 1",
		Content: "The encoder stacks six identical layers.",
	})
	require.NoError(t, err)

	assert.Contains(t, feedback.Advice, "multi-head attention")
	assert.Len(t, feedback.NextSteps, 1)

	assert.Equal(t, llm.TierAdvanced, client.lastTier)
	assert.Contains(t, client.lastPrompt, "The encoder stacks six identical layers.")
	assert.Contains(t, client.lastPrompt, "question 1")
}

func TestStagePromptsTruncateLongPapers(t *testing.T) {
	client := &fakeClient{response: validAnalysisJSON}
	g := NewGemini(client, "", "")

	paper := samplePaper()
	paper.Content = strings.Repeat("attention ", maxContentChars/4)

	_, _, err := g.Analyze(context.Background(), paper)
	require.NoError(t, err)
	assert.Contains(t, client.lastPrompt, "[content truncated]")
}
