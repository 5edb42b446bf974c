package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binliang/learnpilot/internal/config"
	"github.com/binliang/learnpilot/internal/executor"
	"github.com/binliang/learnpilot/internal/llm"
	"github.com/binliang/learnpilot/internal/pipeline"
	"github.com/binliang/learnpilot/internal/types"
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Get feedback on your answer to a study task",
	Long:  "Sends a learner submission (your written answer or notes for a study task) to the guidance stage and prints the feedback: advice, study tips, and next steps.",
	RunE:  runGuide,
}

var (
	guideSubmission string
	guidePaperID    string
	guideTaskRef    string
	guideLevel      string
	guideLanguage   string
	guideAPIKey     string
)

func init() {
	guideCmd.Flags().StringVarP(&guideSubmission, "submission", "s", "", "Path to a text file with your answer or notes (required)")
	guideCmd.Flags().StringVar(&guidePaperID, "paper-id", "", "Paper the submission belongs to (optional)")
	guideCmd.Flags().StringVar(&guideTaskRef, "task", "", "Task the submission answers, e.g. a question prompt (optional)")
	guideCmd.Flags().StringVar(&guideLevel, "level", "", "Learner level: beginner, intermediate, advanced, or expert")
	guideCmd.Flags().StringVar(&guideLanguage, "language", "", "Language for the feedback")
	guideCmd.Flags().StringVar(&guideAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	if err := guideCmd.MarkFlagRequired("submission"); err != nil {
		panic(fmt.Sprintf("failed to mark submission flag as required: %v", err))
	}

	rootCmd.AddCommand(guideCmd)
}

func runGuide(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	// 1. API key handling
	apiKey := guideAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	// 2. Load the submission
	content, err := os.ReadFile(guideSubmission)
	if err != nil {
		return fmt.Errorf("failed to read submission file %s: %w", guideSubmission, err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return fmt.Errorf("submission file %s has no content", guideSubmission)
	}

	// 3. Run the guidance stage through the orchestrator so the call gets
	// the same retry, caching, and cost accounting as a plan run.
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	cfg := config.DefaultConfig()
	if guideLevel != "" {
		cfg.UserLevel = guideLevel
	}
	if guideLanguage != "" {
		cfg.Language = guideLanguage
	}

	orch, err := pipeline.New(pipeline.Options{
		Config:   cfg,
		Executor: executor.NewGemini(client, cfg.Language, cfg.UserLevel),
	})
	if err != nil {
		return err
	}

	feedback, err := orch.Guidance(ctx, types.Submission{
		PaperID: guidePaperID,
		TaskRef: guideTaskRef,
		Content: string(content),
	})
	if err != nil {
		return fmt.Errorf("guidance failed: %w", err)
	}

	// 4. Print the feedback
	_, _ = fmt.Fprintf(os.Stdout, "%s\n", feedback.Advice)
	if len(feedback.StudyTips) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "\nStudy tips:\n")
		for _, tip := range feedback.StudyTips {
			_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", tip)
		}
	}
	if len(feedback.NextSteps) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "\nNext steps:\n")
		for _, step := range feedback.NextSteps {
			_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", step)
		}
	}
	if len(feedback.Resources) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "\nResources:\n")
		for _, res := range feedback.Resources {
			_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", res)
		}
	}
	if feedback.Motivation != "" {
		_, _ = fmt.Fprintf(os.Stdout, "\n%s\n", feedback.Motivation)
	}

	return nil
}
