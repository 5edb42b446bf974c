package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/binliang/learnpilot/internal/executor"
	"github.com/binliang/learnpilot/internal/ingestion"
	"github.com/binliang/learnpilot/internal/llm"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single paper without building a plan",
	Long:  "Runs only the analysis stage on one markdown paper: difficulty, estimated reading time, core concepts, and a summary. Useful for previewing a paper before adding it to a study plan.",
	RunE:  runAnalyze,
}

var (
	analyzePaper    string
	analyzeOutput   string
	analyzeLevel    string
	analyzeLanguage string
	analyzeAPIKey   string
)

func init() {
	analyzeCmd.Flags().StringVarP(&analyzePaper, "paper", "p", "", "Path to a markdown paper (required)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "out", "o", "", "Path to write the analysis JSON to (optional, prints to stdout otherwise)")
	analyzeCmd.Flags().StringVar(&analyzeLevel, "level", "", "Learner level: beginner, intermediate, advanced, or expert")
	analyzeCmd.Flags().StringVar(&analyzeLanguage, "language", "", "Language for the generated summary")
	analyzeCmd.Flags().StringVar(&analyzeAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	if err := analyzeCmd.MarkFlagRequired("paper"); err != nil {
		panic(fmt.Sprintf("failed to mark paper flag as required: %v", err))
	}

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	// 1. API key handling
	apiKey := analyzeAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	// 2. Load the paper
	paper, err := ingestion.LoadFile(analyzePaper)
	if err != nil {
		return err
	}

	// 3. Run the analysis stage
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	exec := executor.NewGemini(client, analyzeLanguage, analyzeLevel)
	result, usage, err := exec.Analyze(ctx, paper)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	// 4. Print a short summary
	_, _ = fmt.Fprintf(os.Stdout, "Title:      %s\n", result.Title)
	_, _ = fmt.Fprintf(os.Stdout, "Difficulty: %s\n", result.Difficulty)
	_, _ = fmt.Fprintf(os.Stdout, "Est. time:  %d minutes\n", result.EstimatedMinutes)
	if len(result.CoreConcepts) > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "Concepts:   %s\n", strings.Join(result.CoreConcepts, ", "))
	}
	if usage.TotalTokens() > 0 {
		_, _ = fmt.Fprintf(os.Stdout, "Tokens:     %d in / %d out (%s)\n", usage.InputTokens, usage.OutputTokens, usage.Model)
	}

	// 5. Write or print the full analysis JSON
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	if analyzeOutput == "" {
		_, _ = fmt.Fprintf(os.Stdout, "%s\n", data)
		return nil
	}

	outputDir := filepath.Dir(analyzeOutput)
	if outputDir != "" && outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
		}
	}
	if err := os.WriteFile(analyzeOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write analysis to %s: %w", analyzeOutput, err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "Output: %s\n", analyzeOutput)

	return nil
}
