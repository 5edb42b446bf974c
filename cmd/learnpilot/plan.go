package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/binliang/learnpilot/internal/config"
	"github.com/binliang/learnpilot/internal/db"
	"github.com/binliang/learnpilot/internal/executor"
	"github.com/binliang/learnpilot/internal/ingestion"
	"github.com/binliang/learnpilot/internal/llm"
	"github.com/binliang/learnpilot/internal/observability"
	"github.com/binliang/learnpilot/internal/pipeline"
	"github.com/binliang/learnpilot/internal/report"
	"github.com/binliang/learnpilot/internal/schemas"
	"github.com/binliang/learnpilot/internal/types"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a study plan from a directory of papers",
	Long: `Runs the full planning pipeline over every markdown paper in the input
directory: analysis -> concept extraction -> dependency graph -> schedule ->
study tasks. Writes graph.json, schedule.json, tasks/<paper-id>.json,
report.json, and report.md to the output directory.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runPlanCmd,
}

var (
	planConfigPath      string
	planInputDir        string
	planOutputDir       string
	planDailyMinutes    int
	planTotalDays       int
	planReviewInterval  int
	planUserLevel       string
	planLanguage        string
	planMaxCostBudget   float64
	planMinSuccessRatio float64
	planConcurrency     int
	planAPIKey          string
	planDatabaseURL     string
	planVerbose         bool
)

func init() {
	// Config file flag (processed first)
	planCmd.Flags().StringVar(&planConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	planCmd.Flags().StringVarP(&planInputDir, "input", "i", "", "Directory of markdown papers to plan (required)")
	planCmd.Flags().StringVarP(&planOutputDir, "output", "o", "study_plan", "Directory to write plan artifacts to")
	planCmd.Flags().IntVar(&planDailyMinutes, "daily-minutes", 0, "Minutes of study time available per day")
	planCmd.Flags().IntVar(&planTotalDays, "days", 0, "Number of days the plan covers")
	planCmd.Flags().IntVar(&planReviewInterval, "review-interval", 0, "Days between review sessions for each paper")
	planCmd.Flags().StringVar(&planUserLevel, "level", "", "Learner level: beginner, intermediate, advanced, or expert")
	planCmd.Flags().StringVar(&planLanguage, "language", "", "Language for generated study material")
	planCmd.Flags().Float64Var(&planMaxCostBudget, "max-cost", 0, "Cost ceiling in USD for model calls (0 = unlimited)")
	planCmd.Flags().Float64Var(&planMinSuccessRatio, "min-success-ratio", 0, "Minimum fraction of papers that must pass analysis and extraction")
	planCmd.Flags().IntVar(&planConcurrency, "concurrency", 0, "Maximum papers processed concurrently")
	planCmd.Flags().BoolVarP(&planVerbose, "verbose", "v", false, "Print detailed progress information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	planCmd.Flags().StringVar(&planAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for run persistence and the cross-run stage cache
	planCmd.Flags().StringVar(&planDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	if err := planCmd.MarkFlagRequired("input"); err != nil {
		panic(fmt.Sprintf("failed to mark input flag as required: %v", err))
	}

	rootCmd.AddCommand(planCmd)
}

func runPlanCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if planConfigPath != "" {
		loadedCfg, err := config.LoadConfig(planConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
		if planVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", planConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	// Only override if the flag was explicitly set
	if cmd.Flags().Changed("daily-minutes") {
		cfg.DailyTimeBudgetMinutes = planDailyMinutes
	}
	if cmd.Flags().Changed("days") {
		cfg.TotalDays = planTotalDays
	}
	if cmd.Flags().Changed("review-interval") {
		cfg.ReviewIntervalDays = planReviewInterval
	}
	if cmd.Flags().Changed("level") {
		cfg.UserLevel = planUserLevel
	}
	if cmd.Flags().Changed("language") {
		cfg.Language = planLanguage
	}
	if cmd.Flags().Changed("max-cost") {
		cfg.MaxCostBudget = planMaxCostBudget
	}
	if cmd.Flags().Changed("min-success-ratio") {
		cfg.MinSuccessRatio = planMinSuccessRatio
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.WorkerConcurrency = planConcurrency
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = planAPIKey
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = planDatabaseURL
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = planVerbose
	}

	// Step 3: Fill unset values from defaults and validate
	cfg = cfg.MergeWithDefaults(config.DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Step 4: API key handling
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	// Step 5: Load papers
	papers, err := ingestion.LoadDirectory(planInputDir)
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		return fmt.Errorf("no markdown papers found in %s", planInputDir)
	}
	_, _ = fmt.Fprintf(os.Stdout, "Loaded %d papers from %s\n", len(papers), planInputDir)

	// Step 6: Build the stage executor
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	exec := executor.NewGemini(client, cfg.Language, cfg.UserLevel)

	// Step 7: Optional database for persistence and the shared stage cache.
	// A missing or unreachable database degrades to the in-memory cache.
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	var database *db.DB
	var cache pipeline.Cache
	if cfg.DatabaseURL != "" {
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Warning: database unavailable, falling back to in-memory cache: %v\n", err)
			database = nil
		} else {
			defer database.Close()
			if err := database.EnsureSchema(ctx); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Warning: database unavailable, falling back to in-memory cache: %v\n", err)
				database.Close()
				database = nil
			} else {
				cache = db.NewStageCache(database, cfg.CacheTTL.Std())
			}
		}
	}

	// Step 8: Run the pipeline
	var onProgress pipeline.ProgressCallback
	if cfg.Verbose {
		onProgress = func(ev pipeline.ProgressEvent) {
			if ev.PaperID != "" {
				_, _ = fmt.Fprintf(os.Stdout, "[%s] %s: %s\n", ev.Stage, ev.PaperID, ev.Message)
				return
			}
			_, _ = fmt.Fprintf(os.Stdout, "[%s] %s\n", ev.Stage, ev.Message)
		}
	}

	orch, err := pipeline.New(pipeline.Options{
		Config:     cfg,
		Executor:   exec,
		Cache:      cache,
		OnProgress: onProgress,
	})
	if err != nil {
		return err
	}

	rep, runErr := orch.Run(ctx, papers)

	// Step 9: Write artifacts. A partial run still produces a report worth
	// keeping, so outputs are written before the run error is surfaced.
	if rep != nil {
		if err := writeOutputs(planOutputDir, rep); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(os.Stdout, "Plan artifacts written to %s\n", planOutputDir)

		if database != nil {
			if _, err := database.SaveReport(ctx, rep); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "Warning: failed to persist run: %v\n", err)
			} else if cfg.Verbose {
				_, _ = fmt.Fprintf(os.Stdout, "Run %s persisted to database\n", rep.RunID)
			}
		}

		printer := observability.NewPrinter(os.Stdout)
		printer.PrintPaperStatus(rep)
		printer.PrintGraph(rep.Graph)
		printer.PrintSchedule(rep.Schedule)
		printer.PrintWarnings(rep.Warnings)
		printer.PrintUsage(rep.Usage)
	}

	return runErr
}

// writeOutputs writes the plan artifacts to dir: graph.json and
// schedule.json when the batched stages produced them, one task sheet per
// paper under tasks/, the structured report.json, and the human-readable
// report.md.
func writeOutputs(dir string, rep *types.PipelineReport) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	if rep.Graph != nil {
		if err := writeJSONArtifact(filepath.Join(dir, "graph.json"), rep.Graph, "schemas/graph.schema.json"); err != nil {
			return err
		}
	}
	if rep.Schedule != nil {
		if err := writeJSONArtifact(filepath.Join(dir, "schedule.json"), rep.Schedule, "schemas/schedule.schema.json"); err != nil {
			return err
		}
	}

	if len(rep.TaskSheets) > 0 {
		tasksDir := filepath.Join(dir, "tasks")
		if err := os.MkdirAll(tasksDir, 0755); err != nil {
			return fmt.Errorf("failed to create tasks directory %s: %w", tasksDir, err)
		}
		for paperID, sheet := range rep.TaskSheets {
			if err := writeJSONArtifact(filepath.Join(tasksDir, paperID+".json"), sheet, ""); err != nil {
				return err
			}
		}
	}

	if err := writeJSONArtifact(filepath.Join(dir, "report.json"), rep, "schemas/report.schema.json"); err != nil {
		return err
	}

	md := report.Render(rep)
	reportPath := filepath.Join(dir, "report.md")
	if err := os.WriteFile(reportPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", reportPath, err)
	}

	return nil
}

// writeJSONArtifact marshals v to path and, when schemaRel names a schema
// that can be found, validates the written file against it. Validation
// failures are errors; an unlocatable or unloadable schema only warns.
func writeJSONArtifact(path string, v any, schemaRel string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if schemaRel == "" {
		return nil
	}
	schemaPath := schemas.ResolveSchemaPath(schemaRel)
	if schemaPath == "" {
		return nil
	}
	if err := schemas.ValidateJSON(schemaPath, path); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			return fmt.Errorf("%s does not validate against its schema: %w", filepath.Base(path), err)
		}
		_, _ = fmt.Fprintf(os.Stderr, "Warning: could not validate %s against schema: %v\n", filepath.Base(path), err)
	}
	return nil
}
