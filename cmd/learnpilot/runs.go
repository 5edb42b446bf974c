package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/binliang/learnpilot/internal/db"
	"github.com/binliang/learnpilot/internal/report"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List or inspect persisted pipeline runs",
	Long:  "Lists runs saved to the database by plan invocations. Use --show to print a stored run's report, or --delete to remove a run and its records.",
	RunE:  runRuns,
}

var (
	runsDatabaseURL string
	runsLimit       int
	runsShowID      string
	runsDeleteID    string
)

func init() {
	runsCmd.Flags().StringVar(&runsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list")
	runsCmd.Flags().StringVar(&runsShowID, "show", "", "Print the stored report for this run ID")
	runsCmd.Flags().StringVar(&runsDeleteID, "delete", "", "Delete this run ID and its stage and usage records")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(_ *cobra.Command, _ []string) error {
	if runsShowID != "" && runsDeleteID != "" {
		return fmt.Errorf("--show and --delete are mutually exclusive; provide only one")
	}

	ctx := context.Background()

	if runsDatabaseURL == "" {
		runsDatabaseURL = os.Getenv("DATABASE_URL")
	}
	if runsDatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, runsDatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		return err
	}

	switch {
	case runsShowID != "":
		return showRun(ctx, database, runsShowID)
	case runsDeleteID != "":
		return deleteRun(ctx, database, runsDeleteID)
	default:
		return listRuns(ctx, database, runsLimit)
	}
}

func listRuns(ctx context.Context, database *db.DB, limit int) error {
	runs, err := database.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No persisted runs found.")
		return nil
	}

	_, _ = fmt.Fprintf(os.Stdout, "%-36s  %-9s  %7s  %9s  %9s  %s\n",
		"RUN ID", "STATUS", "PAPERS", "SUCCEEDED", "COST", "STARTED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(os.Stdout, "%-36s  %-9s  %7d  %9d  $%8.4f  %s\n",
			r.ID, r.Status, r.PaperCount, r.SucceededCount, r.TotalCostUSD,
			r.StartedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func showRun(ctx context.Context, database *db.DB, id string) error {
	runID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", id, err)
	}

	run, err := database.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", id)
	}
	if run.Report == nil {
		return fmt.Errorf("run %s has no stored report", id)
	}

	_, _ = fmt.Fprint(os.Stdout, report.Render(run.Report))
	return nil
}

func deleteRun(ctx context.Context, database *db.DB, id string) error {
	runID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", id, err)
	}

	if err := database.DeleteRun(ctx, runID); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "Deleted run %s\n", id)
	return nil
}
