package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/binliang/learnpilot/internal/types"
)

// Run status constants for persisted runs.
const (
	RunStatusCompleted = "completed"
	RunStatusPartial   = "partial"
	RunStatusAborted   = "aborted"
)

// Run is one persisted pipeline run. Report carries the full
// PipelineReport; the remaining columns exist so runs can be listed
// without decoding it.
type Run struct {
	ID             uuid.UUID             `json:"id"`
	Status         string                `json:"status"`
	PaperCount     int                   `json:"paper_count"`
	SucceededCount int                   `json:"succeeded_count"`
	TotalCostUSD   float64               `json:"total_cost_usd"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     time.Time             `json:"finished_at"`
	Report         *types.PipelineReport `json:"report,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}

// RunSummary is a lightweight view of a run for listing
type RunSummary struct {
	ID             uuid.UUID `json:"id"`
	Status         string    `json:"status"`
	PaperCount     int       `json:"paper_count"`
	SucceededCount int       `json:"succeeded_count"`
	TotalCostUSD   float64   `json:"total_cost_usd"`
	StartedAt      time.Time `json:"started_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// runStatus derives the persisted status from the report outcome.
func runStatus(rep *types.PipelineReport) string {
	switch {
	case rep.Graph == nil:
		return RunStatusAborted
	case rep.SucceededPapers() < len(rep.Papers):
		return RunStatusPartial
	default:
		return RunStatusCompleted
	}
}

// SaveReport persists a finished pipeline run: the run row with the full
// report JSON, one stage_states row per stage attempt, and one
// usage_records row per priced call. Saving the same run again replaces
// the previous rows.
func (db *DB) SaveReport(ctx context.Context, rep *types.PipelineReport) (uuid.UUID, error) {
	runID, err := uuid.Parse(rep.RunID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q: %w", rep.RunID, err)
	}

	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, status, paper_count, succeeded_count, total_cost_usd,
		                   started_at, finished_at, report)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     status = EXCLUDED.status,
		     paper_count = EXCLUDED.paper_count,
		     succeeded_count = EXCLUDED.succeeded_count,
		     total_cost_usd = EXCLUDED.total_cost_usd,
		     started_at = EXCLUDED.started_at,
		     finished_at = EXCLUDED.finished_at,
		     report = EXCLUDED.report`,
		runID, runStatus(rep), len(rep.Papers), rep.SucceededPapers(),
		rep.Usage.TotalCost, rep.StartedAt, rep.FinishedAt, reportJSON,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save run: %w", err)
	}

	// Clear existing related data if updating
	_, _ = tx.Exec(ctx, "DELETE FROM stage_states WHERE run_id = $1", runID)
	_, _ = tx.Exec(ctx, "DELETE FROM usage_records WHERE run_id = $1", runID)

	for _, p := range rep.Papers {
		for _, st := range p.Stages {
			if err := insertStageState(ctx, tx, runID, st); err != nil {
				return uuid.Nil, err
			}
		}
	}
	for _, st := range rep.Batched {
		if err := insertStageState(ctx, tx, runID, st); err != nil {
			return uuid.Nil, err
		}
	}

	for _, rec := range rep.Usage.Records {
		_, err = tx.Exec(ctx,
			`INSERT INTO usage_records (run_id, stage, paper_id, model,
			                            input_tokens, output_tokens, cost_usd, recorded_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			runID, rec.Stage, rec.PaperID, rec.Model,
			rec.InputTokens, rec.OutputTokens, rec.Cost, rec.Timestamp,
		)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return runID, nil
}

func insertStageState(ctx context.Context, tx pgx.Tx, runID uuid.UUID, st types.StageState) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO stage_states (run_id, paper_id, stage, status, attempts, error,
		                           started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		runID, st.PaperID, st.Stage, string(st.Status), st.Attempts, st.Error,
		nullableTime(st.StartedAt), nullableTime(st.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stage state %s/%s: %w", st.PaperID, st.Stage, err)
	}
	return nil
}

// nullableTime maps the zero time to NULL so unstarted stages do not
// persist a bogus timestamp.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// GetRun retrieves a persisted run by ID, including the full report
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var reportJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, status, paper_count, succeeded_count, total_cost_usd,
		        started_at, finished_at, report, created_at
		 FROM runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Status, &run.PaperCount, &run.SucceededCount, &run.TotalCostUSD,
		&run.StartedAt, &run.FinishedAt, &reportJSON, &run.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if reportJSON != nil {
		var rep types.PipelineReport
		if err := json.Unmarshal(reportJSON, &rep); err != nil {
			return nil, fmt.Errorf("failed to decode stored report: %w", err)
		}
		run.Report = &rep
	}

	return &run, nil
}

// ListRuns retrieves recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, status, paper_count, succeeded_count, total_cost_usd, started_at, created_at
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.Status, &run.PaperCount, &run.SucceededCount,
			&run.TotalCostUSD, &run.StartedAt, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ListStageStates retrieves the persisted stage rows for a run,
// optionally filtered by status
func (db *DB) ListStageStates(ctx context.Context, runID uuid.UUID, status *string) ([]types.StageState, error) {
	query := `SELECT paper_id, stage, status, attempts, error, started_at, finished_at
	          FROM stage_states
	          WHERE run_id = $1`
	args := []interface{}{runID}

	if status != nil {
		query += " AND status = $2"
		args = append(args, *status)
	}

	query += " ORDER BY paper_id, stage"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage states: %w", err)
	}
	defer rows.Close()

	var states []types.StageState
	for rows.Next() {
		var st types.StageState
		var startedAt, finishedAt *time.Time

		if err := rows.Scan(&st.PaperID, &st.Stage, &st.Status, &st.Attempts,
			&st.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage state: %w", err)
		}
		if startedAt != nil {
			st.StartedAt = *startedAt
		}
		if finishedAt != nil {
			st.FinishedAt = *finishedAt
		}
		states = append(states, st)
	}
	return states, nil
}

// DeleteRun deletes a run and its stage states and usage records (via cascade)
func (db *DB) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}
