package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// ErrRunNotFound is returned when a run ID has no row in edgesim_runs.
var ErrRunNotFound = errors.New("run not found")

// tickBatchSize is the number of series rows sent per COPY statement.
const tickBatchSize = 5000

var tickColumns = []string{
	"run_id", "tick", "queue_length", "running", "paused",
	"newly_started", "newly_completed", "cumulative_completed",
	"newly_paused", "cumulative_paused", "migrations",
	"cumulative_migrations", "completion_rate", "servers_on",
}

// RunInfo is the summary row of a stored run, without its series.
type RunInfo struct {
	RunID     string
	Label     string
	Policy    string
	FinalTick int
	Completed int
	CreatedAt time.Time
}

// SaveRun stores run and its per-tick series in one transaction. Saving a
// run ID that already exists replaces it.
func (db *DB) SaveRun(ctx context.Context, run *results.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run_id cannot be empty")
	}
	if run.Policy == "" {
		return fmt.Errorf("policy cannot be empty")
	}
	locations, err := json.Marshal(run.Summary.CompletionsByNode)
	if err != nil {
		return fmt.Errorf("failed to encode completion locations: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM edgesim_runs WHERE run_id = $1`, run.ID); err != nil {
		return fmt.Errorf("failed to replace run: %w", err)
	}

	query := `
		INSERT INTO edgesim_runs (
			run_id, label, policy, cost_multiplier, battery_size, started_at, duration_ms,
			final_tick, applications, completed, total_pauses, total_migrations,
			mean_overhead, stddev_overhead, mean_turnaround, stddev_turnaround,
			migrated_fraction, completions_by_node
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	s := run.Summary
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, query,
		run.ID, run.Label, run.Policy, run.CostMultiplier, run.BatterySize, startedAt, run.Duration.Milliseconds(),
		s.FinalTick, s.Applications, s.Completed, s.TotalPauses, s.TotalMigrations,
		s.MeanOverhead, s.StdDevOverhead, s.MeanTurnaround, s.StdDevTurnaround,
		s.MigratedFraction, string(locations),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for start := 0; start < len(run.Series); start += tickBatchSize {
		end := min(start+tickBatchSize, len(run.Series))
		if err := copyTicks(ctx, tx, run.ID, run.Series[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// SaveTicks appends series rows to an existing run.
func (db *DB) SaveTicks(ctx context.Context, runID string, series []sim.TickMetrics) error {
	if runID == "" {
		return fmt.Errorf("run_id cannot be empty")
	}
	if len(series) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(series); start += tickBatchSize {
		end := min(start+tickBatchSize, len(series))
		if err := copyTicks(ctx, tx, runID, series[start:end]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ticks: %w", err)
	}
	return nil
}

func copyTicks(ctx context.Context, tx *sql.Tx, runID string, batch []sim.TickMetrics) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("edgesim_ticks", tickColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare tick copy: %w", err)
	}
	defer stmt.Close()

	for _, m := range batch {
		_, err := stmt.ExecContext(ctx,
			runID, m.Tick, m.QueueLength, m.Running, m.Paused,
			m.NewlyStarted, m.NewlyCompleted, m.CumulativeCompleted,
			m.NewlyPaused, m.CumulativePaused, m.Migrations,
			m.CumulativeMigrations, m.CompletionRate, m.ServersOn,
		)
		if err != nil {
			return fmt.Errorf("failed to copy tick %d: %w", m.Tick, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to flush tick copy: %w", err)
	}
	return nil
}

// LoadRun retrieves a run and its series by ID
func (db *DB) LoadRun(ctx context.Context, runID string) (*results.Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("run_id cannot be empty")
	}

	query := `
		SELECT label, policy, cost_multiplier, battery_size, started_at, duration_ms,
			final_tick, applications, completed, total_pauses, total_migrations,
			mean_overhead, stddev_overhead, mean_turnaround, stddev_turnaround,
			migrated_fraction, completions_by_node
		FROM edgesim_runs
		WHERE run_id = $1
	`

	run := &results.Run{ID: runID}
	s := &run.Summary
	var durationMs int64
	var locations []byte
	err := db.conn.QueryRowContext(ctx, query, runID).Scan(
		&run.Label, &run.Policy, &run.CostMultiplier, &run.BatterySize, &run.StartedAt, &durationMs,
		&s.FinalTick, &s.Applications, &s.Completed, &s.TotalPauses, &s.TotalMigrations,
		&s.MeanOverhead, &s.StdDevOverhead, &s.MeanTurnaround, &s.StdDevTurnaround,
		&s.MigratedFraction, &locations,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	s.Policy = run.Policy
	if err := json.Unmarshal(locations, &s.CompletionsByNode); err != nil {
		return nil, fmt.Errorf("failed to decode completion locations: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT tick, queue_length, running, paused, newly_started, newly_completed,
			cumulative_completed, newly_paused, cumulative_paused, migrations,
			cumulative_migrations, completion_rate, servers_on
		FROM edgesim_ticks
		WHERE run_id = $1
		ORDER BY tick
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m sim.TickMetrics
		err := rows.Scan(
			&m.Tick, &m.QueueLength, &m.Running, &m.Paused, &m.NewlyStarted, &m.NewlyCompleted,
			&m.CumulativeCompleted, &m.NewlyPaused, &m.CumulativePaused, &m.Migrations,
			&m.CumulativeMigrations, &m.CompletionRate, &m.ServersOn,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		run.Series = append(run.Series, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ticks: %w", err)
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first. A policy filter of ""
// matches every policy; limit <= 0 means no limit.
func (db *DB) ListRuns(ctx context.Context, policy string, limit int) ([]*RunInfo, error) {
	query := `
		SELECT run_id, label, policy, final_tick, completed, created_at
		FROM edgesim_runs
		WHERE ($1 = '' OR policy = $1)
		ORDER BY created_at DESC, run_id
	`
	args := []any{policy}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.RunID, &info.Label, &info.Policy, &info.FinalTick, &info.Completed, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		runs = append(runs, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run; its ticks go with it
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	if runID == "" {
		return fmt.Errorf("run_id cannot be empty")
	}

	result, err := db.conn.ExecContext(ctx, `DELETE FROM edgesim_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return nil
}
