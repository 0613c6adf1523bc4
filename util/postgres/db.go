package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/backoff"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
)

// Tables created by InitSchema, in drop order.
var Tables = []string{"edgesim_ticks", "edgesim_runs"}

// DB wraps a PostgreSQL database connection with utility methods
type DB struct {
	conn   *sql.DB
	config *Config
}

// NewDB creates a new database connection using the provided configuration
func NewDB(config *Config) (*DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	conn, err := sql.Open("postgres", config.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		conn:   conn,
		config: config,
	}, nil
}

// Connect opens the database and pings it until it answers, backing off
// between attempts. It gives up after config.ConnectAttempts failures.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	db, err := NewDB(config)
	if err != nil {
		return nil, err
	}

	log := logger.NewLogger("Postgres")
	b := backoff.New(200*time.Millisecond, 5*time.Second, 2.0)
	err = backoff.Retry(ctx, b, config.ConnectAttempts, func(attempt int) error {
		pingErr := db.Ping(ctx)
		if pingErr != nil {
			log.Warnf("Ping %s:%d failed (attempt %d/%d): %v",
				config.Host, config.Port, attempt, config.ConnectAttempts, pingErr)
		}
		return pingErr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", config.Host, config.Port, err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Connection returns the underlying sql.DB connection
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// InitSchema creates the run and per-tick series tables
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	-- One row per finished simulation run
	CREATE TABLE IF NOT EXISTS edgesim_runs (
		run_id VARCHAR(64) PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		policy VARCHAR(32) NOT NULL,
		cost_multiplier DOUBLE PRECISION NOT NULL DEFAULT 0,
		battery_size DOUBLE PRECISION NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		final_tick INTEGER NOT NULL,
		applications INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		total_pauses INTEGER NOT NULL,
		total_migrations INTEGER NOT NULL,
		mean_overhead DOUBLE PRECISION NOT NULL,
		stddev_overhead DOUBLE PRECISION NOT NULL,
		mean_turnaround DOUBLE PRECISION NOT NULL,
		stddev_turnaround DOUBLE PRECISION NOT NULL,
		migrated_fraction DOUBLE PRECISION NOT NULL,
		completions_by_node JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_edgesim_runs_policy ON edgesim_runs(policy);
	CREATE INDEX IF NOT EXISTS idx_edgesim_runs_created_at ON edgesim_runs(created_at);

	-- Per-tick metrics series of a run
	CREATE TABLE IF NOT EXISTS edgesim_ticks (
		run_id VARCHAR(64) NOT NULL REFERENCES edgesim_runs(run_id) ON DELETE CASCADE,
		tick INTEGER NOT NULL,
		queue_length INTEGER NOT NULL,
		running INTEGER NOT NULL,
		paused INTEGER NOT NULL,
		newly_started INTEGER NOT NULL,
		newly_completed INTEGER NOT NULL,
		cumulative_completed INTEGER NOT NULL,
		newly_paused INTEGER NOT NULL,
		cumulative_paused INTEGER NOT NULL,
		migrations INTEGER NOT NULL,
		cumulative_migrations INTEGER NOT NULL,
		completion_rate DOUBLE PRECISION NOT NULL,
		servers_on INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);
	`

	_, err := db.conn.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// DropSchema removes every table created by InitSchema
func (db *DB) DropSchema(ctx context.Context) error {
	for _, table := range Tables {
		if _, err := db.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// TableExists reports whether table exists in the public schema
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return exists, nil
}

// CountRows returns the number of rows in table
func (db *DB) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}
