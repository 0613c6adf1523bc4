package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// skipIfNoPostgres returns a connected database or skips the test when
// PostgreSQL is not reachable.
func skipIfNoPostgres(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}
	if os.Getenv("SKIP_POSTGRES_TESTS") == "1" {
		t.Skip("Skipping PostgreSQL integration test (SKIP_POSTGRES_TESTS=1)")
	}

	config := &Config{
		Host:            getEnvOrDefault("POSTGRES_HOST", "localhost"),
		Port:            5432,
		User:            getEnvOrDefault("POSTGRES_USER", "postgres"),
		Password:        getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		Database:        getEnvOrDefault("POSTGRES_DB", "postgres"),
		SSLMode:         "disable",
		ConnectAttempts: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	db, err := Connect(ctx, config)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.InitSchema(context.Background()))
	return db
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func testRun(id string) *results.Run {
	return &results.Run{
		ID:             id,
		Label:          "integration",
		Policy:         "greedy",
		CostMultiplier: 1,
		BatterySize:    0,
		StartedAt:      time.Now().Truncate(time.Millisecond),
		Duration:       1500 * time.Millisecond,
		Summary: results.Summary{
			Policy:            "greedy",
			FinalTick:         2,
			Applications:      2,
			Completed:         2,
			MeanOverhead:      0.5,
			CompletionsByNode: []results.NodeCount{{Node: "a", Completed: 2}},
		},
		Series: []sim.TickMetrics{
			{Tick: 0, QueueLength: 1, Running: 1},
			{Tick: 1, Running: 1, CumulativeCompleted: 1, CompletionRate: 0.5},
			{Tick: 2, CumulativeCompleted: 2, CompletionRate: 1},
		},
	}
}

func TestDB_InitSchema_Integration(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()

	require.NoError(t, db.InitSchema(ctx), "InitSchema must be idempotent")
	for _, table := range Tables {
		exists, err := db.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
}

func TestDB_RunLifecycle_Integration(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	id := "it-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { db.DeleteRun(ctx, id) })

	run := testRun(id)
	require.NoError(t, db.SaveRun(ctx, run))
	// Saving again replaces rather than duplicating ticks.
	require.NoError(t, db.SaveRun(ctx, run))

	loaded, err := db.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, run.Policy, loaded.Policy)
	assert.Equal(t, run.Duration, loaded.Duration)
	assert.Equal(t, run.Summary.CompletionsByNode, loaded.Summary.CompletionsByNode)
	assert.Equal(t, run.Series, loaded.Series)

	require.NoError(t, db.SaveTicks(ctx, id, []sim.TickMetrics{{Tick: 3, CumulativeCompleted: 2, CompletionRate: 1}}))
	loaded, err = db.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Len(t, loaded.Series, 4)

	runs, err := db.ListRuns(ctx, "greedy", 0)
	require.NoError(t, err)
	found := false
	for _, r := range runs {
		found = found || r.RunID == id
	}
	assert.True(t, found)

	require.NoError(t, db.DeleteRun(ctx, id))
	_, err = db.LoadRun(ctx, id)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(db.DeleteRun(ctx, id), ErrRunNotFound))
}
