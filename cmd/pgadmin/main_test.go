package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/config"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/postgres"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/testutil"
)

// testDatabase returns a fresh database with the schema applied and a
// config pointing at it.
func testDatabase(t *testing.T) (*postgres.DB, *postgres.Config) {
	t.Helper()
	db := testutil.CreateTestDatabase(t)

	cfg := testutil.AdminConfig()
	err := db.Connection().QueryRowContext(context.Background(), "SELECT current_database()").Scan(&cfg.Database)
	require.NoError(t, err)
	return db, cfg
}

func TestCheckArgs(t *testing.T) {
	assert.NoError(t, checkArgs(commandInit, nil))
	assert.NoError(t, checkArgs(commandList, nil))
	assert.NoError(t, checkArgs(commandDelete, []string{"run-1"}))

	assert.ErrorContains(t, checkArgs("migrate", nil), "unknown command")
	assert.ErrorContains(t, checkArgs(commandStatus, []string{"extra"}), "takes no arguments")
	assert.ErrorContains(t, checkArgs(commandDelete, nil), "exactly one run ID")
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Postgres.Host = "db.internal"
	cfg.Postgres.Password = "secret"

	pg := fromConfig(cfg)
	assert.Equal(t, "db.internal", pg.Host)
	assert.Equal(t, 5432, pg.Port)
	assert.Equal(t, "edgesim", pg.User)
	assert.Equal(t, "secret", pg.Password)
	assert.Equal(t, "edgesim", pg.Database)
	assert.Equal(t, "disable", pg.SSLMode)
	assert.Empty(t, cfg.Postgres.User, "the loaded config is not modified")
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := confirm(strings.NewReader(" YES \n"), &out, "Proceed?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), "Proceed? (yes/no)")

	ok, err = confirm(strings.NewReader("no\n"), &out, "Proceed?")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = confirm(strings.NewReader(""), &out, "Proceed?")
	assert.Error(t, err)
}

func TestResetCancelled(t *testing.T) {
	var out bytes.Buffer
	// Declining returns before any connection is attempted.
	cfg := &postgres.Config{Host: "unreachable.invalid", Port: 1, User: "x", Database: "x", SSLMode: "disable"}
	err := executeCommand(context.Background(), commandReset, nil, cfg, options{in: strings.NewReader("no\n"), out: &out})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Operation cancelled.")
}

func TestInitAndVerify(t *testing.T) {
	db, cfg := testDatabase(t)
	ctx := context.Background()
	require.NoError(t, db.DropSchema(ctx))

	var out bytes.Buffer
	err := executeCommand(ctx, commandVerify, nil, cfg, options{out: &out})
	assert.ErrorContains(t, err, "schema verification failed")
	assert.Contains(t, out.String(), "✗ Table 'edgesim_runs' does not exist")

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandInit, nil, cfg, options{out: &out}))
	for _, table := range postgres.Tables {
		assert.Contains(t, out.String(), "✓ Table '"+table+"' created")
	}

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandVerify, nil, cfg, options{out: &out}))
	assert.Contains(t, out.String(), "✓ Index 'idx_edgesim_runs_policy' exists")
	assert.Contains(t, out.String(), "✓ Index 'idx_edgesim_runs_created_at' exists")
}

func TestListDeleteAndReset(t *testing.T) {
	db, cfg := testDatabase(t)
	ctx := context.Background()

	for _, r := range []*results.Run{
		{ID: "greedy-a", Label: "greedy-a", Policy: "greedy", StartedAt: time.Now()},
		{ID: "yolo-b", Label: "yolo-b", Policy: "YOLO", StartedAt: time.Now()},
	} {
		require.NoError(t, db.SaveRun(ctx, r))
	}

	var out bytes.Buffer
	require.NoError(t, executeCommand(ctx, commandList, nil, cfg, options{out: &out}))
	assert.Contains(t, out.String(), "greedy-a")
	assert.Contains(t, out.String(), "yolo-b")

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandList, nil, cfg, options{policy: "YOLO", out: &out}))
	assert.NotContains(t, out.String(), "greedy-a")
	assert.Contains(t, out.String(), "yolo-b")

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandDelete, []string{"greedy-a"}, cfg, options{out: &out}))
	assert.Contains(t, out.String(), "✓ Deleted run greedy-a")
	err := executeCommand(ctx, commandDelete, []string{"greedy-a"}, cfg, options{out: &out})
	assert.ErrorContains(t, err, "no run with ID greedy-a")

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandStatus, nil, cfg, options{out: &out}))
	assert.Contains(t, out.String(), "edgesim_runs: ✓ (1 rows)")

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandReset, nil, cfg, options{yes: true, out: &out}))
	count, err := db.CountRows(ctx, "edgesim_runs")
	require.NoError(t, err)
	assert.Zero(t, count)

	out.Reset()
	require.NoError(t, executeCommand(ctx, commandList, nil, cfg, options{out: &out}))
	assert.Contains(t, out.String(), "No runs stored.")
}
