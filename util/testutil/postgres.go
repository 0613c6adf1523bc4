package testutil

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/postgres"
)

var invalidDBChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// sanitizeDBName converts a test name to a valid PostgreSQL database name:
// at most 63 characters of [a-z0-9_], not starting with a digit.
func sanitizeDBName(testName string) string {
	name := strings.ToLower(invalidDBChars.ReplaceAllString(testName, "_"))
	if len(name) > 0 && name[0] >= '0' && name[0] <= '9' {
		name = "t_" + name
	}
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// AdminConfig is the superuser connection used to create test databases.
// POSTGRES_HOST, POSTGRES_USER and POSTGRES_PASSWORD override the defaults.
func AdminConfig() *postgres.Config {
	config := &postgres.Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "postgres",
		SSLMode:         "disable",
		ConnectAttempts: 1,
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		config.Host = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		config.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		config.Password = v
	}
	return config
}

// CreateTestDatabase creates a fresh database named after the test, applies
// the schema and returns a connection to it. The database is dropped when the
// test completes. The test is skipped when PostgreSQL is not reachable.
func CreateTestDatabase(t *testing.T) *postgres.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}
	if os.Getenv("SKIP_POSTGRES_TESTS") == "1" {
		t.Skip("Skipping PostgreSQL test (SKIP_POSTGRES_TESTS=1)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbName := sanitizeDBName(t.Name())
	adminConfig := AdminConfig()
	adminDB, err := postgres.Connect(ctx, adminConfig)
	if err != nil {
		t.Skipf("Skipping test - PostgreSQL not available: %v", err)
		return nil
	}

	_, _ = adminDB.Connection().ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName))
	_, err = adminDB.Connection().ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName))
	adminDB.Close()
	if err != nil {
		t.Skipf("Failed to create test database: %v", err)
		return nil
	}

	testConfig := *adminConfig
	testConfig.Database = dbName
	db, err := postgres.Connect(ctx, &testConfig)
	if err != nil {
		t.Skipf("Skipping test - failed to connect to test database: %v", err)
		return nil
	}
	if err := db.InitSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("InitSchema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()

		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		cleanupDB, err := postgres.Connect(cleanupCtx, adminConfig)
		if err != nil {
			t.Logf("Warning: failed to connect for cleanup: %v", err)
			return
		}
		defer cleanupDB.Close()

		if _, err := cleanupDB.Connection().ExecContext(cleanupCtx,
			fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("Warning: failed to drop test database: %v", err)
		}
	})

	return db
}
