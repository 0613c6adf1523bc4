package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/config"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/postgres"
)

const (
	commandInit   = "init"
	commandVerify = "verify"
	commandReset  = "reset"
	commandStatus = "status"
	commandList   = "list"
	commandDelete = "delete"
)

// Indexes per table. Must match util/postgres/db.go:InitSchema().
var indexes = map[string][]string{
	"edgesim_runs": {"idx_edgesim_runs_policy", "idx_edgesim_runs_created_at"},
}

// options carries the per-command flags.
type options struct {
	policy string
	limit  int
	yes    bool
	in     io.Reader
	out    io.Writer
}

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML configuration file")
		host       = flag.String("host", "localhost", "PostgreSQL host")
		port       = flag.Int("port", 5432, "PostgreSQL port")
		user       = flag.String("user", "edgesim", "PostgreSQL user")
		password   = flag.String("password", "edgesim", "PostgreSQL password")
		database   = flag.String("database", "edgesim", "PostgreSQL database")
		sslmode    = flag.String("sslmode", "disable", "PostgreSQL SSL mode")
		policy     = flag.String("policy", "", "Only list runs of this policy")
		limit      = flag.Int("limit", 20, "Maximum runs shown by list (0 = all)")
		yes        = flag.Bool("yes", false, "Do not ask for confirmation on reset")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "PostgreSQL database management tool for stored simulation runs.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  init            Initialize database schema (create tables and indexes)\n")
		fmt.Fprintf(os.Stderr, "  verify          Verify database connection and schema\n")
		fmt.Fprintf(os.Stderr, "  reset           Drop and recreate database schema (WARNING: deletes all runs)\n")
		fmt.Fprintf(os.Stderr, "  status          Show database status and statistics\n")
		fmt.Fprintf(os.Stderr, "  list            List stored runs, newest first\n")
		fmt.Fprintf(os.Stderr, "  delete <run-id> Delete a stored run and its series\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Initialize schema using config file\n")
		fmt.Fprintf(os.Stderr, "  %s --config config.yml init\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # List the last 10 look-ahead runs\n")
		fmt.Fprintf(os.Stderr, "  %s --config config.yml --policy look-ahead --limit 10 list\n\n", os.Args[0])
	}

	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: command required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	command := flag.Arg(0)
	if err := checkArgs(command, flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		flag.Usage()
		os.Exit(1)
	}

	var pgConfig *postgres.Config
	if *configFile != "" {
		cfg, err := config.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
		pgConfig = fromConfig(cfg)
	} else {
		pgConfig = &postgres.Config{
			Host:     *host,
			Port:     *port,
			User:     *user,
			Password: *password,
			Database: *database,
			SSLMode:  *sslmode,
		}
	}

	opts := options{policy: *policy, limit: *limit, yes: *yes, in: os.Stdin, out: os.Stdout}
	ctx := context.Background()
	if err := executeCommand(ctx, command, flag.Args()[1:], pgConfig, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// checkArgs validates the command name and its positional arguments.
func checkArgs(command string, args []string) error {
	switch command {
	case commandInit, commandVerify, commandReset, commandStatus, commandList:
		if len(args) != 0 {
			return fmt.Errorf("'%s' takes no arguments", command)
		}
	case commandDelete:
		if len(args) != 1 {
			return fmt.Errorf("'delete' takes exactly one run ID")
		}
	default:
		return fmt.Errorf("unknown command '%s'", command)
	}
	return nil
}

// fromConfig takes the postgres section of cfg, filling unset fields with
// the local development defaults.
func fromConfig(cfg *config.Config) *postgres.Config {
	pgConfig := cfg.Postgres.Config
	defaults := postgres.DefaultConfig()
	if pgConfig.Host == "" {
		pgConfig.Host = defaults.Host
	}
	if pgConfig.Port == 0 {
		pgConfig.Port = defaults.Port
	}
	if pgConfig.User == "" {
		pgConfig.User = defaults.User
	}
	if pgConfig.Database == "" {
		pgConfig.Database = defaults.Database
	}
	if pgConfig.SSLMode == "" {
		pgConfig.SSLMode = defaults.SSLMode
	}
	return &pgConfig
}

func executeCommand(ctx context.Context, command string, args []string, config *postgres.Config, opts options) error {
	if err := checkArgs(command, args); err != nil {
		return err
	}
	switch command {
	case commandInit:
		return initSchema(ctx, config, opts.out)
	case commandVerify:
		return verifyDatabase(ctx, config, opts.out)
	case commandReset:
		return resetSchema(ctx, config, opts)
	case commandStatus:
		return showStatus(ctx, config, opts.out)
	case commandList:
		return listRuns(ctx, config, opts)
	case commandDelete:
		return deleteRun(ctx, config, args[0], opts.out)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func connect(ctx context.Context, config *postgres.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func initSchema(ctx context.Context, config *postgres.Config, out io.Writer) error {
	fmt.Fprintln(out, "Initializing PostgreSQL schema...")
	fmt.Fprintf(out, "  Host: %s:%d\n", config.Host, config.Port)
	fmt.Fprintf(out, "  Database: %s\n", config.Database)
	fmt.Fprintf(out, "  User: %s\n", config.User)

	db, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintln(out, "✓ Connected to database")

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Schema initialized successfully")

	for _, table := range postgres.Tables {
		exists, err := db.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("table '%s' was not created", table)
		}
		fmt.Fprintf(out, "✓ Table '%s' created\n", table)
	}

	fmt.Fprintln(out, "\nDatabase schema initialized successfully!")
	return nil
}

func verifyDatabase(ctx context.Context, config *postgres.Config, out io.Writer) error {
	fmt.Fprintln(out, "Verifying PostgreSQL database...")
	fmt.Fprintf(out, "  Host: %s:%d\n", config.Host, config.Port)
	fmt.Fprintf(out, "  Database: %s\n", config.Database)

	db, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintln(out, "✓ Connection successful")

	allTablesExist := true
	for _, table := range postgres.Tables {
		exists, err := db.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if exists {
			fmt.Fprintf(out, "✓ Table '%s' exists\n", table)
		} else {
			fmt.Fprintf(out, "✗ Table '%s' does not exist\n", table)
			allTablesExist = false
		}
	}
	if !allTablesExist {
		fmt.Fprintln(out, "\nSchema is incomplete. Run 'init' command to create tables.")
		return fmt.Errorf("schema verification failed")
	}

	for table, idxList := range indexes {
		for _, idx := range idxList {
			exists, err := indexExists(ctx, db, table, idx)
			if err != nil {
				return fmt.Errorf("failed to check index %s: %w", idx, err)
			}
			if exists {
				fmt.Fprintf(out, "✓ Index '%s' exists\n", idx)
			} else {
				fmt.Fprintf(out, "✗ Index '%s' does not exist\n", idx)
			}
		}
	}

	fmt.Fprintln(out, "\nDatabase verification complete!")
	return nil
}

// confirm asks a yes/no question on in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s (yes/no): ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false, fmt.Errorf("failed to read input")
	}
	return strings.ToLower(strings.TrimSpace(scanner.Text())) == "yes", nil
}

func resetSchema(ctx context.Context, config *postgres.Config, opts options) error {
	out := opts.out
	if !opts.yes {
		fmt.Fprintln(out, "WARNING: This will delete all stored runs!")
		ok, err := confirm(opts.in, out, "Are you sure you want to continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Operation cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "\nResetting PostgreSQL schema...")
	fmt.Fprintf(out, "  Host: %s:%d\n", config.Host, config.Port)
	fmt.Fprintf(out, "  Database: %s\n", config.Database)

	db, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DropSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Dropped existing tables")

	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "✓ Schema recreated successfully")

	fmt.Fprintln(out, "\nDatabase schema reset complete!")
	return nil
}

func showStatus(ctx context.Context, config *postgres.Config, out io.Writer) error {
	fmt.Fprintln(out, "PostgreSQL Database Status")
	fmt.Fprintln(out, "==========================")
	fmt.Fprintf(out, "Host:     %s:%d\n", config.Host, config.Port)
	fmt.Fprintf(out, "Database: %s\n", config.Database)
	fmt.Fprintf(out, "User:     %s\n", config.User)
	fmt.Fprintln(out)

	start := time.Now()
	db, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()
	fmt.Fprintf(out, "Connection: ✓ (latency: %v)\n", time.Since(start))

	var version string
	if err := db.Connection().QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if len(version) > 80 {
		version = version[:77] + "..."
	}
	fmt.Fprintf(out, "Version:    %s\n\n", version)

	fmt.Fprintln(out, "Tables:")
	fmt.Fprintln(out, "-------")
	for _, table := range postgres.Tables {
		exists, err := db.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if !exists {
			fmt.Fprintf(out, "  %s: ✗ (does not exist)\n", table)
			continue
		}
		count, err := db.CountRows(ctx, table)
		if err != nil {
			fmt.Fprintf(out, "  %s: ✓ (exists, unable to count rows)\n", table)
		} else {
			fmt.Fprintf(out, "  %s: ✓ (%d rows)\n", table, count)
		}
	}

	var dbSize string
	err = db.Connection().QueryRowContext(ctx,
		"SELECT pg_size_pretty(pg_database_size($1))", config.Database).Scan(&dbSize)
	if err == nil {
		fmt.Fprintf(out, "\nDatabase Size: %s\n", dbSize)
	}
	return nil
}

func listRuns(ctx context.Context, config *postgres.Config, opts options) error {
	db, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, opts.policy, opts.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(opts.out, "No runs stored.")
		return nil
	}

	tw := tabwriter.NewWriter(opts.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tLABEL\tPOLICY\tFINAL TICK\tCOMPLETED\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.Label, r.Policy, r.FinalTick, r.Completed, r.CreatedAt.Format(time.DateTime))
	}
	return tw.Flush()
}

func deleteRun(ctx context.Context, config *postgres.Config, runID string, out io.Writer) error {
	db, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteRun(ctx, runID); err != nil {
		if errors.Is(err, postgres.ErrRunNotFound) {
			return fmt.Errorf("no run with ID %s", runID)
		}
		return err
	}
	fmt.Fprintf(out, "✓ Deleted run %s\n", runID)
	return nil
}

func indexExists(ctx context.Context, db *postgres.DB, tableName, indexName string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT FROM pg_indexes
			WHERE schemaname = 'public'
			AND tablename = $1
			AND indexname = $2
		)
	`
	err := db.Connection().QueryRowContext(ctx, query, tableName, indexName).Scan(&exists)
	return exists, err
}
