package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/config"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sweep"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/postgres"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML configuration file")
		policies   = flag.String("policies", "", "Comma-separated policies (overrides sweep.policies)")
		costs      = flag.String("costs", "", "Comma-separated cost multipliers (overrides sweep.cost_multipliers)")
		batteries  = flag.String("batteries", "", "Comma-separated battery sizes (overrides sweep.battery_sizes)")
		workers    = flag.Int("workers", 0, "Concurrent simulations (overrides sweep.workers; 0 = one per job)")
		reportDir  = flag.String("report-dir", "", "Write one report per run into this directory")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("--config is required")
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.SetDefaultLevel(cfg.GetLogLevel())

	if *policies != "" {
		cfg.Sweep.Policies = splitList(*policies)
	}
	if *costs != "" {
		if cfg.Sweep.CostMultipliers, err = parseFloats(*costs); err != nil {
			log.Fatalf("Invalid --costs: %v", err)
		}
	}
	if *batteries != "" {
		if cfg.Sweep.BatterySizes, err = parseFloats(*batteries); err != nil {
			log.Fatalf("Invalid --batteries: %v", err)
		}
	}
	if *workers > 0 {
		cfg.Sweep.Workers = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes, err := runSweep(ctx, cfg)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}
	if err := sweep.WriteTable(os.Stdout, outcomes); err != nil {
		log.Fatalf("Failed to write table: %v", err)
	}
	if *reportDir != "" {
		if err := writeReports(*reportDir, outcomes); err != nil {
			log.Fatalf("Failed to write reports: %v", err)
		}
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d simulations failed", failed, len(outcomes))
	}
}

// runSweep expands the configured grid and runs it.
func runSweep(ctx context.Context, cfg *config.Config) ([]sweep.Outcome, error) {
	base, err := cfg.SimConfig()
	if err != nil {
		return nil, err
	}
	policies, err := cfg.SweepPolicies()
	if err != nil {
		return nil, err
	}
	jobs := sweep.Grid(base, policies, cfg.Sweep.CostMultipliers, cfg.Sweep.BatterySizes)

	opts := sweep.Options{Workers: cfg.Sweep.Workers}
	if cfg.Postgres.Enabled {
		pgCfg := cfg.Postgres.Config
		store, err := postgres.OpenStore(ctx, &pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open result store: %w", err)
		}
		defer store.Close()
		opts.Sink = store
	}

	log.Printf("Running %d simulations (%d policies)", len(jobs), len(policies))
	return sweep.Run(ctx, jobs, opts), nil
}

// writeReports writes <label>.txt for every successful run.
func writeReports(dir string, outcomes []sweep.Outcome) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Run == nil {
			continue
		}
		path := filepath.Join(dir, o.Job.Label+".txt")
		if err := writeFile(path, func(w io.Writer) error { return results.WriteReport(w, o.Run) }); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloats(s string) ([]float64, error) {
	parts := splitList(s)
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("%v must not be negative", v)
		}
		out[i] = v
	}
	return out, nil
}

// policyNames is used in the usage text.
func policyNames() string {
	names := make([]string, len(sim.AllPolicies))
	for i, p := range sim.AllPolicies {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --config <file> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs one simulation per policy, cost multiplier and battery size and\n")
		fmt.Fprintf(os.Stderr, "prints a comparison table.\n\n")
		fmt.Fprintf(os.Stderr, "Policies: %s\n\nOptions:\n", policyNames())
		flag.PrintDefaults()
	}
}
