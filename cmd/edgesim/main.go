package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/config"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sweep"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/postgres"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Path to YAML configuration file")
		policy      = flag.String("policy", "", "Override simulation.policy")
		logLevel    = flag.String("log-level", "", "Override log_level (debug, info, warn, error)")
		reportPath  = flag.String("report", "", "Report file; '-' writes to stdout (overrides output.report)")
		metricsAddr = flag.String("metrics", "", "HTTP address for Prometheus metrics (optional, e.g., ':9090')")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("--config is required")
	}
	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *policy != "" {
		if _, err := sim.ParsePolicy(*policy); err != nil {
			log.Fatalf("Invalid --policy: %v", err)
		}
		cfg.Simulation.Policy = *policy
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.SetDefaultLevel(level)
	if *reportPath != "" {
		cfg.Output.Report = *reportPath
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("Starting %s simulation with configuration from %s", cfg.Simulation.Policy, *configFile)
	run, err := execute(ctx, cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Println("Simulation interrupted")
			return
		}
		log.Fatalf("Simulation failed: %v", err)
	}

	if err := writeReport(cfg.Output.Report, run); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
	log.Printf("Run %s finished at tick %d (%d pauses, %d migrations) in %v",
		run.ID, run.Summary.FinalTick, run.Summary.TotalPauses, run.Summary.TotalMigrations, run.Duration)
}

// serveMetrics exposes /metrics on addr in the background.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}

// execute runs the configured simulation and, when postgres is enabled,
// stores the finished run.
func execute(ctx context.Context, cfg *config.Config) (*results.Run, error) {
	simCfg, err := cfg.SimConfig()
	if err != nil {
		return nil, err
	}

	opts := sweep.Options{ExportMetrics: cfg.Metrics.Addr != ""}
	if cfg.Postgres.Enabled {
		pgCfg := cfg.Postgres.Config
		store, err := postgres.OpenStore(ctx, &pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open result store: %w", err)
		}
		defer store.Close()
		opts.Sink = store
	}
	return sweep.Execute(ctx, sweep.JobFor(simCfg, cfg.Output.Label), opts)
}

func writeReport(path string, run *results.Run) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return results.WriteReport(w, run)
}
