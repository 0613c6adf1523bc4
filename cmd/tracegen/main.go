package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/config"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/trace"
)

const (
	commandWorkload = "workload"
	commandSolar    = "solar"
	commandCompile  = "compile"
)

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(w, "Builds input traces for the simulator.\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  workload  Generate a synthetic workload trace\n")
	fmt.Fprintf(w, "  solar     Generate a synthetic irradiance trace, one column per site\n")
	fmt.Fprintf(w, "  compile   Compile hourly irradiance datasets into a per-tick trace\n")
	fmt.Fprintf(w, "\nRun '%s <command> -h' for the options of a command.\n\n", os.Args[0])
	fmt.Fprintf(w, "Examples:\n")
	fmt.Fprintf(w, "  %s workload --count 5000 --seed 7 --out workload.csv\n", os.Args[0])
	fmt.Fprintf(w, "  %s solar --config config.yml --days 30 --out irradiance.txt\n", os.Args[0])
	fmt.Fprintf(w, "  %s compile --scale 0.001 --out irradiance.txt phoenix.csv tokyo.csv\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	if err := runCommand(os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(command string, args []string) error {
	switch command {
	case commandWorkload:
		return generateWorkload(args)
	case commandSolar:
		return generateSolar(args)
	case commandCompile:
		return compileHourly(args)
	case "-h", "--help", "help":
		usage(os.Stdout)
		return nil
	default:
		return fmt.Errorf("unknown command '%s'", command)
	}
}

func generateWorkload(args []string) error {
	fs := flag.NewFlagSet(commandWorkload, flag.ContinueOnError)
	var (
		out         = fs.String("out", "-", "Output file ('-' for stdout)")
		count       = fs.Int("count", 1000, "Number of applications")
		meanRuntime = fs.Float64("mean-runtime", 60, "Mean runtime in ticks (exponential)")
		minCores    = fs.Int("min-cores", 1, "Minimum cores")
		maxCores    = fs.Int("max-cores", 16, "Maximum cores")
		minMemory   = fs.Int("min-memory", 128, "Minimum memory (MB)")
		maxMemory   = fs.Int("max-memory", 8192, "Maximum memory (MB)")
		seed        = fs.Uint64("seed", 1, "Random seed")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	apps, err := trace.GenerateWorkload(trace.WorkloadSpec{
		Count:       *count,
		MeanRuntime: *meanRuntime,
		MinCores:    *minCores,
		MaxCores:    *maxCores,
		MinMemory:   *minMemory,
		MaxMemory:   *maxMemory,
		Seed:        *seed,
	})
	if err != nil {
		return err
	}
	return writeOutput(*out, func(w io.Writer) error { return trace.WriteWorkload(w, apps) })
}

func generateSolar(args []string) error {
	fs := flag.NewFlagSet(commandSolar, flag.ContinueOnError)
	var (
		out          = fs.String("out", "-", "Output file ('-' for stdout)")
		configFile   = fs.String("config", "", "Take site longitudes from the nodes of this configuration")
		lons         = fs.String("lons", "", "Comma-separated site longitudes")
		days         = fs.Int("days", 7, "Number of days")
		ticksPerHour = fs.Int("ticks-per-hour", 0, "Ticks per hour (0 = simulator default)")
		peak         = fs.Float64("peak", 1000, "Clear-sky irradiance at solar noon (W/m²)")
		sunrise      = fs.Float64("sunrise", 6, "Local sunrise hour")
		sunset       = fs.Float64("sunset", 18, "Local sunset hour")
		cloudAlpha   = fs.Float64("cloud-alpha", 0, "Beta distribution alpha for cloud cover (0 = clear sky)")
		cloudBeta    = fs.Float64("cloud-beta", 0, "Beta distribution beta for cloud cover (0 = clear sky)")
		seed         = fs.Uint64("seed", 1, "Random seed")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	longitudes, err := parseFloats(*lons)
	if err != nil {
		return fmt.Errorf("invalid --lons: %w", err)
	}
	if *configFile != "" {
		cfg, err := config.LoadConfig(*configFile)
		if err != nil {
			return err
		}
		if *ticksPerHour == 0 {
			*ticksPerHour = cfg.Simulation.TicksPerHour
		}
		longitudes = longitudes[:0]
		for _, n := range cfg.NodeSpecs() {
			longitudes = append(longitudes, n.Coord.Lon)
		}
	}

	tr, err := trace.GenerateSolar(trace.SolarSpec{
		Longitudes:   longitudes,
		Days:         *days,
		TicksPerHour: *ticksPerHour,
		Peak:         *peak,
		Sunrise:      *sunrise,
		Sunset:       *sunset,
		CloudAlpha:   *cloudAlpha,
		CloudBeta:    *cloudBeta,
		Seed:         *seed,
	})
	if err != nil {
		return err
	}
	return writeOutput(*out, func(w io.Writer) error { return trace.WriteIrradiance(w, tr) })
}

func compileHourly(args []string) error {
	fs := flag.NewFlagSet(commandCompile, flag.ContinueOnError)
	var (
		out          = fs.String("out", "-", "Output file ('-' for stdout)")
		scale        = fs.Float64("scale", 1, "Multiplier applied to every non-negative reading")
		ticksPerHour = fs.Int("ticks-per-hour", 0, "Ticks per hour (0 = simulator default)")
		limit        = fs.Int("limit", trace.DefaultCompileLimit, "Maximum ticks per dataset")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one hourly dataset is required")
	}

	readers := make([]io.Reader, fs.NArg())
	for i, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		readers[i] = f
	}

	tr, err := trace.CompileHourly(readers, *scale, *ticksPerHour, *limit)
	if err != nil {
		return err
	}
	return writeOutput(*out, func(w io.Writer) error { return trace.WriteIrradiance(w, tr) })
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
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

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
