package results

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

const (
	locationsHeader = "Application Completion Locations"
	sectionRule     = "----------------"
)

// SeriesColumns is the header row of the per-tick section of a report.
var SeriesColumns = []string{
	"Simulated Time",
	"Queue",
	"Current Paused",
	"Cumulative Paused",
	"Current Migrations",
	"Cumulative Migrations",
	"Cumulative Completion",
	"Completion Rate",
}

// WriteReport writes run in the report layout: a "Key: value" header block,
// completion counts per node between a title line and a rule, then one CSV
// row per tick.
func WriteReport(w io.Writer, run *Run) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Policy: %s\n", run.Policy)
	fmt.Fprintf(bw, "Cost Multiplier: %s\n", formatFloat(run.CostMultiplier))
	fmt.Fprintf(bw, "Battery Size: %s\n", formatFloat(run.BatterySize))
	fmt.Fprintf(bw, "Final Tick: %d\n", run.Summary.FinalTick)
	fmt.Fprintf(bw, "Total Pauses: %d\n", run.Summary.TotalPauses)
	fmt.Fprintf(bw, "Total Migrations: %d\n", run.Summary.TotalMigrations)
	fmt.Fprintf(bw, "Mean Overhead: %s\n", formatFloat(run.Summary.MeanOverhead))
	fmt.Fprintf(bw, "%s\n", locationsHeader)
	for _, nc := range run.Summary.CompletionsByNode {
		fmt.Fprintf(bw, "%s: %d\n", nc.Node, nc.Completed)
	}
	fmt.Fprintf(bw, "%s\n", sectionRule)

	cw := csv.NewWriter(bw)
	if err := cw.Write(SeriesColumns); err != nil {
		return err
	}
	for _, m := range run.Series {
		row := []string{
			strconv.Itoa(m.Tick),
			strconv.Itoa(m.QueueLength),
			strconv.Itoa(m.Paused),
			strconv.Itoa(m.CumulativePaused),
			strconv.Itoa(m.Migrations),
			strconv.Itoa(m.CumulativeMigrations),
			strconv.Itoa(m.CumulativeCompleted),
			formatFloat(m.CompletionRate),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadReport parses a report written by WriteReport. Only the fields present
// in the file are filled in.
func ReadReport(r io.Reader) (*Run, error) {
	run := &Run{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	inLocations := false
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if text == locationsHeader {
			inLocations = true
			continue
		}
		if text == sectionRule {
			inLocations = false
			continue
		}
		if strings.HasPrefix(text, SeriesColumns[0]+",") {
			break
		}

		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected \"key: value\", got %q", line, text)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if inLocations {
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("line %d: completion count: %w", line, err)
			}
			run.Summary.CompletionsByNode = append(run.Summary.CompletionsByNode, NodeCount{Node: key, Completed: n})
			continue
		}

		var err error
		switch key {
		case "Policy":
			run.Policy = value
			run.Summary.Policy = value
		case "Cost Multiplier":
			run.CostMultiplier, err = strconv.ParseFloat(value, 64)
		case "Battery Size":
			run.BatterySize, err = strconv.ParseFloat(value, 64)
		case "Final Tick":
			run.Summary.FinalTick, err = strconv.Atoi(value)
		case "Total Pauses":
			run.Summary.TotalPauses, err = strconv.Atoi(value)
		case "Total Migrations":
			run.Summary.TotalMigrations, err = strconv.Atoi(value)
		case "Mean Overhead":
			run.Summary.MeanOverhead, err = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", line, key, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	// The scanner stopped on the series header; the rest is plain CSV.
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		m, err := parseSeriesRow(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		run.Series = append(run.Series, m)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for _, nc := range run.Summary.CompletionsByNode {
		run.Summary.Completed += nc.Completed
	}
	return run, nil
}

func parseSeriesRow(text string) (sim.TickMetrics, error) {
	fields, err := csv.NewReader(strings.NewReader(text)).Read()
	if err != nil {
		return sim.TickMetrics{}, err
	}
	if len(fields) != len(SeriesColumns) {
		return sim.TickMetrics{}, fmt.Errorf("expected %d columns, got %d", len(SeriesColumns), len(fields))
	}
	ints := make([]int, len(fields)-1)
	for i := range ints {
		if ints[i], err = strconv.Atoi(fields[i]); err != nil {
			return sim.TickMetrics{}, fmt.Errorf("column %q: %w", SeriesColumns[i], err)
		}
	}
	rate, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return sim.TickMetrics{}, fmt.Errorf("column %q: %w", SeriesColumns[len(fields)-1], err)
	}
	return sim.TickMetrics{
		Tick:                 ints[0],
		QueueLength:          ints[1],
		Paused:               ints[2],
		CumulativePaused:     ints[3],
		Migrations:           ints[4],
		CumulativeMigrations: ints[5],
		CumulativeCompleted:  ints[6],
		CompletionRate:       rate,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
