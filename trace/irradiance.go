// Package trace reads, writes and synthesizes the two inputs of a run: the
// per-tick irradiance trace and the workload trace.
package trace

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// IrradianceHeader is the first line of an irradiance file.
const IrradianceHeader = "irradiances"

// HourlyColumn is the column of the hourly datasets that holds irradiance.
const HourlyColumn = 5

// DefaultCompileLimit caps the ticks compiled from each hourly dataset.
const DefaultCompileLimit = 1000000

// LoadIrradiance reads an irradiance file: a header line, then one row per
// tick with one column per trace index.
func LoadIrradiance(path string) (sim.Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open irradiance trace: %w", err)
	}
	defer f.Close()

	trace, err := ReadIrradiance(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return trace, nil
}

// ReadIrradiance parses the irradiance format from r.
func ReadIrradiance(r io.Reader) (sim.Trace, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("irradiance trace is empty")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var trace sim.Trace
	width := -1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tick %d: %w", len(trace), err)
		}
		if width < 0 {
			width = len(record)
		} else if len(record) != width {
			return nil, fmt.Errorf("tick %d: %d columns, expected %d", len(trace), len(record), width)
		}

		row := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("tick %d column %d: %w", len(trace), i, err)
			}
			row[i] = v
		}
		trace = append(trace, row)
	}
	if len(trace) == 0 {
		return nil, fmt.Errorf("irradiance trace has no ticks")
	}
	return trace, nil
}

// WriteIrradiance writes trace in the format read by ReadIrradiance.
func WriteIrradiance(w io.Writer, trace sim.Trace) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(IrradianceHeader + "\n"); err != nil {
		return err
	}
	cw := csv.NewWriter(bw)
	var record []string
	for _, row := range trace {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// CompileHourly turns hourly irradiance datasets, one per site, into a
// per-tick trace. Each dataset is a CSV with a header whose HourlyColumn
// holds the hourly irradiance. Every hour is repeated ticksPerHour times,
// negative readings become 0 and the rest are multiplied by scale. Each
// column is capped at limit ticks (limit <= 0 means DefaultCompileLimit) and
// the result is truncated to the shortest dataset.
func CompileHourly(datasets []io.Reader, scale float64, ticksPerHour, limit int) (sim.Trace, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no hourly datasets given")
	}
	if ticksPerHour <= 0 {
		ticksPerHour = sim.DefaultTicksPerHour
	}
	if limit <= 0 {
		limit = DefaultCompileLimit
	}

	columns := make([][]float64, len(datasets))
	shortest := -1
	for i, r := range datasets {
		hourly, err := readHourly(r)
		if err != nil {
			return nil, fmt.Errorf("dataset %d: %w", i, err)
		}
		col := make([]float64, 0, min(len(hourly)*ticksPerHour, limit))
	expand:
		for _, v := range hourly {
			if v < 0 {
				v = 0
			} else {
				v *= scale
			}
			for j := 0; j < ticksPerHour; j++ {
				if len(col) >= limit {
					break expand
				}
				col = append(col, v)
			}
		}
		columns[i] = col
		if shortest < 0 || len(col) < shortest {
			shortest = len(col)
		}
	}
	if shortest == 0 {
		return nil, fmt.Errorf("a dataset has no hourly readings")
	}

	trace := make(sim.Trace, shortest)
	for t := range trace {
		row := make([]float64, len(columns))
		for c := range columns {
			row[c] = columns[c][t]
		}
		trace[t] = row
	}
	return trace, nil
}

func readHourly(r io.Reader) ([]float64, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var values []float64
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return values, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) <= HourlyColumn {
			return nil, fmt.Errorf("line %d: %d columns, irradiance is column %d", line, len(record), HourlyColumn)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[HourlyColumn]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		values = append(values, v)
	}
}
