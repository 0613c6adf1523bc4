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

// WorkloadColumns is the header written by WriteWorkload.
var WorkloadColumns = []string{"runtime", "cores", "memory"}

// LoadWorkload reads a workload file: a header naming the runtime, cores and
// memory columns, then one application per row.
func LoadWorkload(path string) ([]sim.AppSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workload trace: %w", err)
	}
	defer f.Close()

	apps, err := ReadWorkload(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return apps, nil
}

// ReadWorkload parses the workload format from r. Columns are located by
// header name; a header without the names means positional runtime, cores,
// memory. Extra columns are ignored.
func ReadWorkload(r io.Reader) ([]sim.AppSpec, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := columnIndexes(header)

	var apps []sim.AppSpec
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return apps, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var vals [3]int
		for i, col := range idx {
			if col >= len(record) {
				return nil, fmt.Errorf("line %d: missing %s column", line, WorkloadColumns[i])
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, WorkloadColumns[i], err)
			}
			vals[i] = int(f)
		}
		apps = append(apps, sim.AppSpec{Runtime: vals[0], Cores: vals[1], Memory: vals[2]})
	}
}

func columnIndexes(header []string) [3]int {
	idx := [3]int{-1, -1, -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		for j, want := range WorkloadColumns {
			if name == want {
				idx[j] = i
			}
		}
	}
	if idx[0] < 0 || idx[1] < 0 || idx[2] < 0 {
		return [3]int{0, 1, 2}
	}
	return idx
}

// WriteWorkload writes apps in the format read by ReadWorkload.
func WriteWorkload(w io.Writer, apps []sim.AppSpec) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(WorkloadColumns); err != nil {
		return err
	}
	for _, a := range apps {
		if err := cw.Write([]string{strconv.Itoa(a.Runtime), strconv.Itoa(a.Cores), strconv.Itoa(a.Memory)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FilterWorkload drops applications that no server could ever host:
// non-positive fields, more memory than a server has, or (unless degradable)
// more cores. It returns the kept applications and the number dropped.
func FilterWorkload(apps []sim.AppSpec, coresPerServer, memoryPerServer int, degradable bool) ([]sim.AppSpec, int) {
	kept := make([]sim.AppSpec, 0, len(apps))
	for _, a := range apps {
		if a.Runtime <= 0 || a.Cores <= 0 || a.Memory <= 0 {
			continue
		}
		if a.Memory > memoryPerServer {
			continue
		}
		if !degradable && a.Cores > coresPerServer {
			continue
		}
		kept = append(kept, a)
	}
	return kept, len(apps) - len(kept)
}
