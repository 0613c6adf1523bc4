package sim

import (
	"errors"
	"fmt"
)

// UnsatisfiableError reports an application whose minimum requirement no
// server can ever meet.
type UnsatisfiableError struct {
	App       AppID
	Dimension string
	Required  int
	Available int
}

// Error returns a human-readable error message.
func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("unsatisfiable configuration: allotted %d %s per server, application %d requires %d",
		e.Available, e.Dimension, e.App, e.Required)
}

// RunawayError reports a run that did not drain within its tick limit.
type RunawayError struct {
	Tick  int
	Limit int
	// Pending is the number of applications not yet completed.
	Pending int
}

// Error returns a human-readable error message.
func (e *RunawayError) Error() string {
	return fmt.Sprintf("simulation did not drain: tick %d reached limit %d with %d applications pending",
		e.Tick, e.Limit, e.Pending)
}

// IsUnsatisfiable reports whether err is (or wraps) an UnsatisfiableError.
func IsUnsatisfiable(err error) bool {
	var ue *UnsatisfiableError
	return errors.As(err, &ue)
}

// IsRunaway reports whether err is (or wraps) a RunawayError.
func IsRunaway(err error) bool {
	var re *RunawayError
	return errors.As(err, &re)
}

// checkMinRequirements rejects workloads that can never be placed. Memory is
// always a hard limit; cores only when applications cannot degrade.
func checkMinRequirements(apps []AppSpec, p Params) error {
	for i, a := range apps {
		if a.Runtime <= 0 || a.Cores <= 0 || a.Memory <= 0 {
			return fmt.Errorf("application %d has non-positive requirement (runtime=%d, cores=%d, memory=%d)",
				i, a.Runtime, a.Cores, a.Memory)
		}
		if !p.Degradable && a.Cores > p.CoresPerServer {
			return &UnsatisfiableError{App: AppID(i), Dimension: "core(s)", Required: a.Cores, Available: p.CoresPerServer}
		}
		if a.Memory > p.MemoryPerServer {
			return &UnsatisfiableError{App: AppID(i), Dimension: "MB of memory", Required: a.Memory, Available: p.MemoryPerServer}
		}
	}
	return nil
}
