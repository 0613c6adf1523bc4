// Package results turns engine output into reports: an in-memory recorder
// of the per-tick series, summary statistics, the text report format and a
// sink interface for persistent stores.
package results

import (
	"context"
	"time"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// Run is one finished simulation with everything needed to report on it.
type Run struct {
	ID             string
	Label          string
	Policy         string
	CostMultiplier float64
	BatterySize    float64
	StartedAt      time.Time
	Duration       time.Duration
	Summary        Summary
	Series         []sim.TickMetrics
}

// Sink persists finished runs.
type Sink interface {
	SaveRun(ctx context.Context, run *Run) error
}

// MultiSink saves a run to every sink in order and stops at the first error.
type MultiSink []Sink

// SaveRun implements Sink.
func (m MultiSink) SaveRun(ctx context.Context, run *Run) error {
	for _, s := range m {
		if err := s.SaveRun(ctx, run); err != nil {
			return err
		}
	}
	return nil
}
