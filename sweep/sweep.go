// Package sweep runs one simulation per point of a parameter grid on a
// worker pool and collects the outcomes in grid order.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/results"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/metrics"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/uniqueid"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/workerpool"
)

// Job is one point of the grid.
type Job struct {
	Label          string
	Policy         sim.PolicyKind
	CostMultiplier float64
	BatterySize    float64
	Config         sim.Config
}

// Outcome is the result of one job. Run is nil when Err is set.
type Outcome struct {
	Job Job
	Run *results.Run
	Err error
}

// Options tunes Run.
type Options struct {
	// Workers bounds concurrent engines; zero means one per job.
	Workers int
	// Sink, when set, receives every successful run.
	Sink results.Sink
	// ExportMetrics attaches a Prometheus observer to every engine.
	ExportMetrics bool
}

// Grid expands base into one job per policy × cost multiplier × battery
// size, in that nesting order. Empty cost or battery lists keep the base
// value. The trace is shared between jobs; everything else is copied.
func Grid(base sim.Config, policies []sim.PolicyKind, costMultipliers, batterySizes []float64) []Job {
	if len(costMultipliers) == 0 {
		costMultipliers = []float64{base.Params.Bandwidth.CostMultiplier}
	}
	keepBattery := len(batterySizes) == 0
	if keepBattery {
		batterySizes = []float64{batteryOf(base.Nodes)}
	}

	var jobs []Job
	for _, policy := range policies {
		for _, cost := range costMultipliers {
			for _, battery := range batterySizes {
				cfg := base
				cfg.Params.Policy = policy
				cfg.Params.Bandwidth.CostMultiplier = cost
				cfg.Nodes = append([]sim.NodeSpec(nil), base.Nodes...)
				if !keepBattery {
					for i := range cfg.Nodes {
						cfg.Nodes[i].BatteryCapacity = battery
					}
				}
				jobs = append(jobs, Job{
					Label:          fmt.Sprintf("%s-c%g-b%g", policy, cost, battery),
					Policy:         policy,
					CostMultiplier: cost,
					BatterySize:    battery,
					Config:         cfg,
				})
			}
		}
	}
	return jobs
}

// JobFor wraps cfg as a single job labelled label, or by policy when label
// is empty.
func JobFor(cfg sim.Config, label string) Job {
	if label == "" {
		label = cfg.Params.Policy.String()
	}
	return Job{
		Label:          label,
		Policy:         cfg.Params.Policy,
		CostMultiplier: cfg.Params.Bandwidth.CostMultiplier,
		BatterySize:    batteryOf(cfg.Nodes),
		Config:         cfg,
	}
}

func batteryOf(nodes []sim.NodeSpec) float64 {
	if len(nodes) == 0 {
		return 0
	}
	return nodes[0].BatteryCapacity
}

// RunPolicies runs base once per policy with the given number of workers.
func RunPolicies(ctx context.Context, base sim.Config, policies []sim.PolicyKind, workers int) []Outcome {
	return Run(ctx, Grid(base, policies, nil, nil), Options{Workers: workers})
}

// Run executes jobs on a worker pool. Outcomes are returned in job order;
// a failed job does not stop the others.
func Run(ctx context.Context, jobs []Job, opts Options) []Outcome {
	if len(jobs) == 0 {
		return nil
	}
	workers := opts.Workers
	if workers <= 0 || workers > len(jobs) {
		workers = len(jobs)
	}
	log := logger.NewLogger("Sweep")
	log.Infof("Running %d simulations on %d workers", len(jobs), workers)

	pool := workerpool.New(ctx, workers)
	pool.Start()
	defer pool.Stop()

	runs := make([]*results.Run, len(jobs))
	tasks := make([]workerpool.Task, len(jobs))
	for i := range jobs {
		tasks[i] = func(ctx context.Context) error {
			run, err := Execute(ctx, jobs[i], opts)
			runs[i] = run
			return err
		}
	}

	outcomes := make([]Outcome, len(jobs))
	for _, r := range pool.SubmitAndWait(ctx, tasks) {
		o := &outcomes[r.Index]
		o.Job = jobs[r.Index]
		o.Err = r.Err
		if r.Err != nil {
			log.Warnf("Job %s failed: %v", o.Job.Label, r.Err)
			continue
		}
		o.Run = runs[r.Index]
	}
	return outcomes
}

// Execute runs a single job to completion and hands the run to opts.Sink.
// opts.Workers is ignored.
func Execute(ctx context.Context, job Job, opts Options) (*results.Run, error) {
	policy := job.Policy.String()
	rec := results.NewRecorder()
	observers := []sim.Observer{rec}
	if opts.ExportMetrics {
		observers = append(observers, metrics.NewObserver(job.Label))
	}

	engine, err := sim.NewEngine(job.Config, observers...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", job.Label, err)
	}

	started := time.Now()
	res, err := engine.Run(ctx)
	elapsed := time.Since(started)
	if err != nil {
		metrics.RecordRunDuration(policy, "failed", elapsed.Seconds())
		return nil, fmt.Errorf("%s: %w", job.Label, err)
	}
	metrics.RecordRunDuration(policy, "completed", elapsed.Seconds())

	run := &results.Run{
		ID:             uniqueid.RunID(job.Label),
		Label:          job.Label,
		Policy:         policy,
		CostMultiplier: job.CostMultiplier,
		BatterySize:    job.BatterySize,
		StartedAt:      started,
		Duration:       elapsed,
		Summary:        results.Summarize(res, rec.NodeNames()),
		Series:         rec.Series(),
	}
	if opts.Sink != nil {
		if err := opts.Sink.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("%s: %w", job.Label, err)
		}
	}
	return run, nil
}
