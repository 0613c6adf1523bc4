package sim

import (
	"context"
	"fmt"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/topology"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
)

// Config is everything needed to build an Engine.
type Config struct {
	Params Params
	Nodes  []NodeSpec
	Apps   []AppSpec
	Trace  Trace
	// CheckInvariants verifies capacity and ownership invariants after every
	// tick. It is slow and meant for tests.
	CheckInvariants bool
}

// Engine runs the time-stepped simulation. It is single-threaded: one Engine
// must not be used from several goroutines. Independent engines may share
// the same read-only Trace.
type Engine struct {
	params    Params
	state     *State
	trace     Trace
	topo      *topology.Table
	limit     int
	check     bool
	observers []Observer
	logger    *logger.Logger

	oracle   *powerIndex
	forecast *forecaster
	// admitted marks applications admitted during the current tick that
	// are still in the queue until compactQueue runs.
	admitted []bool

	tick tickCounters
	done bool
}

// NewEngine validates the configuration and builds the initial state. It
// fails with an UnsatisfiableError if some application can never be placed.
func NewEngine(cfg Config, observers ...Observer) (*Engine, error) {
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("at least one node is required")
	}
	params := cfg.Params
	if err := params.Validate(len(cfg.Nodes)); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if err := checkTrace(cfg.Trace, cfg.Nodes); err != nil {
		return nil, err
	}
	if err := checkMinRequirements(cfg.Apps, params); err != nil {
		return nil, err
	}

	coords := make([]topology.Coord, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		if n.PVEfficiency < 0 || n.PVEfficiency > 1 {
			return nil, fmt.Errorf("node %d: PV efficiency %v outside [0, 1]", i, n.PVEfficiency)
		}
		if n.PVArea < 0 || n.BatteryCapacity < 0 || n.InitialCharge < 0 {
			return nil, fmt.Errorf("node %d: PV area and battery values must not be negative", i)
		}
		coords[i] = n.Coord
	}
	topo, err := topology.New(coords)
	if err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}

	limit := cfg.Trace.Len()
	if params.MaxTicks > 0 && params.MaxTicks < limit {
		limit = params.MaxTicks
	}

	e := &Engine{
		params:    params,
		state:     NewState(cfg.Nodes, params.ServersPerNode, params.CoresPerServer, params.MemoryPerServer, cfg.Apps),
		trace:     cfg.Trace,
		topo:      topo,
		limit:     limit,
		check:     cfg.CheckInvariants,
		observers: observers,
		logger:    logger.NewLogger("Engine"),
		admitted:  make([]bool, len(cfg.Apps)),
	}
	return e, nil
}

func checkTrace(trace Trace, nodes []NodeSpec) error {
	if trace.Len() == 0 {
		return fmt.Errorf("irradiance trace is empty")
	}
	width := 0
	for i, n := range nodes {
		if n.TraceIndex < 0 {
			return fmt.Errorf("node %d: negative trace index", i)
		}
		if n.TraceIndex+1 > width {
			width = n.TraceIndex + 1
		}
	}
	for t, row := range trace {
		if len(row) < width {
			return fmt.Errorf("irradiance trace tick %d has %d columns, need %d", t, len(row), width)
		}
	}
	return nil
}

// AddObserver registers an observer for subsequent ticks.
func (e *Engine) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *logger.Logger) {
	e.logger = l
}

// State exposes the simulation state. Callers must not mutate it.
func (e *Engine) State() *State {
	return e.state
}

// Topology returns the distance table built from the node coordinates.
func (e *Engine) Topology() *topology.Table {
	return e.topo
}

// Params returns the validated parameters, defaults applied.
func (e *Engine) Params() Params {
	return e.params
}

// Done reports whether every application has completed.
func (e *Engine) Done() bool {
	return e.done
}

// Step runs one tick: completion, eviction, migration/resume, admission,
// battery update, termination check. Each phase sees the effects of the
// previous one.
func (e *Engine) Step() (TickMetrics, error) {
	if e.done {
		return TickMetrics{}, fmt.Errorf("simulation already drained at tick %d", e.state.Tick)
	}
	st := e.state
	tick := st.Tick + 1
	if tick >= e.limit {
		return TickMetrics{}, &RunawayError{Tick: tick, Limit: e.limit, Pending: len(st.Apps) - len(st.Completed)}
	}
	st.Tick = tick
	e.tick.reset()

	e.completeApplications(tick)
	e.shutdownServers(tick)
	e.resumeApplications(tick)
	e.startApplications(tick)
	e.accountOverhead()
	e.updateBatteries(tick)
	e.done = st.Drained()

	if e.check {
		if err := st.CheckInvariants(); err != nil {
			panic(fmt.Sprintf("t=%d: %v", tick, err))
		}
	}

	m := e.metrics(tick)
	e.notify(m)
	return m, nil
}

// accountOverhead charges one tick to every application that is not running.
func (e *Engine) accountOverhead() {
	st := e.state
	for _, aid := range st.Queue {
		st.Apps[aid].Overhead++
	}
	for _, aid := range st.Paused {
		st.Apps[aid].Overhead++
	}
}

func (e *Engine) metrics(tick int) TickMetrics {
	st := e.state
	m := TickMetrics{
		Tick:                 tick,
		QueueLength:          len(st.Queue),
		Running:              st.Running(),
		Paused:               len(st.Paused),
		NewlyStarted:         e.tick.started,
		NewlyCompleted:       e.tick.completed,
		CumulativeCompleted:  len(st.Completed),
		NewlyPaused:          e.tick.paused,
		CumulativePaused:     st.totalPauses,
		Migrations:           e.tick.migrations,
		CumulativeMigrations: st.totalMigrations,
		ServersOn:            st.ServersOn(),
	}
	if len(st.Apps) > 0 {
		m.CompletionRate = float64(len(st.Completed)) / float64(len(st.Apps))
	} else {
		m.CompletionRate = 1
	}
	return m
}

func (e *Engine) notify(m TickMetrics) {
	if len(e.observers) == 0 {
		return
	}
	st := e.state
	report := TickReport{Metrics: m, Nodes: make([]NodeSnapshot, len(st.Nodes))}
	for i := range st.Nodes {
		n := &st.Nodes[i]
		report.Nodes[i] = NodeSnapshot{
			Node:          n.ID,
			Name:          n.Name,
			ServersOn:     st.nodeServersOn(n.ID),
			BatteryCharge: n.BatteryCharge,
			Generated:     e.generated(n.ID, m.Tick),
			Completed:     n.Completed,
		}
	}
	for _, mv := range e.tick.migratedFrom {
		report.Migrations = append(report.Migrations, Migration{From: mv[0], To: mv[1]})
	}
	for _, o := range e.observers {
		o.OnTick(report)
	}
}

// Run steps until every application completes. It returns a RunawayError if
// the tick limit is reached first, and ctx.Err() if ctx is cancelled between
// ticks.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.logger.Infof("Starting %s run: %d nodes, %d servers, %d applications, tick limit %d",
		e.params.Policy, len(e.state.Nodes), len(e.state.Servers), len(e.state.Apps), e.limit)

	for !e.done {
		if e.state.Tick%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := e.Step(); err != nil {
			return nil, err
		}
	}

	res := e.Result()
	e.logger.Infof("%s run drained at tick %d: completed=%d pauses=%d migrations=%d",
		e.params.Policy, res.FinalTick, res.Completed, res.TotalPauses, res.TotalMigrations)
	return res, nil
}

// Result summarizes the run so far.
func (e *Engine) Result() *Result {
	st := e.state
	res := &Result{
		Policy:            e.params.Policy,
		FinalTick:         st.Tick,
		Applications:      len(st.Apps),
		Completed:         len(st.Completed),
		TotalPauses:       st.totalPauses,
		TotalMigrations:   st.totalMigrations,
		CompletionsByNode: make([]int, len(st.Nodes)),
		Overheads:         make([]int, len(st.Apps)),
		Turnarounds:       make([]int, len(st.Apps)),
		Migrations:        make([]int, len(st.Apps)),
	}
	for i := range st.Nodes {
		res.CompletionsByNode[i] = st.Nodes[i].Completed
	}
	for i := range st.Apps {
		app := &st.Apps[i]
		res.Overheads[i] = app.Overhead
		res.Migrations[i] = app.Migrations
		if app.Done() {
			res.Turnarounds[i] = app.EndTick
		} else {
			res.Turnarounds[i] = -1
		}
	}
	return res
}
