package sim

// TickMetrics is what the engine reports after every tick. The series of
// TickMetrics is enough to rebuild the run's time series.
type TickMetrics struct {
	Tick                 int
	QueueLength          int
	Running              int
	Paused               int
	NewlyStarted         int
	NewlyCompleted       int
	CumulativeCompleted  int
	NewlyPaused          int
	CumulativePaused     int
	Migrations           int
	CumulativeMigrations int
	CompletionRate       float64
	ServersOn            int
}

// NodeSnapshot is the per-node view handed to observers with each tick.
type NodeSnapshot struct {
	Node          NodeID
	Name          string
	ServersOn     int
	BatteryCharge float64
	Generated     float64
	Completed     int
}

// Migration is one resume on a node other than where the application was
// paused.
type Migration struct {
	From NodeID
	To   NodeID
}

// TickReport bundles everything observers receive for one tick.
type TickReport struct {
	Metrics    TickMetrics
	Nodes      []NodeSnapshot
	Migrations []Migration
}

// Observer receives a report after every tick. Observers must not retain
// the Nodes or Migrations slices past the call.
type Observer interface {
	OnTick(report TickReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(report TickReport)

// OnTick calls f(report).
func (f ObserverFunc) OnTick(report TickReport) {
	f(report)
}

// tickCounters accumulates the per-tick deltas while the phases run.
type tickCounters struct {
	started      int
	completed    int
	paused       int
	migrations   int
	migratedFrom [][2]NodeID
}

func (c *tickCounters) reset() {
	c.started = 0
	c.completed = 0
	c.paused = 0
	c.migrations = 0
	c.migratedFrom = c.migratedFrom[:0]
}

// Result summarizes a finished run.
type Result struct {
	Policy PolicyKind

	// FinalTick is the tick at which the last application completed.
	FinalTick         int
	Applications      int
	Completed         int
	TotalPauses       int
	TotalMigrations   int
	CompletionsByNode []int
	// Per-application outcomes in trace order.
	Overheads   []int
	Turnarounds []int
	Migrations  []int
}
