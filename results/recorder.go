package results

import (
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// Recorder is a sim.Observer that keeps the whole per-tick series in memory.
type Recorder struct {
	series []sim.TickMetrics
	nodes  []sim.NodeSnapshot
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnTick implements sim.Observer.
func (r *Recorder) OnTick(report sim.TickReport) {
	r.series = append(r.series, report.Metrics)
	r.nodes = append(r.nodes[:0], report.Nodes...)
}

// Series returns the recorded metrics in tick order.
func (r *Recorder) Series() []sim.TickMetrics {
	return r.series
}

// LastNodes returns the node snapshots of the most recent tick.
func (r *Recorder) LastNodes() []sim.NodeSnapshot {
	return r.nodes
}

// NodeNames returns node names from the most recent tick, in node order.
func (r *Recorder) NodeNames() []string {
	names := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		names[i] = n.Name
	}
	return names
}
