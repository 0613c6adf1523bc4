package sim

import (
	"fmt"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/topology"
)

// DefaultAdmissionLookahead bounds how many queue entries one server scans per tick.
const DefaultAdmissionLookahead = 1000

// DefaultTicksPerHour matches the one-second tick of the irradiance traces.
const DefaultTicksPerHour = 3600

// NodeSpec is the static description of an edge site.
type NodeSpec struct {
	Name            string
	Coord           topology.Coord
	PVEfficiency    float64
	PVArea          float64
	BatteryCapacity float64
	InitialCharge   float64
	TraceIndex      int
}

// AppSpec is one workload trace entry.
type AppSpec struct {
	Runtime int
	Cores   int
	Memory  int
}

// Params is the run-wide configuration of the engine.
type Params struct {
	ServersPerNode  int
	CoresPerServer  int
	MemoryPerServer int
	PowerPerServer  float64

	Policy    PolicyKind
	Bandwidth Bandwidth

	// GlobalApplications lets every node admit new applications; when false
	// only HomeNode does.
	GlobalApplications bool
	HomeNode           NodeID

	Degradable           bool
	DegradableMultiplier float64

	AdmissionLookahead int
	// MaxTicks caps the run; zero means the trace length.
	MaxTicks     int
	TicksPerHour int
}

// Validate checks the parameters for values the engine cannot run with.
func (p *Params) Validate(numNodes int) error {
	if p.ServersPerNode <= 0 {
		return fmt.Errorf("servers per node must be positive")
	}
	if p.CoresPerServer <= 0 {
		return fmt.Errorf("cores per server must be positive")
	}
	if p.MemoryPerServer <= 0 {
		return fmt.Errorf("memory per server must be positive")
	}
	if p.PowerPerServer <= 0 {
		return fmt.Errorf("power per server must be positive")
	}
	if !p.Policy.Valid() {
		return fmt.Errorf("unknown migration policy %d", p.Policy)
	}
	if !p.GlobalApplications && (p.HomeNode < 0 || int(p.HomeNode) >= numNodes) {
		return fmt.Errorf("home node %d out of range [0, %d)", p.HomeNode, numNodes)
	}
	if p.Degradable && p.DegradableMultiplier <= 0 {
		return fmt.Errorf("degradable multiplier must be positive")
	}
	if p.MaxTicks < 0 {
		return fmt.Errorf("max ticks must not be negative")
	}
	if p.AdmissionLookahead <= 0 {
		p.AdmissionLookahead = DefaultAdmissionLookahead
	}
	if p.TicksPerHour <= 0 {
		p.TicksPerHour = DefaultTicksPerHour
	}
	return p.Bandwidth.Validate()
}

// Trace is the per-tick irradiance, indexed [tick][node trace index].
type Trace [][]float64

// Len returns the number of ticks covered by the trace.
func (t Trace) Len() int {
	return len(t)
}

// At returns the irradiance of column col at tick.
func (t Trace) At(tick, col int) float64 {
	return t[tick][col]
}
