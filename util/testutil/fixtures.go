package testutil

import (
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/topology"
)

// Cities are the three sites used by the reference configuration.
var Cities = []sim.NodeSpec{
	{Name: "phoenix", Coord: topology.Coord{Lat: 33.4484, Lon: -112.0740}},
	{Name: "new-york", Coord: topology.Coord{Lat: 40.7128, Lon: -74.0060}},
	{Name: "tokyo", Coord: topology.Coord{Lat: 35.6762, Lon: 139.6503}},
}

// Nodes returns n node specs reading trace columns 0..n-1 with a 1 m² panel
// at 100% efficiency, so generated power equals irradiance. The first three
// sit on Cities; further ones are spread along the equator.
func Nodes(n int) []sim.NodeSpec {
	nodes := make([]sim.NodeSpec, n)
	for i := range nodes {
		if i < len(Cities) {
			nodes[i] = Cities[i]
		} else {
			nodes[i] = sim.NodeSpec{
				Name:  "site-" + string(rune('a'+i-len(Cities))),
				Coord: topology.Coord{Lat: 0, Lon: float64(i)},
			}
		}
		nodes[i].PVEfficiency = 1
		nodes[i].PVArea = 1
		nodes[i].TraceIndex = i
	}
	return nodes
}

// ConstantTrace returns ticks rows of cols columns, all equal to value.
func ConstantTrace(ticks, cols int, value float64) sim.Trace {
	trace := make(sim.Trace, ticks)
	for t := range trace {
		row := make([]float64, cols)
		for c := range row {
			row[c] = value
		}
		trace[t] = row
	}
	return trace
}

// UniformApps returns n identical applications.
func UniformApps(n, runtime, cores, memory int) []sim.AppSpec {
	apps := make([]sim.AppSpec, n)
	for i := range apps {
		apps[i] = sim.AppSpec{Runtime: runtime, Cores: cores, Memory: memory}
	}
	return apps
}

// SmallConfig is a three-node, two-servers-per-node setup with steady power
// for two servers per node and a handful of short applications.
func SmallConfig(policy sim.PolicyKind) sim.Config {
	return sim.Config{
		Params: sim.Params{
			ServersPerNode:     2,
			CoresPerServer:     8,
			MemoryPerServer:    1024,
			PowerPerServer:     100,
			Policy:             policy,
			Bandwidth:          sim.Bandwidth{Model: sim.LinearCost, CostMultiplier: 0.001},
			GlobalApplications: true,
		},
		Nodes: Nodes(3),
		Apps:  UniformApps(12, 5, 4, 256),
		Trace: ConstantTrace(500, 3, 200),
	}
}
