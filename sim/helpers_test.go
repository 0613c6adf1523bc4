package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/topology"
)

// traceFunc builds a trace of ticks rows and cols columns from f.
func traceFunc(ticks, cols int, f func(t, c int) float64) Trace {
	tr := make(Trace, ticks)
	for t := range tr {
		tr[t] = make([]float64, cols)
		for c := range tr[t] {
			tr[t][c] = f(t, c)
		}
	}
	return tr
}

func constant(ticks, cols int, v float64) Trace {
	return traceFunc(ticks, cols, func(int, int) float64 { return v })
}

// site is a node whose generated power equals the irradiance of its column.
func site(name string, lat, lon float64, col int) NodeSpec {
	return NodeSpec{
		Name:         name,
		Coord:        topology.Coord{Lat: lat, Lon: lon},
		PVEfficiency: 1,
		PVArea:       1,
		TraceIndex:   col,
	}
}

// threeSites mirrors the phoenix / new-york / tokyo layout.
func threeSites() []NodeSpec {
	return []NodeSpec{
		site("phoenix", 33.4484, -112.0740, 0),
		site("new-york", 40.7128, -74.0060, 1),
		site("tokyo", 35.6762, 139.6503, 2),
	}
}

// oneServer returns parameters for one 4-core, 8 GB, 100 W server per node.
func oneServer(policy PolicyKind) Params {
	return Params{
		ServersPerNode:     1,
		CoresPerServer:     4,
		MemoryPerServer:    8192,
		PowerPerServer:     100,
		Policy:             policy,
		Bandwidth:          Bandwidth{Model: LinearCost},
		GlobalApplications: true,
	}
}

func newEngine(t *testing.T, cfg Config, observers ...Observer) *Engine {
	t.Helper()
	cfg.CheckInvariants = true
	e, err := NewEngine(cfg, observers...)
	require.NoError(t, err)
	return e
}

// stepUntil steps e through tick (inclusive).
func stepUntil(t *testing.T, e *Engine, tick int) {
	t.Helper()
	for e.State().Tick < tick {
		_, err := e.Step()
		require.NoError(t, err)
	}
}

// flakyTrace alternates each column between power for two servers and
// none, with a per-column phase shift.
func flakyTrace(ticks, cols int) Trace {
	return traceFunc(ticks, cols, func(t, c int) float64 {
		if ((t+3*c)/5)%2 == 0 {
			return 250
		}
		return 50
	})
}

func mixedApps(n int) []AppSpec {
	apps := make([]AppSpec, n)
	for i := range apps {
		apps[i] = AppSpec{Runtime: 3 + i%7, Cores: 2 + i%5, Memory: 256 + 64*(i%4)}
	}
	return apps
}

// churnConfig evicts and resumes constantly but always drains.
func churnConfig(policy PolicyKind) Config {
	return Config{
		Params: Params{
			ServersPerNode:     2,
			CoresPerServer:     8,
			MemoryPerServer:    1024,
			PowerPerServer:     100,
			Policy:             policy,
			Bandwidth:          Bandwidth{Model: LinearCost, CostMultiplier: 0.001},
			GlobalApplications: true,
			TicksPerHour:       5,
		},
		Nodes: threeSites(),
		Apps:  mixedApps(30),
		Trace: flakyTrace(3000, 3),
	}
}
