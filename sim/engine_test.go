package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleNodeCompletes(t *testing.T) {
	var reports []TickReport
	e := newEngine(t, Config{
		Params: oneServer(Passive),
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   []AppSpec{{Runtime: 10, Cores: 2, Memory: 4096}},
		Trace:  constant(20, 1, 100),
	}, ObserverFunc(func(r TickReport) { reports = append(reports, r) }))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, res.FinalTick)
	assert.Equal(t, 1, res.Completed)
	assert.Zero(t, res.TotalMigrations)
	assert.Zero(t, res.TotalPauses)
	assert.Equal(t, []int{10}, res.Turnarounds)
	assert.Equal(t, []int{0}, res.Overheads)
	assert.Equal(t, []int{1}, res.CompletionsByNode)

	require.Len(t, reports, 11)
	first, last := reports[0].Metrics, reports[10].Metrics
	assert.Equal(t, 1, first.NewlyStarted)
	assert.Equal(t, 1, first.Running)
	assert.Equal(t, 1, last.NewlyCompleted)
	assert.Equal(t, 1.0, last.CompletionRate)
	assert.Equal(t, "solo", reports[0].Nodes[0].Name)
	assert.True(t, e.Done())

	_, err = e.Step()
	assert.Error(t, err, "stepping a drained engine fails")
}

func TestPassivePauseAndResume(t *testing.T) {
	tr := traceFunc(40, 1, func(t, _ int) float64 {
		if t >= 3 && t < 10 {
			return 0
		}
		return 100
	})
	e := newEngine(t, Config{
		Params: oneServer(Passive),
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   []AppSpec{{Runtime: 8, Cores: 2, Memory: 4096}},
		Trace:  tr,
	})

	stepUntil(t, e, 3)
	st := e.State()
	app := &st.Apps[0]
	assert.Equal(t, []AppID{0}, st.Paused)
	assert.Equal(t, NoServer, app.Server)
	assert.Equal(t, 5, app.Remaining, "remaining runtime is preserved across the pause")
	assert.Equal(t, 1, app.Pauses)

	stepUntil(t, e, 9)
	assert.Equal(t, []AppID{0}, st.Paused, "passive waits while its server is dark")
	stepUntil(t, e, 10)
	assert.Empty(t, st.Paused)
	assert.Equal(t, ServerID(0), app.Server)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, res.FinalTick, "finishes 5 ticks after resuming at tick 10")
	assert.Equal(t, []int{7}, res.Overheads)
	assert.Zero(t, res.TotalMigrations)
	assert.Equal(t, 1, res.TotalPauses)
}

func TestYOLOMigratesToNearestNeighbor(t *testing.T) {
	// 0.8993° of longitude on the equator is about 100 km.
	nodes := []NodeSpec{site("a", 0, 0, 0), site("b", 0, 0.8993, 1)}
	tr := traceFunc(40, 2, func(t, c int) float64 {
		if c == 0 && t >= 3 {
			return 0
		}
		return 100
	})
	params := oneServer(YOLO)
	params.Bandwidth = Bandwidth{Model: PowerLaw, Coefficient: 800, Exponent: 0}

	var migrations []Migration
	e := newEngine(t, Config{
		Params: params,
		Nodes:  nodes,
		Apps:   []AppSpec{{Runtime: 8, Cores: 2, Memory: 1000}},
		Trace:  tr,
	}, ObserverFunc(func(r TickReport) { migrations = append(migrations, r.Migrations...) }))
	assert.InDelta(t, 100, e.Topology().Distance(0, 1), 0.5)

	stepUntil(t, e, 3)
	app := &e.State().Apps[0]
	assert.Equal(t, InTransit, app.Transit.Phase)
	assert.Equal(t, NodeID(1), app.Transit.Target)
	// ceil(1000 MB × 8 / 800 Mb per tick)
	assert.Equal(t, 10, app.Transit.TicksRemaining)

	stepUntil(t, e, 12)
	assert.Equal(t, NoServer, app.Server)
	stepUntil(t, e, 13)
	assert.Equal(t, ServerID(1), app.Server, "resumes once the delay has elapsed")

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalMigrations)
	assert.Equal(t, []int{1}, res.Migrations)
	assert.Equal(t, 18, res.FinalTick)
	assert.Equal(t, []int{0, 1}, res.CompletionsByNode)
	assert.Equal(t, []Migration{{From: 0, To: 1}}, migrations)
}

func lookAheadScenario(policy PolicyKind) Config {
	// A goes dark at tick 3 until tick 60; B, 111 km away, powers up at 20.
	tr := traceFunc(100, 2, func(t, c int) float64 {
		if c == 0 && (t < 3 || t >= 60) {
			return 100
		}
		if c == 1 && t >= 20 {
			return 100
		}
		return 0
	})
	params := oneServer(policy)
	params.Bandwidth = Bandwidth{Model: LinearCost, CostMultiplier: 0.1}
	params.TicksPerHour = 1
	return Config{
		Params: params,
		Nodes:  []NodeSpec{site("a", 0, 0, 0), site("b", 0, 1, 1)},
		Apps:   []AppSpec{{Runtime: 8, Cores: 2, Memory: 1000}},
		Trace:  tr,
	}
}

func TestLookAheadAnticipatesFutureSpike(t *testing.T) {
	e := newEngine(t, lookAheadScenario(LookAhead))
	stepUntil(t, e, 3)
	app := &e.State().Apps[0]
	assert.Equal(t, NodeID(1), app.Transit.Target)
	assert.Equal(t, 12, app.Transit.TicksRemaining)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, res.FinalTick, "resumes at B when it powers up at tick 20")
	assert.Equal(t, 1, res.TotalMigrations)
}

func TestPracticalDoesNotAnticipateFutureSpike(t *testing.T) {
	e := newEngine(t, lookAheadScenario(Practical))
	stepUntil(t, e, 3)
	app := &e.State().Apps[0]
	assert.Equal(t, Idle, app.Transit.Phase, "no usable forecast: wait and re-decide")
	assert.Equal(t, NodeID(0), app.Location)

	stepUntil(t, e, 20)
	assert.Equal(t, NodeID(0), app.Location, "B's power at tick 20 was not foreseen")

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, res.FinalTick, 25)
}

func TestRun_Invariants(t *testing.T) {
	for _, policy := range AllPolicies {
		t.Run(policy.String(), func(t *testing.T) {
			cfg := churnConfig(policy)
			e := newEngine(t, cfg)
			res, err := e.Run(context.Background())
			require.NoError(t, err)

			assert.Equal(t, len(cfg.Apps), res.Completed)
			assert.Positive(t, res.TotalPauses, "the trace forces evictions")
			total := 0
			for _, c := range res.CompletionsByNode {
				total += c
			}
			assert.Equal(t, len(cfg.Apps), total)
			for i, turnaround := range res.Turnarounds {
				assert.GreaterOrEqual(t, turnaround, cfg.Apps[i].Runtime)
			}
			if policy == Passive {
				assert.Zero(t, res.TotalMigrations, "passive never changes node")
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	run := func(policy PolicyKind) (*Result, []TickMetrics) {
		var series []TickMetrics
		e := newEngine(t, churnConfig(policy), ObserverFunc(func(r TickReport) {
			series = append(series, r.Metrics)
		}))
		res, err := e.Run(context.Background())
		require.NoError(t, err)
		return res, series
	}

	for _, policy := range AllPolicies {
		a, seriesA := run(policy)
		b, seriesB := run(policy)
		assert.Equal(t, a, b, policy.String())
		require.Len(t, seriesA, a.FinalTick+1, policy.String())
		assert.Equal(t, seriesA, seriesB, policy.String())
	}
}

func TestRun_Runaway(t *testing.T) {
	e := newEngine(t, Config{
		Params: oneServer(Greedy),
		Nodes:  []NodeSpec{site("dark", 0, 0, 0)},
		Apps:   []AppSpec{{Runtime: 1, Cores: 1, Memory: 1}},
		Trace:  constant(10, 1, 0),
	})
	_, err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsRunaway(err))

	var re *RunawayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 10, re.Limit)
	assert.Equal(t, 1, re.Pending)
}

func TestRun_MaxTicks(t *testing.T) {
	params := oneServer(Greedy)
	params.MaxTicks = 5
	e := newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   []AppSpec{{Runtime: 10, Cores: 1, Memory: 1}},
		Trace:  constant(100, 1, 100),
	})
	_, err := e.Run(context.Background())
	var re *RunawayError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 5, re.Limit)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(t, churnConfig(Greedy)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine_Unsatisfiable(t *testing.T) {
	base := Config{
		Params: oneServer(Passive),
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Trace:  constant(10, 1, 100),
	}

	cfg := base
	cfg.Apps = []AppSpec{{Runtime: 1, Cores: 1, Memory: 1}, {Runtime: 1, Cores: 5, Memory: 1}}
	_, err := NewEngine(cfg)
	require.Error(t, err)
	assert.True(t, IsUnsatisfiable(err))
	assert.Contains(t, err.Error(), "application 1 requires 5")

	cfg.Apps = []AppSpec{{Runtime: 1, Cores: 1, Memory: 9000}}
	_, err = NewEngine(cfg)
	assert.True(t, IsUnsatisfiable(err))

	// Degradable runs only need the memory to fit.
	cfg.Params.Degradable = true
	cfg.Params.DegradableMultiplier = 1
	cfg.Apps = []AppSpec{{Runtime: 1, Cores: 64, Memory: 1}}
	_, err = NewEngine(cfg)
	assert.NoError(t, err)
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	valid := Config{
		Params: oneServer(Passive),
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Trace:  constant(10, 1, 100),
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no nodes", func(c *Config) { c.Nodes = nil }},
		{"empty trace", func(c *Config) { c.Trace = nil }},
		{"narrow trace", func(c *Config) { c.Nodes[0].TraceIndex = 1 }},
		{"zero cores", func(c *Config) { c.Params.CoresPerServer = 0 }},
		{"bad efficiency", func(c *Config) { c.Nodes[0].PVEfficiency = 1.5 }},
		{"negative battery", func(c *Config) { c.Nodes[0].BatteryCapacity = -1 }},
		{"bad coordinate", func(c *Config) { c.Nodes[0].Coord.Lat = 91 }},
		{"home node out of range", func(c *Config) {
			c.Params.GlobalApplications = false
			c.Params.HomeNode = 3
		}},
		{"bad app", func(c *Config) { c.Apps = []AppSpec{{Runtime: 0, Cores: 1, Memory: 1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Nodes = append([]NodeSpec(nil), valid.Nodes...)
			tt.mutate(&cfg)
			_, err := NewEngine(cfg)
			assert.Error(t, err)
		})
	}
}

func TestHomeNodeOnlyAdmission(t *testing.T) {
	params := oneServer(Passive)
	params.GlobalApplications = false
	params.HomeNode = 1
	e := newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("a", 0, 0, 0), site("b", 0, 1, 1)},
		Apps:   []AppSpec{{Runtime: 3, Cores: 4, Memory: 1}, {Runtime: 3, Cores: 4, Memory: 1}},
		Trace:  constant(20, 2, 100),
	})

	stepUntil(t, e, 0)
	st := e.State()
	assert.Equal(t, ServerID(1), st.Apps[0].Server, "only the home node admits")
	assert.Equal(t, []AppID{1}, st.Queue, "node a stays empty")

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, res.CompletionsByNode)
	assert.Equal(t, 6, res.FinalTick)
}

func TestDegradableRescale(t *testing.T) {
	params := oneServer(Passive)
	params.Degradable = true
	params.DegradableMultiplier = 1
	e := newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   []AppSpec{{Runtime: 10, Cores: 8, Memory: 1}},
		Trace:  constant(40, 1, 100),
	})

	stepUntil(t, e, 0)
	app := &e.State().Apps[0]
	assert.Equal(t, 4, app.Cores, "scaled down to the server's cores")
	assert.Equal(t, 20, app.Remaining, "cores × remaining is conserved")

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, res.FinalTick)
}

// elasticMigration runs apps on a node that goes dark at tick 3; YOLO moves
// them with zero delay to its always-powered neighbour.
func elasticMigration(t *testing.T, multiplier float64, apps []AppSpec) *Engine {
	t.Helper()
	params := oneServer(YOLO)
	params.Degradable = true
	params.DegradableMultiplier = multiplier
	tr := traceFunc(10, 2, func(t, c int) float64 {
		if c == 0 && t >= 3 {
			return 0
		}
		return 100
	})
	return newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("a", 0, 0, 0), site("b", 0, 0.8993, 1)},
		Apps:   apps,
		Trace:  tr,
	})
}

func TestDegradableResumeScalesDown(t *testing.T) {
	e := elasticMigration(t, 1, []AppSpec{
		{Runtime: 10, Cores: 4, Memory: 1},
		{Runtime: 30, Cores: 2, Memory: 1},
	})
	st := e.State()
	app := &st.Apps[0]

	stepUntil(t, e, 2)
	require.Equal(t, ServerID(0), app.Server)
	assert.Equal(t, 4, app.Cores)
	assert.Equal(t, 8, app.Remaining)

	// evicted with 7 ticks left on 4 cores, resumed next to app 1
	stepUntil(t, e, 3)
	assert.Equal(t, ServerID(1), app.Server)
	assert.Equal(t, 2, app.Cores)
	assert.Equal(t, 14, app.Remaining)
	assert.Equal(t, 1, app.Migrations)
	assert.Zero(t, st.Servers[1].FreeCores)
}

func TestDegradableResumeScalesUp(t *testing.T) {
	// With a 1.5 multiplier app 0 takes 3 cores and app 1 gets the last one.
	e := elasticMigration(t, 1.5, []AppSpec{
		{Runtime: 100, Cores: 2, Memory: 1},
		{Runtime: 10, Cores: 2, Memory: 1},
	})
	st := e.State()
	big, small := &st.Apps[0], &st.Apps[1]

	stepUntil(t, e, 0)
	assert.Equal(t, 3, big.Cores)
	assert.Equal(t, 67, big.Remaining)
	assert.Equal(t, 1, small.Cores)
	assert.Equal(t, 20, small.Remaining)

	// Both are evicted at tick 3. The most recently paused resumes first
	// and gets 3 cores on the empty server.
	stepUntil(t, e, 3)
	assert.Equal(t, ServerID(1), small.Server)
	assert.Equal(t, 3, small.Cores, "scaled above its original 2 cores")
	assert.Equal(t, 6, small.Remaining, "17 core-ticks over 3 cores rounds up")

	assert.Equal(t, ServerID(1), big.Server)
	assert.Equal(t, 1, big.Cores)
	assert.Equal(t, 192, big.Remaining)
	assert.Equal(t, 2, st.totalMigrations)
}

func TestBatteryClamp(t *testing.T) {
	tr := traceFunc(20, 1, func(t, _ int) float64 {
		if t == 0 {
			return 300
		}
		return 0
	})
	nodes := []NodeSpec{site("solo", 0, 0, 0)}
	nodes[0].BatteryCapacity = 150
	nodes[0].InitialCharge = 500 // clamped to capacity

	e := newEngine(t, Config{
		Params: oneServer(Passive),
		Nodes:  nodes,
		Apps:   []AppSpec{{Runtime: 3, Cores: 1, Memory: 1}},
		Trace:  tr,
	})
	assert.Equal(t, 150.0, e.State().Nodes[0].BatteryCharge)

	stepUntil(t, e, 0)
	assert.Equal(t, 150.0, e.State().Nodes[0].BatteryCharge, "charge never exceeds capacity")
	stepUntil(t, e, 1)
	assert.Equal(t, 50.0, e.State().Nodes[0].BatteryCharge, "the battery covered one server")
	stepUntil(t, e, 2)
	// 50 W stored cannot power a 100 W server.
	assert.Equal(t, 0, e.State().ServersOn())
	assert.Equal(t, []AppID{0}, e.State().Paused)
	assert.Equal(t, 50.0, e.State().Nodes[0].BatteryCharge)
}

func TestNoBatteryStoresNothing(t *testing.T) {
	e := newEngine(t, Config{
		Params: oneServer(Passive),
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   []AppSpec{{Runtime: 3, Cores: 1, Memory: 1}},
		Trace:  constant(20, 1, 1000),
	})
	stepUntil(t, e, 2)
	assert.Zero(t, e.State().Nodes[0].BatteryCharge)
}
