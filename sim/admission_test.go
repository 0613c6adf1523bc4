package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionLookahead(t *testing.T) {
	apps := []AppSpec{
		{Runtime: 10, Cores: 3, Memory: 1},
		{Runtime: 10, Cores: 2, Memory: 1},
		{Runtime: 10, Cores: 2, Memory: 1},
		{Runtime: 10, Cores: 1, Memory: 1},
		{Runtime: 10, Cores: 1, Memory: 1},
	}
	params := oneServer(Passive)
	params.AdmissionLookahead = 2
	e := newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   apps,
		Trace:  constant(40, 1, 100),
	})
	st := e.State()

	stepUntil(t, e, 0)
	assert.Equal(t, ServerID(0), st.Apps[0].Server)
	assert.Equal(t, 1, st.Servers[0].FreeCores)
	assert.Equal(t, []AppID{1, 2, 3, 4}, st.Queue)
	assert.Equal(t, -1, st.Apps[3].StartTick, "app 3 fits but lies outside the window")

	stepUntil(t, e, 1)
	assert.Equal(t, []AppID{1, 2, 3, 4}, st.Queue)
	assert.Equal(t, NoServer, st.Apps[3].Server)

	// The default window reaches it on the first tick.
	e = newEngine(t, Config{
		Params: oneServer(Passive),
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   apps,
		Trace:  constant(40, 1, 100),
	})
	stepUntil(t, e, 0)
	st = e.State()
	assert.Equal(t, ServerID(0), st.Apps[3].Server)
	assert.Equal(t, 0, st.Apps[3].StartTick)
	assert.Equal(t, []AppID{1, 2, 4}, st.Queue)
}

func TestAdmissionAcrossServersKeepsOrder(t *testing.T) {
	params := oneServer(Passive)
	params.ServersPerNode = 2
	params.AdmissionLookahead = 2
	e := newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps: []AppSpec{
			{Runtime: 10, Cores: 3, Memory: 1},
			{Runtime: 10, Cores: 3, Memory: 1},
			{Runtime: 10, Cores: 3, Memory: 1},
			{Runtime: 10, Cores: 1, Memory: 1},
		},
		Trace: constant(40, 1, 200),
	})
	stepUntil(t, e, 0)
	st := e.State()

	assert.Equal(t, ServerID(0), st.Apps[0].Server)
	assert.Equal(t, ServerID(1), st.Apps[1].Server, "entries admitted by server 0 do not use server 1's window")
	assert.Equal(t, []AppID{2, 3}, st.Queue)
}

func TestAdmissionLeavesUnscannedTailInPlace(t *testing.T) {
	params := oneServer(Passive)
	params.AdmissionLookahead = 2
	e := newEngine(t, Config{
		Params: params,
		Nodes:  []NodeSpec{site("solo", 0, 0, 0)},
		Apps:   uniformApps(100, 50, 3),
		Trace:  constant(10, 1, 100),
	})
	st := e.State()
	tail := &st.Queue[len(st.Queue)-1]

	// admits app 0, rejects app 1
	stepUntil(t, e, 0)
	require.Len(t, st.Queue, 99)
	assert.Equal(t, AppID(1), st.Queue[0])
	assert.Same(t, tail, &st.Queue[len(st.Queue)-1], "the tail past the window is not copied")

	// nothing fits: the queue is not rebuilt at all
	head := &st.Queue[0]
	stepUntil(t, e, 1)
	require.Len(t, st.Queue, 99)
	assert.Same(t, head, &st.Queue[0])
	assert.Same(t, tail, &st.Queue[len(st.Queue)-1])
	for i, aid := range st.Queue {
		assert.Equal(t, AppID(i+1), aid)
	}
}

func uniformApps(n, runtime, cores int) []AppSpec {
	apps := make([]AppSpec, n)
	for i := range apps {
		apps[i] = AppSpec{Runtime: runtime, Cores: cores, Memory: 1}
	}
	return apps
}

// BenchmarkStep_LargeQueue keeps every server of a large deployment
// scanning a long queue; per-tick cost is bounded by the lookahead window.
func BenchmarkStep_LargeQueue(b *testing.B) {
	const servers = 225
	row := []float64{1e6, 1e6, 1e6}
	trace := make(Trace, b.N+2)
	for i := range trace {
		trace[i] = row
	}
	e, err := NewEngine(Config{
		Params: Params{
			ServersPerNode:     servers,
			CoresPerServer:     8,
			MemoryPerServer:    1 << 20,
			PowerPerServer:     100,
			Policy:             Passive,
			Bandwidth:          Bandwidth{Model: LinearCost},
			GlobalApplications: true,
		},
		Nodes: threeSites(),
		Apps:  uniformApps(100000, 1<<30, 5),
		Trace: trace,
	})
	require.NoError(b, err)
	_, err = e.Step()
	require.NoError(b, err)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Step(); err != nil {
			b.Fatal(err)
		}
	}
}
