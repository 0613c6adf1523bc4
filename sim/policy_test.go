package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name string
		want PolicyKind
	}{
		{"passive", Passive},
		{"Greedy", Greedy},
		{"super-greedy", SuperGreedy},
		{"yolo", YOLO},
		{"YOLO", YOLO},
		{" look-ahead ", LookAhead},
		{"PRACTICAL", Practical},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := ParsePolicy("teleport")
	assert.ErrorContains(t, err, "unknown migration policy")
}

func TestPolicyText(t *testing.T) {
	for _, p := range AllPolicies {
		text, err := p.MarshalText()
		require.NoError(t, err)

		var back PolicyKind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}

	_, err := PolicyKind(42).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Unknown(42)", PolicyKind(42).String())
	assert.False(t, PolicyKind(42).Valid())
}

func TestReevaluatesOnArrival(t *testing.T) {
	want := map[PolicyKind]bool{
		Passive:     false,
		Greedy:      true,
		SuperGreedy: true,
		YOLO:        false,
		LookAhead:   false,
		Practical:   true,
	}
	for p, w := range want {
		assert.Equal(t, w, p.reevaluatesOnArrival(), p.String())
	}
}

// pausedAt builds an engine over three sites with a single application
// paused at node loc, and the given per-node power at tick 0.
func pausedAt(t *testing.T, policy PolicyKind, loc NodeID, power []float64) (*Engine, *Application) {
	t.Helper()
	params := oneServer(policy)
	params.Bandwidth = Bandwidth{Model: LinearCost, CostMultiplier: 0.001}
	e := newEngine(t, Config{
		Params: params,
		Nodes:  threeSites(),
		Apps:   []AppSpec{{Runtime: 5, Cores: 1, Memory: 1}},
		Trace:  traceFunc(10, 3, func(_, c int) float64 { return power[c] }),
	})
	app := &e.State().Apps[0]
	app.Location = loc
	app.LastNode = loc
	return e, app
}

func TestDecideGreedy(t *testing.T) {
	// phoenix and tokyo are powered; new-york is closer to phoenix.
	e, app := pausedAt(t, Greedy, 1, []float64{150, 0, 150})
	d := e.decide(app, 0)
	assert.Equal(t, NodeID(0), d.target)
	assert.Equal(t, e.delayTo(app, 0), d.delay)

	// Staying put wins when the current node has power.
	e, app = pausedAt(t, Greedy, 2, []float64{150, 0, 150})
	assert.Equal(t, NodeID(2), e.decide(app, 0).target)
	assert.Zero(t, e.decide(app, 0).delay)

	// Nothing meets the threshold: fall back to the most power.
	e, app = pausedAt(t, Greedy, 0, []float64{10, 90, 20})
	assert.Equal(t, NodeID(1), e.decide(app, 0).target)
}

func TestDecideSuperGreedy(t *testing.T) {
	e, app := pausedAt(t, SuperGreedy, 0, []float64{150, 120, 900})
	assert.Equal(t, NodeID(2), e.decide(app, 0).target)

	// Equal power: the shorter delay wins.
	e, app = pausedAt(t, SuperGreedy, 1, []float64{500, 0, 500})
	assert.Equal(t, NodeID(0), e.decide(app, 0).target)
}

func TestDecideYOLO(t *testing.T) {
	e, app := pausedAt(t, YOLO, 2, []float64{0, 0, 1000})
	d := e.decide(app, 0)
	nearest, _ := e.Topology().Nearest(2)
	assert.Equal(t, NodeID(nearest), d.target, "ignores power")
	assert.Positive(t, d.delay)
}

func TestDecidePassive(t *testing.T) {
	e, app := pausedAt(t, Passive, 1, []float64{1000, 0, 1000})
	app.LastServer = 1
	d := e.decide(app, 0)
	assert.Equal(t, NodeID(1), d.target)
	assert.Equal(t, ServerID(1), d.targetServer)
	assert.Zero(t, d.delay)
}
