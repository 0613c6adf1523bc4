package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryView_Causal(t *testing.T) {
	tr := traceFunc(10, 1, func(t, _ int) float64 { return float64(t) })
	h := HistoryView{trace: tr, Now: 4}

	v, ok := h.At(0, 4)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = h.At(0, 5)
	assert.False(t, ok, "the future is not observable")
	_, ok = h.At(0, -1)
	assert.False(t, ok)

	mean, ok := h.Mean(0, 2, 3)
	assert.True(t, ok)
	assert.Equal(t, 3.0, mean)

	_, ok = h.Mean(0, 3, 3)
	assert.False(t, ok, "a window reaching past Now is rejected")
	_, ok = h.Mean(0, -1, 2)
	assert.False(t, ok)
	_, ok = h.Mean(0, 0, 0)
	assert.False(t, ok)
}

func TestForecaster_ScalesYesterday(t *testing.T) {
	// hour = 2 ticks, day = 48 ticks. Yesterday was a flat 100, today's
	// last hour reads 50, so every slot forecasts 50.
	tr := traceFunc(200, 1, func(t, _ int) float64 {
		if t < 48 {
			return 100
		}
		return 50
	})
	f := newForecaster(2)
	h := HistoryView{trace: tr, Now: 59}

	r, ok := f.ratio(h, 0)
	require.True(t, ok)
	assert.Equal(t, 0.5, r)

	v, ok := f.forecast(h, 0, 60)
	require.True(t, ok)
	assert.Equal(t, 50.0, v)
}

func TestForecaster_DarkYesterdayRatioIsOne(t *testing.T) {
	tr := traceFunc(200, 1, func(t, _ int) float64 {
		if t < 48 {
			return 0
		}
		return 70
	})
	f := newForecaster(2)
	r, ok := f.ratio(HistoryView{trace: tr, Now: 59}, 0)
	require.True(t, ok)
	assert.Equal(t, 1.0, r)
}

func TestForecaster_NeedsOneDayOfHistory(t *testing.T) {
	f := newForecaster(2)
	h := HistoryView{trace: constant(200, 1, 100), Now: 40}
	node := &Node{PVEfficiency: 1, PVArea: 1}
	assert.Equal(t, -1, f.firstPowered(h, node, 41, 50))
}

func TestForecaster_FirstPowered(t *testing.T) {
	// Yesterday's power came on at tick 20 (slot 20..21).
	tr := traceFunc(200, 1, func(t, _ int) float64 {
		if t%48 >= 20 && t%48 < 30 {
			return 100
		}
		return 0
	})
	node := &Node{PVEfficiency: 1, PVArea: 1}

	f := newForecaster(2)
	h := HistoryView{trace: tr, Now: 60}
	// Last hour today is dark, as was yesterday's: ratio 1.
	assert.Equal(t, 68, f.firstPowered(h, node, 61, 100))
	assert.Equal(t, 70, f.firstPowered(h, node, 70, 100), "already inside a powered slot")
	assert.Equal(t, -1, f.firstPowered(h, node, 61, 200), "threshold never met")
}

func TestPowerIndex(t *testing.T) {
	tr := traceFunc(10, 2, func(t, c int) float64 {
		if c == 0 && (t == 3 || t == 7) {
			return 100
		}
		return 0
	})
	e := newEngine(t, Config{
		Params: oneServer(LookAhead),
		Nodes:  []NodeSpec{site("a", 0, 0, 0), site("b", 0, 1, 1)},
		Trace:  tr,
	})
	idx := newPowerIndex(e)
	assert.Equal(t, 3, idx.firstPowered(0, 0))
	assert.Equal(t, 3, idx.firstPowered(0, 3))
	assert.Equal(t, 7, idx.firstPowered(0, 4))
	assert.Equal(t, -1, idx.firstPowered(0, 8))
	assert.Equal(t, -1, idx.firstPowered(0, 50))
	assert.Equal(t, -1, idx.firstPowered(1, 0))
}
