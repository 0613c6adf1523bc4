package sim

import (
	"gonum.org/v1/gonum/stat"
)

// powerIndex is the look-ahead oracle: for every node and tick it stores the
// first tick at or after it whose true generated power meets the per-server
// threshold, or -1 if the rest of the trace never does.
type powerIndex struct {
	next [][]int32
}

func newPowerIndex(e *Engine) *powerIndex {
	idx := &powerIndex{next: make([][]int32, len(e.state.Nodes))}
	ticks := e.trace.Len()
	for n := range e.state.Nodes {
		col := make([]int32, ticks)
		next := int32(-1)
		for t := ticks - 1; t >= 0; t-- {
			if e.generated(NodeID(n), t) >= e.params.PowerPerServer {
				next = int32(t)
			}
			col[t] = next
		}
		idx.next[n] = col
	}
	return idx
}

// firstPowered returns the first tick ≥ from at which node n has power, or -1.
func (p *powerIndex) firstPowered(n NodeID, from int) int {
	col := p.next[n]
	if from < 0 {
		from = 0
	}
	if from >= len(col) {
		return -1
	}
	return int(col[from])
}

// HistoryView exposes the irradiance trace up to and including Now. Reads of
// later ticks fail, which keeps the practical policy causal.
type HistoryView struct {
	trace Trace
	Now   int
}

// At returns the irradiance of column col at tick, and false if tick lies in
// the future or before the trace starts.
func (h HistoryView) At(col, tick int) (float64, bool) {
	if tick < 0 || tick > h.Now || tick >= h.trace.Len() {
		return 0, false
	}
	return h.trace.At(tick, col), true
}

// Mean returns the mean irradiance of col over [start, start+length), and
// false if any tick of the window is not observable.
func (h HistoryView) Mean(col, start, length int) (float64, bool) {
	if length <= 0 || start < 0 || start+length-1 > h.Now || start+length > h.trace.Len() {
		return 0, false
	}
	window := make([]float64, length)
	for i := range window {
		window[i] = h.trace.At(start+i, col)
	}
	return stat.Mean(window, nil), true
}

// forecaster predicts irradiance from the previous day's profile, scaled by
// how today's last hour compares with yesterday's:
//
//	forecast(slot) = mean(yesterday, slot hour) × mean(today, last hour) / mean(yesterday, last hour)
type forecaster struct {
	hour int
	day  int

	// slot means depend only on the trace, ratios only on the current tick
	slotMeans map[[2]int]float64
	ratioTick int
	ratios    map[int]ratioEntry
}

type ratioEntry struct {
	value float64
	ok    bool
}

func newForecaster(ticksPerHour int) *forecaster {
	return &forecaster{
		hour:      ticksPerHour,
		day:       24 * ticksPerHour,
		slotMeans: make(map[[2]int]float64),
		ratioTick: -1,
		ratios:    make(map[int]ratioEntry),
	}
}

// ratio returns today's last hour over yesterday's same hour for col. A dark
// hour yesterday gives a ratio of 1.
func (f *forecaster) ratio(h HistoryView, col int) (float64, bool) {
	if f.ratioTick != h.Now {
		f.ratioTick = h.Now
		f.ratios = make(map[int]ratioEntry)
	}
	if r, ok := f.ratios[col]; ok {
		return r.value, r.ok
	}

	start := h.Now - f.hour + 1
	today, ok1 := h.Mean(col, start, f.hour)
	yesterday, ok2 := h.Mean(col, start-f.day, f.hour)
	entry := ratioEntry{ok: ok1 && ok2}
	if entry.ok {
		if yesterday == 0 {
			entry.value = 1
		} else {
			entry.value = today / yesterday
		}
	}
	f.ratios[col] = entry
	return entry.value, entry.ok
}

// forecast returns the predicted irradiance of col during the hour slot that
// starts at slotStart.
func (f *forecaster) forecast(h HistoryView, col, slotStart int) (float64, bool) {
	r, ok := f.ratio(h, col)
	if !ok {
		return 0, false
	}
	start := slotStart - f.day
	key := [2]int{col, start}
	mean, cached := f.slotMeans[key]
	if !cached {
		var ok bool
		mean, ok = h.Mean(col, start, f.hour)
		if !ok {
			return 0, false
		}
		f.slotMeans[key] = mean
	}
	return mean * r, true
}

// firstPowered returns the first tick ≥ arrival at which node's forecast
// power meets threshold, or -1 when no usable forecast clears it. Only slots
// whose previous-day window is already observed are considered, which limits
// the horizon to about one day.
func (f *forecaster) firstPowered(h HistoryView, node *Node, arrival int, threshold float64) int {
	slot := (arrival / f.hour) * f.hour
	for ; slot-f.day+f.hour-1 <= h.Now; slot += f.hour {
		if slot-f.day < 0 {
			continue
		}
		irr, ok := f.forecast(h, node.TraceIndex, slot)
		if !ok {
			return -1
		}
		if PowerGenerated(node, irr) >= threshold {
			if slot > arrival {
				return slot
			}
			return arrival
		}
	}
	return -1
}
