package sim

import "math"

// PowerGenerated returns the photovoltaic output of a node for one irradiance
// sample: efficiency × irradiance × area.
func PowerGenerated(n *Node, irradiance float64) float64 {
	return n.PVEfficiency * irradiance * n.PVArea
}

// generated returns node n's generated power at tick.
func (e *Engine) generated(n NodeID, tick int) float64 {
	node := &e.state.Nodes[n]
	return PowerGenerated(node, e.trace.At(tick, node.TraceIndex))
}

// mostServersOn returns how many servers node n can keep powered this tick
// from generation plus stored charge.
func (e *Engine) mostServersOn(n NodeID, tick int) int {
	available := e.generated(n, tick) + e.state.Nodes[n].BatteryCharge
	if available <= 0 {
		return 0
	}
	return int(math.Floor(available / e.params.PowerPerServer))
}

// updateBatteries stores generation not consumed by powered-on servers, or
// drains the battery to cover a shortfall, clamped to [0, capacity].
func (e *Engine) updateBatteries(tick int) {
	st := e.state
	for i := range st.Nodes {
		node := &st.Nodes[i]
		if node.BatteryCapacity <= 0 {
			node.BatteryCharge = 0
			continue
		}
		consumed := float64(st.nodeServersOn(node.ID)) * e.params.PowerPerServer
		charge := node.BatteryCharge + e.generated(node.ID, tick) - consumed
		node.BatteryCharge = math.Min(math.Max(charge, 0), node.BatteryCapacity)
	}
}
