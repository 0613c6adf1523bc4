package sim

import (
	"sort"
)

// completionProxy returns the smallest remaining runtime among the server's
// residents: how soon the server frees up work if it stays on.
func (st *State) completionProxy(sid ServerID) int {
	srv := &st.Servers[sid]
	proxy := -1
	for _, aid := range srv.Residents {
		if r := st.Apps[aid].Remaining; proxy < 0 || r < proxy {
			proxy = r
		}
	}
	return proxy
}

// shutdownServers powers every server on, then for each node powers off the
// servers its power budget cannot sustain. Idle servers go first; after that
// occupied servers are evicted in descending order of completion proxy, so
// the servers closest to finishing stay on. Proxy ties are broken by server
// ID: the higher ID is evicted first.
func (e *Engine) shutdownServers(tick int) {
	st := e.state
	for i := range st.Servers {
		st.Servers[i].On = true
	}

	var evicted []AppID
	for ni := range st.Nodes {
		node := &st.Nodes[ni]
		mostOn := e.mostServersOn(node.ID, tick)
		excess := len(node.Servers) - mostOn
		if excess <= 0 {
			continue
		}

		for _, sid := range node.Servers {
			if excess == 0 {
				break
			}
			if srv := &st.Servers[sid]; srv.Idle() {
				srv.On = false
				excess--
			}
		}
		if excess == 0 {
			continue
		}

		occupied := make([]ServerID, 0, len(node.Servers))
		proxies := make(map[ServerID]int, len(node.Servers))
		for _, sid := range node.Servers {
			if srv := &st.Servers[sid]; srv.On && !srv.Idle() {
				occupied = append(occupied, sid)
				proxies[sid] = st.completionProxy(sid)
			}
		}
		sort.SliceStable(occupied, func(i, j int) bool {
			pi, pj := proxies[occupied[i]], proxies[occupied[j]]
			if pi != pj {
				return pi < pj
			}
			return occupied[i] < occupied[j]
		})

		for k := len(occupied) - 1; k >= 0 && excess > 0; k-- {
			evicted = append(evicted, e.evictServer(occupied[k], tick)...)
			excess--
		}
	}

	if len(evicted) == 0 {
		return
	}
	// most recently paused first
	paused := make([]AppID, 0, len(evicted)+len(st.Paused))
	for k := len(evicted) - 1; k >= 0; k-- {
		paused = append(paused, evicted[k])
	}
	st.Paused = append(paused, st.Paused...)
}

// evictServer powers off a server and detaches its residents, returning them
// in the order they were stopped.
func (e *Engine) evictServer(sid ServerID, tick int) []AppID {
	st := e.state
	srv := &st.Servers[sid]
	srv.On = false

	residents := append([]AppID(nil), srv.Residents...)
	for _, aid := range residents {
		st.stop(sid, aid)
		app := &st.Apps[aid]
		app.LastServer = sid
		app.LastNode = srv.Node
		app.Location = srv.Node
		app.Transit = Transit{Phase: Idle, Target: NoNode, TargetServer: NoServer}
		app.Pauses++
		st.totalPauses++
		e.tick.paused++
		e.logger.Debugf("t=%d pausing app %d with %d ticks left on node %s",
			tick, aid, app.Remaining, st.Nodes[srv.Node].Name)
	}
	return residents
}
