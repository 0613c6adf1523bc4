package sim

// startApplications admits queued applications onto powered-on servers in
// node then server order. Each server scans at most AdmissionLookahead queue
// entries and takes every application that fits. Without GlobalApplications
// only the home node admits.
//
// Admitted applications are only marked while scanning; the queue is
// compacted once at the end, and only up to the furthest entry scanned.
func (e *Engine) startApplications(tick int) {
	st := e.state
	if len(st.Queue) == 0 {
		return
	}

	admitted, reach := 0, 0
scan:
	for ni := range st.Nodes {
		node := &st.Nodes[ni]
		if !e.params.GlobalApplications && node.ID != e.params.HomeNode {
			continue
		}
		for _, sid := range node.Servers {
			if admitted == len(st.Queue) {
				break scan
			}
			srv := &st.Servers[sid]
			if !srv.On || srv.FreeCores == 0 || srv.FreeMemory == 0 {
				continue
			}
			n, end := e.admitOnto(sid, tick)
			admitted += n
			reach = max(reach, end)
		}
	}
	if admitted > 0 {
		e.compactQueue(reach)
	}
}

// admitOnto scans the head of the queue for applications that fit server
// sid. It returns how many it admitted and the index one past the last queue
// entry it looked at.
func (e *Engine) admitOnto(sid ServerID, tick int) (int, int) {
	st := e.state
	srv := &st.Servers[sid]
	limit := e.params.AdmissionLookahead

	admitted, scanned := 0, 0
	i := 0
	for ; i < len(st.Queue); i++ {
		if scanned >= limit || srv.FreeCores == 0 || srv.FreeMemory == 0 {
			break
		}
		aid := st.Queue[i]
		if e.admitted[aid] {
			continue
		}
		scanned++

		app := &st.Apps[aid]
		cores := fit(srv, app, e.params.Degradable, e.params.DegradableMultiplier)
		if cores == 0 {
			continue
		}
		st.place(sid, aid, cores)
		app.StartTick = tick
		app.Location = srv.Node
		e.admitted[aid] = true
		admitted++
		e.tick.started++
	}
	return admitted, i
}

// compactQueue drops the applications admitted this tick from the first
// reach queue entries, keeping queue order. Entries past reach are never
// moved.
func (e *Engine) compactQueue(reach int) {
	st := e.state
	w := reach
	for i := reach - 1; i >= 0; i-- {
		aid := st.Queue[i]
		if e.admitted[aid] {
			e.admitted[aid] = false
			continue
		}
		w--
		st.Queue[w] = aid
	}
	st.Queue = st.Queue[w:]
}
