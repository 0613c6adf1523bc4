package sim

// delayTo returns the transfer delay for moving app from its current
// location to node n.
func (e *Engine) delayTo(app *Application, n NodeID) int {
	if app.Location == NoNode || app.Location == n {
		return 0
	}
	return e.params.Bandwidth.TransferDelay(app.Memory, e.topo.Distance(int(app.Location), int(n)))
}

// decide runs the configured policy for one paused application.
func (e *Engine) decide(app *Application, tick int) decision {
	switch e.params.Policy {
	case Passive:
		return decision{target: app.LastNode, targetServer: app.LastServer}
	case Greedy:
		return e.decideGreedy(app, tick)
	case SuperGreedy:
		return e.decideSuperGreedy(app, tick)
	case YOLO:
		return e.decideYOLO(app)
	case LookAhead:
		return e.decideLookAhead(app, tick)
	case Practical:
		return e.decidePractical(app, tick)
	default:
		panic("unhandled migration policy " + e.params.Policy.String())
	}
}

func (e *Engine) wait(app *Application) decision {
	return decision{target: app.Location, targetServer: NoServer}
}

// decideGreedy picks the closest node (by delay) whose generated power meets
// the threshold, staying put on ties. If no node qualifies it falls back to
// the node with the most power.
func (e *Engine) decideGreedy(app *Application, tick int) decision {
	best := decision{target: NoNode, targetServer: NoServer}
	for i := range e.state.Nodes {
		n := NodeID(i)
		if e.generated(n, tick) < e.params.PowerPerServer {
			continue
		}
		d := e.delayTo(app, n)
		if best.target == NoNode || d < best.delay || (d == best.delay && n == app.Location) {
			best = decision{target: n, targetServer: NoServer, delay: d}
		}
	}
	if best.target != NoNode {
		return best
	}
	return e.decideSuperGreedy(app, tick)
}

// decideSuperGreedy picks the node with the most generated power; ties go to
// the shorter delay, then the lower node ID.
func (e *Engine) decideSuperGreedy(app *Application, tick int) decision {
	best := decision{target: NoNode, targetServer: NoServer}
	bestPower := 0.0
	for i := range e.state.Nodes {
		n := NodeID(i)
		p := e.generated(n, tick)
		d := e.delayTo(app, n)
		if best.target == NoNode || p > bestPower || (p == bestPower && d < best.delay) {
			best = decision{target: n, targetServer: NoServer, delay: d}
			bestPower = p
		}
	}
	return best
}

// decideYOLO always targets the nearest neighbor of the current location.
func (e *Engine) decideYOLO(app *Application) decision {
	nn, _ := e.topo.Nearest(int(app.Location))
	n := NodeID(nn)
	return decision{target: n, targetServer: NoServer, delay: e.delayTo(app, n)}
}

// pickEarliest chooses among per-node first-powered ticks the one with the
// least additional delay, preferring to wait at the current location on ties.
// firstPowered returns -1 for nodes that never qualify.
func (e *Engine) pickEarliest(app *Application, tick int, firstPowered func(n NodeID, arrival int) int) decision {
	best := e.wait(app)
	bestWait := -1
	for i := range e.state.Nodes {
		n := NodeID(i)
		d := e.delayTo(app, n)
		t := firstPowered(n, tick+d)
		if t < 0 {
			continue
		}
		w := t - tick
		if bestWait < 0 || w < bestWait || (w == bestWait && n == app.Location && best.target != app.Location) {
			best = decision{target: n, targetServer: NoServer, delay: d}
			bestWait = w
		}
	}
	return best
}

// decideLookAhead scans the true future trace (oracle).
func (e *Engine) decideLookAhead(app *Application, tick int) decision {
	if e.oracle == nil {
		e.oracle = newPowerIndex(e)
	}
	return e.pickEarliest(app, tick, e.oracle.firstPowered)
}

// decidePractical uses the causal forecast. Nodes without usable history are
// skipped; if none clears the threshold the application waits where it is.
func (e *Engine) decidePractical(app *Application, tick int) decision {
	if e.forecast == nil {
		e.forecast = newForecaster(e.params.TicksPerHour)
	}
	view := HistoryView{trace: e.trace, Now: tick}
	return e.pickEarliest(app, tick, func(n NodeID, arrival int) int {
		return e.forecast.firstPowered(view, &e.state.Nodes[n], arrival, e.params.PowerPerServer)
	})
}

// resumeApplications advances every paused application through
// Idle → InTransit → resumed, in paused-list order.
func (e *Engine) resumeApplications(tick int) {
	st := e.state
	if len(st.Paused) == 0 {
		return
	}

	remaining := make([]AppID, 0, len(st.Paused))
	for _, aid := range st.Paused {
		app := &st.Apps[aid]

		switch {
		case app.Transit.Phase == Idle:
			d := e.decide(app, tick)
			app.Transit = Transit{
				Phase:          InTransit,
				TicksRemaining: d.delay,
				Target:         d.target,
				TargetServer:   d.targetServer,
				DecidedAt:      tick,
			}
			if d.target != app.Location {
				e.logger.Debugf("t=%d app %d transferring %s -> %s (delay %d)", tick, aid,
					st.Nodes[app.Location].Name, st.Nodes[d.target].Name, d.delay)
			}
		case app.Transit.TicksRemaining > 0:
			app.Transit.TicksRemaining--
		}

		if app.Transit.TicksRemaining > 0 {
			remaining = append(remaining, aid)
			continue
		}

		if e.tryResume(aid, tick) {
			continue
		}

		// arrived without room
		app.Location = app.Transit.Target
		if e.params.Policy.reevaluatesOnArrival() {
			app.Transit = Transit{Phase: Idle, Target: NoNode, TargetServer: NoServer}
		}
		remaining = append(remaining, aid)
	}
	st.Paused = remaining
}

// tryResume starts a paused application at its transit target if a
// powered-on server there has room.
func (e *Engine) tryResume(aid AppID, tick int) bool {
	st := e.state
	app := &st.Apps[aid]

	var candidates []ServerID
	if app.Transit.TargetServer != NoServer {
		candidates = []ServerID{app.Transit.TargetServer}
	} else {
		candidates = st.Nodes[app.Transit.Target].Servers
	}

	for _, sid := range candidates {
		srv := &st.Servers[sid]
		if !srv.On {
			continue
		}
		cores := fit(srv, app, e.params.Degradable, e.params.DegradableMultiplier)
		if cores == 0 {
			continue
		}
		st.place(sid, aid, cores)
		app.Location = srv.Node
		app.Transit = Transit{Phase: Idle, Target: NoNode, TargetServer: NoServer}
		if srv.Node != app.LastNode {
			app.Migrations++
			st.totalMigrations++
			e.tick.migrations++
			e.tick.migratedFrom = append(e.tick.migratedFrom, [2]NodeID{app.LastNode, srv.Node})
			e.logger.Debugf("t=%d app %d migrated %s -> %s", tick, aid,
				st.Nodes[app.LastNode].Name, st.Nodes[srv.Node].Name)
		}
		return true
	}
	return false
}
