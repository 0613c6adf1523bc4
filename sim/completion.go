package sim

// completeApplications ages every application on a powered-on server by one
// tick and retires those that reach zero.
func (e *Engine) completeApplications(tick int) {
	st := e.state
	for i := range st.Servers {
		srv := &st.Servers[i]
		if !srv.On || srv.Idle() {
			continue
		}
		// stop() edits Residents, so walk a copy
		residents := append([]AppID(nil), srv.Residents...)
		for _, aid := range residents {
			app := &st.Apps[aid]
			app.Remaining--
			if app.Remaining > 0 {
				continue
			}
			st.stop(srv.ID, aid)
			app.Remaining = 0
			app.EndTick = tick
			app.LastServer = srv.ID
			app.LastNode = srv.Node
			app.Location = srv.Node
			st.Nodes[srv.Node].Completed++
			st.Completed = append(st.Completed, aid)
			e.tick.completed++
			e.logger.Debugf("t=%d app %d completed on node %s (overhead=%d, migrations=%d)",
				tick, aid, st.Nodes[srv.Node].Name, app.Overhead, app.Migrations)
		}
	}
}
