package sim

import (
	"fmt"
)

// start places app on server. The caller must have checked fits; a violated
// precondition is a logic bug and panics.
func (st *State) start(sid ServerID, aid AppID) {
	srv := &st.Servers[sid]
	app := &st.Apps[aid]
	if app.Cores > srv.FreeCores || app.Memory > srv.FreeMemory {
		panic(fmt.Sprintf("capacity violation: app %d needs %d cores/%d MB, server %d has %d cores/%d MB free",
			aid, app.Cores, app.Memory, sid, srv.FreeCores, srv.FreeMemory))
	}
	if app.Server != NoServer {
		panic(fmt.Sprintf("app %d already resident on server %d", aid, app.Server))
	}

	srv.FreeCores -= app.Cores
	srv.FreeMemory -= app.Memory
	srv.Residents = append(srv.Residents, aid)
	app.Server = sid
}

// stop removes app from server and restores the capacity it held.
func (st *State) stop(sid ServerID, aid AppID) {
	srv := &st.Servers[sid]
	app := &st.Apps[aid]

	idx := -1
	for i, r := range srv.Residents {
		if r == aid {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("app %d is not resident on server %d", aid, sid))
	}

	srv.Residents = append(srv.Residents[:idx], srv.Residents[idx+1:]...)
	srv.FreeCores += app.Cores
	srv.FreeMemory += app.Memory
	if srv.FreeCores > srv.TotalCores || srv.FreeMemory > srv.TotalMemory {
		panic(fmt.Sprintf("capacity violation: server %d over-restored to %d cores/%d MB",
			sid, srv.FreeCores, srv.FreeMemory))
	}
	app.Server = NoServer
}

// fit returns the core allocation app would get on server, or 0 if it does
// not fit. In degradable mode the allocation is scaled to the free cores, up
// to OriginalCores × multiplier and at least one core.
func fit(srv *Server, app *Application, degradable bool, multiplier float64) int {
	if app.Memory > srv.FreeMemory {
		return 0
	}
	if !degradable {
		if app.Cores > srv.FreeCores {
			return 0
		}
		return app.Cores
	}

	limit := int(float64(app.OriginalCores) * multiplier)
	if limit < 1 {
		limit = 1
	}
	cores := srv.FreeCores
	if cores > limit {
		cores = limit
	}
	if cores < 1 {
		return 0
	}
	return cores
}

// rescale changes app's core allocation while conserving cores × remaining.
func rescale(app *Application, cores int) {
	if cores == app.Cores {
		return
	}
	work := app.Cores * app.Remaining
	app.Remaining = (work + cores - 1) / cores
	app.Cores = cores
}

// place starts app on server with the given core allocation.
func (st *State) place(sid ServerID, aid AppID, cores int) {
	rescale(&st.Apps[aid], cores)
	st.start(sid, aid)
}

// CheckInvariants verifies capacity bookkeeping and single ownership of every
// application. It is used by tests and by the engine in debug runs.
func (st *State) CheckInvariants() error {
	owner := make([]int, len(st.Apps))
	for i := range st.Servers {
		srv := &st.Servers[i]
		if srv.FreeCores < 0 || srv.FreeMemory < 0 {
			return fmt.Errorf("server %d has negative free capacity (%d cores, %d MB)", i, srv.FreeCores, srv.FreeMemory)
		}
		cores, mem := 0, 0
		for _, aid := range srv.Residents {
			cores += st.Apps[aid].Cores
			mem += st.Apps[aid].Memory
			owner[aid]++
			if st.Apps[aid].Server != srv.ID {
				return fmt.Errorf("app %d resident on server %d but points to %d", aid, i, st.Apps[aid].Server)
			}
		}
		if srv.FreeCores+cores != srv.TotalCores {
			return fmt.Errorf("server %d core bookkeeping: free %d + used %d != total %d", i, srv.FreeCores, cores, srv.TotalCores)
		}
		if srv.FreeMemory+mem != srv.TotalMemory {
			return fmt.Errorf("server %d memory bookkeeping: free %d + used %d != total %d", i, srv.FreeMemory, mem, srv.TotalMemory)
		}
	}
	for _, aid := range st.Queue {
		owner[aid]++
	}
	for _, aid := range st.Paused {
		owner[aid]++
	}
	for _, aid := range st.Completed {
		owner[aid]++
	}
	for aid, n := range owner {
		if n != 1 {
			return fmt.Errorf("app %d is owned by %d collections", aid, n)
		}
	}
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if n.BatteryCharge < 0 || n.BatteryCharge > n.BatteryCapacity {
			return fmt.Errorf("node %d battery %v outside [0, %v]", i, n.BatteryCharge, n.BatteryCapacity)
		}
	}
	return nil
}
