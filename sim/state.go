package sim

import (
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/topology"
)

// NodeID, ServerID and AppID are handles into the arenas owned by State.
type (
	NodeID   int
	ServerID int
	AppID    int
)

// NoServer marks an application that is not resident on any server.
const NoServer ServerID = -1

// NoNode marks an application that has never run anywhere.
const NoNode NodeID = -1

// Node is a solar-powered edge site.
type Node struct {
	ID              NodeID
	Name            string
	PVEfficiency    float64
	PVArea          float64
	Coord           topology.Coord
	BatteryCapacity float64
	BatteryCharge   float64
	Servers         []ServerID
	// TraceIndex is the column of this node in the irradiance trace.
	TraceIndex int
	// Completed counts applications that finished on this node.
	Completed int
}

// Server is a fixed-capacity compute unit owned by a Node.
type Server struct {
	ID          ServerID
	Node        NodeID
	TotalCores  int
	TotalMemory int
	FreeCores   int
	FreeMemory  int
	On          bool
	Residents   []AppID
}

// Idle reports whether no application is resident on the server.
func (s *Server) Idle() bool {
	return len(s.Residents) == 0
}

// TransitPhase distinguishes a paused application with no placement decision
// from one that is moving toward (or waiting at) a chosen target.
type TransitPhase int

const (
	// Idle - no decision has been made for the paused application
	Idle TransitPhase = iota
	// InTransit - a target was chosen; TicksRemaining counts down the transfer
	InTransit
)

func (p TransitPhase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case InTransit:
		return "InTransit"
	default:
		return "Unknown"
	}
}

// Transit is the migration state of a paused application.
type Transit struct {
	Phase          TransitPhase
	TicksRemaining int
	Target         NodeID
	// TargetServer is only set by the passive policy, which waits for one
	// specific server.
	TargetServer ServerID
	// DecidedAt is the tick the decision was made; the countdown starts on
	// the following tick.
	DecidedAt int
}

// Application is a unit of work with a core/memory requirement.
type Application struct {
	ID             AppID
	OriginalCores  int
	OriginalMemory int
	Cores          int
	Memory         int
	Runtime        int
	Remaining      int
	Overhead       int
	StartTick      int
	EndTick        int

	Server     ServerID
	LastServer ServerID
	LastNode   NodeID
	// Location is the node currently holding the application's data.
	Location NodeID
	Transit  Transit

	Pauses     int
	Migrations int
}

// Done reports whether the application has completed.
func (a *Application) Done() bool {
	return a.EndTick >= 0
}

// State is the whole mutable simulation state. Phase functions receive it by
// pointer; nothing else mutates it.
type State struct {
	Tick    int
	Nodes   []Node
	Servers []Server
	Apps    []Application

	Queue     []AppID
	Paused    []AppID
	Completed []AppID

	// totals since the start of the run
	totalPauses     int
	totalMigrations int
}

// NewState builds the node/server arenas and the initial queue.
func NewState(nodes []NodeSpec, serversPerNode, coresPerServer, memoryPerServer int, apps []AppSpec) *State {
	st := &State{
		Tick:    -1,
		Nodes:   make([]Node, 0, len(nodes)),
		Servers: make([]Server, 0, len(nodes)*serversPerNode),
		Apps:    make([]Application, 0, len(apps)),
		Queue:   make([]AppID, 0, len(apps)),
	}

	for i, spec := range nodes {
		n := Node{
			ID:              NodeID(i),
			Name:            spec.Name,
			PVEfficiency:    spec.PVEfficiency,
			PVArea:          spec.PVArea,
			Coord:           spec.Coord,
			BatteryCapacity: spec.BatteryCapacity,
			BatteryCharge:   spec.InitialCharge,
			TraceIndex:      spec.TraceIndex,
		}
		if n.BatteryCharge > n.BatteryCapacity {
			n.BatteryCharge = n.BatteryCapacity
		}
		for j := 0; j < serversPerNode; j++ {
			sid := ServerID(len(st.Servers))
			st.Servers = append(st.Servers, Server{
				ID:          sid,
				Node:        n.ID,
				TotalCores:  coresPerServer,
				TotalMemory: memoryPerServer,
				FreeCores:   coresPerServer,
				FreeMemory:  memoryPerServer,
			})
			n.Servers = append(n.Servers, sid)
		}
		st.Nodes = append(st.Nodes, n)
	}

	for i, spec := range apps {
		id := AppID(i)
		st.Apps = append(st.Apps, Application{
			ID:             id,
			OriginalCores:  spec.Cores,
			OriginalMemory: spec.Memory,
			Cores:          spec.Cores,
			Memory:         spec.Memory,
			Runtime:        spec.Runtime,
			Remaining:      spec.Runtime,
			StartTick:      -1,
			EndTick:        -1,
			Server:         NoServer,
			LastServer:     NoServer,
			LastNode:       NoNode,
			Location:       NoNode,
		})
		st.Queue = append(st.Queue, id)
	}
	return st
}

// Running returns the number of applications resident on any server.
func (st *State) Running() int {
	count := 0
	for i := range st.Servers {
		count += len(st.Servers[i].Residents)
	}
	return count
}

// ServersOn returns the number of powered-on servers.
func (st *State) ServersOn() int {
	count := 0
	for i := range st.Servers {
		if st.Servers[i].On {
			count++
		}
	}
	return count
}

// nodeServersOn returns the number of powered-on servers of node n.
func (st *State) nodeServersOn(n NodeID) int {
	count := 0
	for _, sid := range st.Nodes[n].Servers {
		if st.Servers[sid].On {
			count++
		}
	}
	return count
}

// Drained reports whether every application has completed.
func (st *State) Drained() bool {
	return len(st.Queue) == 0 && len(st.Paused) == 0 && st.Running() == 0
}
