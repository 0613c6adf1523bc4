package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

var (
	// QueueLength tracks the number of applications not yet admitted
	QueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgesim_queue_length",
			Help: "Number of applications waiting for first admission",
		},
		[]string{"run"},
	)

	// ApplicationsRunning tracks the number of applications resident on servers
	ApplicationsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgesim_applications_running",
			Help: "Number of applications resident on powered-on servers",
		},
		[]string{"run"},
	)

	// ApplicationsPaused tracks the number of evicted applications awaiting resume
	ApplicationsPaused = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgesim_applications_paused",
			Help: "Number of paused applications waiting to resume or in transit",
		},
		[]string{"run"},
	)

	// ServersOn tracks powered-on servers per node
	ServersOn = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgesim_servers_on",
			Help: "Number of powered-on servers per node",
		},
		[]string{"run", "node"},
	)

	// BatteryCharge tracks the stored charge per node
	BatteryCharge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgesim_battery_charge",
			Help: "Battery charge per node after the battery update phase",
		},
		[]string{"run", "node"},
	)

	// PowerGenerated tracks the photovoltaic output per node
	PowerGenerated = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "edgesim_power_generated_watts",
			Help: "Power generated per node in the current tick",
		},
		[]string{"run", "node"},
	)

	// CompletionsTotal counts completed applications
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesim_completions_total",
			Help: "Total number of completed applications",
		},
		[]string{"run"},
	)

	// PausesTotal counts applications paused by server evictions
	PausesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesim_pauses_total",
			Help: "Total number of application pauses caused by server evictions",
		},
		[]string{"run"},
	)

	// MigrationsTotal counts resumes on a different node than the one paused on
	MigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesim_migrations_total",
			Help: "Total number of migrations (resume on a node other than where the application was paused)",
		},
		[]string{"run", "from_node", "to_node"},
	)

	// TicksTotal counts simulated ticks
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edgesim_ticks_total",
			Help: "Total number of simulated ticks",
		},
		[]string{"run"},
	)

	// RunDuration tracks wall-clock duration of whole simulation runs
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edgesim_run_duration_seconds",
			Help:    "Wall-clock duration of simulation runs in seconds",
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 600},
		},
		[]string{"policy", "status"},
	)
)

// RecordMigration increments the migration counter for a pair of nodes
func RecordMigration(run, fromNode, toNode string) {
	if fromNode != "" && toNode != "" && fromNode != toNode {
		MigrationsTotal.WithLabelValues(run, fromNode, toNode).Inc()
	}
}

// RecordRunDuration records the wall-clock duration of a run in seconds
func RecordRunDuration(policy, status string, durationSeconds float64) {
	RunDuration.WithLabelValues(policy, status).Observe(durationSeconds)
}

// Observer exports every tick report of one engine to Prometheus.
type Observer struct {
	run string
}

// NewObserver creates an Observer labelling its series with run, the label of
// the simulation it watches. Runs of the same policy in a sweep keep
// separate series.
func NewObserver(run string) *Observer {
	return &Observer{run: run}
}

// OnTick implements sim.Observer.
func (o *Observer) OnTick(report sim.TickReport) {
	m := report.Metrics
	QueueLength.WithLabelValues(o.run).Set(float64(m.QueueLength))
	ApplicationsRunning.WithLabelValues(o.run).Set(float64(m.Running))
	ApplicationsPaused.WithLabelValues(o.run).Set(float64(m.Paused))
	TicksTotal.WithLabelValues(o.run).Inc()
	if m.NewlyCompleted > 0 {
		CompletionsTotal.WithLabelValues(o.run).Add(float64(m.NewlyCompleted))
	}
	if m.NewlyPaused > 0 {
		PausesTotal.WithLabelValues(o.run).Add(float64(m.NewlyPaused))
	}

	for _, n := range report.Nodes {
		ServersOn.WithLabelValues(o.run, n.Name).Set(float64(n.ServersOn))
		BatteryCharge.WithLabelValues(o.run, n.Name).Set(n.BatteryCharge)
		PowerGenerated.WithLabelValues(o.run, n.Name).Set(n.Generated)
	}
	for _, mv := range report.Migrations {
		RecordMigration(o.run, nodeName(report.Nodes, mv.From), nodeName(report.Nodes, mv.To))
	}
}

func nodeName(nodes []sim.NodeSnapshot, id sim.NodeID) string {
	if int(id) < 0 || int(id) >= len(nodes) {
		return ""
	}
	return nodes[id].Name
}
