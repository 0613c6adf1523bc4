package config

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/topology"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/postgres"
)

// Node placement modes
const (
	PlacementAssigned = "assigned"
	PlacementRandom   = "random"
)

// SimulationConfig holds the server fleet and run-wide engine settings
type SimulationConfig struct {
	ServersPerNode       int     `yaml:"servers_per_node"`
	CoresPerServer       int     `yaml:"cores_per_server"`
	MemoryPerServer      int     `yaml:"memory_per_server"` // MB
	PowerPerServer       float64 `yaml:"power_per_server"`  // W
	Policy               string  `yaml:"policy"`
	GlobalApplications   *bool   `yaml:"global_applications"` // default true
	HomeNode             string  `yaml:"home_node"`           // node name or index
	Degradable           bool    `yaml:"degradable"`
	DegradableMultiplier float64 `yaml:"degradable_multiplier"`
	AdmissionLookahead   int     `yaml:"admission_lookahead"`
	MaxTicks             int     `yaml:"max_ticks"`
	TicksPerHour         int     `yaml:"ticks_per_hour"`
	CheckInvariants      bool    `yaml:"check_invariants"`
}

// BandwidthConfig selects the transfer delay model
type BandwidthConfig struct {
	Model          string  `yaml:"model"` // power-law or linear-cost
	Coefficient    float64 `yaml:"coefficient"`
	Exponent       float64 `yaml:"exponent"`
	CostMultiplier float64 `yaml:"cost_multiplier"`
}

// PowerConfig holds the defaults applied to every node
type PowerConfig struct {
	PVEfficiency  float64 `yaml:"pv_efficiency"`
	PVArea        float64 `yaml:"pv_area"` // m²
	BatterySize   float64 `yaml:"battery_size"`
	InitialCharge float64 `yaml:"initial_charge"`
}

// NodeConfig describes one edge site. Pointer fields override PowerConfig.
type NodeConfig struct {
	Name          string   `yaml:"name"`
	Lat           float64  `yaml:"lat"`
	Lon           float64  `yaml:"lon"`
	TraceIndex    *int     `yaml:"trace_index"` // default: position in the list
	PVEfficiency  *float64 `yaml:"pv_efficiency"`
	PVArea        *float64 `yaml:"pv_area"`
	BatterySize   *float64 `yaml:"battery_size"`
	InitialCharge *float64 `yaml:"initial_charge"`
}

// TracesConfig points at the input traces
type TracesConfig struct {
	Workload       string `yaml:"workload"`
	Irradiance     string `yaml:"irradiance"`
	FilterWorkload bool   `yaml:"filter_workload"` // drop entries larger than one server
}

// OutputConfig controls the report file
type OutputConfig struct {
	Report string `yaml:"report"` // "" or "-" means stdout
	Label  string `yaml:"label"`
}

// PostgresConfig enables persisting runs
type PostgresConfig struct {
	Enabled         bool `yaml:"enabled"`
	postgres.Config `yaml:",inline"`
}

// MetricsConfig enables the Prometheus endpoint
type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables
}

// SweepConfig lists the parameter grid explored by cmd/sweep
type SweepConfig struct {
	Policies        []string  `yaml:"policies"`
	CostMultipliers []float64 `yaml:"cost_multipliers"`
	BatterySizes    []float64 `yaml:"battery_sizes"`
	Workers         int       `yaml:"workers"`
}

// Config is the root configuration structure
type Config struct {
	Version    int              `yaml:"version"`
	LogLevel   string           `yaml:"log_level"`
	Placement  string           `yaml:"placement"` // assigned or random
	Seed       uint64           `yaml:"seed"`      // for random placement
	Simulation SimulationConfig `yaml:"simulation"`
	Bandwidth  BandwidthConfig  `yaml:"bandwidth"`
	Power      PowerConfig      `yaml:"power"`
	Nodes      []NodeConfig     `yaml:"nodes"`
	Traces     TracesConfig     `yaml:"traces"`
	Output     OutputConfig     `yaml:"output"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Sweep      SweepConfig      `yaml:"sweep"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	switch c.Placement {
	case "":
		c.Placement = PlacementAssigned
	case PlacementAssigned, PlacementRandom:
	default:
		return fmt.Errorf("unsupported placement: %s (expected %q or %q)", c.Placement, PlacementAssigned, PlacementRandom)
	}

	s := &c.Simulation
	if s.ServersPerNode <= 0 {
		return fmt.Errorf("simulation.servers_per_node must be positive")
	}
	if s.CoresPerServer <= 0 {
		return fmt.Errorf("simulation.cores_per_server must be positive")
	}
	if s.MemoryPerServer <= 0 {
		return fmt.Errorf("simulation.memory_per_server must be positive")
	}
	if s.PowerPerServer <= 0 {
		return fmt.Errorf("simulation.power_per_server must be positive")
	}
	if s.Policy == "" {
		return fmt.Errorf("simulation.policy is required")
	}
	if _, err := sim.ParsePolicy(s.Policy); err != nil {
		return err
	}
	if s.GlobalApplications == nil {
		global := true
		s.GlobalApplications = &global
	}
	if s.Degradable && s.DegradableMultiplier == 0 {
		s.DegradableMultiplier = 1
	}
	if s.DegradableMultiplier < 0 {
		return fmt.Errorf("simulation.degradable_multiplier must not be negative")
	}
	if s.AdmissionLookahead < 0 || s.MaxTicks < 0 || s.TicksPerHour < 0 {
		return fmt.Errorf("simulation.admission_lookahead, max_ticks and ticks_per_hour must not be negative")
	}

	if _, err := sim.ParseBandwidthModel(c.Bandwidth.Model); err != nil {
		return err
	}
	if c.Bandwidth.CostMultiplier < 0 {
		return fmt.Errorf("bandwidth.cost_multiplier must not be negative")
	}

	if c.Power.PVEfficiency < 0 || c.Power.PVEfficiency > 1 {
		return fmt.Errorf("power.pv_efficiency must be within [0, 1]")
	}
	if c.Power.PVArea < 0 || c.Power.BatterySize < 0 || c.Power.InitialCharge < 0 {
		return fmt.Errorf("power.pv_area, battery_size and initial_charge must not be negative")
	}

	if len(c.Nodes) == 0 {
		return fmt.Errorf("at least one node is required")
	}
	names := make(map[string]bool)
	for i := range c.Nodes {
		node := &c.Nodes[i]
		if node.Name == "" {
			node.Name = fmt.Sprintf("node-%d", i)
		}
		if names[node.Name] {
			return fmt.Errorf("duplicate node name: %s", node.Name)
		}
		names[node.Name] = true
		if node.TraceIndex != nil && *node.TraceIndex < 0 {
			return fmt.Errorf("node %s: trace_index must not be negative", node.Name)
		}
		if c.Placement == PlacementAssigned {
			if node.Lat < -90 || node.Lat > 90 || node.Lon < -180 || node.Lon > 180 {
				return fmt.Errorf("node %s: coordinates (%v, %v) out of range", node.Name, node.Lat, node.Lon)
			}
		}
	}
	if !*s.GlobalApplications {
		if _, err := c.homeNode(); err != nil {
			return err
		}
	}

	if c.Postgres.Enabled {
		if err := c.Postgres.Config.Validate(); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	for _, p := range c.Sweep.Policies {
		if _, err := sim.ParsePolicy(p); err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("sweep.workers must not be negative")
	}
	for _, v := range c.Sweep.CostMultipliers {
		if v < 0 {
			return fmt.Errorf("sweep.cost_multipliers must not be negative")
		}
	}
	for _, v := range c.Sweep.BatterySizes {
		if v < 0 {
			return fmt.Errorf("sweep.battery_sizes must not be negative")
		}
	}

	return nil
}

// homeNode resolves simulation.home_node, given as a node name or index
func (c *Config) homeNode() (sim.NodeID, error) {
	ref := strings.TrimSpace(c.Simulation.HomeNode)
	if ref == "" {
		return 0, nil
	}
	if _, id, err := c.GetNodeByName(ref); err == nil {
		return id, nil
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 0 && idx < len(c.Nodes) {
		return sim.NodeID(idx), nil
	}
	return 0, fmt.Errorf("simulation.home_node %q matches no node", ref)
}

// GetLogLevel returns the configured log level, INFO by default
func (c *Config) GetLogLevel() logger.LogLevel {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// SimParams builds the engine parameters
func (c *Config) SimParams() (sim.Params, error) {
	s := c.Simulation
	policy, err := sim.ParsePolicy(s.Policy)
	if err != nil {
		return sim.Params{}, err
	}
	model, err := sim.ParseBandwidthModel(c.Bandwidth.Model)
	if err != nil {
		return sim.Params{}, err
	}
	global := s.GlobalApplications == nil || *s.GlobalApplications
	var home sim.NodeID
	if !global {
		if home, err = c.homeNode(); err != nil {
			return sim.Params{}, err
		}
	}

	return sim.Params{
		ServersPerNode:  s.ServersPerNode,
		CoresPerServer:  s.CoresPerServer,
		MemoryPerServer: s.MemoryPerServer,
		PowerPerServer:  s.PowerPerServer,
		Policy:          policy,
		Bandwidth: sim.Bandwidth{
			Model:          model,
			Coefficient:    c.Bandwidth.Coefficient,
			Exponent:       c.Bandwidth.Exponent,
			CostMultiplier: c.Bandwidth.CostMultiplier,
		},
		GlobalApplications:   global,
		HomeNode:             home,
		Degradable:           s.Degradable,
		DegradableMultiplier: s.DegradableMultiplier,
		AdmissionLookahead:   s.AdmissionLookahead,
		MaxTicks:             s.MaxTicks,
		TicksPerHour:         s.TicksPerHour,
	}, nil
}

// NodeSpecs builds the node list, applying power defaults and, for random
// placement, drawing coordinates from the configured seed.
func (c *Config) NodeSpecs() []sim.NodeSpec {
	var lat, lon distuv.Uniform
	if c.Placement == PlacementRandom {
		src := rand.NewPCG(c.Seed, c.Seed^0x9e3779b97f4a7c15)
		lat = distuv.Uniform{Min: -60, Max: 60, Src: src}
		lon = distuv.Uniform{Min: -180, Max: 180, Src: src}
	}

	specs := make([]sim.NodeSpec, len(c.Nodes))
	for i, n := range c.Nodes {
		spec := sim.NodeSpec{
			Name:            n.Name,
			Coord:           topology.Coord{Lat: n.Lat, Lon: n.Lon},
			PVEfficiency:    c.Power.PVEfficiency,
			PVArea:          c.Power.PVArea,
			BatteryCapacity: c.Power.BatterySize,
			InitialCharge:   c.Power.InitialCharge,
			TraceIndex:      i,
		}
		if c.Placement == PlacementRandom {
			spec.Coord = topology.Coord{Lat: lat.Rand(), Lon: lon.Rand()}
		}
		if n.TraceIndex != nil {
			spec.TraceIndex = *n.TraceIndex
		}
		if n.PVEfficiency != nil {
			spec.PVEfficiency = *n.PVEfficiency
		}
		if n.PVArea != nil {
			spec.PVArea = *n.PVArea
		}
		if n.BatterySize != nil {
			spec.BatteryCapacity = *n.BatterySize
		}
		if n.InitialCharge != nil {
			spec.InitialCharge = *n.InitialCharge
		}
		specs[i] = spec
	}
	return specs
}

// GetNodeByName finds a node configuration and its node ID by name
func (c *Config) GetNodeByName(name string) (*NodeConfig, sim.NodeID, error) {
	for i := range c.Nodes {
		if c.Nodes[i].Name == name {
			return &c.Nodes[i], sim.NodeID(i), nil
		}
	}
	return nil, sim.NoNode, fmt.Errorf("node with name %q not found", name)
}

// WithOverrides returns a copy with the policy, cost multiplier and battery
// size replaced, as one point of a sweep.
func (c *Config) WithOverrides(policy string, costMultiplier, batterySize float64) *Config {
	out := *c
	out.Simulation.Policy = policy
	out.Bandwidth.CostMultiplier = costMultiplier
	out.Power.BatterySize = batterySize
	out.Nodes = make([]NodeConfig, len(c.Nodes))
	copy(out.Nodes, c.Nodes)
	for i := range out.Nodes {
		out.Nodes[i].BatterySize = nil
	}
	return &out
}
