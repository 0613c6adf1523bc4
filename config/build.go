package config

import (
	"fmt"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/trace"
	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/util/logger"
)

// SimConfig loads the configured traces and assembles an engine
// configuration from them.
func (c *Config) SimConfig() (sim.Config, error) {
	params, err := c.SimParams()
	if err != nil {
		return sim.Config{}, err
	}
	if c.Traces.Irradiance == "" {
		return sim.Config{}, fmt.Errorf("traces.irradiance is required")
	}
	if c.Traces.Workload == "" {
		return sim.Config{}, fmt.Errorf("traces.workload is required")
	}

	irradiance, err := trace.LoadIrradiance(c.Traces.Irradiance)
	if err != nil {
		return sim.Config{}, err
	}
	apps, err := trace.LoadWorkload(c.Traces.Workload)
	if err != nil {
		return sim.Config{}, err
	}
	if c.Traces.FilterWorkload {
		var dropped int
		apps, dropped = trace.FilterWorkload(apps, params.CoresPerServer, params.MemoryPerServer, params.Degradable)
		if dropped > 0 {
			logger.NewLogger("Config").Warnf("Dropped %d workload entries that no server can host", dropped)
		}
	}

	return sim.Config{
		Params:          params,
		Nodes:           c.NodeSpecs(),
		Apps:            apps,
		Trace:           irradiance,
		CheckInvariants: c.Simulation.CheckInvariants,
	}, nil
}

// SweepPolicies returns the policies listed under sweep, or every policy
// when the list is empty.
func (c *Config) SweepPolicies() ([]sim.PolicyKind, error) {
	if len(c.Sweep.Policies) == 0 {
		return append([]sim.PolicyKind(nil), sim.AllPolicies...), nil
	}
	policies := make([]sim.PolicyKind, len(c.Sweep.Policies))
	for i, name := range c.Sweep.Policies {
		p, err := sim.ParsePolicy(name)
		if err != nil {
			return nil, err
		}
		policies[i] = p
	}
	return policies, nil
}
