package trace

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// WorkloadSpec describes a synthetic workload: exponential runtimes and
// uniformly distributed integer cores and memory.
type WorkloadSpec struct {
	Count       int
	MeanRuntime float64
	MinCores    int
	MaxCores    int
	MinMemory   int
	MaxMemory   int
	Seed        uint64
}

// Validate checks that the ranges can produce applications.
func (s WorkloadSpec) Validate() error {
	if s.Count < 0 {
		return fmt.Errorf("count must not be negative")
	}
	if s.MeanRuntime <= 0 {
		return fmt.Errorf("mean runtime must be positive")
	}
	if s.MinCores <= 0 || s.MaxCores < s.MinCores {
		return fmt.Errorf("cores range [%d, %d] is invalid", s.MinCores, s.MaxCores)
	}
	if s.MinMemory <= 0 || s.MaxMemory < s.MinMemory {
		return fmt.Errorf("memory range [%d, %d] is invalid", s.MinMemory, s.MaxMemory)
	}
	return nil
}

// GenerateWorkload draws spec.Count applications. The same spec always
// yields the same workload.
func GenerateWorkload(spec WorkloadSpec) ([]sim.AppSpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewPCG(spec.Seed, spec.Seed^0xda3e39cb94b95bdb)
	runtime := distuv.Exponential{Rate: 1 / spec.MeanRuntime, Src: src}
	cores := distuv.Uniform{Min: float64(spec.MinCores), Max: float64(spec.MaxCores + 1), Src: src}
	memory := distuv.Uniform{Min: float64(spec.MinMemory), Max: float64(spec.MaxMemory + 1), Src: src}

	apps := make([]sim.AppSpec, spec.Count)
	for i := range apps {
		apps[i] = sim.AppSpec{
			Runtime: max(1, int(math.Ceil(runtime.Rand()))),
			Cores:   min(spec.MaxCores, int(cores.Rand())),
			Memory:  min(spec.MaxMemory, int(memory.Rand())),
		}
	}
	return apps, nil
}

// SolarSpec describes a synthetic irradiance trace: a clear-sky half sine
// between sunrise and sunset at each site's local solar time, attenuated by
// hourly cloud cover drawn from a Beta distribution.
type SolarSpec struct {
	// Longitudes of the sites; local solar noon shifts by one hour per 15°.
	Longitudes   []float64
	Days         int
	TicksPerHour int
	// Peak is the clear-sky irradiance at solar noon (W/m²).
	Peak    float64
	Sunrise float64 // local hour
	Sunset  float64 // local hour
	// CloudAlpha and CloudBeta shape the cloud cover fraction; both zero
	// means a clear sky.
	CloudAlpha float64
	CloudBeta  float64
	Seed       uint64
}

// GenerateSolar builds an irradiance trace from spec, one column per site.
func GenerateSolar(spec SolarSpec) (sim.Trace, error) {
	if len(spec.Longitudes) == 0 {
		return nil, fmt.Errorf("at least one site is required")
	}
	if spec.Days <= 0 {
		return nil, fmt.Errorf("days must be positive")
	}
	if spec.TicksPerHour <= 0 {
		spec.TicksPerHour = sim.DefaultTicksPerHour
	}
	if spec.Sunrise == 0 && spec.Sunset == 0 {
		spec.Sunrise, spec.Sunset = 6, 18
	}
	if spec.Sunset <= spec.Sunrise || spec.Sunrise < 0 || spec.Sunset > 24 {
		return nil, fmt.Errorf("daylight window [%v, %v] is invalid", spec.Sunrise, spec.Sunset)
	}
	cloudy := spec.CloudAlpha > 0 && spec.CloudBeta > 0
	var clouds distuv.Beta
	if cloudy {
		clouds = distuv.Beta{
			Alpha: spec.CloudAlpha,
			Beta:  spec.CloudBeta,
			Src:   rand.NewPCG(spec.Seed, spec.Seed^0x6a09e667f3bcc909),
		}
	}

	hours := spec.Days * 24
	trace := make(sim.Trace, hours*spec.TicksPerHour)
	for t := range trace {
		trace[t] = make([]float64, len(spec.Longitudes))
	}
	for h := 0; h < hours; h++ {
		for c, lon := range spec.Longitudes {
			local := math.Mod(float64(h)+lon/15+48, 24)
			v := 0.0
			if local >= spec.Sunrise && local < spec.Sunset {
				v = spec.Peak * math.Sin(math.Pi*(local-spec.Sunrise)/(spec.Sunset-spec.Sunrise))
			}
			if cloudy {
				v *= 1 - clouds.Rand()
			}
			for i := 0; i < spec.TicksPerHour; i++ {
				trace[h*spec.TicksPerHour+i][c] = v
			}
		}
	}
	return trace, nil
}
