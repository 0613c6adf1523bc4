package sim

import (
	"fmt"
	"math"
	"strings"
)

// BandwidthModel selects how transfer time depends on distance.
type BandwidthModel int

const (
	// PowerLaw - bandwidth(d) = Coefficient × d^Exponent megabits per tick
	PowerLaw BandwidthModel = iota
	// LinearCost - delay = ceil(d × CostMultiplier) ticks regardless of size
	LinearCost
)

func (m BandwidthModel) String() string {
	switch m {
	case PowerLaw:
		return "power-law"
	case LinearCost:
		return "linear-cost"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseBandwidthModel maps a config name to a BandwidthModel.
func ParseBandwidthModel(name string) (BandwidthModel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "power-law", "powerlaw":
		return PowerLaw, nil
	case "linear-cost", "linear":
		return LinearCost, nil
	default:
		return 0, fmt.Errorf("unknown bandwidth model %q", name)
	}
}

// Bandwidth describes the network between nodes.
type Bandwidth struct {
	Model          BandwidthModel
	Coefficient    float64
	Exponent       float64
	CostMultiplier float64
}

// Validate rejects models that cannot produce a delay.
func (b Bandwidth) Validate() error {
	switch b.Model {
	case PowerLaw:
		if math.IsNaN(b.Coefficient) || math.IsNaN(b.Exponent) {
			return fmt.Errorf("power-law bandwidth parameters must be numbers")
		}
	case LinearCost:
		if b.CostMultiplier < 0 {
			return fmt.Errorf("cost multiplier must not be negative")
		}
	default:
		return fmt.Errorf("unknown bandwidth model %s", b.Model)
	}
	return nil
}

// At returns the bandwidth in megabits per tick over distanceKm. Only
// meaningful for PowerLaw.
func (b Bandwidth) At(distanceKm float64) float64 {
	return b.Coefficient * math.Pow(distanceKm, b.Exponent)
}

// TransferDelay returns the ticks needed to move memoryMB of state over
// distanceKm. Zero distance, and a non-positive or non-finite bandwidth, mean
// an instantaneous local move.
func (b Bandwidth) TransferDelay(memoryMB int, distanceKm float64) int {
	if distanceKm <= 0 {
		return 0
	}
	if b.Model == LinearCost {
		d := math.Ceil(distanceKm * b.CostMultiplier)
		if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return 0
		}
		return int(d)
	}

	bw := b.At(distanceKm)
	if bw <= 0 || math.IsNaN(bw) || math.IsInf(bw, 0) {
		return 0
	}
	return int(math.Ceil(float64(memoryMB) * 8 / bw))
}
