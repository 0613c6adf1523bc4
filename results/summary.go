package results

import (
	"gonum.org/v1/gonum/stat"

	"github.com/GradySullivan/Solar-Edge-Computing-Simulator/sim"
)

// NodeCount is the number of applications completed on one node.
type NodeCount struct {
	Node      string
	Completed int
}

// Summary condenses a sim.Result into comparable numbers.
type Summary struct {
	Policy            string
	FinalTick         int
	Applications      int
	Completed         int
	TotalPauses       int
	TotalMigrations   int
	MeanOverhead      float64
	StdDevOverhead    float64
	MeanTurnaround    float64
	StdDevTurnaround  float64
	MigratedFraction  float64
	CompletionsByNode []NodeCount
}

// Summarize computes summary statistics for res. nodeNames labels the
// per-node completion counts; missing names fall back to the node index.
func Summarize(res *sim.Result, nodeNames []string) Summary {
	s := Summary{
		Policy:          res.Policy.String(),
		FinalTick:       res.FinalTick,
		Applications:    res.Applications,
		Completed:       res.Completed,
		TotalPauses:     res.TotalPauses,
		TotalMigrations: res.TotalMigrations,
	}

	for i, c := range res.CompletionsByNode {
		name := ""
		if i < len(nodeNames) {
			name = nodeNames[i]
		}
		if name == "" {
			name = nodeLabel(i)
		}
		s.CompletionsByNode = append(s.CompletionsByNode, NodeCount{Node: name, Completed: c})
	}

	if len(res.Overheads) == 0 {
		return s
	}

	overheads := make([]float64, 0, len(res.Overheads))
	turnarounds := make([]float64, 0, len(res.Turnarounds))
	migrated := 0
	for i, o := range res.Overheads {
		overheads = append(overheads, float64(o))
		if res.Turnarounds[i] >= 0 {
			turnarounds = append(turnarounds, float64(res.Turnarounds[i]))
		}
		if res.Migrations[i] > 0 {
			migrated++
		}
	}
	s.MeanOverhead, s.StdDevOverhead = meanStdDev(overheads)
	s.MeanTurnaround, s.StdDevTurnaround = meanStdDev(turnarounds)
	s.MigratedFraction = float64(migrated) / float64(len(res.Overheads))
	return s
}

// meanStdDev is stat.MeanStdDev without the NaN for samples of size one.
func meanStdDev(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

func nodeLabel(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return "node-" + digits[i:i+1]
	}
	return nodeLabel(i/10) + digits[i%10:i%10+1]
}
