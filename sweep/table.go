package sweep

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteTable prints one line per outcome for side-by-side comparison.
func WriteTable(w io.Writer, outcomes []Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tCOST\tBATTERY\tFINAL TICK\tCOMPLETED\tPAUSES\tMIGRATIONS\tMEAN OVERHEAD\tERROR")
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(tw, "%s\t%g\t%g\t-\t-\t-\t-\t-\t%v\n",
				o.Job.Policy, o.Job.CostMultiplier, o.Job.BatterySize, o.Err)
			continue
		}
		s := o.Run.Summary
		fmt.Fprintf(tw, "%s\t%g\t%g\t%d\t%d/%d\t%d\t%d\t%.2f\t\n",
			o.Job.Policy, o.Job.CostMultiplier, o.Job.BatterySize,
			s.FinalTick, s.Completed, s.Applications, s.TotalPauses, s.TotalMigrations, s.MeanOverhead)
	}
	return tw.Flush()
}
