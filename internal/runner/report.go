package runner

import (
	"fmt"
	"io"

	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/traffic"
)

// PrintStats writes a human readable summary of a finished run.
func PrintStats(w io.Writer, snap fabric.Snapshot, sum traffic.Summary) {
	var completed, errs uint64
	var total int
	minLat, maxLat := -1, 0
	for _, m := range snap.Masters {
		completed += m.Stats.Completed
		errs += m.Stats.Errors
		total += m.Stats.TotalLatency
		if m.Stats.Completed > 0 && (minLat < 0 || m.Stats.MinLatency < minLat) {
			minLat = m.Stats.MinLatency
		}
		if m.Stats.MaxLatency > maxLat {
			maxLat = m.Stats.MaxLatency
		}
	}
	if minLat < 0 {
		minLat = 0
	}
	avg := 0.0
	if completed > 0 {
		avg = float64(total) / float64(completed)
	}

	fmt.Fprintln(w, "=== Global Statistics ===")
	fmt.Fprintf(w, "Cycles: %d\n", snap.Cycle)
	if snap.Fault != "" {
		fmt.Fprintf(w, "Fault: %s\n", snap.Fault)
	}
	fmt.Fprintf(w, "Generated: %d, Submitted: %d, Retried: %d, Dropped: %d\n",
		sum.Generated, sum.Submitted, sum.Retried, sum.Dropped)
	fmt.Fprintf(w, "Completed: %d, Errors: %d\n", completed, errs)
	fmt.Fprintf(w, "Average Latency: %.2f cycles\n", avg)
	fmt.Fprintf(w, "Max Latency: %d cycles\n", maxLat)
	fmt.Fprintf(w, "Min Latency: %d cycles\n", minLat)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Master Statistics ===")
	for _, m := range snap.Masters {
		fmt.Fprintf(w, "Master %d: Submitted=%d, Rejected=%d, Completed=%d, Errors=%d, AvgLatency=%.2f, MaxLatency=%d, MinLatency=%d\n",
			m.ID, m.Stats.Submitted, m.Stats.Rejected, m.Stats.Completed, m.Stats.Errors,
			m.Stats.AvgLatency(), m.Stats.MaxLatency, m.Stats.MinLatency)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Slave Statistics ===")
	for _, s := range snap.Slaves {
		fmt.Fprintf(w, "Slave %d (%s, %s): Completed=%d, Open=%d, Grants=%v, AddressStalls=%d",
			s.ID, s.Label, s.Policy, s.Completed, len(s.Open), s.Grants, s.Address.Stalls)
		if len(s.Starving) > 0 {
			fmt.Fprintf(w, ", Starving=%v", s.Starving)
		}
		fmt.Fprintln(w)
	}
}
