package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/example/bus_fabric_sim/config"
	"github.com/example/bus_fabric_sim/internal/logging"
)

// BenchmarkResult stores the throughput of one benchmark configuration.
type BenchmarkResult struct {
	Preset           string
	Cycles           int
	Iterations       int
	TotalDuration    time.Duration
	CyclesPerSec     float64
	DurationPerCycle time.Duration
}

// Benchmark runs f for cycles cycles, iterations times, with logging
// disabled, and averages the throughput.
func Benchmark(ctx context.Context, name string, f *config.File, cycles, iterations int) (BenchmarkResult, error) {
	if cycles <= 0 || iterations <= 0 {
		return BenchmarkResult{}, fmt.Errorf("benchmark needs positive cycles and iterations, got %d and %d", cycles, iterations)
	}
	res := BenchmarkResult{Preset: name, Cycles: cycles, Iterations: iterations}
	for i := 0; i < iterations; i++ {
		s, err := New(f, logging.NewNop())
		if err != nil {
			return res, err
		}
		start := time.Now()
		if err := s.Run(ctx, cycles, nil); err != nil {
			return res, err
		}
		res.TotalDuration += time.Since(start)
	}
	avg := res.TotalDuration / time.Duration(iterations)
	if avg > 0 {
		res.CyclesPerSec = float64(cycles) / avg.Seconds()
	}
	res.DurationPerCycle = avg / time.Duration(cycles)
	return res, nil
}

// PrintBenchmark writes one result line block.
func PrintBenchmark(w io.Writer, r BenchmarkResult) {
	fmt.Fprintf(w, "%s: %d cycles x %d iterations\n", r.Preset, r.Cycles, r.Iterations)
	fmt.Fprintf(w, "  Average: %.2f cycles/sec\n", r.CyclesPerSec)
	fmt.Fprintf(w, "  Average time per cycle: %.2f us\n", float64(r.DurationPerCycle.Nanoseconds())/1000.0)
}
