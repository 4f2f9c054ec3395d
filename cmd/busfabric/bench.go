package main

import (
	"github.com/spf13/cobra"

	"github.com/example/bus_fabric_sim/config"
	"github.com/example/bus_fabric_sim/internal/runner"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure simulated cycles per second for every preset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cycles, _ := cmd.Flags().GetInt("cycles")
		iterations, _ := cmd.Flags().GetInt("iterations")
		for _, p := range config.Presets() {
			res, err := runner.Benchmark(cmd.Context(), p.Name, p.File, cycles, iterations)
			if err != nil {
				return err
			}
			runner.PrintBenchmark(cmd.OutOrStdout(), res)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().Int("cycles", 10000, "Cycles per iteration")
	benchCmd.Flags().Int("iterations", 3, "Iterations per preset")
}
