package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/internal/control"
	"github.com/example/bus_fabric_sim/internal/httpapi"
	"github.com/example/bus_fabric_sim/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation and print statistics",
	RunE:  runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("cycles", 0, "Cycles to simulate (0 uses the configured count)")
	runCmd.Flags().String("listen", "", "Serve status and metrics on this address while running, e.g. :8080")
	runCmd.Flags().Bool("hold", false, "Keep serving after the run finishes until interrupted")
	runCmd.Flags().Bool("paused", false, "Start paused and wait for POST /control commands (requires --listen)")
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	file, source, err := loadFile(cmd)
	if err != nil {
		return err
	}
	cycles, _ := cmd.Flags().GetInt("cycles")
	listen, _ := cmd.Flags().GetString("listen")
	hold, _ := cmd.Flags().GetBool("hold")
	paused, _ := cmd.Flags().GetBool("paused")
	if paused && listen == "" {
		return fmt.Errorf("--paused requires --listen")
	}

	session, err := runner.New(file, log)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "source", source)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var observe func(fabric.Snapshot)
	var gate *control.Gate
	serveErr := make(chan error, 1)
	if listen != "" {
		commands := control.NewQueue(16)
		gate = control.NewGate(commands, session, paused)
		api := httpapi.New(session.Metrics.Registry(), log).WithControl(commands)
		api.Publish(session.Fabric.Snapshot())
		observe = api.Publish
		go func() { serveErr <- api.ListenAndServe(ctx, listen) }()
	}

	runErr := session.RunGated(ctx, cycles, gate, observe)
	if errors.Is(runErr, context.Canceled) {
		log.Warn("run interrupted", "cycle", session.Fabric.Cycle())
		runErr = nil
	}
	runner.PrintStats(cmd.OutOrStdout(), session.Fabric.Snapshot(), session.Driver.Summary())

	if listen != "" {
		if !hold {
			stop()
		}
		if err := <-serveErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
