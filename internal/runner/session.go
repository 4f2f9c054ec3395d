// Package runner assembles a fabric, its hook plugins and a traffic driver
// from a configuration file and runs them.
package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/bus_fabric_sim/config"
	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/hooks"
	"github.com/example/bus_fabric_sim/internal/control"
	"github.com/example/bus_fabric_sim/metrics"
	"github.com/example/bus_fabric_sim/traffic"
)

// Session is one assembled simulation.
type Session struct {
	File     *config.File
	Fabric   *fabric.Fabric
	Driver   *traffic.Driver
	Metrics  *metrics.Collector
	Registry *hooks.Registry

	log *slog.Logger
}

// New validates f and wires every component. The metrics plugin is always
// loaded; the rest come from f.Plugins.
func New(f *config.File, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg, err := f.FabricConfig()
	if err != nil {
		return nil, err
	}
	gen, err := f.Generator(cfg)
	if err != nil {
		return nil, err
	}
	slavePlugins, err := f.SlavePlugins(cfg)
	if err != nil {
		return nil, err
	}

	reg := hooks.NewRegistry(nil)
	if err := hooks.RegisterBuiltins(reg, log); err != nil {
		return nil, err
	}
	collector := metrics.NewCollector()
	if err := collector.Register(reg); err != nil {
		return nil, err
	}
	global := []string{metrics.PluginName}
	for _, name := range f.Plugins.Global {
		if name != metrics.PluginName {
			global = append(global, name)
		}
	}
	if err := reg.LoadGlobal(global); err != nil {
		return nil, fmt.Errorf("failed to load plugins: %w", err)
	}
	for slave, names := range slavePlugins {
		if err := reg.LoadForSlave(slave, names); err != nil {
			return nil, fmt.Errorf("failed to load plugins for slave %d: %w", slave, err)
		}
	}

	fab, err := fabric.New(cfg, fabric.WithLogger(log), fabric.WithBroker(reg.Broker()))
	if err != nil {
		return nil, err
	}
	return &Session{
		File:     f,
		Fabric:   fab,
		Driver:   traffic.NewDriver(fab, gen, f.Traffic.Backlog, log),
		Metrics:  collector,
		Registry: reg,
		log:      log,
	}, nil
}

// Run advances the session cycles times, calling observe after every cycle
// when it is non-nil. cycles <= 0 uses the configured count.
func (s *Session) Run(ctx context.Context, cycles int, observe func(fabric.Snapshot)) error {
	return s.RunGated(ctx, cycles, nil, observe)
}

// RunGated is Run with gate consulted before every cycle. A stop command
// ends the run early without error.
func (s *Session) RunGated(ctx context.Context, cycles int, gate *control.Gate, observe func(fabric.Snapshot)) error {
	if cycles <= 0 {
		cycles = s.File.Cycles
	}
	s.log.Info("run started", "cycles", cycles, "masters", s.Fabric.NumMasters(), "slaves", s.Fabric.NumSlaves())
	for i := 0; i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if gate != nil && !gate.Wait(ctx) {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.log.Info("run stopped", "cycle", s.Fabric.Cycle())
			break
		}
		if err := s.Driver.Step(); err != nil {
			return err
		}
		s.Metrics.RecordCycles(1)
		if observe != nil {
			observe(s.Fabric.Snapshot())
		}
	}
	sum := s.Driver.Summary()
	s.log.Info("run finished", "cycle", s.Fabric.Cycle(), "generated", sum.Generated, "responses", sum.Responses, "dropped", sum.Dropped)
	return nil
}

// Reset returns the fabric and driver to their initial state. A refused fabric
// reset leaves both untouched.
func (s *Session) Reset() {
	if err := s.Fabric.Reset(); err != nil {
		s.log.Warn("reset refused", "error", err)
		return
	}
	s.Driver.Reset()
}
