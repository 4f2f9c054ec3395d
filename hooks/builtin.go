package hooks

import (
	"fmt"
	"log/slog"

	"github.com/example/bus_fabric_sim/core"
)

// Built-in plugin names.
const (
	PluginLog   = "log"
	PluginWatch = "watch"
)

// RegisterBuiltins registers the logging plugins. "log" traces every event at
// debug level; "watch" reports the events of a single slave at info level.
func RegisterBuiltins(reg *Registry, logger *slog.Logger) error {
	if reg == nil {
		return fmt.Errorf("registry is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	logDesc := PluginDescriptor{
		Name:        PluginLog,
		Category:    PluginCategoryInstrumentation,
		Description: "debug trace of every fabric event",
	}
	if err := reg.RegisterGlobal(PluginLog, logDesc, func(b *PluginBroker) error {
		b.RegisterBundle(logDesc, HookBundle{All: []EventHook{func(ev core.Event) error {
			logger.Debug("fabric event", eventAttrs(ev)...)
			return nil
		}}})
		return nil
	}); err != nil {
		return err
	}

	watchDesc := PluginDescriptor{
		Name:        PluginWatch,
		Category:    PluginCategoryAudit,
		Description: "info trace of one slave's events",
	}
	return reg.RegisterSlave(PluginWatch, watchDesc, func(slave int, b *PluginBroker) error {
		b.RegisterAll(func(ev core.Event) error {
			if ev.Slave != slave {
				return nil
			}
			logger.Info("slave event", eventAttrs(ev)...)
			return nil
		})
		return nil
	})
}

func eventAttrs(ev core.Event) []any {
	attrs := []any{
		"type", ev.Type,
		"cycle", ev.Cycle,
		"master", ev.Master,
		"slave", ev.Slave,
		"id", ev.TxnID,
		"dir", ev.Dir.String(),
	}
	switch ev.Type {
	case core.EventResponse:
		attrs = append(attrs, "status", ev.Status.String(), "latency", ev.Latency)
	case core.EventRejected:
		attrs = append(attrs, "reason", ev.Reason)
	}
	return attrs
}
