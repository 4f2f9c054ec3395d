// Package hooks lets plugins observe fabric events without the fabric
// knowing about them.
package hooks

import (
	"sort"
	"sync"

	"github.com/example/bus_fabric_sim/core"
)

// PluginCategory represents the high-level role of a plugin.
type PluginCategory string

const (
	// PluginCategoryInstrumentation covers metrics, tracing, and diagnostics.
	PluginCategoryInstrumentation PluginCategory = "instrumentation"
	// PluginCategoryAudit covers fairness and protocol checkers.
	PluginCategoryAudit PluginCategory = "audit"
)

// PluginDescriptor describes a plugin registered with the broker.
type PluginDescriptor struct {
	Name        string
	Category    PluginCategory
	Description string
}

// EventHook observes one fabric event.
type EventHook func(ev core.Event) error

// HookBundle groups the handlers that belong to one plugin. All receives
// every event; Events is keyed by event type.
type HookBundle struct {
	All    []EventHook
	Events map[core.EventType][]EventHook
}

// PluginBroker coordinates hook registration and triggering.
type PluginBroker struct {
	mu sync.RWMutex

	allHooks   []EventHook
	typedHooks map[core.EventType][]EventHook

	pluginCatalog map[PluginCategory][]PluginDescriptor
	pluginIndex   map[string]PluginDescriptor
}

// NewPluginBroker creates an empty broker instance.
func NewPluginBroker() *PluginBroker {
	return &PluginBroker{
		typedHooks:    make(map[core.EventType][]EventHook),
		pluginCatalog: make(map[PluginCategory][]PluginDescriptor),
		pluginIndex:   make(map[string]PluginDescriptor),
	}
}

// RegisterEvent adds a hook executed for events of type t.
func (p *PluginBroker) RegisterEvent(t core.EventType, h EventHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typedHooks[t] = append(p.typedHooks[t], h)
}

// RegisterAll adds a hook executed for every event.
func (p *PluginBroker) RegisterAll(h EventHook) {
	if p == nil || h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allHooks = append(p.allHooks, h)
}

// Emit runs the catch-all hooks and then the hooks registered for ev.Type,
// in registration order. The first error stops processing.
func (p *PluginBroker) Emit(ev core.Event) error {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	typed := p.typedHooks[ev.Type]
	handlers := make([]EventHook, 0, len(p.allHooks)+len(typed))
	handlers = append(handlers, p.allHooks...)
	handlers = append(handlers, typed...)
	p.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ev); err != nil {
			return err
		}
	}
	return nil
}

// HasHooks reports whether any hook is registered.
func (p *PluginBroker) HasHooks() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.allHooks) > 0 {
		return true
	}
	for _, hs := range p.typedHooks {
		if len(hs) > 0 {
			return true
		}
	}
	return false
}

// RegisterBundle registers a plugin descriptor together with all hook handlers.
func (p *PluginBroker) RegisterBundle(desc PluginDescriptor, bundle HookBundle) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.registerDescriptorLocked(desc)

	if len(bundle.All) > 0 {
		p.allHooks = append(p.allHooks, bundle.All...)
	}
	types := make([]string, 0, len(bundle.Events))
	for t := range bundle.Events {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		p.typedHooks[core.EventType(t)] = append(p.typedHooks[core.EventType(t)], bundle.Events[core.EventType(t)]...)
	}
}

// RegisterPluginMetadata stores plugin metadata without registering hooks.
func (p *PluginBroker) RegisterPluginMetadata(desc PluginDescriptor) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registerDescriptorLocked(desc)
}

// ListPlugins returns descriptors for plugins in the requested category.
func (p *PluginBroker) ListPlugins(category PluginCategory) []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	catalog := p.pluginCatalog[category]
	if len(catalog) == 0 {
		return nil
	}
	out := make([]PluginDescriptor, len(catalog))
	copy(out, catalog)
	return out
}

// ListAllPlugins returns descriptors of every registered plugin sorted by name.
func (p *PluginBroker) ListAllPlugins() []PluginDescriptor {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PluginDescriptor, 0, len(p.pluginIndex))
	for _, desc := range p.pluginIndex {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *PluginBroker) registerDescriptorLocked(desc PluginDescriptor) {
	if desc.Name == "" {
		return
	}
	if _, exists := p.pluginIndex[desc.Name]; exists {
		return
	}
	p.pluginIndex[desc.Name] = desc
	category := desc.Category
	p.pluginCatalog[category] = append(p.pluginCatalog[category], desc)
}
