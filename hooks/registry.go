package hooks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrPluginNotFound is returned when loading a name nobody registered.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrPluginExists is returned when a name is registered twice in one scope.
	ErrPluginExists = errors.New("plugin already registered")
	// ErrPluginLoaded is returned when a plugin is activated twice for the
	// same target, which would double every hook it installs.
	ErrPluginLoaded = errors.New("plugin already loaded")
)

// GlobalPluginFactory installs hooks that see every fabric event.
type GlobalPluginFactory func(broker *PluginBroker) error

// SlavePluginFactory installs hooks for events of one slave port.
type SlavePluginFactory func(slave int, broker *PluginBroker) error

type scope uint8

const (
	scopeGlobal scope = iota
	scopeSlave
)

func (s scope) String() string {
	if s == scopeSlave {
		return "slave"
	}
	return "global"
}

type pluginEntry struct {
	desc   PluginDescriptor
	global GlobalPluginFactory
	slave  SlavePluginFactory
}

type scopedName struct {
	scope scope
	name  string
}

// loadKey identifies one activation; target is -1 for global plugins.
type loadKey struct {
	name   string
	target int
}

// Registry maps plugin names from configuration to factories and activates
// them on its broker.
type Registry struct {
	mu      sync.RWMutex
	broker  *PluginBroker
	entries map[scopedName]pluginEntry
	loaded  map[loadKey]bool
}

// NewRegistry creates an empty registry. A nil broker gets a fresh one.
func NewRegistry(broker *PluginBroker) *Registry {
	if broker == nil {
		broker = NewPluginBroker()
	}
	return &Registry{
		broker:  broker,
		entries: make(map[scopedName]pluginEntry),
		loaded:  make(map[loadKey]bool),
	}
}

// Broker returns the broker plugins are installed into.
func (r *Registry) Broker() *PluginBroker {
	if r == nil {
		return nil
	}
	return r.broker
}

// RegisterGlobal makes factory available under name.
func (r *Registry) RegisterGlobal(name string, desc PluginDescriptor, factory GlobalPluginFactory) error {
	if factory == nil {
		return fmt.Errorf("plugin %q: factory cannot be nil", name)
	}
	return r.register(scopedName{scopeGlobal, name}, pluginEntry{desc: desc, global: factory})
}

// RegisterSlave makes a slave-scoped factory available under name.
func (r *Registry) RegisterSlave(name string, desc PluginDescriptor, factory SlavePluginFactory) error {
	if factory == nil {
		return fmt.Errorf("plugin %q: factory cannot be nil", name)
	}
	return r.register(scopedName{scopeSlave, name}, pluginEntry{desc: desc, slave: factory})
}

func (r *Registry) register(key scopedName, entry pluginEntry) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if key.name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %s plugin %s", ErrPluginExists, key.scope, key.name)
	}
	r.entries[key] = entry
	return nil
}

// LoadGlobal activates the named global plugins in order.
func (r *Registry) LoadGlobal(names []string) error {
	for _, name := range names {
		entry, err := r.activate(scopedName{scopeGlobal, name}, -1)
		if err != nil {
			return err
		}
		if err := entry.global(r.broker); err != nil {
			return fmt.Errorf("global plugin %s failed: %w", name, err)
		}
		r.broker.RegisterPluginMetadata(entry.desc)
	}
	return nil
}

// LoadForSlave activates the named slave-scoped plugins for slave.
func (r *Registry) LoadForSlave(slave int, names []string) error {
	if slave < 0 {
		return fmt.Errorf("slave index %d is negative", slave)
	}
	for _, name := range names {
		entry, err := r.activate(scopedName{scopeSlave, name}, slave)
		if err != nil {
			return err
		}
		if err := entry.slave(slave, r.broker); err != nil {
			return fmt.Errorf("slave %d plugin %s failed: %w", slave, name, err)
		}
		r.broker.RegisterPluginMetadata(entry.desc)
	}
	return nil
}

func (r *Registry) activate(key scopedName, target int) (pluginEntry, error) {
	if r == nil {
		return pluginEntry{}, fmt.Errorf("registry is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[key]
	if !ok {
		return pluginEntry{}, fmt.Errorf("%w: %s plugin %s", ErrPluginNotFound, key.scope, key.name)
	}
	lk := loadKey{name: key.name, target: target}
	if r.loaded[lk] {
		return pluginEntry{}, fmt.Errorf("%w: %s plugin %s", ErrPluginLoaded, key.scope, key.name)
	}
	r.loaded[lk] = true
	return entry, nil
}

// Descriptor returns the metadata registered under name in either scope.
func (r *Registry) Descriptor(name string) (PluginDescriptor, bool) {
	if r == nil {
		return PluginDescriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sc := range []scope{scopeGlobal, scopeSlave} {
		if entry, ok := r.entries[scopedName{sc, name}]; ok {
			return entry.desc, true
		}
	}
	return PluginDescriptor{}, false
}

// Names returns the registered global and slave-scoped plugin names, sorted.
func (r *Registry) Names() (global []string, slave []string) {
	if r == nil {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for key := range r.entries {
		if key.scope == scopeSlave {
			slave = append(slave, key.name)
		} else {
			global = append(global, key.name)
		}
	}
	sort.Strings(global)
	sort.Strings(slave)
	return global, slave
}
