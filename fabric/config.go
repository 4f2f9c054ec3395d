package fabric

import (
	"errors"
	"fmt"

	"github.com/example/bus_fabric_sim/arbiter"
	"github.com/example/bus_fabric_sim/channelset"
	"github.com/example/bus_fabric_sim/core"
)

// Defaults applied by Validate.
const (
	DefaultFIFODepth       = 2
	DefaultMaxOutstanding  = 4
	DefaultServiceLatency  = 1
	DefaultStarvationBound = 0
	DefaultHistoryDepth    = 64
	DefaultArbiterPolicy   = arbiter.PolicyRoundRobin
)

// SlaveConfig describes one address window.
type SlaveConfig struct {
	Name           string `yaml:"name" json:"name"`
	Base           uint64 `yaml:"base" json:"base"`
	Size           uint64 `yaml:"size" json:"size"`
	ServiceLatency int    `yaml:"service_latency" json:"serviceLatency"`
	AcceptInterval int    `yaml:"accept_interval" json:"acceptInterval"`
}

// Contains reports whether addr lies inside the window.
func (s SlaveConfig) Contains(addr uint64) bool {
	return addr >= s.Base && addr-s.Base < s.Size
}

// ArbiterConfig selects the per-slave arbitration policy.
type ArbiterConfig struct {
	Policy string         `yaml:"policy" json:"policy"`
	Params arbiter.Params `yaml:"params" json:"params"`
}

// Config is the construction-time description of a fabric.
type Config struct {
	Masters int           `yaml:"masters" json:"masters"`
	Slaves  []SlaveConfig `yaml:"slaves" json:"slaves"`

	RequestFIFODepth   int `yaml:"request_fifo_depth" json:"requestFIFODepth"`
	WriteDataFIFODepth int `yaml:"write_data_fifo_depth" json:"writeDataFIFODepth"`
	ResponseFIFODepth  int `yaml:"response_fifo_depth" json:"responseFIFODepth"`

	Arbiter ArbiterConfig `yaml:"arbiter" json:"arbiter"`

	MaxOutstanding int `yaml:"max_outstanding" json:"maxOutstanding"`
	// StarvationBound is the number of cycles a master may wait for a grant
	// before it is reported as starving. Zero disables reporting.
	StarvationBound int `yaml:"starvation_bound" json:"starvationBound"`
	HistoryDepth    int `yaml:"history_depth" json:"historyDepth"`
}

// Validate applies structural checks and populates defaults where required.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Masters <= 0 || c.Masters > arbiter.MaxRequesters {
		return invalid("masters must be within [1,%d], got %d", arbiter.MaxRequesters, c.Masters)
	}
	if len(c.Slaves) == 0 {
		return invalid("at least one slave is required")
	}
	if c.RequestFIFODepth < 0 || c.WriteDataFIFODepth < 0 || c.ResponseFIFODepth < 0 {
		return invalid("fifo depths must be non-negative")
	}
	if c.MaxOutstanding < 0 {
		return invalid("max_outstanding must be non-negative, got %d", c.MaxOutstanding)
	}
	if c.StarvationBound < 0 {
		return invalid("starvation_bound must be non-negative, got %d", c.StarvationBound)
	}

	names := make(map[string]bool, len(c.Slaves))
	for i := range c.Slaves {
		s := &c.Slaves[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("slave%d", i)
		}
		if names[s.Name] || s.Name == DefaultSlaveName {
			return invalid("slave name %q is not unique", s.Name)
		}
		names[s.Name] = true
		if s.Size == 0 || s.Size%core.WordSize != 0 {
			return invalid("slave %q: size %d must be a positive multiple of %d", s.Name, s.Size, core.WordSize)
		}
		if s.Size > channelset.MaxWindowBytes {
			return invalid("slave %q: size %d exceeds %d", s.Name, s.Size, channelset.MaxWindowBytes)
		}
		if s.Base%core.WordSize != 0 {
			return invalid("slave %q: base %#x is not word aligned", s.Name, s.Base)
		}
		if s.Base+s.Size < s.Base {
			return invalid("slave %q: window wraps the address space", s.Name)
		}
		if s.ServiceLatency < 0 || s.AcceptInterval < 0 {
			return invalid("slave %q: latencies must be non-negative", s.Name)
		}
		if s.ServiceLatency == 0 {
			s.ServiceLatency = DefaultServiceLatency
		}
	}
	for i := range c.Slaves {
		for j := i + 1; j < len(c.Slaves); j++ {
			a, b := c.Slaves[i], c.Slaves[j]
			if a.Base < b.Base+b.Size && b.Base < a.Base+a.Size {
				return invalid("slaves %q and %q overlap", a.Name, b.Name)
			}
		}
	}

	if c.RequestFIFODepth == 0 {
		c.RequestFIFODepth = DefaultFIFODepth
	}
	if c.WriteDataFIFODepth == 0 {
		c.WriteDataFIFODepth = DefaultFIFODepth
	}
	if c.ResponseFIFODepth == 0 {
		c.ResponseFIFODepth = DefaultFIFODepth
	}
	if c.MaxOutstanding == 0 {
		c.MaxOutstanding = DefaultMaxOutstanding
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
	if c.Arbiter.Policy == "" {
		c.Arbiter.Policy = DefaultArbiterPolicy
	}
	if _, err := arbiter.PolicyByName(c.Arbiter.Policy, c.Masters, c.Arbiter.Params); err != nil {
		return err
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrInvalidConfig, fmt.Sprintf(format, args...))
}
