// Package config loads fabric descriptions from YAML or JSON files and
// provides the named presets used by the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/example/bus_fabric_sim/arbiter"
	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/traffic"
)

// Traffic kinds.
const (
	TrafficRandom   = "random"
	TrafficSchedule = "schedule"
)

// FIFODepths groups the buffered stage depths.
type FIFODepths struct {
	Request   int `yaml:"request" json:"request"`
	WriteData int `yaml:"write_data" json:"writeData"`
	Response  int `yaml:"response" json:"response"`
}

// Arbiter holds the policy name and its loosely typed parameters.
type Arbiter struct {
	Policy string         `yaml:"policy" json:"policy"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// Plugins selects hook plugins by name. Slave-scoped plugins are keyed by
// slave name.
type Plugins struct {
	Global []string            `yaml:"global,omitempty" json:"global,omitempty"`
	Slaves map[string][]string `yaml:"slaves,omitempty" json:"slaves,omitempty"`
}

// Traffic describes the stimulus for `busfabric run`.
type Traffic struct {
	Kind      string                 `yaml:"kind" json:"kind"`
	Seed      int64                  `yaml:"seed" json:"seed"`
	Rate      float64                `yaml:"rate" json:"rate"`
	ReadRatio float64                `yaml:"read_ratio" json:"readRatio"`
	Windows   []traffic.Window       `yaml:"windows,omitempty" json:"windows,omitempty"`
	Schedule  []traffic.ScheduleItem `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Backlog   int                    `yaml:"backlog" json:"backlog"`
}

// File is the on-disk configuration.
type File struct {
	Masters         int                  `yaml:"masters" json:"masters"`
	Slaves          []fabric.SlaveConfig `yaml:"slaves" json:"slaves"`
	FIFO            FIFODepths           `yaml:"fifo" json:"fifo"`
	Arbiter         Arbiter              `yaml:"arbiter" json:"arbiter"`
	MaxOutstanding  int                  `yaml:"max_outstanding" json:"maxOutstanding"`
	StarvationBound int                  `yaml:"starvation_bound" json:"starvationBound"`
	HistoryDepth    int                  `yaml:"history_depth" json:"historyDepth"`
	Cycles          int                  `yaml:"cycles" json:"cycles"`
	Plugins         Plugins              `yaml:"plugins" json:"plugins"`
	Traffic         Traffic              `yaml:"traffic" json:"traffic"`
}

// Load reads a configuration file. Files ending in .json are parsed as JSON,
// everything else as YAML.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data, strings.ToLower(filepath.Ext(path)) == ".json")
}

// Parse decodes data as JSON or YAML.
func Parse(data []byte, isJSON bool) (*File, error) {
	var f File
	if isJSON {
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse config json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse config yaml: %w", err)
		}
	}
	return &f, nil
}

// Marshal renders f as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// ArbiterParams decodes the loose params map into typed policy parameters.
// Unknown keys are rejected.
func (f *File) ArbiterParams() (arbiter.Params, error) {
	var p arbiter.Params
	if len(f.Arbiter.Params) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(f.Arbiter.Params); err != nil {
		return p, fmt.Errorf("%w: arbiter params: %w", core.ErrInvalidConfig, err)
	}
	return p, nil
}

// FabricConfig converts and validates the fabric part of f.
func (f *File) FabricConfig() (fabric.Config, error) {
	params, err := f.ArbiterParams()
	if err != nil {
		return fabric.Config{}, err
	}
	cfg := fabric.Config{
		Masters:            f.Masters,
		Slaves:             append([]fabric.SlaveConfig(nil), f.Slaves...),
		RequestFIFODepth:   f.FIFO.Request,
		WriteDataFIFODepth: f.FIFO.WriteData,
		ResponseFIFODepth:  f.FIFO.Response,
		Arbiter:            fabric.ArbiterConfig{Policy: f.Arbiter.Policy, Params: params},
		MaxOutstanding:     f.MaxOutstanding,
		StarvationBound:    f.StarvationBound,
		HistoryDepth:       f.HistoryDepth,
	}
	if err := cfg.Validate(); err != nil {
		return fabric.Config{}, err
	}
	return cfg, nil
}

// Generator builds the traffic source. Random traffic without explicit
// windows covers every configured slave with equal weight.
func (f *File) Generator(cfg fabric.Config) (traffic.Generator, error) {
	switch strings.ToLower(f.Traffic.Kind) {
	case TrafficSchedule:
		for _, m := range traffic.Masters(f.Traffic.Schedule) {
			if m >= cfg.Masters {
				return nil, fmt.Errorf("%w: schedule uses master %d of %d", core.ErrInvalidConfig, m, cfg.Masters)
			}
		}
		s, err := traffic.NewSchedule(f.Traffic.Schedule)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
		}
		return s, nil
	case TrafficRandom, "":
		windows := f.Traffic.Windows
		if len(windows) == 0 {
			for _, s := range cfg.Slaves {
				windows = append(windows, traffic.Window{Base: s.Base, Size: s.Size, Weight: 1})
			}
		}
		r, err := traffic.NewRandom(traffic.RandomConfig{
			Seed:      f.Traffic.Seed,
			Rate:      f.Traffic.Rate,
			ReadRatio: f.Traffic.ReadRatio,
			Windows:   windows,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrInvalidConfig, err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: unknown traffic kind %q", core.ErrInvalidConfig, f.Traffic.Kind)
	}
}

// SlavePlugins resolves slave-scoped plugin names to slave indexes.
func (f *File) SlavePlugins(cfg fabric.Config) (map[int][]string, error) {
	out := make(map[int][]string, len(f.Plugins.Slaves))
	for name, plugins := range f.Plugins.Slaves {
		idx := -1
		for i, s := range cfg.Slaves {
			if s.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: plugins reference unknown slave %q", core.ErrInvalidConfig, name)
		}
		out[idx] = plugins
	}
	return out, nil
}
