package config

import (
	"fmt"
	"sort"

	"github.com/example/bus_fabric_sim/arbiter"
	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/traffic"
)

// Preset is a named, ready-to-run configuration.
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	File        *File  `json:"-"`
}

func ramSlave(name string, base uint64, latency int) fabric.SlaveConfig {
	return fabric.SlaveConfig{Name: name, Base: base, Size: 0x1000, ServiceLatency: latency}
}

// Presets returns the built-in configurations, freshly allocated on each call.
func Presets() []Preset {
	return []Preset{
		{
			Name:        "round_robin_4",
			Description: "4 masters contend for one slave under round robin arbitration",
			File: &File{
				Masters: 4,
				Slaves:  []fabric.SlaveConfig{ramSlave("ram0", 0x0000, 1)},
				Arbiter: Arbiter{Policy: arbiter.PolicyRoundRobin},
				Cycles:  200,
				Traffic: Traffic{Kind: TrafficRandom, Seed: 1, Rate: 0.9, ReadRatio: 0.5},
			},
		},
		{
			Name:        "weighted_3",
			Description: "3 masters with weights 2:1:1 on a single slave",
			File: &File{
				Masters: 3,
				Slaves:  []fabric.SlaveConfig{ramSlave("ram0", 0x0000, 1)},
				Arbiter: Arbiter{
					Policy: arbiter.PolicyWeightedRoundRobin,
					Params: map[string]any{"weights": []any{2, 1, 1}},
				},
				Cycles:  300,
				Traffic: Traffic{Kind: TrafficRandom, Seed: 7, Rate: 1, ReadRatio: 1},
			},
		},
		{
			Name:        "priority_starvation",
			Description: "fixed priority with a low-priority master that starves under load",
			File: &File{
				Masters: 3,
				Slaves:  []fabric.SlaveConfig{ramSlave("ram0", 0x0000, 2)},
				Arbiter: Arbiter{
					Policy: arbiter.PolicyPriority,
					Params: map[string]any{"priorities": []any{2, 1, 0}},
				},
				StarvationBound: 16,
				Cycles:          200,
				Plugins:         Plugins{Slaves: map[string][]string{"ram0": {"watch"}}},
				Traffic:         Traffic{Kind: TrafficRandom, Seed: 3, Rate: 1, ReadRatio: 0.5},
			},
		},
		{
			Name:        "fcfs_two_slaves",
			Description: "2 masters share 2 slaves with different service latencies, FCFS arbitration",
			File: &File{
				Masters: 2,
				Slaves: []fabric.SlaveConfig{
					ramSlave("fast", 0x0000, 1),
					ramSlave("slow", 0x1000, 6),
				},
				Arbiter: Arbiter{Policy: arbiter.PolicyFCFS},
				Cycles:  400,
				Traffic: Traffic{Kind: TrafficRandom, Seed: 11, Rate: 0.6, ReadRatio: 0.5},
			},
		},
		{
			Name:        "write_read",
			Description: "one master writes a word and reads it back",
			File: &File{
				Masters: 1,
				Slaves:  []fabric.SlaveConfig{ramSlave("ram0", 0x0000, 1)},
				Cycles:  20,
				Traffic: Traffic{
					Kind: TrafficSchedule,
					Schedule: []traffic.ScheduleItem{
						{Cycle: 0, Master: 0, ID: 1, Dir: "write", Addr: 0x10, Data: 0xDEADBEEF},
						{Cycle: 10, Master: 0, ID: 2, Dir: "read", Addr: 0x10},
					},
				},
			},
		},
		{
			Name:        "outstanding_bound",
			Description: "slow slave with max_outstanding 2 and deep request FIFOs",
			File: &File{
				Masters:        2,
				Slaves:         []fabric.SlaveConfig{ramSlave("ram0", 0x0000, 8)},
				FIFO:           FIFODepths{Request: 8, Response: 8},
				MaxOutstanding: 2,
				Cycles:         200,
				Traffic:        Traffic{Kind: TrafficRandom, Seed: 5, Rate: 0.5, ReadRatio: 1},
			},
		},
	}
}

// PresetByName looks up a preset.
func PresetByName(name string) (*File, error) {
	for _, p := range Presets() {
		if p.Name == name {
			return p.File, nil
		}
	}
	return nil, fmt.Errorf("unknown preset %q (have %v)", name, PresetNames())
}

// PresetNames returns the sorted preset names.
func PresetNames() []string {
	presets := Presets()
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
