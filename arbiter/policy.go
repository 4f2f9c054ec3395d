package arbiter

import (
	"fmt"
	"strings"

	"github.com/example/bus_fabric_sim/core"
)

// Policy owns the fairness state of one arbiter. Pick must not change grant
// state; only Accept commits a grant.
type Policy interface {
	Name() string
	Size() int
	Pick(mask Mask, cycle int) (int, bool)
	Accept(idx int, cycle int)
	Reset()
}

// Observer is implemented by policies that track requesters between offers,
// such as arrival order. Observe sees the pending mask of a cycle in which no
// offer is made.
type Observer interface {
	Observe(mask Mask, cycle int)
}

// Policy names accepted by PolicyByName.
const (
	PolicyRoundRobin         = "round_robin"
	PolicyPriority           = "priority"
	PolicyWeightedRoundRobin = "weighted_round_robin"
	PolicyFCFS               = "fcfs"
)

// Params carries the per-policy tables loaded from configuration.
type Params struct {
	Priorities []int `mapstructure:"priorities" yaml:"priorities,omitempty" json:"priorities,omitempty"`
	Weights    []int `mapstructure:"weights" yaml:"weights,omitempty" json:"weights,omitempty"`
}

var policyAliases = map[string]string{
	"rr":                     PolicyRoundRobin,
	"roundrobin":             PolicyRoundRobin,
	"round_robin":            PolicyRoundRobin,
	"priority":               PolicyPriority,
	"fixed_priority":         PolicyPriority,
	"wrr":                    PolicyWeightedRoundRobin,
	"weighted":               PolicyWeightedRoundRobin,
	"weighted_round_robin":   PolicyWeightedRoundRobin,
	"fcfs":                   PolicyFCFS,
	"first_come_first_serve": PolicyFCFS,
}

// CanonicalName resolves a policy alias. The second result is false for
// unknown names.
func CanonicalName(name string) (string, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	canonical, ok := policyAliases[key]
	return canonical, ok
}

// PolicyByName builds the named policy for n requesters.
func PolicyByName(name string, n int, p Params) (Policy, error) {
	if n < 1 || n > MaxRequesters {
		return nil, fmt.Errorf("%w: arbiter size %d out of range [1,%d]", core.ErrInvalidConfig, n, MaxRequesters)
	}
	canonical, ok := CanonicalName(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown arbiter policy %q", core.ErrInvalidConfig, name)
	}
	switch canonical {
	case PolicyRoundRobin:
		return NewRoundRobin(n), nil
	case PolicyPriority:
		prios := p.Priorities
		if len(prios) == 0 {
			prios = make([]int, n)
		}
		if len(prios) != n {
			return nil, fmt.Errorf("%w: priority table has %d entries, want %d", core.ErrInvalidConfig, len(prios), n)
		}
		return NewPriority(prios), nil
	case PolicyWeightedRoundRobin:
		weights := p.Weights
		if len(weights) == 0 {
			weights = make([]int, n)
			for i := range weights {
				weights[i] = 1
			}
		}
		if len(weights) != n {
			return nil, fmt.Errorf("%w: weight vector has %d entries, want %d", core.ErrInvalidConfig, len(weights), n)
		}
		for i, w := range weights {
			if w < 1 {
				return nil, fmt.Errorf("%w: weight[%d]=%d must be at least 1", core.ErrInvalidConfig, i, w)
			}
		}
		return NewWeightedRoundRobin(weights), nil
	default:
		return NewFCFS(n), nil
	}
}
