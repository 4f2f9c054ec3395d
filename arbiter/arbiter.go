// Package arbiter selects at most one winner per cycle among competing
// requesters. Fairness state lives in a Policy; the Arbiter adds grant
// bookkeeping, history and starvation tracking on top of it.
package arbiter

import (
	"fmt"

	"github.com/example/bus_fabric_sim/core"
)

const defaultHistoryDepth = 64

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithHistory keeps the last depth accepted grants. Zero disables history.
func WithHistory(depth int) Option {
	return func(a *Arbiter) {
		if depth < 0 {
			depth = 0
		}
		a.historyDepth = depth
	}
}

// Arbiter serializes access to one shared resource.
type Arbiter struct {
	n      int
	full   Mask
	policy Policy

	// grant returned by the latest Arbitrate and not yet accepted
	offered      int
	offeredCycle int

	last    core.GrantRecord
	hasLast bool

	historyDepth int
	history      []core.GrantRecord

	waitingSince []int
	grants       []uint64
}

// New creates an arbiter over n requesters driven by policy.
func New(n int, policy Policy, opts ...Option) (*Arbiter, error) {
	if n < 1 || n > MaxRequesters {
		return nil, fmt.Errorf("%w: arbiter size %d out of range [1,%d]", core.ErrInvalidConfig, n, MaxRequesters)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: arbiter policy is nil", core.ErrInvalidConfig)
	}
	if policy.Size() != n {
		return nil, fmt.Errorf("%w: %s policy sized for %d requesters, arbiter has %d",
			core.ErrInvalidConfig, policy.Name(), policy.Size(), n)
	}
	a := &Arbiter{
		n:            n,
		full:         FullMask(n),
		policy:       policy,
		historyDepth: defaultHistoryDepth,
		waitingSince: make([]int, n),
		grants:       make([]uint64, n),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.clear()
	return a, nil
}

// Size returns the number of requesters.
func (a *Arbiter) Size() int { return a.n }

// Policy returns the fairness policy.
func (a *Arbiter) Policy() Policy { return a.policy }

// Arbitrate offers the resource to one pending requester. The grant takes
// effect only when the winner calls Accept; until then a new call may return
// the same or, if the winner withdrew, another requester.
func (a *Arbiter) Arbitrate(mask Mask, cycle int) (int, bool) {
	mask &= a.full
	a.track(mask, cycle)
	idx, ok := a.policy.Pick(mask, cycle)
	if !ok {
		a.offered = -1
		return -1, false
	}
	a.offered = idx
	a.offeredCycle = cycle
	return idx, true
}

// Observe records the pending requesters of a cycle in which the resource is
// busy and no offer can be made. Waiting times and arrival order advance as
// they would under Arbitrate; an outstanding offer is left in place.
func (a *Arbiter) Observe(mask Mask, cycle int) {
	mask &= a.full
	a.track(mask, cycle)
	if o, ok := a.policy.(Observer); ok {
		o.Observe(mask, cycle)
	}
}

func (a *Arbiter) track(mask Mask, cycle int) {
	for i := 0; i < a.n; i++ {
		switch {
		case !mask.Has(i):
			a.waitingSince[i] = -1
		case a.waitingSince[i] < 0:
			a.waitingSince[i] = cycle
		}
	}
}

// Offered returns the grant awaiting acceptance, if any.
func (a *Arbiter) Offered() (int, bool) {
	return a.offered, a.offered >= 0
}

// Accept commits the outstanding grant to idx. Accepting anything other than
// the offered requester is a protocol violation.
func (a *Arbiter) Accept(idx int, cycle int) error {
	if a.offered < 0 || idx != a.offered {
		return fmt.Errorf("%w: arbiter accept by %d, offered %d", core.ErrProtocolViolation, idx, a.offered)
	}
	if a.hasLast && a.last.Cycle >= a.offeredCycle {
		return fmt.Errorf("%w: second grant in cycle %d", core.ErrProtocolViolation, a.offeredCycle)
	}
	a.policy.Accept(idx, cycle)
	a.offered = -1
	a.last = core.GrantRecord{Requester: idx, Cycle: a.offeredCycle}
	a.hasLast = true
	a.grants[idx]++
	a.waitingSince[idx] = -1
	if a.historyDepth > 0 {
		if len(a.history) == a.historyDepth {
			copy(a.history, a.history[1:])
			a.history = a.history[:len(a.history)-1]
		}
		a.history = append(a.history, a.last)
	}
	return nil
}

// LastGrant returns the most recent accepted grant.
func (a *Arbiter) LastGrant() (core.GrantRecord, bool) {
	return a.last, a.hasLast
}

// History returns the retained accepted grants, oldest first.
func (a *Arbiter) History() []core.GrantRecord {
	return append([]core.GrantRecord(nil), a.history...)
}

// Grants returns the number of accepted grants per requester.
func (a *Arbiter) Grants() []uint64 {
	return append([]uint64(nil), a.grants...)
}

// WaitingSince returns the cycle requester idx became pending without being
// granted since.
func (a *Arbiter) WaitingSince(idx int) (int, bool) {
	if idx < 0 || idx >= a.n || a.waitingSince[idx] < 0 {
		return 0, false
	}
	return a.waitingSince[idx], true
}

// Starving lists requesters pending for more than bound cycles at cycle.
// A bound of zero or less disables the check.
func (a *Arbiter) Starving(cycle, bound int) []int {
	if bound <= 0 {
		return nil
	}
	var out []int
	for i, since := range a.waitingSince {
		if since >= 0 && cycle-since > bound {
			out = append(out, i)
		}
	}
	return out
}

// Reset drops all grant state and the policy state.
func (a *Arbiter) Reset() {
	a.policy.Reset()
	a.clear()
}

func (a *Arbiter) clear() {
	a.offered = -1
	a.offeredCycle = 0
	a.last = core.GrantRecord{}
	a.hasLast = false
	a.history = a.history[:0]
	for i := range a.waitingSince {
		a.waitingSince[i] = -1
		a.grants[i] = 0
	}
}
