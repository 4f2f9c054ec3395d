// Package handshake implements the valid/ready transfer primitive that every
// bus channel is built from.
package handshake

import (
	"fmt"

	"github.com/example/bus_fabric_sim/core"
)

// Stats counts channel activity, one bucket per evaluated cycle.
type Stats struct {
	Transfers int `json:"transfers"` // valid and ready
	Stalls    int `json:"stalls"`    // valid without ready (backpressure)
	Starved   int `json:"starved"`   // ready without valid
	Idle      int `json:"idle"`
}

// Channel carries one value per transfer between a producer and a consumer.
// A transfer happens on the cycle both valid and ready are asserted. Once the
// producer has asserted valid and a cycle has elapsed without a transfer, the
// value is held: changing or withdrawing it before the transfer is a protocol
// violation.
type Channel[T comparable] struct {
	name  string
	valid bool
	ready bool
	data  T
	held  bool

	lastTransfer int
	stats        Stats
}

// New creates an idle channel.
func New[T comparable](name string) *Channel[T] {
	return &Channel[T]{name: name, lastTransfer: -1}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// Assert drives valid with v. Valid stays asserted until a transfer occurs.
func (c *Channel[T]) Assert(v T) error {
	if c == nil {
		return fmt.Errorf("%w: assert on nil channel", core.ErrProtocolViolation)
	}
	if c.held && c.data != v {
		return fmt.Errorf("%w: %s: held data changed before transfer", core.ErrProtocolViolation, c.name)
	}
	c.valid = true
	c.data = v
	return nil
}

// Deassert withdraws valid. Withdrawing a held value is a protocol violation.
func (c *Channel[T]) Deassert() error {
	if c == nil {
		return nil
	}
	if c.held {
		return fmt.Errorf("%w: %s: valid withdrawn before transfer", core.ErrProtocolViolation, c.name)
	}
	var zero T
	c.valid = false
	c.data = zero
	return nil
}

// SetReady sets the consumer's ready level. It stays until changed.
func (c *Channel[T]) SetReady(ready bool) {
	if c == nil {
		return
	}
	c.ready = ready
}

// Step evaluates one cycle and returns the transferred value, if any.
func (c *Channel[T]) Step(cycle int) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	switch {
	case c.valid && c.ready:
		v := c.data
		c.valid = false
		c.held = false
		c.data = zero
		c.lastTransfer = cycle
		c.stats.Transfers++
		return v, true
	case c.valid:
		c.held = true
		c.stats.Stalls++
	case c.ready:
		c.stats.Starved++
	default:
		c.stats.Idle++
	}
	return zero, false
}

// Peek returns the value currently driven under valid.
func (c *Channel[T]) Peek() (T, bool) {
	if c == nil || !c.valid {
		var zero T
		return zero, false
	}
	return c.data, true
}

// Valid reports the producer's valid level.
func (c *Channel[T]) Valid() bool { return c != nil && c.valid }

// Ready reports the consumer's ready level.
func (c *Channel[T]) Ready() bool { return c != nil && c.ready }

// Holding reports whether a value has been stalled for at least one cycle.
func (c *Channel[T]) Holding() bool { return c != nil && c.held }

// LastTransfer returns the cycle of the most recent transfer, or -1.
func (c *Channel[T]) LastTransfer() int {
	if c == nil {
		return -1
	}
	return c.lastTransfer
}

// Stats returns a copy of the accumulated counters.
func (c *Channel[T]) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.stats
}

// Reset clears both signals and the hold state. This is the only legal way to
// drop a held value.
func (c *Channel[T]) Reset() {
	if c == nil {
		return
	}
	var zero T
	c.valid = false
	c.ready = false
	c.data = zero
	c.held = false
	c.lastTransfer = -1
	c.stats = Stats{}
}
