// Package control carries run commands from the HTTP API to the simulation
// loop.
package control

import (
	"context"
	"fmt"
)

// CommandType is a control instruction.
type CommandType string

const (
	CommandPause  CommandType = "pause"
	CommandResume CommandType = "resume"
	CommandStep   CommandType = "step"
	CommandReset  CommandType = "reset"
	CommandStop   CommandType = "stop"
)

// Command is one queued instruction. Steps applies to CommandStep and
// defaults to one cycle.
type Command struct {
	Type  CommandType `json:"type"`
	Steps int         `json:"steps,omitempty"`
}

// Validate checks the command type and step count.
func (c Command) Validate() error {
	switch c.Type {
	case CommandPause, CommandResume, CommandReset, CommandStop:
		return nil
	case CommandStep:
		if c.Steps < 0 {
			return fmt.Errorf("step count %d is negative", c.Steps)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q", c.Type)
	}
}

// Queue is a bounded command channel. Enqueue never blocks.
type Queue struct {
	ch chan Command
}

// NewQueue creates a queue holding up to buffer commands.
func NewQueue(buffer int) *Queue {
	if buffer < 1 {
		buffer = 1
	}
	return &Queue{ch: make(chan Command, buffer)}
}

// Enqueue adds cmd, returning false when the queue is full.
func (q *Queue) Enqueue(cmd Command) bool {
	select {
	case q.ch <- cmd:
		return true
	default:
		return false
	}
}

// TryDequeue returns the next command without blocking.
func (q *Queue) TryDequeue() (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	default:
		return Command{}, false
	}
}

// Next blocks until a command arrives or ctx is done.
func (q *Queue) Next(ctx context.Context) (Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-ctx.Done():
		return Command{}, false
	}
}

// Handler applies a reset to whatever the loop drives.
type Handler interface {
	Reset()
}

// Gate decides, between cycles, whether the loop may advance.
type Gate struct {
	queue   *Queue
	handler Handler
	paused  bool
	steps   int
	stopped bool
}

// NewGate creates a gate reading from q. A paused gate waits for resume or
// step before the first cycle.
func NewGate(q *Queue, h Handler, paused bool) *Gate {
	return &Gate{queue: q, handler: h, paused: paused}
}

// Paused reports the current state.
func (g *Gate) Paused() bool { return g.paused }

// Wait applies pending commands and blocks while paused. It returns false
// when the loop should stop: a stop command or ctx cancellation. Commands
// queued behind a step are read once the step has run.
func (g *Gate) Wait(ctx context.Context) bool {
	if g.paused && g.steps > 0 && !g.stopped {
		g.steps--
		return true
	}
	for {
		cmd, ok := g.queue.TryDequeue()
		if !ok {
			break
		}
		g.apply(cmd)
		if cmd.Type == CommandStep {
			break
		}
	}
	for !g.stopped {
		if !g.paused {
			return true
		}
		if g.steps > 0 {
			g.steps--
			return true
		}
		cmd, ok := g.queue.Next(ctx)
		if !ok {
			return false
		}
		g.apply(cmd)
	}
	return false
}

func (g *Gate) apply(cmd Command) {
	switch cmd.Type {
	case CommandPause:
		g.paused = true
		g.steps = 0
	case CommandResume:
		g.paused = false
		g.steps = 0
	case CommandStep:
		g.paused = true
		n := cmd.Steps
		if n == 0 {
			n = 1
		}
		g.steps += n
	case CommandReset:
		if g.handler != nil {
			g.handler.Reset()
		}
	case CommandStop:
		g.stopped = true
	}
}
