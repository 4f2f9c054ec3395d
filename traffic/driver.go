package traffic

import (
	"context"
	"log/slog"

	"github.com/example/bus_fabric_sim/core"
)

// DefaultBacklog is the number of generated transactions a master keeps
// waiting when the fabric rejects submissions.
const DefaultBacklog = 16

// Target is the fabric surface a Driver needs.
type Target interface {
	NumMasters() int
	Submit(master int, txn core.Transaction) (bool, error)
	PollResponse(master int) (core.Transaction, bool)
	Tick() error
	Cycle() int
}

// ResponseFunc observes every response polled by a Driver.
type ResponseFunc func(master int, txn core.Transaction)

// Summary counts what a Driver did.
type Summary struct {
	Generated uint64 `json:"generated"`
	Submitted uint64 `json:"submitted"`
	Retried   uint64 `json:"retried"`
	Dropped   uint64 `json:"dropped"`
	Responses uint64 `json:"responses"`
}

// Driver feeds a Target from a Generator. Rejected submissions stay in a
// per-master backlog and are retried in order on later cycles.
type Driver struct {
	target  Target
	gen     Generator
	log     *slog.Logger
	backlog [][]core.Transaction
	limit   int
	summary Summary
	onResp  ResponseFunc
}

// NewDriver creates a driver. backlog <= 0 selects DefaultBacklog.
func NewDriver(target Target, gen Generator, backlog int, log *slog.Logger) *Driver {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	if log == nil {
		log = slog.Default()
	}
	return &Driver{
		target:  target,
		gen:     gen,
		log:     log,
		backlog: make([][]core.Transaction, target.NumMasters()),
		limit:   backlog,
	}
}

// OnResponse installs fn as the response observer.
func (d *Driver) OnResponse(fn ResponseFunc) { d.onResp = fn }

// Summary returns the counters so far.
func (d *Driver) Summary() Summary { return d.summary }

// Backlog returns the number of transactions waiting for master.
func (d *Driver) Backlog(master int) int {
	if master < 0 || master >= len(d.backlog) {
		return 0
	}
	return len(d.backlog[master])
}

// Step generates, submits, ticks once and drains responses.
func (d *Driver) Step() error {
	cycle := d.target.Cycle()
	for m := range d.backlog {
		for _, txn := range d.gen.Generate(cycle, m) {
			d.summary.Generated++
			if len(d.backlog[m]) >= d.limit {
				d.summary.Dropped++
				d.log.Debug("backlog full, dropping", "cycle", cycle, "master", m, "id", txn.ID)
				continue
			}
			d.backlog[m] = append(d.backlog[m], txn)
		}
		if err := d.submit(m); err != nil {
			return err
		}
	}
	if err := d.target.Tick(); err != nil {
		return err
	}
	for m := range d.backlog {
		for {
			txn, ok := d.target.PollResponse(m)
			if !ok {
				break
			}
			d.summary.Responses++
			if d.onResp != nil {
				d.onResp(m, txn)
			}
		}
	}
	return nil
}

// Run steps cycles times or until ctx is done.
func (d *Driver) Run(ctx context.Context, cycles int) error {
	for i := 0; i < cycles; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears backlogs and counters and resets the generator.
func (d *Driver) Reset() {
	for m := range d.backlog {
		d.backlog[m] = nil
	}
	d.summary = Summary{}
	d.gen.Reset()
}

func (d *Driver) submit(m int) error {
	queue := d.backlog[m]
	for len(queue) > 0 {
		ok, err := d.target.Submit(m, queue[0])
		if err != nil {
			return err
		}
		if !ok {
			d.summary.Retried++
			break
		}
		d.summary.Submitted++
		queue = queue[1:]
	}
	d.backlog[m] = queue
	return nil
}
