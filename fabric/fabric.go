// Package fabric routes transactions from M masters to N slaves over
// per-slave arbiters and split-transaction channel sets, and routes the
// responses back. Everything advances one cycle per Tick.
package fabric

import (
	"fmt"
	"log/slog"

	"github.com/example/bus_fabric_sim/arbiter"
	"github.com/example/bus_fabric_sim/channelset"
	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/hooks"
	"github.com/example/bus_fabric_sim/internal/logging"
	"github.com/example/bus_fabric_sim/queue"
)

// DefaultSlaveName labels the slave that answers unmapped addresses.
const DefaultSlaveName = "default"

// Option configures a Fabric.
type Option func(*Fabric)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fabric) {
		if l != nil {
			f.log = l
		}
	}
}

// WithBroker publishes fabric events to b.
func WithBroker(b *hooks.PluginBroker) Option {
	return func(f *Fabric) {
		f.broker = b
	}
}

type masterPort struct {
	requests  *queue.FIFO[*core.Transaction]
	responses *queue.FIFO[core.Transaction]
	stats     MasterStats
}

type slavePort struct {
	cfg       SlaveConfig
	cs        *channelset.ChannelSet
	arb       *arbiter.Arbiter
	writeData *queue.FIFO[channelset.DataBeat]
	starving  map[int]bool
	grants    uint64
}

// staged FIFO operations of the current cycle
type fifoOps struct {
	requestPops []int
	dataPushes  []stagedBeat
	dataPops    []int
}

type stagedBeat struct {
	slave int
	beat  channelset.DataBeat
}

// Fabric is a cycle-stepped bus interconnect. It is not safe for concurrent
// use.
type Fabric struct {
	cfg    Config
	log    *slog.Logger
	broker *hooks.PluginBroker

	masters []*masterPort
	slaves  []*slavePort

	cycle  int
	inTick bool
	fault  error
	seq    int64
	ops    fifoOps
}

// New validates cfg and builds an idle fabric.
func New(cfg Config, opts ...Option) (*Fabric, error) {
	cfg.Slaves = append([]SlaveConfig(nil), cfg.Slaves...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Fabric{cfg: cfg, log: logging.NewNop()}
	for _, opt := range opts {
		opt(f)
	}

	for m := 0; m < cfg.Masters; m++ {
		f.masters = append(f.masters, &masterPort{
			requests:  queue.NewFIFO[*core.Transaction](fmt.Sprintf("m%d.req", m), cfg.RequestFIFODepth, nil, queue.Hooks[*core.Transaction]{}),
			responses: queue.NewFIFO[core.Transaction](fmt.Sprintf("m%d.resp", m), cfg.ResponseFIFODepth, nil, queue.Hooks[core.Transaction]{}),
		})
	}

	slaves := append(cfg.Slaves, SlaveConfig{Name: DefaultSlaveName, ServiceLatency: DefaultServiceLatency})
	for _, sc := range slaves {
		cs, err := channelset.New(channelset.Config{
			Name:           sc.Name,
			Base:           sc.Base,
			Size:           sc.Size,
			MaxOutstanding: cfg.MaxOutstanding,
			ServiceLatency: sc.ServiceLatency,
			AcceptInterval: sc.AcceptInterval,
		}, nil)
		if err != nil {
			return nil, err
		}
		policy, err := arbiter.PolicyByName(cfg.Arbiter.Policy, cfg.Masters, cfg.Arbiter.Params)
		if err != nil {
			return nil, err
		}
		arb, err := arbiter.New(cfg.Masters, policy, arbiter.WithHistory(cfg.HistoryDepth))
		if err != nil {
			return nil, err
		}
		f.slaves = append(f.slaves, &slavePort{
			cfg:       sc,
			cs:        cs,
			arb:       arb,
			writeData: queue.NewFIFO[channelset.DataBeat](sc.Name+".wdata", cfg.WriteDataFIFODepth, nil, queue.Hooks[channelset.DataBeat]{}),
			starving:  make(map[int]bool),
		})
	}
	f.log.Debug("fabric created", "masters", cfg.Masters, "slaves", len(cfg.Slaves), "policy", cfg.Arbiter.Policy)
	return f, nil
}

// Config returns the validated configuration.
func (f *Fabric) Config() Config { return f.cfg }

// NumMasters returns the number of masters.
func (f *Fabric) NumMasters() int { return len(f.masters) }

// NumSlaves returns the number of configured slaves. The default slave is
// addressed as index NumSlaves().
func (f *Fabric) NumSlaves() int { return len(f.cfg.Slaves) }

// DefaultSlave returns the index of the slave answering unmapped addresses.
func (f *Fabric) DefaultSlave() int { return len(f.cfg.Slaves) }

// Cycle returns the number of completed ticks.
func (f *Fabric) Cycle() int { return f.cycle }

// Fault returns the protocol violation that stopped the fabric, if any.
func (f *Fabric) Fault() error { return f.fault }

// Decode returns the slave whose window holds addr, or DefaultSlave().
func (f *Fabric) Decode(addr uint64) int {
	for i, s := range f.cfg.Slaves {
		if s.Contains(addr) {
			return i
		}
	}
	return f.DefaultSlave()
}

// Submit queues txn on master's request FIFO. It returns false without
// changing any state when the FIFO is full or the target slave has no free
// outstanding slot. Master, Slave, Status and timing fields of txn are
// assigned by the fabric.
func (f *Fabric) Submit(master int, txn core.Transaction) (bool, error) {
	if err := f.usable(); err != nil {
		return false, err
	}
	if master < 0 || master >= len(f.masters) {
		return false, fmt.Errorf("%w: %w: %d", core.ErrProtocolViolation, core.ErrUnknownMaster, master)
	}
	if !txn.Dir.Valid() {
		return false, fmt.Errorf("%w: invalid direction %d", core.ErrProtocolViolation, uint8(txn.Dir))
	}
	mp := f.masters[master]
	slave := f.Decode(txn.Addr)
	sp := f.slaves[slave]

	if mp.requests.IsFull() {
		f.reject(master, slave, txn, core.RejectRequestFIFOFull)
		return false, nil
	}
	if !sp.cs.Reserve() {
		f.reject(master, slave, txn, core.RejectOutstandingFull)
		return false, nil
	}

	t := txn
	t.Master = master
	t.Slave = slave
	t.Status = core.StatusOK
	t.Phase = core.PhaseIdle{}
	t.SubmittedAt = f.cycle
	t.CompletedAt = 0
	if t.Dir == core.Write {
		t.HasData = true
	} else {
		t.HasData = false
		t.Data = 0
	}
	mp.requests.Push(&t)
	mp.stats.Submitted++
	f.emit(core.Event{Type: core.EventSubmitted, Master: master, Slave: slave, TxnID: t.ID, Dir: t.Dir})
	return true, nil
}

// PollResponse pops the oldest delivered response of master.
func (f *Fabric) PollResponse(master int) (core.Transaction, bool) {
	if master < 0 || master >= len(f.masters) {
		return core.Transaction{}, false
	}
	return f.masters[master].responses.Pop()
}

// Tick advances the fabric by one cycle: arbitration, address handshake,
// data handshake, FIFO push/pop, response delivery, then commit. A protocol
// violation faults the fabric until Reset.
func (f *Fabric) Tick() error {
	if err := f.usable(); err != nil {
		return err
	}
	f.inTick = true
	defer func() { f.inTick = false }()

	if err := f.step(f.cycle); err != nil {
		f.fault = err
		f.log.Error("fabric faulted", "cycle", f.cycle, "error", err)
		return err
	}
	f.cycle++
	return nil
}

// Run ticks n times, stopping at the first error.
func (f *Fabric) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := f.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Reset returns the fabric to its initial state in one step: every FIFO,
// outstanding transaction, arbiter and slave memory is cleared and a fault is
// lifted. Reset is refused while a Tick is in progress, for instance from an
// event hook, since the tick would go on with half its state cleared.
func (f *Fabric) Reset() error {
	if f.inTick {
		return fmt.Errorf("%w: reset during tick", core.ErrProtocolViolation)
	}
	for _, mp := range f.masters {
		mp.requests.Reset()
		mp.responses.Reset()
		mp.stats = MasterStats{}
	}
	for _, sp := range f.slaves {
		sp.cs.Reset()
		sp.arb.Reset()
		sp.writeData.Reset()
		sp.starving = make(map[int]bool)
		sp.grants = 0
	}
	f.ops = fifoOps{}
	f.cycle = 0
	f.fault = nil
	f.log.Info("fabric reset")
	f.emit(core.Event{Type: core.EventReset, Master: -1, Slave: -1})
	return nil
}

func (f *Fabric) usable() error {
	if f.inTick {
		return fmt.Errorf("%w: fabric re-entered during tick", core.ErrProtocolViolation)
	}
	if f.fault != nil {
		return fmt.Errorf("%w: %w", core.ErrFaulted, f.fault)
	}
	return nil
}

func (f *Fabric) step(cycle int) error {
	f.ops = fifoOps{}
	for s := range f.slaves {
		if err := f.arbitrate(s, cycle); err != nil {
			return err
		}
	}
	for s := range f.slaves {
		if err := f.addressPhase(s, cycle); err != nil {
			return err
		}
	}
	for s := range f.slaves {
		if err := f.dataPhase(s, cycle); err != nil {
			return err
		}
	}
	if err := f.applyFIFOOps(); err != nil {
		return err
	}
	for s := range f.slaves {
		if err := f.deliverResponse(s, cycle); err != nil {
			return err
		}
	}
	return f.commit(cycle)
}

// arbitrate offers a free address channel to one master whose head request
// targets slave s. A beat stalled on the channel keeps it locked; the arbiter
// still observes the pending masters so arrival order and waiting times keep
// advancing.
func (f *Fabric) arbitrate(s int, cycle int) error {
	sp := f.slaves[s]
	ch := sp.cs.Address()
	var mask arbiter.Mask
	for m, mp := range f.masters {
		if head, ok := mp.requests.Peek(); ok && head.Slave == s {
			mask = mask.With(m)
		}
	}
	if ch.Valid() {
		sp.arb.Observe(mask, cycle)
	} else if m, ok := sp.arb.Arbitrate(mask, cycle); ok {
		head, _ := f.masters[m].requests.Peek()
		head.Phase = core.PhaseAddress{Since: cycle}
		beat := channelset.AddressBeat{Key: head.Key(), Addr: head.Addr, Master: m}
		if err := ch.Assert(beat); err != nil {
			return err
		}
		f.log.Debug("grant", "cycle", cycle, "slave", sp.cfg.Name, "master", m, "id", head.ID)
		f.emit(core.Event{Type: core.EventGrant, Master: m, Slave: s, TxnID: head.ID, Dir: head.Dir})
	}
	f.checkStarvation(s, cycle)
	return nil
}

func (f *Fabric) checkStarvation(s int, cycle int) {
	if f.cfg.StarvationBound <= 0 {
		return
	}
	sp := f.slaves[s]
	now := make(map[int]bool)
	for _, m := range sp.arb.Starving(cycle, f.cfg.StarvationBound) {
		now[m] = true
		if sp.starving[m] {
			continue
		}
		since, _ := sp.arb.WaitingSince(m)
		f.log.Warn("master starving", "cycle", cycle, "slave", sp.cfg.Name, "master", m, "waiting_since", since)
		f.emit(core.Event{Type: core.EventStarvation, Master: m, Slave: s, Latency: cycle - since})
	}
	sp.starving = now
}

func (f *Fabric) addressPhase(s int, cycle int) error {
	sp := f.slaves[s]
	ch := sp.cs.Address()
	beat, valid := ch.Peek()
	if valid {
		ready := sp.cs.AddressReady(beat, cycle)
		if beat.Key.Dir == core.Write && sp.writeData.IsFull() {
			ready = false
		}
		ch.SetReady(ready)
	} else {
		ch.SetReady(sp.cs.Open() < f.cfg.MaxOutstanding)
	}

	beat, ok := ch.Step(cycle)
	if !ok {
		if valid {
			f.emit(core.Event{Type: core.EventAddressStall, Master: beat.Master, Slave: s, TxnID: beat.Key.ID, Dir: beat.Key.Dir})
		}
		return nil
	}

	m := beat.Master
	head, ok := f.masters[m].requests.Peek()
	if !ok || head.Key() != beat.Key {
		return fmt.Errorf("%w: %s: address beat %s does not match head of master %d", core.ErrProtocolViolation, sp.cfg.Name, beat.Key, m)
	}
	if err := sp.arb.Accept(m, cycle); err != nil {
		return err
	}
	if err := sp.cs.OpenAddress(head, cycle); err != nil {
		return err
	}
	sp.grants++
	f.ops.requestPops = append(f.ops.requestPops, m)
	if head.Dir == core.Write {
		f.ops.dataPushes = append(f.ops.dataPushes, stagedBeat{slave: s, beat: channelset.DataBeat{Key: head.Key(), Data: head.Data}})
	}
	f.log.Debug("address accepted", "cycle", cycle, "slave", sp.cfg.Name, "master", m, "id", head.ID, "dir", head.Dir.String())
	f.emit(core.Event{Type: core.EventAddressAccept, Master: m, Slave: s, TxnID: head.ID, Dir: head.Dir, Status: head.Status})
	return nil
}

func (f *Fabric) dataPhase(s int, cycle int) error {
	sp := f.slaves[s]
	ch := sp.cs.Data()
	if !ch.Valid() {
		if head, ok := sp.writeData.Peek(); ok {
			if err := ch.Assert(head); err != nil {
				return err
			}
		}
	}
	ch.SetReady(true)
	beat, ok := ch.Step(cycle)
	if !ok {
		return nil
	}
	f.ops.dataPops = append(f.ops.dataPops, s)
	if err := sp.cs.AcceptData(beat, cycle); err != nil {
		return err
	}
	txn, _ := sp.cs.Lookup(beat.Key)
	f.emit(core.Event{Type: core.EventDataAccept, Master: txn.Master, Slave: s, TxnID: beat.Key.ID, Dir: core.Write})
	return nil
}

func (f *Fabric) applyFIFOOps() error {
	for _, m := range f.ops.requestPops {
		if _, ok := f.masters[m].requests.Pop(); !ok {
			return fmt.Errorf("%w: master %d request fifo empty on pop", core.ErrProtocolViolation, m)
		}
	}
	for _, s := range f.ops.dataPops {
		if _, ok := f.slaves[s].writeData.Pop(); !ok {
			return fmt.Errorf("%w: %s write data fifo empty on pop", core.ErrProtocolViolation, f.slaves[s].cfg.Name)
		}
	}
	for _, staged := range f.ops.dataPushes {
		if !f.slaves[staged.slave].writeData.Push(staged.beat) {
			return fmt.Errorf("%w: %s write data fifo overflow", core.ErrProtocolViolation, f.slaves[staged.slave].cfg.Name)
		}
	}
	return nil
}

func (f *Fabric) deliverResponse(s int, cycle int) error {
	sp := f.slaves[s]
	ch := sp.cs.Response()
	if !ch.Valid() {
		if rb, ok := sp.cs.NextResponse(); ok {
			if err := ch.Assert(rb); err != nil {
				return err
			}
		}
	}
	rb, valid := ch.Peek()
	ch.SetReady(valid && !f.masters[rb.Master].responses.IsFull())
	if _, ok := ch.Step(cycle); !ok {
		return nil
	}

	txn, err := sp.cs.CompleteResponse(rb.Key, cycle)
	if err != nil {
		return err
	}
	mp := f.masters[rb.Master]
	if !mp.responses.Push(*txn) {
		return fmt.Errorf("%w: master %d response fifo overflow", core.ErrProtocolViolation, rb.Master)
	}
	mp.stats.record(txn)
	f.log.Debug("response delivered", "cycle", cycle, "slave", sp.cfg.Name, "master", rb.Master, "id", txn.ID, "status", txn.Status.String())
	f.emit(core.Event{
		Type:    core.EventResponse,
		Master:  rb.Master,
		Slave:   s,
		TxnID:   txn.ID,
		Dir:     txn.Dir,
		Status:  txn.Status,
		Latency: txn.Latency(),
	})
	return nil
}

func (f *Fabric) commit(cycle int) error {
	for _, mp := range f.masters {
		mp.requests.Commit()
		mp.responses.Commit()
	}
	for _, sp := range f.slaves {
		sp.writeData.Commit()
		if err := sp.cs.Commit(cycle); err != nil {
			return fmt.Errorf("slave %s: %w", sp.cfg.Name, err)
		}
	}
	return nil
}

func (f *Fabric) reject(master, slave int, txn core.Transaction, reason core.RejectReason) {
	f.masters[master].stats.Rejected++
	f.log.Debug("submit rejected", "cycle", f.cycle, "master", master, "id", txn.ID, "reason", string(reason))
	f.emit(core.Event{Type: core.EventRejected, Master: master, Slave: slave, TxnID: txn.ID, Dir: txn.Dir, Reason: reason})
}

func (f *Fabric) emit(ev core.Event) {
	if !f.broker.HasHooks() {
		return
	}
	f.seq++
	ev.Sequence = f.seq
	ev.Cycle = f.cycle
	if err := f.broker.Emit(ev); err != nil {
		f.log.Warn("event hook failed", "type", ev.Type, "error", err)
	}
}
