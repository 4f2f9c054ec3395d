// Package channelset models the slave side of a split-transaction bus:
// independent address, write-data and response handshakes, and an
// outstanding-transaction table keyed by direction and id that lets distinct
// ids complete out of order.
package channelset

import (
	"fmt"

	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/handshake"
	"github.com/example/bus_fabric_sim/queue"
)

var (
	blockReasons   = queue.NewBlockRegistry()
	blockAwaitData = blockReasons.MustRegister("await-data")
	blockService   = blockReasons.MustRegister("service")
)

// AddressBeat is the payload of the address channel.
type AddressBeat struct {
	Key    core.Key
	Addr   uint64
	Master int
}

// DataBeat is the payload of the write-data channel.
type DataBeat struct {
	Key  core.Key
	Data uint64
}

// ResponseBeat is the payload of the response channel.
type ResponseBeat struct {
	Key    core.Key
	Master int
	Status core.Status
	Data   uint64
}

// Config describes one slave port.
type Config struct {
	Name           string
	Base           uint64
	Size           uint64
	MaxOutstanding int
	// ServiceLatency is the number of cycles between the last request beat
	// and the response becoming available. Values below one count as one.
	ServiceLatency int
	// AcceptInterval is the minimum number of cycles between two address
	// transfers. Values below one accept every cycle.
	AcceptInterval int
}

// ChannelSet is the protocol engine of a single slave.
type ChannelSet struct {
	cfg Config

	address  *handshake.Channel[AddressBeat]
	data     *handshake.Channel[DataBeat]
	response *handshake.Channel[ResponseBeat]

	table    *queue.StageQueue[*core.Transaction]
	open     map[core.Key]queue.EntryID
	readyAt  map[queue.EntryID]int
	reserved int

	offered    queue.EntryID
	hasOffered bool

	lastAccept int
	completed  map[core.Status]uint64

	mem *Memory
}

// New creates an idle ChannelSet. mutate, if set, observes the outstanding
// table fill level.
func New(cfg Config, mutate queue.MutateFunc) (*ChannelSet, error) {
	if cfg.MaxOutstanding < 1 {
		return nil, fmt.Errorf("%w: slave %q: max outstanding %d must be positive", core.ErrInvalidConfig, cfg.Name, cfg.MaxOutstanding)
	}
	if cfg.Size > MaxWindowBytes {
		return nil, fmt.Errorf("%w: slave %q: window %d bytes exceeds %d", core.ErrInvalidConfig, cfg.Name, cfg.Size, MaxWindowBytes)
	}
	if cfg.ServiceLatency < 1 {
		cfg.ServiceLatency = 1
	}
	cs := &ChannelSet{
		cfg:      cfg,
		address:  handshake.New[AddressBeat](cfg.Name + ".addr"),
		data:     handshake.New[DataBeat](cfg.Name + ".wdata"),
		response: handshake.New[ResponseBeat](cfg.Name + ".resp"),
		table:    queue.NewStageQueue[*core.Transaction](cfg.Name+".outstanding", cfg.MaxOutstanding, mutate, queue.StageQueueHooks[*core.Transaction]{}),
		mem:      NewMemory(cfg.Base, cfg.Size),
	}
	cs.clear()
	return cs, nil
}

// Name returns the slave name.
func (cs *ChannelSet) Name() string { return cs.cfg.Name }

// Config returns the effective configuration.
func (cs *ChannelSet) Config() Config { return cs.cfg }

// Address returns the address channel. The master side drives valid.
func (cs *ChannelSet) Address() *handshake.Channel[AddressBeat] { return cs.address }

// Data returns the write-data channel.
func (cs *ChannelSet) Data() *handshake.Channel[DataBeat] { return cs.data }

// Response returns the response channel. The slave side drives valid.
func (cs *ChannelSet) Response() *handshake.Channel[ResponseBeat] { return cs.response }

// Memory returns the slave backing store.
func (cs *ChannelSet) Memory() *Memory { return cs.mem }

// Reserve claims an outstanding slot ahead of the address phase. It returns
// false when the bound is reached.
func (cs *ChannelSet) Reserve() bool {
	if cs.reserved+cs.table.Len() >= cs.cfg.MaxOutstanding {
		return false
	}
	cs.reserved++
	return true
}

// Release returns a slot claimed by Reserve that will not be opened.
func (cs *ChannelSet) Release() {
	if cs.reserved > 0 {
		cs.reserved--
	}
}

// Outstanding returns reserved plus open transactions.
func (cs *ChannelSet) Outstanding() int {
	return cs.reserved + cs.table.Len()
}

// Open returns the number of transactions past their address phase.
func (cs *ChannelSet) Open() int { return cs.table.Len() }

// AddressReady reports whether the slave can take beat this cycle. A second
// transaction with an id already open in the same direction waits for the
// first response.
func (cs *ChannelSet) AddressReady(beat AddressBeat, cycle int) bool {
	if _, busy := cs.open[beat.Key]; busy {
		return false
	}
	if cs.table.Len() >= cs.cfg.MaxOutstanding {
		return false
	}
	if cs.cfg.AcceptInterval > 1 && cs.lastAccept >= 0 && cycle-cs.lastAccept < cs.cfg.AcceptInterval {
		return false
	}
	return true
}

// OpenAddress records a transferred address beat. The transaction moves to
// its data phase; decode and alignment are resolved here, and failed accesses
// complete with an error status without touching memory.
func (cs *ChannelSet) OpenAddress(txn *core.Transaction, cycle int) error {
	if txn == nil {
		return fmt.Errorf("%w: %s: nil transaction", core.ErrProtocolViolation, cs.cfg.Name)
	}
	key := txn.Key()
	if _, busy := cs.open[key]; busy {
		return fmt.Errorf("%w: %s: %s already open", core.ErrProtocolViolation, cs.cfg.Name, key)
	}
	var blocks []queue.BlockIndex
	if txn.Dir == core.Write {
		blocks = append(blocks, blockAwaitData)
	} else {
		blocks = append(blocks, blockService)
	}
	id, ok := cs.table.Enqueue(txn, cycle, blocks...)
	if !ok {
		return fmt.Errorf("%w: %s: outstanding table full", core.ErrProtocolViolation, cs.cfg.Name)
	}
	cs.Release()
	cs.open[key] = id
	cs.lastAccept = cycle
	txn.Status = cs.mem.Check(txn.Addr)
	txn.Phase = core.PhaseData{Since: cycle}
	if txn.Dir == core.Read {
		cs.readyAt[id] = cycle + cs.cfg.ServiceLatency
	}
	return nil
}

// AcceptData applies a transferred write-data beat to its open write.
func (cs *ChannelSet) AcceptData(beat DataBeat, cycle int) error {
	id, ok := cs.open[beat.Key]
	if !ok || beat.Key.Dir != core.Write || !cs.table.Blocked(id, blockAwaitData) {
		return fmt.Errorf("%w: %s: data beat for %s without an open write", core.ErrProtocolViolation, cs.cfg.Name, beat.Key)
	}
	txn := cs.lookup(id)
	if txn.Status == core.StatusOK {
		txn.Status = cs.mem.Write(txn.Addr, beat.Data)
	}
	txn.Data = beat.Data
	txn.Phase = core.PhaseData{Since: cycle, DataTaken: true}
	if err := cs.table.SetBlocked(id, blockService, true, cycle); err != nil {
		return err
	}
	if err := cs.table.SetBlocked(id, blockAwaitData, false, cycle); err != nil {
		return err
	}
	cs.readyAt[id] = cycle + cs.cfg.ServiceLatency
	return nil
}

// NextResponse returns the beat to present on the response channel. Ready
// transactions are picked round robin regardless of id order; once a beat has
// been offered it is returned again until CompleteResponse.
func (cs *ChannelSet) NextResponse() (ResponseBeat, bool) {
	if cs.hasOffered {
		return cs.beatFor(cs.lookup(cs.offered)), true
	}
	id, txn, ok := cs.table.PeekNext()
	if !ok {
		return ResponseBeat{}, false
	}
	cs.offered = id
	cs.hasOffered = true
	return cs.beatFor(txn), true
}

// CompleteResponse removes the transaction whose response beat transferred.
func (cs *ChannelSet) CompleteResponse(key core.Key, cycle int) (*core.Transaction, error) {
	if !cs.hasOffered {
		return nil, fmt.Errorf("%w: %s: response %s was never offered", core.ErrProtocolViolation, cs.cfg.Name, key)
	}
	txn := cs.lookup(cs.offered)
	if txn.Key() != key {
		return nil, fmt.Errorf("%w: %s: response %s does not match offered %s", core.ErrProtocolViolation, cs.cfg.Name, key, txn.Key())
	}
	cs.table.Complete(cs.offered, cycle)
	delete(cs.open, key)
	cs.hasOffered = false
	txn.CompletedAt = cycle
	txn.Phase = core.PhaseIdle{}
	cs.completed[txn.Status]++
	return txn, nil
}

// Commit closes the cycle: transactions whose service time has elapsed get
// their read data and become eligible for a response from the next cycle on.
// An error means the outstanding table lost track of a serviced entry.
func (cs *ChannelSet) Commit(cycle int) error {
	var due []queue.EntryID
	cs.table.ForEach(func(id queue.EntryID, _ *core.Transaction, _ bool) {
		if at, ok := cs.readyAt[id]; ok && at <= cycle+1 {
			due = append(due, id)
		}
	})
	for _, id := range due {
		txn := cs.lookup(id)
		if txn.Dir == core.Read && txn.Status == core.StatusOK {
			word, st := cs.mem.Read(txn.Addr)
			txn.Data, txn.Status = uint64(word), st
			txn.HasData = true
		}
		txn.Phase = core.PhaseResponse{Since: cycle + 1}
		delete(cs.readyAt, id)
		if err := cs.table.SetBlocked(id, blockService, false, cycle); err != nil {
			return fmt.Errorf("commit entry %d: %w", id, err)
		}
	}
	return nil
}

// Lookup returns the open transaction with key.
func (cs *ChannelSet) Lookup(key core.Key) (*core.Transaction, bool) {
	id, ok := cs.open[key]
	if !ok {
		return nil, false
	}
	return cs.lookup(id), true
}

// Entries returns copies of the open transactions in address order.
func (cs *ChannelSet) Entries() []core.Transaction {
	out := make([]core.Transaction, 0, cs.table.Len())
	cs.table.ForEach(func(_ queue.EntryID, txn *core.Transaction, _ bool) {
		out = append(out, *txn)
	})
	return out
}

// Completed returns the number of delivered responses with status st.
func (cs *ChannelSet) Completed(st core.Status) uint64 {
	return cs.completed[st]
}

// Reset drops every outstanding transaction, the channel state and the
// memory contents.
func (cs *ChannelSet) Reset() {
	cs.address.Reset()
	cs.data.Reset()
	cs.response.Reset()
	cs.table.Reset()
	cs.mem.Clear()
	cs.clear()
}

func (cs *ChannelSet) clear() {
	cs.open = make(map[core.Key]queue.EntryID)
	cs.readyAt = make(map[queue.EntryID]int)
	cs.completed = make(map[core.Status]uint64)
	cs.reserved = 0
	cs.hasOffered = false
	cs.offered = 0
	cs.lastAccept = -1
}

func (cs *ChannelSet) lookup(id queue.EntryID) *core.Transaction {
	var found *core.Transaction
	cs.table.ForEach(func(eid queue.EntryID, txn *core.Transaction, _ bool) {
		if eid == id {
			found = txn
		}
	})
	return found
}

func (cs *ChannelSet) beatFor(txn *core.Transaction) ResponseBeat {
	beat := ResponseBeat{Key: txn.Key(), Master: txn.Master, Status: txn.Status}
	if txn.Dir == core.Read {
		beat.Data = txn.Data
	}
	return beat
}
