package fabric

import (
	"fmt"

	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/handshake"
)

// FIFOState is the read-only view of a buffered stage.
type FIFOState interface {
	Name() string
	Len() int
	Capacity() int
	IsFull() bool
	IsEmpty() bool
}

// MasterStats accumulates per-master completion statistics.
type MasterStats struct {
	Submitted    uint64 `json:"submitted"`
	Rejected     uint64 `json:"rejected"`
	Completed    uint64 `json:"completed"`
	Errors       uint64 `json:"errors"`
	TotalLatency int    `json:"totalLatency"`
	MinLatency   int    `json:"minLatency"`
	MaxLatency   int    `json:"maxLatency"`
}

// AvgLatency returns the mean submit-to-delivery latency in cycles.
func (s MasterStats) AvgLatency() float64 {
	if s.Completed == 0 {
		return 0
	}
	return float64(s.TotalLatency) / float64(s.Completed)
}

func (s *MasterStats) record(txn *core.Transaction) {
	lat := txn.Latency()
	if s.Completed == 0 || lat < s.MinLatency {
		s.MinLatency = lat
	}
	if lat > s.MaxLatency {
		s.MaxLatency = lat
	}
	s.Completed++
	s.TotalLatency += lat
	if txn.Status != core.StatusOK {
		s.Errors++
	}
}

// TxnView is the JSON form of an open transaction.
type TxnView struct {
	ID     uint32 `json:"id"`
	Dir    string `json:"dir"`
	Addr   uint64 `json:"addr"`
	Master int    `json:"master"`
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

// MasterSnapshot is a point-in-time view of one master port.
type MasterSnapshot struct {
	core.NodeInfo
	Stats MasterStats `json:"stats"`
}

// SlaveSnapshot is a point-in-time view of one slave port.
type SlaveSnapshot struct {
	core.NodeInfo
	Base      uint64            `json:"base"`
	Size      uint64            `json:"size"`
	Policy    string            `json:"policy"`
	LastGrant *core.GrantRecord `json:"lastGrant,omitempty"`
	Grants    []uint64          `json:"grants"`
	Starving  []int             `json:"starving,omitempty"`
	Open      []TxnView         `json:"open,omitempty"`
	Address   handshake.Stats   `json:"address"`
	Data      handshake.Stats   `json:"data"`
	Response  handshake.Stats   `json:"response"`
	Responses map[string]uint64 `json:"responses"`
}

// Snapshot is a copy of the observable fabric state.
type Snapshot struct {
	Cycle   int              `json:"cycle"`
	Fault   string           `json:"fault,omitempty"`
	Masters []MasterSnapshot `json:"masters"`
	Slaves  []SlaveSnapshot  `json:"slaves"`
}

// PendingCount returns the number of requests of master not yet accepted by
// a slave. Unknown masters report zero.
func (f *Fabric) PendingCount(master int) int {
	if master < 0 || master >= len(f.masters) {
		return 0
	}
	return f.masters[master].requests.Len()
}

// OutstandingCount returns the slots in use at slave: submitted requests
// holding a reservation plus transactions past their address phase.
func (f *Fabric) OutstandingCount(slave int) int {
	if slave < 0 || slave >= len(f.slaves) {
		return 0
	}
	return f.slaves[slave].cs.Outstanding()
}

// RequestFIFO returns the request stage of master.
func (f *Fabric) RequestFIFO(master int) (FIFOState, error) {
	if master < 0 || master >= len(f.masters) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownMaster, master)
	}
	return f.masters[master].requests, nil
}

// ResponseFIFO returns the response stage of master.
func (f *Fabric) ResponseFIFO(master int) (FIFOState, error) {
	if master < 0 || master >= len(f.masters) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownMaster, master)
	}
	return f.masters[master].responses, nil
}

// WriteDataFIFO returns the write-data stage of slave.
func (f *Fabric) WriteDataFIFO(slave int) (FIFOState, error) {
	if slave < 0 || slave >= len(f.slaves) {
		return nil, fmt.Errorf("%w: %d", core.ErrUnknownSlave, slave)
	}
	return f.slaves[slave].writeData, nil
}

// LastGrant returns the most recent accepted grant on slave's arbiter.
func (f *Fabric) LastGrant(slave int) (core.GrantRecord, bool) {
	if slave < 0 || slave >= len(f.slaves) {
		return core.GrantRecord{}, false
	}
	return f.slaves[slave].arb.LastGrant()
}

// GrantHistory returns the retained grants of slave's arbiter, oldest first.
func (f *Fabric) GrantHistory(slave int) []core.GrantRecord {
	if slave < 0 || slave >= len(f.slaves) {
		return nil
	}
	return f.slaves[slave].arb.History()
}

// Starving lists the masters waiting on slave longer than the configured
// starvation bound.
func (f *Fabric) Starving(slave int) []int {
	if slave < 0 || slave >= len(f.slaves) {
		return nil
	}
	return f.slaves[slave].arb.Starving(f.cycle, f.cfg.StarvationBound)
}

// MasterStats returns the statistics of master.
func (f *Fabric) MasterStats(master int) (MasterStats, error) {
	if master < 0 || master >= len(f.masters) {
		return MasterStats{}, fmt.Errorf("%w: %d", core.ErrUnknownMaster, master)
	}
	return f.masters[master].stats, nil
}

// Snapshot copies the observable state.
func (f *Fabric) Snapshot() Snapshot {
	snap := Snapshot{Cycle: f.cycle}
	if f.fault != nil {
		snap.Fault = f.fault.Error()
	}
	for m := range f.masters {
		snap.Masters = append(snap.Masters, f.masterSnapshot(m))
	}
	for s := range f.slaves {
		snap.Slaves = append(snap.Slaves, f.slaveSnapshot(s))
	}
	return snap
}

func (f *Fabric) masterSnapshot(m int) MasterSnapshot {
	mp := f.masters[m]
	return MasterSnapshot{
		NodeInfo: core.NodeInfo{
			ID:    m,
			Label: fmt.Sprintf("master%d", m),
			Type:  core.NodeTypeMaster,
			Queues: []core.QueueInfo{
				queueInfo(mp.requests),
				queueInfo(mp.responses),
			},
			Pending:   mp.requests.Len(),
			Completed: int(mp.stats.Completed),
		},
		Stats: mp.stats,
	}
}

func (f *Fabric) slaveSnapshot(s int) SlaveSnapshot {
	sp := f.slaves[s]
	snap := SlaveSnapshot{
		NodeInfo: core.NodeInfo{
			ID:          s,
			Label:       sp.cfg.Name,
			Type:        core.NodeTypeSlave,
			Queues:      []core.QueueInfo{queueInfo(sp.writeData)},
			Outstanding: sp.cs.Outstanding(),
		},
		Base:      sp.cfg.Base,
		Size:      sp.cfg.Size,
		Policy:    sp.arb.Policy().Name(),
		Grants:    sp.arb.Grants(),
		Starving:  sp.arb.Starving(f.cycle, f.cfg.StarvationBound),
		Address:   sp.cs.Address().Stats(),
		Data:      sp.cs.Data().Stats(),
		Response:  sp.cs.Response().Stats(),
		Responses: make(map[string]uint64),
	}
	if last, ok := sp.arb.LastGrant(); ok {
		snap.LastGrant = &last
	}
	for _, st := range []core.Status{core.StatusOK, core.StatusSlaveError, core.StatusDecodeError} {
		n := sp.cs.Completed(st)
		snap.Responses[st.String()] = n
		snap.Completed += int(n)
	}
	for _, txn := range sp.cs.Entries() {
		snap.Open = append(snap.Open, TxnView{
			ID:     txn.ID,
			Dir:    txn.Dir.String(),
			Addr:   txn.Addr,
			Master: txn.Master,
			Phase:  core.PhaseName(txn.Phase),
			Status: txn.Status.String(),
		})
	}
	return snap
}

func queueInfo(q FIFOState) core.QueueInfo {
	return core.QueueInfo{Name: q.Name(), Length: q.Len(), Capacity: q.Capacity()}
}
