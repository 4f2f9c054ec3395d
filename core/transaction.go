package core

import "fmt"

// Direction distinguishes read and write transactions.
type Direction uint8

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the defined directions.
func (d Direction) Valid() bool {
	return d == Read || d == Write
}

// Status is the completion status carried by a response.
type Status uint8

const (
	StatusOK          Status = iota
	StatusSlaveError         // misaligned access
	StatusDecodeError        // address outside the slave window
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSlaveError:
		return "slave_error"
	case StatusDecodeError:
		return "decode_error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// WordSize is the data width of a single beat in bytes.
const WordSize = 4

// Key identifies an outstanding transaction on one slave. IDs are unique
// per direction, so the same numeric ID may be open once for reads and once
// for writes.
type Key struct {
	Dir Direction
	ID  uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Dir, k.ID)
}

// Transaction is a single bus access from a master to a slave.
type Transaction struct {
	ID      uint32
	Dir     Direction
	Addr    uint64
	Data    uint64 // write payload, or read result once completed
	HasData bool

	Master int
	Slave  int

	Status Status
	Phase  Phase

	SubmittedAt int // cycle the request entered the fabric
	CompletedAt int // cycle the response was delivered
}

// NewRead builds a read request.
func NewRead(id uint32, addr uint64) Transaction {
	return Transaction{ID: id, Dir: Read, Addr: addr, Phase: PhaseIdle{}}
}

// NewWrite builds a write request carrying data.
func NewWrite(id uint32, addr uint64, data uint64) Transaction {
	return Transaction{ID: id, Dir: Write, Addr: addr, Data: data, HasData: true, Phase: PhaseIdle{}}
}

// Key returns the outstanding-table key of the transaction.
func (t *Transaction) Key() Key {
	return Key{Dir: t.Dir, ID: t.ID}
}

// Latency returns the number of cycles between submission and delivery.
func (t *Transaction) Latency() int {
	if t.CompletedAt < t.SubmittedAt {
		return 0
	}
	return t.CompletedAt - t.SubmittedAt
}

func (t *Transaction) String() string {
	if t == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s id=%d addr=%#x master=%d slave=%d phase=%s status=%s",
		t.Dir, t.ID, t.Addr, t.Master, t.Slave, PhaseName(t.Phase), t.Status)
}

// Request is a master's bid for bus access, held until its grant is accepted
// or it is withdrawn.
type Request struct {
	Requester int
	Txn       *Transaction
	Arrival   uint64
	Weight    int
}

// GrantRecord remembers which requester won arbitration in a given cycle.
type GrantRecord struct {
	Requester int
	Cycle     int
}
