package core

// EventType names a point in a transaction's life that hooks can observe.
type EventType string

const (
	EventSubmitted     EventType = "Submitted"
	EventRejected      EventType = "Rejected"
	EventGrant         EventType = "Grant"
	EventAddressAccept EventType = "AddressAccept"
	EventAddressStall  EventType = "AddressStall"
	EventDataAccept    EventType = "DataAccept"
	EventResponse      EventType = "Response"
	EventStarvation    EventType = "Starvation"
	EventReset         EventType = "Reset"
)

// RejectReason explains why a submission was refused.
type RejectReason string

const (
	RejectRequestFIFOFull RejectReason = "request_fifo_full"
	RejectOutstandingFull RejectReason = "outstanding_full"
)

// Event is emitted by the fabric for every observable step.
type Event struct {
	Sequence int64        `json:"sequence"`
	Cycle    int          `json:"cycle"`
	Type     EventType    `json:"type"`
	Master   int          `json:"master"`
	Slave    int          `json:"slave"`
	TxnID    uint32       `json:"txnID"`
	Dir      Direction    `json:"dir"`
	Status   Status       `json:"status"`
	Reason   RejectReason `json:"reason,omitempty"`
	Latency  int          `json:"latency,omitempty"`
}
