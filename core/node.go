package core

// NodeType tells masters and slaves apart in snapshots.
type NodeType string

const (
	NodeTypeMaster NodeType = "master"
	NodeTypeSlave  NodeType = "slave"
)

// QueueInfo describes the fill level of one buffered stage.
type QueueInfo struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
}

// NodeInfo is a point-in-time view of one master or slave.
type NodeInfo struct {
	ID     int         `json:"id"`
	Label  string      `json:"label"`
	Type   NodeType    `json:"type"`
	Queues []QueueInfo `json:"queues,omitempty"`

	Pending     int `json:"pending,omitempty"`
	Outstanding int `json:"outstanding,omitempty"`
	Completed   int `json:"completed"`
}
