package queue

// MutateFunc is invoked after queue length changes.
type MutateFunc func(length int, capacity int)

// Entry is one FIFO slot. Entries are never modified after Push.
type Entry[T any] struct {
	Seq   uint64
	Value T
}

// Hooks defines callbacks for FIFO lifecycle events.
type Hooks[T any] struct {
	OnPush   func(e Entry[T])
	OnPop    func(e Entry[T])
	OnReject func(v T)
}

// FIFO is a bounded, registered first-in first-out buffer. Entries pushed
// during a cycle occupy a slot immediately but only become visible to Pop
// after Commit, and push/pop acknowledgments are observable one cycle after
// the operation was issued.
type FIFO[T any] struct {
	name     string
	capacity int
	entries  []Entry[T]
	visible  int
	nextSeq  uint64

	hooks  Hooks[T]
	mutate MutateFunc

	pushIssued, popIssued bool
	pushAck, popAck       bool

	rejects int
}

// NewFIFO creates an empty FIFO. A capacity below one is raised to one.
func NewFIFO[T any](name string, capacity int, mutate MutateFunc, hooks Hooks[T]) *FIFO[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &FIFO[T]{
		name:     name,
		capacity: capacity,
		entries:  make([]Entry[T], 0, capacity),
		mutate:   mutate,
		hooks:    hooks,
	}
	q.notify()
	return q
}

// Name returns the FIFO name.
func (q *FIFO[T]) Name() string {
	if q == nil {
		return ""
	}
	return q.name
}

// Capacity returns the fixed capacity.
func (q *FIFO[T]) Capacity() int {
	if q == nil {
		return 0
	}
	return q.capacity
}

// Len returns the occupancy, including entries pushed this cycle.
func (q *FIFO[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.entries)
}

// IsFull reports whether occupancy has reached capacity.
func (q *FIFO[T]) IsFull() bool {
	return q != nil && len(q.entries) >= q.capacity
}

// IsEmpty reports whether occupancy is zero.
func (q *FIFO[T]) IsEmpty() bool {
	return q == nil || len(q.entries) == 0
}

// Push appends v. It returns false and changes nothing when the FIFO is full.
func (q *FIFO[T]) Push(v T) bool {
	if q == nil {
		return false
	}
	if len(q.entries) >= q.capacity {
		q.rejects++
		if q.hooks.OnReject != nil {
			q.hooks.OnReject(v)
		}
		return false
	}
	e := Entry[T]{Seq: q.nextSeq, Value: v}
	q.nextSeq++
	q.entries = append(q.entries, e)
	q.pushIssued = true
	if q.hooks.OnPush != nil {
		q.hooks.OnPush(e)
	}
	q.notify()
	return true
}

// Pop removes and returns the oldest committed entry.
func (q *FIFO[T]) Pop() (T, bool) {
	var zero T
	if q == nil || q.visible == 0 {
		return zero, false
	}
	e := q.entries[0]
	q.entries[0] = Entry[T]{}
	q.entries = q.entries[1:]
	q.visible--
	q.popIssued = true
	if q.hooks.OnPop != nil {
		q.hooks.OnPop(e)
	}
	q.notify()
	return e.Value, true
}

// Peek returns the oldest committed entry without removing it.
func (q *FIFO[T]) Peek() (T, bool) {
	if q == nil || q.visible == 0 {
		var zero T
		return zero, false
	}
	return q.entries[0].Value, true
}

// Commit closes the current cycle: staged pushes become visible and this
// cycle's operations become the registered acknowledgments.
func (q *FIFO[T]) Commit() {
	if q == nil {
		return
	}
	q.visible = len(q.entries)
	q.pushAck, q.popAck = q.pushIssued, q.popIssued
	q.pushIssued, q.popIssued = false, false
}

// Acks returns the push and pop acknowledgments registered at the last Commit.
func (q *FIFO[T]) Acks() (push bool, pop bool) {
	if q == nil {
		return false, false
	}
	return q.pushAck, q.popAck
}

// Rejects returns how many pushes were refused because the FIFO was full.
func (q *FIFO[T]) Rejects() int {
	if q == nil {
		return 0
	}
	return q.rejects
}

// Items returns a copy of all entries in FIFO order, staged ones included.
func (q *FIFO[T]) Items() []T {
	if q == nil {
		return nil
	}
	out := make([]T, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.Value
	}
	return out
}

// Reset empties the FIFO and clears acknowledgments and counters.
func (q *FIFO[T]) Reset() {
	if q == nil {
		return
	}
	q.entries = q.entries[:0]
	q.visible = 0
	q.nextSeq = 0
	q.pushIssued, q.popIssued = false, false
	q.pushAck, q.popAck = false, false
	q.rejects = 0
	q.notify()
}

func (q *FIFO[T]) notify() {
	if q == nil || q.mutate == nil {
		return
	}
	q.mutate(len(q.entries), q.capacity)
}
