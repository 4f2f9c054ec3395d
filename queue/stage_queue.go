package queue

import "fmt"

// EntryID uniquely identifies an entry in a StageQueue.
type EntryID uint64

// StageQueueHooks are invoked on entry lifecycle changes.
type StageQueueHooks[T any] struct {
	OnEnqueue     func(entryID EntryID, item T, cycle int)
	OnDequeue     func(entryID EntryID, item T, cycle int)
	OnBlockChange func(entryID EntryID, reason BlockIndex, blocked bool, cycle int)
}

type stageEntry[T any] struct {
	id      EntryID
	item    T
	blocks  blockSet
	pending bool
}

// StageQueue is a bounded table of entries that can each be blocked for any
// number of registered reasons. PeekNext hands out unblocked entries in
// round-robin order, so entries may leave in a different order than they
// arrived.
type StageQueue[T any] struct {
	name     string
	capacity int
	mutate   MutateFunc
	hooks    StageQueueHooks[T]
	entries  []*stageEntry[T]
	nextPick int
	nextID   EntryID
}

// NewStageQueue creates an empty StageQueue with the given capacity.
func NewStageQueue[T any](name string, capacity int, mutate MutateFunc, hooks StageQueueHooks[T]) *StageQueue[T] {
	q := &StageQueue[T]{
		name:     name,
		capacity: capacity,
		mutate:   mutate,
		hooks:    hooks,
	}
	q.notify()
	return q
}

// Name returns the queue name.
func (q *StageQueue[T]) Name() string {
	if q == nil {
		return ""
	}
	return q.name
}

// Capacity returns the queue capacity.
func (q *StageQueue[T]) Capacity() int {
	if q == nil {
		return 0
	}
	return q.capacity
}

// Len returns current entry count.
func (q *StageQueue[T]) Len() int {
	if q == nil {
		return 0
	}
	return len(q.entries)
}

// Enqueue inserts item, blocked for each of the given reasons. It returns
// false when the queue is at capacity.
func (q *StageQueue[T]) Enqueue(item T, cycle int, blocked ...BlockIndex) (EntryID, bool) {
	if q == nil {
		return 0, false
	}
	if len(q.entries) >= q.capacity {
		return 0, false
	}
	entry := &stageEntry[T]{id: q.nextID, item: item}
	for _, reason := range blocked {
		entry.blocks.set(reason)
	}
	q.nextID++
	q.entries = append(q.entries, entry)
	q.notify()
	if q.hooks.OnEnqueue != nil {
		q.hooks.OnEnqueue(entry.id, item, cycle)
	}
	return entry.id, true
}

// Find returns the first entry matching predicate.
func (q *StageQueue[T]) Find(match func(T) bool) (EntryID, T, bool) {
	var zero T
	if q == nil || match == nil {
		return 0, zero, false
	}
	for _, entry := range q.entries {
		if match(entry.item) {
			return entry.id, entry.item, true
		}
	}
	return 0, zero, false
}

// PeekNext returns the next unblocked entry that is not already handed out
// and marks it pending. The search starts after the previous pick.
func (q *StageQueue[T]) PeekNext() (EntryID, T, bool) {
	var zero T
	if q == nil || len(q.entries) == 0 {
		return 0, zero, false
	}
	count := len(q.entries)
	start := q.nextPick % count
	for i := 0; i < count; i++ {
		idx := (start + i) % count
		entry := q.entries[idx]
		if !entry.blocks.isZero() || entry.pending {
			continue
		}
		entry.pending = true
		q.nextPick = idx + 1
		return entry.id, entry.item, true
	}
	return 0, zero, false
}

// Complete removes the entry.
func (q *StageQueue[T]) Complete(id EntryID, cycle int) (T, bool) {
	var zero T
	if q == nil {
		return zero, false
	}
	idx, entry := q.find(id)
	if entry == nil {
		return zero, false
	}
	q.removeAt(idx)
	if q.hooks.OnDequeue != nil {
		q.hooks.OnDequeue(id, entry.item, cycle)
	}
	q.notify()
	return entry.item, true
}

// SetBlocked toggles a block bit for a specific entry.
func (q *StageQueue[T]) SetBlocked(id EntryID, reason BlockIndex, blocked bool, cycle int) error {
	if q == nil {
		return fmt.Errorf("stage queue is nil")
	}
	_, entry := q.find(id)
	if entry == nil {
		return fmt.Errorf("entry %d not found", id)
	}
	var changed bool
	if blocked {
		changed = entry.blocks.set(reason)
	} else {
		changed = entry.blocks.clear(reason)
	}
	if !changed {
		return nil
	}
	if blocked {
		entry.pending = false
	}
	if q.hooks.OnBlockChange != nil {
		q.hooks.OnBlockChange(id, reason, blocked, cycle)
	}
	return nil
}

// Blocked reports whether the entry currently carries reason.
func (q *StageQueue[T]) Blocked(id EntryID, reason BlockIndex) bool {
	_, entry := q.find(id)
	return entry != nil && entry.blocks.has(reason)
}

// ResetPending returns a handed-out entry to the pick pool.
func (q *StageQueue[T]) ResetPending(id EntryID) {
	if q == nil {
		return
	}
	if _, entry := q.find(id); entry != nil {
		entry.pending = false
	}
}

// ForEach iterates over entries in enqueue order.
func (q *StageQueue[T]) ForEach(fn func(id EntryID, item T, ready bool)) {
	if q == nil || fn == nil {
		return
	}
	for _, entry := range q.entries {
		fn(entry.id, entry.item, entry.blocks.isZero() && !entry.pending)
	}
}

// Reset drops all entries.
func (q *StageQueue[T]) Reset() {
	if q == nil {
		return
	}
	q.entries = nil
	q.nextPick = 0
	q.notify()
}

func (q *StageQueue[T]) find(id EntryID) (int, *stageEntry[T]) {
	if q == nil {
		return -1, nil
	}
	for idx, entry := range q.entries {
		if entry.id == id {
			return idx, entry
		}
	}
	return -1, nil
}

func (q *StageQueue[T]) removeAt(idx int) {
	last := len(q.entries) - 1
	if idx < 0 || idx > last {
		return
	}
	copy(q.entries[idx:], q.entries[idx+1:])
	q.entries[last] = nil
	q.entries = q.entries[:last]
	if idx < q.nextPick {
		q.nextPick--
	}
	if len(q.entries) == 0 {
		q.nextPick = 0
	} else {
		q.nextPick %= len(q.entries)
	}
}

func (q *StageQueue[T]) notify() {
	if q == nil || q.mutate == nil {
		return
	}
	q.mutate(len(q.entries), q.capacity)
}
