package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageQueueRoundRobin(t *testing.T) {
	var enqueued []EntryID
	q := NewStageQueue("test", 8, nil, StageQueueHooks[int]{
		OnEnqueue: func(id EntryID, item int, cycle int) {
			enqueued = append(enqueued, id)
		},
	})

	for i := 0; i < 3; i++ {
		_, ok := q.Enqueue(i, 0)
		require.True(t, ok, "enqueue %d", i)
	}
	require.Len(t, enqueued, 3)

	order := make([]int, 0, 3)
	for range enqueued {
		id, item, ok := q.PeekNext()
		require.True(t, ok)
		order = append(order, item)
		_, ok = q.Complete(id, 0)
		require.True(t, ok)
	}
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestStageQueueCapacity(t *testing.T) {
	q := NewStageQueue("cap", 1, nil, StageQueueHooks[int]{})
	_, ok := q.Enqueue(1, 0)
	require.True(t, ok)
	_, ok = q.Enqueue(2, 0)
	assert.False(t, ok)
	assert.Equal(t, 1, q.Len())
}

func TestStageQueueBlocking(t *testing.T) {
	changeCount := 0
	q := NewStageQueue("block", 4, nil, StageQueueHooks[string]{
		OnBlockChange: func(id EntryID, reason BlockIndex, blocked bool, cycle int) {
			changeCount++
		},
	})
	stall, err := NewBlockRegistry().Register("stall")
	require.NoError(t, err)

	entry, ok := q.Enqueue("p0", 0)
	require.True(t, ok)

	require.NoError(t, q.SetBlocked(entry, stall, true, 0))
	assert.Equal(t, 1, changeCount)
	assert.True(t, q.Blocked(entry, stall))
	_, _, ok = q.PeekNext()
	assert.False(t, ok, "entry should be blocked")

	require.NoError(t, q.SetBlocked(entry, stall, true, 0))
	assert.Equal(t, 1, changeCount, "setting an already set bit is not a change")

	require.NoError(t, q.SetBlocked(entry, stall, false, 1))
	assert.Equal(t, 2, changeCount)
	_, item, ok := q.PeekNext()
	require.True(t, ok)
	assert.Equal(t, "p0", item)

	assert.Error(t, q.SetBlocked(EntryID(99), stall, true, 1))
}

func TestStageQueueEnqueueBlocked(t *testing.T) {
	reg := NewBlockRegistry()
	a := reg.MustRegister("a")
	b := reg.MustRegister("b")
	q := NewStageQueue("multi", 4, nil, StageQueueHooks[int]{})

	id, ok := q.Enqueue(1, 0, a, b)
	require.True(t, ok)
	require.NoError(t, q.SetBlocked(id, a, false, 1))
	_, _, ok = q.PeekNext()
	assert.False(t, ok, "one remaining reason keeps the entry blocked")
	require.NoError(t, q.SetBlocked(id, b, false, 2))
	_, _, ok = q.PeekNext()
	assert.True(t, ok)
}

func TestStageQueueResetPending(t *testing.T) {
	q := NewStageQueue("pending", 4, nil, StageQueueHooks[int]{})
	entry, ok := q.Enqueue(1, 0)
	require.True(t, ok)

	_, _, ok = q.PeekNext()
	require.True(t, ok)
	_, _, ok = q.PeekNext()
	assert.False(t, ok, "pending entry must not be handed out twice")

	q.ResetPending(entry)
	_, item, ok := q.PeekNext()
	require.True(t, ok)
	assert.Equal(t, 1, item)
}

func TestStageQueueOutOfOrderCompletion(t *testing.T) {
	reg := NewBlockRegistry()
	busy := reg.MustRegister("busy")
	q := NewStageQueue("ooo", 4, nil, StageQueueHooks[string]{})

	first, _ := q.Enqueue("first", 0, busy)
	_, _ = q.Enqueue("second", 0)

	id, item, ok := q.PeekNext()
	require.True(t, ok)
	assert.Equal(t, "second", item, "unblocked younger entry overtakes the blocked older one")
	_, ok = q.Complete(id, 1)
	require.True(t, ok)

	require.NoError(t, q.SetBlocked(first, busy, false, 2))
	_, item, ok = q.PeekNext()
	require.True(t, ok)
	assert.Equal(t, "first", item)
}

func TestStageQueueFindAndReset(t *testing.T) {
	q := NewStageQueue("find", 4, nil, StageQueueHooks[int]{})
	q.Enqueue(10, 0)
	q.Enqueue(20, 0)

	_, v, ok := q.Find(func(i int) bool { return i > 15 })
	require.True(t, ok)
	assert.Equal(t, 20, v)

	q.Reset()
	assert.Equal(t, 0, q.Len())
	_, _, ok = q.Find(func(int) bool { return true })
	assert.False(t, ok)
}
