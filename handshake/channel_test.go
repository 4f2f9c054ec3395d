package handshake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bus_fabric_sim/core"
)

func TestTransferRequiresValidAndReady(t *testing.T) {
	ch := New[uint32]("addr")

	_, ok := ch.Step(0)
	assert.False(t, ok, "idle channel must not transfer")

	ch.SetReady(true)
	_, ok = ch.Step(1)
	assert.False(t, ok, "ready alone must not transfer")

	ch.SetReady(false)
	require.NoError(t, ch.Assert(0x10))
	_, ok = ch.Step(2)
	assert.False(t, ok, "valid alone must not transfer")
	assert.True(t, ch.Holding())

	ch.SetReady(true)
	v, ok := ch.Step(3)
	require.True(t, ok)
	assert.Equal(t, uint32(0x10), v)
	assert.False(t, ch.Valid())
	assert.False(t, ch.Holding())
	assert.Equal(t, 3, ch.LastTransfer())

	st := ch.Stats()
	assert.Equal(t, Stats{Transfers: 1, Stalls: 1, Starved: 1, Idle: 1}, st)
}

func TestSameCycleTransfer(t *testing.T) {
	ch := New[string]("data")
	ch.SetReady(true)
	require.NoError(t, ch.Assert("beat"))
	v, ok := ch.Step(0)
	require.True(t, ok)
	assert.Equal(t, "beat", v)
	assert.False(t, ch.Holding())
}

func TestHeldValueMustNotChange(t *testing.T) {
	ch := New[uint32]("resp")
	require.NoError(t, ch.Assert(1))
	// Not yet observed by a cycle, so the producer may still change it.
	require.NoError(t, ch.Assert(2))
	ch.Step(0)

	err := ch.Assert(3)
	require.ErrorIs(t, err, core.ErrProtocolViolation)
	v, ok := ch.Peek()
	require.True(t, ok)
	assert.Equal(t, uint32(2), v, "rejected assert must not change held data")

	require.NoError(t, ch.Assert(2), "re-driving the same value is fine")

	err = ch.Deassert()
	require.ErrorIs(t, err, core.ErrProtocolViolation)
	assert.True(t, ch.Valid())
}

func TestDeassertBeforeFirstCycle(t *testing.T) {
	ch := New[uint32]("addr")
	require.NoError(t, ch.Assert(9))
	require.NoError(t, ch.Deassert())
	assert.False(t, ch.Valid())
}

func TestResetDropsHeldValue(t *testing.T) {
	ch := New[uint32]("addr")
	require.NoError(t, ch.Assert(5))
	ch.Step(0)
	require.True(t, ch.Holding())

	ch.Reset()
	assert.False(t, ch.Valid())
	assert.False(t, ch.Holding())
	require.NoError(t, ch.Assert(6))
	assert.Equal(t, Stats{}, ch.Stats())
}

func TestNoTransferWithoutBothSignalsOverManyCycles(t *testing.T) {
	ch := New[int]("pattern")
	transfers := 0
	for cycle := 0; cycle < 32; cycle++ {
		valid := cycle%3 == 0
		ready := cycle%2 == 0
		if valid && !ch.Valid() {
			require.NoError(t, ch.Assert(cycle))
		}
		ch.SetReady(ready)
		wasValid := ch.Valid()
		if _, ok := ch.Step(cycle); ok {
			require.True(t, wasValid && ready, "transfer at cycle %d without both signals", cycle)
			transfers++
		}
	}
	assert.Equal(t, ch.Stats().Transfers, transfers)
}
