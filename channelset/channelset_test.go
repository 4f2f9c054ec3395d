package channelset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bus_fabric_sim/core"
)

func newSet(t *testing.T, cfg Config) *ChannelSet {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "mem"
	}
	if cfg.Size == 0 {
		cfg.Size = 0x100
	}
	if cfg.MaxOutstanding == 0 {
		cfg.MaxOutstanding = 4
	}
	cs, err := New(cfg, nil)
	require.NoError(t, err)
	return cs
}

func open(t *testing.T, cs *ChannelSet, txn *core.Transaction, cycle int) {
	t.Helper()
	require.True(t, cs.Reserve())
	require.True(t, cs.AddressReady(AddressBeat{Key: txn.Key(), Addr: txn.Addr}, cycle))
	require.NoError(t, cs.OpenAddress(txn, cycle))
}

func respond(t *testing.T, cs *ChannelSet, cycle int) *core.Transaction {
	t.Helper()
	beat, ok := cs.NextResponse()
	require.True(t, ok, "expected a response at cycle %d", cycle)
	txn, err := cs.CompleteResponse(beat.Key, cycle)
	require.NoError(t, err)
	return txn
}

func TestWriteThenReadReturnsData(t *testing.T) {
	cs := newSet(t, Config{})

	w := core.NewWrite(7, 0x4, 0xDEADBEEF)
	open(t, cs, &w, 0)
	assert.Equal(t, "data", core.PhaseName(w.Phase))
	require.NoError(t, cs.Commit(0))
	_, ok := cs.NextResponse()
	assert.False(t, ok, "write cannot respond before its data")

	require.NoError(t, cs.AcceptData(DataBeat{Key: w.Key(), Data: w.Data}, 1))
	require.NoError(t, cs.Commit(1))
	done := respond(t, cs, 2)
	assert.Equal(t, uint32(7), done.ID)
	assert.Equal(t, core.StatusOK, done.Status)

	r := core.NewRead(9, 0x4)
	open(t, cs, &r, 3)
	require.NoError(t, cs.Commit(3))
	assert.Equal(t, "response", core.PhaseName(r.Phase))
	beat, ok := cs.NextResponse()
	require.True(t, ok)
	assert.Equal(t, core.Key{Dir: core.Read, ID: 9}, beat.Key)
	assert.Equal(t, uint64(0xDEADBEEF), beat.Data)
	assert.Equal(t, core.StatusOK, beat.Status)
	_, err := cs.CompleteResponse(beat.Key, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, cs.Outstanding())
}

func TestDistinctIDsCompleteOutOfOrder(t *testing.T) {
	cs := newSet(t, Config{})

	w := core.NewWrite(1, 0x10, 5)
	r := core.NewRead(2, 0x20)
	open(t, cs, &w, 0)
	open(t, cs, &r, 1)
	require.NoError(t, cs.Commit(1))

	first := respond(t, cs, 2)
	assert.Equal(t, uint32(2), first.ID, "read overtakes the write still waiting for data")

	require.NoError(t, cs.AcceptData(DataBeat{Key: w.Key(), Data: 5}, 3))
	require.NoError(t, cs.Commit(3))
	second := respond(t, cs, 4)
	assert.Equal(t, uint32(1), second.ID)
}

func TestServiceLatencyDelaysResponse(t *testing.T) {
	cs := newSet(t, Config{ServiceLatency: 3})
	r := core.NewRead(1, 0)
	open(t, cs, &r, 0)

	for cycle := 0; cycle < 2; cycle++ {
		require.NoError(t, cs.Commit(cycle))
		_, ok := cs.NextResponse()
		assert.False(t, ok, "cycle %d", cycle)
	}
	require.NoError(t, cs.Commit(2))
	_, ok := cs.NextResponse()
	assert.True(t, ok)
}

func TestSameIDWaitsForResponse(t *testing.T) {
	cs := newSet(t, Config{})
	r := core.NewRead(3, 0)
	open(t, cs, &r, 0)

	again := AddressBeat{Key: core.Key{Dir: core.Read, ID: 3}}
	assert.False(t, cs.AddressReady(again, 1))
	other := AddressBeat{Key: core.Key{Dir: core.Write, ID: 3}}
	assert.True(t, cs.AddressReady(other, 1), "ids are unique per direction")

	dup := core.NewRead(3, 4)
	err := cs.OpenAddress(&dup, 1)
	assert.True(t, errors.Is(err, core.ErrProtocolViolation))

	require.NoError(t, cs.Commit(1))
	respond(t, cs, 2)
	assert.True(t, cs.AddressReady(again, 3))
}

func TestErrorResponsesLeaveOthersIntact(t *testing.T) {
	cs := newSet(t, Config{Base: 0x1000, Size: 0x10})

	misaligned := core.NewWrite(1, 0x1002, 0xFF)
	outside := core.NewRead(2, 0x2000)
	good := core.NewRead(3, 0x1004)
	open(t, cs, &misaligned, 0)
	open(t, cs, &outside, 0)
	open(t, cs, &good, 0)
	require.NoError(t, cs.AcceptData(DataBeat{Key: misaligned.Key(), Data: 0xFF}, 0))
	require.NoError(t, cs.Commit(0))

	got := map[uint32]core.Status{}
	for i := 0; i < 3; i++ {
		txn := respond(t, cs, 1+i)
		got[txn.ID] = txn.Status
	}
	assert.Equal(t, map[uint32]core.Status{
		1: core.StatusSlaveError,
		2: core.StatusDecodeError,
		3: core.StatusOK,
	}, got)
	word, st := cs.Memory().Read(0x1000)
	assert.Equal(t, core.StatusOK, st)
	assert.Zero(t, word, "failed write must not touch memory")
	assert.Equal(t, uint64(1), cs.Completed(core.StatusOK))
}

func TestOutstandingBound(t *testing.T) {
	cs := newSet(t, Config{MaxOutstanding: 4})
	for i := 0; i < 4; i++ {
		require.True(t, cs.Reserve())
	}
	assert.False(t, cs.Reserve())
	assert.Equal(t, 4, cs.Outstanding())

	cs.Release()
	assert.Equal(t, 3, cs.Outstanding())
	assert.True(t, cs.Reserve())
}

func TestOfferedResponseIsNotSwapped(t *testing.T) {
	cs := newSet(t, Config{})
	a := core.NewRead(1, 0)
	b := core.NewRead(2, 4)
	open(t, cs, &a, 0)
	open(t, cs, &b, 0)
	require.NoError(t, cs.Commit(0))

	first, ok := cs.NextResponse()
	require.True(t, ok)
	again, ok := cs.NextResponse()
	require.True(t, ok)
	assert.Equal(t, first, again)

	_, err := cs.CompleteResponse(core.Key{Dir: core.Read, ID: 99}, 1)
	assert.True(t, errors.Is(err, core.ErrProtocolViolation))
}

func TestAcceptInterval(t *testing.T) {
	cs := newSet(t, Config{AcceptInterval: 3})
	r := core.NewRead(1, 0)
	open(t, cs, &r, 0)

	beat := AddressBeat{Key: core.Key{Dir: core.Read, ID: 2}}
	assert.False(t, cs.AddressReady(beat, 1))
	assert.False(t, cs.AddressReady(beat, 2))
	assert.True(t, cs.AddressReady(beat, 3))
}

func TestDataWithoutOpenWrite(t *testing.T) {
	cs := newSet(t, Config{})
	err := cs.AcceptData(DataBeat{Key: core.Key{Dir: core.Write, ID: 1}}, 0)
	assert.True(t, errors.Is(err, core.ErrProtocolViolation))

	w := core.NewWrite(1, 0, 1)
	open(t, cs, &w, 0)
	require.NoError(t, cs.AcceptData(DataBeat{Key: w.Key(), Data: 1}, 0))
	err = cs.AcceptData(DataBeat{Key: w.Key(), Data: 1}, 1)
	assert.True(t, errors.Is(err, core.ErrProtocolViolation), "second data beat for one write")
}

func TestResetClearsEverything(t *testing.T) {
	cs := newSet(t, Config{})
	w := core.NewWrite(1, 0, 42)
	open(t, cs, &w, 0)
	require.NoError(t, cs.AcceptData(DataBeat{Key: w.Key(), Data: 42}, 0))
	require.True(t, cs.Reserve())

	cs.Reset()
	assert.Equal(t, 0, cs.Outstanding())
	assert.Empty(t, cs.Entries())
	_, ok := cs.Lookup(w.Key())
	assert.False(t, ok)
	word, _ := cs.Memory().Read(0)
	assert.Zero(t, word)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Name: "x", Size: 4}, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
	_, err = New(Config{Name: "x", Size: MaxWindowBytes + 4, MaxOutstanding: 1}, nil)
	assert.True(t, errors.Is(err, core.ErrInvalidConfig))
}

func TestMemoryBounds(t *testing.T) {
	m := NewMemory(0x100, 0x10)
	assert.Equal(t, uint64(0x10), m.Size())
	assert.Equal(t, core.StatusOK, m.Write(0x10C, 0x1_0000_0002))
	word, st := m.Read(0x10C)
	assert.Equal(t, core.StatusOK, st)
	assert.Equal(t, uint32(2), word, "only the low word is stored")

	assert.Equal(t, core.StatusDecodeError, m.Check(0x110))
	assert.Equal(t, core.StatusDecodeError, m.Check(0xFC))
	assert.Equal(t, core.StatusSlaveError, m.Check(0x101))

	empty := NewMemory(0, 0)
	assert.Equal(t, core.StatusDecodeError, empty.Check(0))
}
