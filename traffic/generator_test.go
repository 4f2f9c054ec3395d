package traffic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bus_fabric_sim/core"
)

func TestScheduleHandsOutItemsOnce(t *testing.T) {
	s, err := NewSchedule([]ScheduleItem{
		{Cycle: 0, Master: 0, ID: 7, Dir: "write", Addr: 0x4, Data: 0xDEADBEEF},
		{Cycle: 0, Master: 0, ID: 8, Dir: "r", Addr: 0x8},
		{Cycle: 3, Master: 1, ID: 9, Dir: "read", Addr: 0x4},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Remaining())
	assert.Equal(t, 3, s.LastCycle())

	got := s.Generate(0, 0)
	require.Len(t, got, 2)
	assert.Equal(t, core.NewWrite(7, 0x4, 0xDEADBEEF), got[0])
	assert.Equal(t, core.NewRead(8, 0x8), got[1])
	assert.Empty(t, s.Generate(0, 0))
	assert.Empty(t, s.Generate(3, 0))
	assert.Len(t, s.Generate(3, 1), 1)
	assert.Zero(t, s.Remaining())

	s.Reset()
	assert.Equal(t, 3, s.Remaining())
}

func TestScheduleRejectsBadItems(t *testing.T) {
	_, err := NewSchedule([]ScheduleItem{{Dir: "erase"}})
	assert.Error(t, err)
	_, err = NewSchedule([]ScheduleItem{{Cycle: -1}})
	assert.Error(t, err)
}

func TestRandomIsSeededAndAligned(t *testing.T) {
	cfg := RandomConfig{
		Seed:      9,
		Rate:      0.7,
		ReadRatio: 0.5,
		Windows:   []Window{{Base: 0x1000, Size: 0x40, Weight: 3}, {Base: 0x8000, Size: 0x10}},
	}
	a, err := NewRandom(cfg)
	require.NoError(t, err)
	b, err := NewRandom(cfg)
	require.NoError(t, err)

	var first []core.Transaction
	ids := map[uint32]bool{}
	for c := 0; c < 200; c++ {
		for m := 0; m < 3; m++ {
			ta := a.Generate(c, m)
			tb := b.Generate(c, m)
			require.Equal(t, ta, tb)
			for _, txn := range ta {
				assert.Zero(t, txn.Addr%core.WordSize)
				inA := txn.Addr >= 0x1000 && txn.Addr < 0x1040
				inB := txn.Addr >= 0x8000 && txn.Addr < 0x8010
				assert.True(t, inA || inB, "addr %#x", txn.Addr)
				assert.Equal(t, uint32(m), txn.ID>>24)
				assert.False(t, ids[txn.ID], "id %#x reused", txn.ID)
				ids[txn.ID] = true
				first = append(first, txn)
			}
		}
	}
	assert.NotEmpty(t, first)

	a.Reset()
	var replay []core.Transaction
	for c := 0; c < 200 && len(replay) < len(first); c++ {
		for m := 0; m < 3; m++ {
			replay = append(replay, a.Generate(c, m)...)
		}
	}
	assert.Equal(t, first, replay)
}

func TestRandomValidation(t *testing.T) {
	w := []Window{{Base: 0, Size: 0x10}}
	_, err := NewRandom(RandomConfig{Rate: 1.5, Windows: w})
	assert.Error(t, err)
	_, err = NewRandom(RandomConfig{Rate: 0.5, ReadRatio: -1, Windows: w})
	assert.Error(t, err)
	_, err = NewRandom(RandomConfig{Rate: 0.5})
	assert.Error(t, err)
	_, err = NewRandom(RandomConfig{Rate: 0.5, Windows: []Window{{Size: 2}}})
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("W")
	require.NoError(t, err)
	assert.Equal(t, core.Write, d)
	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, core.Read, d)
}

func TestMasters(t *testing.T) {
	assert.Equal(t, []int{0, 2}, Masters([]ScheduleItem{{Master: 2}, {Master: 0}, {Master: 2}}))
}
