package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/hooks"
)

func TestObserveCountsEvents(t *testing.T) {
	c := NewCollector()
	events := []core.Event{
		{Type: core.EventSubmitted, Master: 0, Slave: 0},
		{Type: core.EventSubmitted, Master: 1, Slave: 0},
		{Type: core.EventRejected, Master: 1, Slave: 0, Reason: core.RejectRequestFIFOFull},
		{Type: core.EventGrant, Master: 0, Slave: 0},
		{Type: core.EventAddressStall, Master: 0, Slave: 0},
		{Type: core.EventAddressStall, Master: 0, Slave: 0},
		{Type: core.EventResponse, Master: 0, Slave: 0, Status: core.StatusOK, Latency: 3},
		{Type: core.EventStarvation, Master: 1, Slave: 0},
		{Type: core.EventReset, Master: -1, Slave: -1},
	}
	for _, ev := range events {
		require.NoError(t, c.Observe(ev))
	}
	c.RecordCycles(5)
	c.RecordCycles(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.submitted.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("1", "request_fifo_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.grants.WithLabelValues("0", "0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.stalls.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responses.WithLabelValues("0", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.starvations.WithLabelValues("0", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resets))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.cycles))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestPluginWiredThroughFabric(t *testing.T) {
	c := NewCollector()
	reg := hooks.NewRegistry(nil)
	require.NoError(t, c.Register(reg))
	require.NoError(t, reg.LoadGlobal([]string{PluginName}))

	f, err := fabric.New(fabric.Config{
		Masters: 1,
		Slaves:  []fabric.SlaveConfig{{Name: "ram", Size: 0x100}},
	}, fabric.WithBroker(reg.Broker()))
	require.NoError(t, err)

	ok, err := f.Submit(0, core.NewWrite(1, 0x0, 5))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.Submit(0, core.NewRead(2, 0x200))
	require.NoError(t, err)
	require.True(t, ok)

	got := 0
	for i := 0; i < 30 && got < 2; i++ {
		require.NoError(t, f.Tick())
		for {
			if _, ok := f.PollResponse(0); !ok {
				break
			}
			got++
		}
	}
	require.Equal(t, 2, got)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.submitted.WithLabelValues("0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responses.WithLabelValues("0", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.responses.WithLabelValues("0", "decode_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.dataBeats.WithLabelValues("0")))

	expected := `
# HELP busfabric_resets_total Fabric resets.
# TYPE busfabric_resets_total counter
busfabric_resets_total 0
`
	assert.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "busfabric_resets_total"))
}

func TestRegisterTwiceFails(t *testing.T) {
	c := NewCollector()
	reg := hooks.NewRegistry(nil)
	require.NoError(t, c.Register(reg))
	assert.Error(t, c.Register(reg))
}
