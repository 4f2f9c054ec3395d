package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/fabric"
	"github.com/example/bus_fabric_sim/internal/control"
	"github.com/example/bus_fabric_sim/internal/logging"
	"github.com/example/bus_fabric_sim/metrics"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func publishedServer(t *testing.T) (*Server, *metrics.Collector) {
	t.Helper()
	f, err := fabric.New(fabric.Config{
		Masters: 2,
		Slaves:  []fabric.SlaveConfig{{Name: "ram", Size: 0x100}},
	})
	require.NoError(t, err)
	ok, err := f.Submit(1, core.NewRead(3, 0x8))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.Run(2))

	c := metrics.NewCollector()
	c.RecordCycles(2)
	s := New(c.Registry(), logging.NewNop())
	s.Publish(f.Snapshot())
	return s, c
}

func TestStatusBeforePublish(t *testing.T) {
	s := New(nil, logging.NewNop())
	rec := get(t, s.Handler(), "/status")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, s.Handler(), "/metrics").Code)
}

func TestStatus(t *testing.T) {
	s, _ := publishedServer(t)
	rec := get(t, s.Handler(), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap fabric.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.Cycle)
	assert.Len(t, snap.Masters, 2)
	require.Len(t, snap.Slaves, 2)
	assert.Equal(t, "ram", snap.Slaves[0].Label)
}

func TestMasterAndSlaveRoutes(t *testing.T) {
	s, _ := publishedServer(t)
	h := s.Handler()

	rec := get(t, h, "/masters/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var m fabric.MasterSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 1, m.ID)
	assert.Equal(t, uint64(1), m.Stats.Submitted)

	rec = get(t, h, "/slaves/0")
	require.Equal(t, http.StatusOK, rec.Code)
	var sl fabric.SlaveSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sl))
	assert.Equal(t, "ram", sl.Label)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/masters/2").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/slaves/x").Code)
}

func TestPresetsRoute(t *testing.T) {
	s := New(nil, logging.NewNop())
	rec := get(t, s.Handler(), "/presets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "write_read")
}

func TestMetricsRoute(t *testing.T) {
	s, _ := publishedServer(t)
	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "busfabric_cycles_total 2"))
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rec
}

func TestControlRoute(t *testing.T) {
	q := control.NewQueue(1)
	h := New(nil, logging.NewNop()).WithControl(q).Handler()

	assert.Equal(t, http.StatusAccepted, post(t, h, "/control", `{"type":"step","steps":4}`).Code)
	assert.Equal(t, http.StatusServiceUnavailable, post(t, h, "/control", `{"type":"pause"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/control", `{"type":"jump"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/control", `not json`).Code)

	cmd, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, control.Command{Type: control.CommandStep, Steps: 4}, cmd)
}

func TestControlRouteDisabled(t *testing.T) {
	h := New(nil, logging.NewNop()).Handler()
	rec := post(t, h, "/control", `{"type":"pause"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
