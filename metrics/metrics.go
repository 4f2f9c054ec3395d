// Package metrics exports fabric events as Prometheus series.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/bus_fabric_sim/core"
	"github.com/example/bus_fabric_sim/hooks"
)

// PluginName is the hook registry name of the metrics plugin.
const PluginName = "metrics"

const namespace = "busfabric"

// Collector owns a private registry so several fabrics in one process do
// not collide.
type Collector struct {
	registry *prometheus.Registry

	cycles      prometheus.Counter
	submitted   *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	grants      *prometheus.CounterVec
	stalls      *prometheus.CounterVec
	dataBeats   *prometheus.CounterVec
	responses   *prometheus.CounterVec
	starvations *prometheus.CounterVec
	resets      prometheus.Counter
	latency     *prometheus.HistogramVec
}

// NewCollector creates and registers every series.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Simulated clock cycles.",
		}),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submitted_total",
			Help:      "Requests accepted into a master request FIFO.",
		}, []string{"master"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Requests refused at submission.",
		}, []string{"master", "reason"}),
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grants_total",
			Help:      "Arbitration grants per slave and master.",
		}, []string{"slave", "master"}),
		stalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_stalls_total",
			Help:      "Cycles an address beat was held without ready.",
		}, []string{"slave"}),
		dataBeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_data_beats_total",
			Help:      "Write data beats accepted by a slave.",
		}, []string{"slave"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses delivered to masters.",
		}, []string{"master", "status"}),
		starvations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "starvation_total",
			Help:      "Starvation episodes per slave and master.",
		}, []string{"slave", "master"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Fabric resets.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_cycles",
			Help:      "Submit to response latency in cycles.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"master"}),
	}
	c.registry.MustRegister(
		c.cycles, c.submitted, c.rejected, c.grants, c.stalls,
		c.dataBeats, c.responses, c.starvations, c.resets, c.latency,
	)
	return c
}

// Registry exposes the registry for scraping.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCycles adds n simulated cycles.
func (c *Collector) RecordCycles(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cycles.Add(float64(n))
}

// Observe updates the series for one event. It never fails.
func (c *Collector) Observe(ev core.Event) error {
	master := strconv.Itoa(ev.Master)
	slave := strconv.Itoa(ev.Slave)
	switch ev.Type {
	case core.EventSubmitted:
		c.submitted.WithLabelValues(master).Inc()
	case core.EventRejected:
		c.rejected.WithLabelValues(master, string(ev.Reason)).Inc()
	case core.EventGrant:
		c.grants.WithLabelValues(slave, master).Inc()
	case core.EventAddressStall:
		c.stalls.WithLabelValues(slave).Inc()
	case core.EventDataAccept:
		c.dataBeats.WithLabelValues(slave).Inc()
	case core.EventResponse:
		c.responses.WithLabelValues(master, ev.Status.String()).Inc()
		c.latency.WithLabelValues(master).Observe(float64(ev.Latency))
	case core.EventStarvation:
		c.starvations.WithLabelValues(slave, master).Inc()
	case core.EventReset:
		c.resets.Inc()
	}
	return nil
}

// Register makes the collector available as the global hook plugin
// PluginName.
func (c *Collector) Register(reg *hooks.Registry) error {
	desc := hooks.PluginDescriptor{
		Name:        PluginName,
		Category:    hooks.PluginCategoryInstrumentation,
		Description: "Prometheus counters and latency histogram",
	}
	return reg.RegisterGlobal(PluginName, desc, func(b *hooks.PluginBroker) error {
		b.RegisterAll(c.Observe)
		return nil
	})
}
