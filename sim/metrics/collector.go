// Package metrics exposes simulation progress as Prometheus metrics.
//
// The Collector is an event sink: plug it into the controller (usually via
// eventlog.Multi) and it derives every metric from the event stream.
//
//   - traysim_events_total{kind,station}: events emitted
//   - traysim_trays_completed_total{station}: trays that reached a sink
//   - traysim_tray_sojourn_seconds: simulated time from injection to completion
//   - traysim_service_duration_seconds: sampled service durations
//   - traysim_trays_active / _in_service / _in_transit: current occupancy
//   - traysim_sim_clock_seconds: time of the latest event
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/traysim/traysim/sim"
)

// SojournBuckets covers sub-second transfers up to multi-hour runs.
var SojournBuckets = prometheus.ExponentialBuckets(0.5, 2, 14)

// Collector derives Prometheus metrics from simulation events.
type Collector struct {
	events    *prometheus.CounterVec
	completed *prometheus.CounterVec
	sojourn   prometheus.Histogram
	service   prometheus.Histogram
	active    prometheus.Gauge
	inService prometheus.Gauge
	inTransit prometheus.Gauge
	clock     prometheus.Gauge

	mu       sync.Mutex
	injected map[sim.TrayID]sim.Time
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traysim_events_total",
			Help: "Simulation events emitted, by kind and station",
		}, []string{"kind", "station"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traysim_trays_completed_total",
			Help: "Trays that reached a sink, by sink station",
		}, []string{"station"}),
		sojourn: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "traysim_tray_sojourn_seconds",
			Help:    "Simulated time from injection to completion",
			Buckets: SojournBuckets,
		}),
		service: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "traysim_service_duration_seconds",
			Help:    "Sampled service durations",
			Buckets: prometheus.DefBuckets,
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traysim_trays_active",
			Help: "Trays injected and not yet completed",
		}),
		inService: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traysim_trays_in_service",
			Help: "Trays currently being serviced",
		}),
		inTransit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traysim_trays_in_transit",
			Help: "Trays currently on a link",
		}),
		clock: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traysim_sim_clock_seconds",
			Help: "Simulated time of the latest event",
		}),
		injected: make(map[sim.TrayID]sim.Time),
	}
	reg.MustRegister(c.events, c.completed, c.sojourn, c.service,
		c.active, c.inService, c.inTransit, c.clock)
	return c
}

// Record implements sim.EventSink.
func (c *Collector) Record(e sim.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	station := strconv.FormatUint(uint64(e.Station), 10)
	c.events.WithLabelValues(string(e.Kind), station).Inc()
	c.clock.Set(float64(e.Time))

	switch e.Kind {
	case sim.EventInjected:
		c.injected[e.Tray] = e.Time
		c.active.Inc()
	case sim.EventServiceStart:
		c.inService.Inc()
		c.service.Observe(float64(e.Duration))
	case sim.EventServiceEnd:
		c.inService.Dec()
	case sim.EventTransferStart:
		c.inTransit.Inc()
	case sim.EventTransferEnd:
		c.inTransit.Dec()
	case sim.EventCompleted:
		c.completed.WithLabelValues(station).Inc()
		// Trays injected at an unknown station complete without an injected event.
		if at, ok := c.injected[e.Tray]; ok {
			c.sojourn.Observe(float64(e.Time - at))
			c.active.Dec()
			delete(c.injected, e.Tray)
		} else {
			c.sojourn.Observe(0)
		}
	}
	return nil
}
