package mon

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rdtkit/pqosgo/capability"
)

// Collector exports every live group's last-polled values as
// Prometheus gauges/counters, keyed by a caller-supplied group label
// (e.g. the group's name or owning pid). It implements
// prometheus.Collector directly rather than wrapping a registry of
// per-metric vectors, since the group set is dynamic and polled
// out-of-band from Prometheus scrape timing.
type Collector struct {
	manager *Manager
	label   func(*Group) string

	occupancy *prometheus.Desc
	bandwidth *prometheus.Desc
}

// NewCollector builds a Collector over manager's live groups. label
// assigns a stable string identity to each group for the "group" label
// dimension.
func NewCollector(manager *Manager, label func(*Group) string) *Collector {
	return &Collector{
		manager: manager,
		label:   label,
		occupancy: prometheus.NewDesc(
			"pqos_llc_occupancy_bytes",
			"Current LLC occupancy for a monitoring group.",
			[]string{"group"}, nil,
		),
		bandwidth: prometheus.NewDesc(
			"pqos_memory_bandwidth_bytes_total",
			"Cumulative memory bandwidth observed for a monitoring group, by event.",
			[]string{"group", "event"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.occupancy
	ch <- c.bandwidth
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, g := range c.manager.Groups() {
		if !g.IsValid() {
			continue
		}
		name := c.label(g)
		for _, v := range g.Values() {
			switch v.Kind {
			case capability.EventLLCOccupancy:
				ch <- prometheus.MustNewConstMetric(c.occupancy, prometheus.GaugeValue, float64(v.Current), name)
			case capability.EventLocalMemBW, capability.EventTotalMemBW, capability.EventRemoteMemBW:
				ch <- prometheus.MustNewConstMetric(c.bandwidth, prometheus.CounterValue, float64(v.Current), name, v.Kind.String())
			}
		}
	}
}
