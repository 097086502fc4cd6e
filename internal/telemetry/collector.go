package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryandielhenn/sessionstore/pkg/store"
)

// StatsFunc reports the current size of a store.
type StatsFunc func() store.Stats

type storeCollector struct {
	stats      StatsFunc
	namespaces *prometheus.Desc
	entries    *prometheus.Desc
}

// NewStoreCollector returns a collector that reads namespace and entry counts
// from stats at scrape time. Register one per store.
func NewStoreCollector(stats StatsFunc, constLabels prometheus.Labels) prometheus.Collector {
	return &storeCollector{
		stats: stats,
		namespaces: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "namespaces"),
			"Namespaces currently held by the store.",
			nil, constLabels,
		),
		entries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "entries"),
			"Entries currently held by the store.",
			nil, constLabels,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.namespaces
	ch <- c.entries
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	ch <- prometheus.MustNewConstMetric(c.namespaces, prometheus.GaugeValue, float64(st.Namespaces))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(st.Entries))
}
