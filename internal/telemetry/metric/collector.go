package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StorageSample is one instance's storage statistics at collection time.
type StorageSample struct {
	InstanceID string
	Backend    string
	Keys       uint64
	SizeBytes  uint64
}

// Collector reports per-instance storage statistics on every scrape.
type Collector struct {
	source func() []StorageSample

	keys *prometheus.Desc
	size *prometheus.Desc
}

// NewCollector creates a collector reading samples from source.
func NewCollector(source func() []StorageSample) *Collector {
	return &Collector{
		source: source,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "keys"),
			"Keys stored per engine instance.",
			[]string{"instance_id", "backend"}, nil,
		),
		size: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "storage", "size_bytes"),
			"On-disk size per engine instance.",
			[]string{"instance_id", "backend"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.size
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.source == nil {
		return
	}
	for _, s := range c.source() {
		ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(s.Keys), s.InstanceID, s.Backend)
		ch <- prometheus.MustNewConstMetric(c.size, prometheus.GaugeValue, float64(s.SizeBytes), s.InstanceID, s.Backend)
	}
}
