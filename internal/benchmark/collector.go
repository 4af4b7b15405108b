package benchmark

import (
	"github.com/prometheus/client_golang/prometheus"

	"completion-bench/internal/types"
)

const metricsNamespace = "completion_bench"

// Collector exposes the live snapshot to Prometheus. Values are computed at
// scrape time so the aggregator remains the only store.
type Collector struct {
	metrics *Metrics
	descs   map[types.MetricID]*prometheus.Desc
}

// NewCollector creates a collector over metrics
func NewCollector(metrics *Metrics) *Collector {
	descs := make(map[types.MetricID]*prometheus.Desc, len(types.AllMetrics))
	for _, id := range types.AllMetrics {
		descs[id] = prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", string(id)),
			"Load test metric "+string(id)+".",
			nil, nil,
		)
	}
	return &Collector{metrics: metrics, descs: descs}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, id := range types.AllMetrics {
		ch <- c.descs[id]
	}
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	for _, id := range types.AllMetrics {
		value, err := snap.Value(id)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(c.descs[id], err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.descs[id], valueType(id), value)
	}
}

func valueType(id types.MetricID) prometheus.ValueType {
	switch id {
	case types.MetricTotalCalls, types.MetricSuccessfulCalls, types.MetricUnsuccessfulCalls,
		types.MetricRateLimitedCalls, types.MetricTotalInputTokens, types.MetricTotalOutputTokens:
		return prometheus.CounterValue
	default:
		return prometheus.GaugeValue
	}
}

var _ prometheus.Collector = (*Collector)(nil)
