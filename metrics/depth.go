package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DepthFunc returns job counts keyed by queue then state
type DepthFunc func() (map[string]map[string]int, error)

var depthDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "queue_jobs"),
	"Jobs currently in the store by queue and state",
	[]string{"queue", "state"}, nil,
)

type depthCollector struct {
	fn DepthFunc
}

func (d depthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- depthDesc
}

func (d depthCollector) Collect(ch chan<- prometheus.Metric) {
	counts, err := d.fn()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(depthDesc, err)
		return
	}
	for queue, states := range counts {
		for state, n := range states {
			ch <- prometheus.MustNewConstMetric(depthDesc, prometheus.GaugeValue, float64(n), queue, state)
		}
	}
}

// RegisterDepth reports queue depth from fn on every scrape
func (c *Collector) RegisterDepth(fn DepthFunc) error {
	return c.registry.Register(depthCollector{fn: fn})
}
