package stats

import (
	"github.com/go-gnutella/go-gnutella/lib/drop"
	"github.com/go-gnutella/go-gnutella/lib/gnet"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes a Recorder to Prometheus. Counters are read at scrape
// time, so the hot path never touches the Prometheus client.
type Collector struct {
	rec      *Recorder
	dropped  *prometheus.Desc
	accepted *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for rec under namespace.
func NewCollector(namespace string, rec *Recorder) *Collector {
	return &Collector{
		rec: rec,
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "admission", "dropped_total"),
			"Inbound messages dropped, by reason.",
			[]string{"reason"}, nil,
		),
		accepted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "admission", "accepted_total"),
			"Inbound messages accepted, by kind.",
			[]string{"kind"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dropped
	ch <- c.accepted
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.rec.Snapshot()
	for _, reason := range drop.All() {
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(snap.Drops[reason]), reason.Name())
	}
	for _, k := range gnet.Kinds() {
		ch <- prometheus.MustNewConstMetric(c.accepted, prometheus.CounterValue, float64(snap.Accepted[k]), k.String())
	}
}
