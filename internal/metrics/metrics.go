// Package metrics exports live QoS and association usage as
// Prometheus gauges, read-only against the engine's data: it never
// drives an admission decision, only observes the same counters the
// engine already maintains.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opentorque/acctpolicy/internal/assoc"
	"github.com/opentorque/acctpolicy/internal/qos"
)

// Collector implements prometheus.Collector over a snapshot function
// the caller supplies, so it never needs to import the engine's job
// registry directly.
type Collector struct {
	qosGrpCPUs    *prometheus.Desc
	qosGrpNodes   *prometheus.Desc
	qosGrpJobs    *prometheus.Desc
	assocGrpCPUs  *prometheus.Desc
	assocGrpNodes *prometheus.Desc
	assocGrpJobs  *prometheus.Desc

	qosSnapshot   func() []*qos.QoS
	assocSnapshot func() []*assoc.Association
}

// NewCollector builds a Collector that reads current QoS and
// association state through the supplied snapshot functions at each
// scrape.
func NewCollector(qosSnapshot func() []*qos.QoS, assocSnapshot func() []*assoc.Association) *Collector {
	return &Collector{
		qosGrpCPUs: prometheus.NewDesc(
			"acctpolicy_qos_grp_used_cpus", "Cpus currently charged against a QoS's group ceiling.",
			[]string{"qos"}, nil),
		qosGrpNodes: prometheus.NewDesc(
			"acctpolicy_qos_grp_used_nodes", "Nodes currently charged against a QoS's group ceiling.",
			[]string{"qos"}, nil),
		qosGrpJobs: prometheus.NewDesc(
			"acctpolicy_qos_grp_used_jobs", "Running jobs currently charged against a QoS's group ceiling.",
			[]string{"qos"}, nil),
		assocGrpCPUs: prometheus.NewDesc(
			"acctpolicy_assoc_grp_used_cpus", "Cpus currently charged against an association's group ceiling.",
			[]string{"account"}, nil),
		assocGrpNodes: prometheus.NewDesc(
			"acctpolicy_assoc_grp_used_nodes", "Nodes currently charged against an association's group ceiling.",
			[]string{"account"}, nil),
		assocGrpJobs: prometheus.NewDesc(
			"acctpolicy_assoc_grp_used_jobs", "Running jobs currently charged against an association's group ceiling.",
			[]string{"account"}, nil),
		qosSnapshot:   qosSnapshot,
		assocSnapshot: assocSnapshot,
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.qosGrpCPUs
	ch <- c.qosGrpNodes
	ch <- c.qosGrpJobs
	ch <- c.assocGrpCPUs
	ch <- c.assocGrpNodes
	ch <- c.assocGrpJobs
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, q := range c.qosSnapshot() {
		q.RLock()
		ch <- prometheus.MustNewConstMetric(c.qosGrpCPUs, prometheus.GaugeValue, float64(q.Usage.GrpUsedCPUs), q.Name)
		ch <- prometheus.MustNewConstMetric(c.qosGrpNodes, prometheus.GaugeValue, float64(q.Usage.GrpUsedNodes), q.Name)
		ch <- prometheus.MustNewConstMetric(c.qosGrpJobs, prometheus.GaugeValue, float64(q.Usage.GrpUsedJobs), q.Name)
		q.RUnlock()
	}
	for _, a := range c.assocSnapshot() {
		a.RLock()
		ch <- prometheus.MustNewConstMetric(c.assocGrpCPUs, prometheus.GaugeValue, float64(a.Usage.GrpUsedTRES[0]), a.Account)
		ch <- prometheus.MustNewConstMetric(c.assocGrpNodes, prometheus.GaugeValue, float64(a.Usage.GrpUsedTRES[2]), a.Account)
		ch <- prometheus.MustNewConstMetric(c.assocGrpJobs, prometheus.GaugeValue, float64(a.Usage.GrpUsedJobs), a.Account)
		a.RUnlock()
	}
}
