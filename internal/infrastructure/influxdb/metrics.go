package influxdb

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for deliveries. Every series is
// labelled with the destination ID.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	writes   *prometheus.CounterVec
	queued   *prometheus.CounterVec
	evicted  *prometheus.CounterVec
	drained  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
	depth    *prometheus.GaugeVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the delivery collectors and registers them with reg.
// It panics if registration fails, as prometheus.MustRegister does.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_influxdb_writes_total",
			Help: "HTTP writes attempted, by destination and result.",
		}, []string{"destination", "result"}),
		queued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_influxdb_backlog_queued_total",
			Help: "Failed payloads added to the backlog.",
		}, []string{"destination"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_influxdb_backlog_evicted_total",
			Help: "Queued payloads dropped to make room for newer ones.",
		}, []string{"destination"}),
		drained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_influxdb_backlog_drained_total",
			Help: "Queued payloads delivered on retry.",
		}, []string{"destination"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_influxdb_dropped_total",
			Help: "Failed payloads discarded because the backlog is disabled.",
		}, []string{"destination"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linepush_influxdb_batch_skipped_total",
			Help: "Measurements excluded from a batch for targeting another destination or bucket.",
		}, []string{"destination"}),
		depth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "linepush_influxdb_backlog_depth",
			Help: "Payloads currently queued for retry.",
		}, []string{"destination"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linepush_influxdb_write_duration_seconds",
			Help:    "Duration of HTTP writes, including failed ones.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"destination"}),
	}

	reg.MustRegister(m.writes, m.queued, m.evicted, m.drained, m.dropped, m.skipped, m.depth, m.duration)
	return m
}

func (m *Metrics) observeWrite(dest string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.writes.WithLabelValues(dest, result).Inc()
	m.duration.WithLabelValues(dest).Observe(seconds)
}

func (m *Metrics) incQueued(dest string) {
	if m != nil {
		m.queued.WithLabelValues(dest).Inc()
	}
}

func (m *Metrics) incEvicted(dest string) {
	if m != nil {
		m.evicted.WithLabelValues(dest).Inc()
	}
}

func (m *Metrics) addDrained(dest string, n int) {
	if m != nil && n > 0 {
		m.drained.WithLabelValues(dest).Add(float64(n))
	}
}

func (m *Metrics) incDropped(dest string) {
	if m != nil {
		m.dropped.WithLabelValues(dest).Inc()
	}
}

func (m *Metrics) incSkipped(dest string) {
	if m != nil {
		m.skipped.WithLabelValues(dest).Inc()
	}
}

func (m *Metrics) setDepth(dest string, n int) {
	if m != nil {
		m.depth.WithLabelValues(dest).Set(float64(n))
	}
}
