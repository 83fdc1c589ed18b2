package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kpop_radar"

// Metrics holds the collectors the pipeline reports to. A nil *Metrics is a
// valid no-op receiver.
type Metrics struct {
	ItemsFetched       *prometheus.CounterVec
	UpstreamFailures   *prometheus.CounterVec
	DuplicatesDropped  prometheus.Counter
	RefreshCycles      *prometheus.CounterVec
	CollectionDuration prometheus.Histogram
	CachedKeywords     prometheus.Gauge
}

// New registers the collectors with reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ItemsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Items returned by upstream sources after the recency filter.",
		}, []string{"source"}),
		UpstreamFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Upstream search calls that degraded to an empty result.",
		}, []string{"source", "reason"}),
		DuplicatesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Items removed by the per-run deduplicator.",
		}),
		RefreshCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Completed cache refresh cycles by trigger.",
		}, []string{"trigger"}),
		CollectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collection_duration_seconds",
			Help:      "Wall time of a single keyword collection.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		CachedKeywords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_keywords",
			Help:      "Keywords currently held in the content cache.",
		}),
	}
}

func (m *Metrics) AddFetched(source string, n int) {
	if m == nil {
		return
	}
	m.ItemsFetched.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) UpstreamFailed(source, reason string) {
	if m == nil {
		return
	}
	m.UpstreamFailures.WithLabelValues(source, reason).Inc()
}

func (m *Metrics) AddDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DuplicatesDropped.Add(float64(n))
}

func (m *Metrics) RefreshDone(trigger string, cached int) {
	if m == nil {
		return
	}
	m.RefreshCycles.WithLabelValues(trigger).Inc()
	m.CachedKeywords.Set(float64(cached))
}

func (m *Metrics) ObserveCollection(d time.Duration) {
	if m == nil {
		return
	}
	m.CollectionDuration.Observe(d.Seconds())
}
