// Package metrics exposes the crawl engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace prefixes every metric name.
const namespace = "docspasta"

// Metrics holds the engine's Prometheus collectors. One instance is shared by
// every component of a process.
type Metrics struct {
	// PagesCrawled counts pages that completed their pipeline successfully.
	PagesCrawled prometheus.Counter
	// PagesFailed counts pages whose pipeline failed, by error kind.
	PagesFailed *prometheus.CounterVec
	// URLsDiscovered counts URLs accepted onto a frontier.
	URLsDiscovered prometheus.Counter
	// EventsAppended counts event log appends, by event type.
	EventsAppended *prometheus.CounterVec

	// ActiveWorkers tracks live worker invocations across all jobs.
	ActiveWorkers prometheus.Gauge
	// ActiveJobs tracks jobs that have not reached a terminal status.
	ActiveJobs prometheus.Gauge

	// PageDuration observes per-page pipeline latency.
	PageDuration prometheus.Histogram
	// JobDuration observes creation-to-terminal job latency.
	JobDuration prometheus.Histogram
	// QualityScore observes the quality score of crawled pages.
	QualityScore prometheus.Histogram
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PagesCrawled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_crawled_total",
			Help:      "Pages that completed their pipeline successfully.",
		}),
		PagesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_failed_total",
			Help:      "Pages whose pipeline failed, by error kind.",
		}, []string{"kind"}),
		URLsDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_discovered_total",
			Help:      "URLs accepted onto a frontier.",
		}),
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_appended_total",
			Help:      "Event log appends, by event type.",
		}, []string{"type"}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Live worker invocations across all jobs.",
		}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Jobs that have not reached a terminal status.",
		}),
		PageDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "Per-page pipeline latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Creation-to-terminal job latency.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		QualityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_score",
			Help:      "Quality score of crawled pages.",
			Buckets:   []float64{0, 10, 20, 40, 60, 80, 100},
		}),
	}
}

// NewUnregistered returns collectors bound to a throwaway registry, for tests
// and call sites that do not scrape.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
