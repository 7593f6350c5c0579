package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "brandsentry"

var (
	// ScansTotal counts finished scans by outcome (completed, failed, cancelled)
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total number of finished scans by outcome",
		},
		[]string{"scan_type", "outcome"},
	)

	// ThreatsCreated counts persisted threats
	ThreatsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threats_created_total",
			Help:      "Total number of threats persisted",
		},
		[]string{"type", "severity"},
	)

	// DNSChecks counts registration checks by result (registered, unregistered, cancelled)
	DNSChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_checks_total",
			Help:      "Total number of domain registration checks",
		},
		[]string{"result"},
	)

	// PartialErrors counts errors recorded without aborting a scan
	PartialErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_partial_errors_total",
			Help:      "Total number of partial errors recorded on scans",
		},
		[]string{"phase"},
	)

	// LimiterQueued tracks tasks waiting for a limiter slot
	LimiterQueued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limiter_queued",
			Help:      "Tasks waiting for a rate limiter slot",
		},
		[]string{"limiter"},
	)

	// LimiterInFlight tracks tasks currently executing under a limiter
	LimiterInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "limiter_in_flight",
			Help:      "Tasks executing under a rate limiter",
		},
		[]string{"limiter"},
	)

	// JobsTotal counts job outcomes seen by workers
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of job outcomes",
		},
		[]string{"outcome"},
	)

	// HTTPRequests counts API requests
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)

	// HTTPDuration observes API latency
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	once sync.Once
)

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		for _, c := range []prometheus.Collector{
			ScansTotal, ThreatsCreated, DNSChecks, PartialErrors,
			LimiterQueued, LimiterInFlight, JobsTotal, HTTPRequests, HTTPDuration,
		} {
			_ = prometheus.DefaultRegisterer.Register(c)
		}
	})
}
