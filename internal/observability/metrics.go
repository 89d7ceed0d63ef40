package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/worldbank-dashboard/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation during shutdown drain.
	HTTPRequestsInFlight prometheus.Gauge

	// World Bank API call rate. Watch for: error vs success ratio during startup fetch.
	WorldBankAPICallsTotal *prometheus.CounterVec

	// World Bank API latency per request. Watch for: p95 > 5s (upstream degradation).
	WorldBankAPIDuration *prometheus.HistogramVec

	// Retry attempts against the World Bank API. High retries = unstable upstream.
	WorldBankAPIRetriesTotal prometheus.Counter

	// Snapshot load outcomes: hit, miss, stale_refreshed, stale_served.
	SnapshotLoadsTotal *prometheus.CounterVec

	// Observations in the dataset currently being served.
	DatasetObservations prometheus.Gauge

	// Snapshot write latency. Watch for: slow disks on large indicator sets.
	SnapshotSaveDuration prometheus.Histogram

	// Chart render outcomes per chart kind (success, empty, error).
	ChartRendersTotal *prometheus.CounterVec

	// Chart render latency per chart kind.
	ChartRenderDuration *prometheus.HistogramVec

	// Rendered-chart cache hits. Misses = chartRendersTotal.
	ChartCacheHitsTotal prometheus.Counter

	// Rendered-chart cache failures by operation (get, set).
	ChartCacheErrorsTotal *prometheus.CounterVec

	// Chart warming runs, duration and failures.
	ChartWarmingTotal           prometheus.Counter
	ChartWarmingDuration        prometheus.Histogram
	ChartWarmingErrorsTotal     prometheus.Counter

	// Chart requests by indicator code. Cardinality is bounded by the
	// configured indicator set; unconfigured codes are rejected upstream.
	ChartRequestsByIndicatorTotal *prometheus.CounterVec

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WorldBankAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worldBankApiCallsTotal",
			Help: "Total number of World Bank API calls",
		},
		[]string{"status"},
	)
	WorldBankAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worldBankApiDurationSeconds",
			Help:    "World Bank API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)
	WorldBankAPIRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worldBankApiRetriesTotal",
			Help: "Total number of retry attempts for World Bank API calls",
		},
	)
	SnapshotLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotLoadsTotal",
			Help: "Snapshot load outcomes (hit, miss, stale_refreshed, stale_served)",
		},
		[]string{"result"},
	)
	DatasetObservations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasetObservations",
			Help: "Observations in the dataset currently being served",
		},
	)
	SnapshotSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshotSaveDurationSeconds",
			Help:    "Snapshot write latency in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	ChartRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartRendersTotal",
			Help: "Chart render outcomes per chart kind",
		},
		[]string{"chart", "result"},
	)
	ChartRenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chartRenderDurationSeconds",
			Help:    "Chart render latency in seconds (per chart kind)",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"chart"},
	)
	ChartCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartCacheHitsTotal",
			Help: "Rendered-chart cache hits. Misses = chartRendersTotal.",
		},
	)
	ChartCacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartCacheErrorsTotal",
			Help: "Rendered-chart cache failures by operation",
		},
		[]string{"operation"},
	)
	ChartWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartWarmingTotal",
			Help: "Chart warming runs",
		},
	)
	ChartWarmingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chartWarmingDurationSeconds",
			Help:    "Chart warming duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5},
		},
	)
	ChartWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartWarmingErrorsTotal",
			Help: "Chart warming runs that had at least one failure",
		},
	)
	ChartRequestsByIndicatorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartRequestsByIndicatorTotal",
			Help: "Chart requests by indicator code (bounded by configured set)",
		},
		[]string{"indicator"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WorldBankAPICallsTotal, WorldBankAPIDuration, WorldBankAPIRetriesTotal,
		SnapshotLoadsTotal, DatasetObservations, SnapshotSaveDuration,
		ChartRendersTotal, ChartRenderDuration,
		ChartCacheHitsTotal, ChartCacheErrorsTotal,
		ChartWarmingTotal, ChartWarmingDuration, ChartWarmingErrorsTotal,
		ChartRequestsByIndicatorTotal,
		RateLimitDeniedTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited
// paths. Call from main after config load; uses the same window as /health.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited paths in sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
