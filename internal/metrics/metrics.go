// Package metrics exposes Prometheus collectors for the campground crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcomes.
const (
	FetchSuccess   = "success"
	FetchError     = "error"
	FetchExhausted = "exhausted"
	FetchThrottled = "throttled"
)

var (
	crawlerFetchesTotal           *prometheus.CounterVec
	crawlerFetchRetriesTotal      prometheus.Counter
	crawlerRecordsTotal           prometheus.Counter
	crawlerCellsCompletedTotal    prometheus.Counter
	crawlerCheckpointErrorsTotal  *prometheus.CounterVec
	crawlerUpsertsTotal           *prometheus.CounterVec
	crawlerRunsTotal              *prometheus.CounterVec
	crawlerRunDurationSeconds     prometheus.Histogram
	crawlerRateLimitDelaysSeconds prometheus.Histogram
	crawlerActiveCells            prometheus.Gauge
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total page fetch attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerFetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_fetch_retries_total",
				Help: "Total page fetch retries after a failed attempt.",
			},
		)

		crawlerRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Total raw records returned by the upstream search.",
			},
		)

		crawlerCellsCompletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_cells_completed_total",
				Help: "Total grid cells paged through to the end.",
			},
		)

		crawlerCheckpointErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_checkpoint_errors_total",
				Help: "Total checkpoint load or save failures, labeled by operation.",
			},
			[]string{"op"},
		)

		crawlerUpsertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_upserts_total",
				Help: "Total campground upserts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_run_duration_seconds",
				Help:    "Histogram of crawl run durations.",
				Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400},
			},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		crawlerActiveCells = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_cells",
				Help: "Number of grid cells currently being paged through.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch attempt.
func ObserveFetch(outcome string) {
	Init()
	crawlerFetchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetchRetry counts one retry.
func ObserveFetchRetry() {
	Init()
	crawlerFetchRetriesTotal.Inc()
}

// ObserveRecords adds n raw records.
func ObserveRecords(n int) {
	Init()
	if n > 0 {
		crawlerRecordsTotal.Add(float64(n))
	}
}

// ObserveCellCompleted counts one finished cell.
func ObserveCellCompleted() {
	Init()
	crawlerCellsCompletedTotal.Inc()
}

// ObserveCheckpointError counts a failed checkpoint "load" or "save".
func ObserveCheckpointError(op string) {
	Init()
	crawlerCheckpointErrorsTotal.WithLabelValues(op).Inc()
}

// ObserveUpserts adds the outcome counts of one batch.
func ObserveUpserts(inserted, updated, failed int) {
	Init()
	crawlerUpsertsTotal.WithLabelValues("inserted").Add(float64(inserted))
	crawlerUpsertsTotal.WithLabelValues("updated").Add(float64(updated))
	crawlerUpsertsTotal.WithLabelValues("failed").Add(float64(failed))
}

// ObserveRun records one finished run.
func ObserveRun(status string, duration time.Duration) {
	Init()
	crawlerRunsTotal.WithLabelValues(status).Inc()
	crawlerRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.Observe(duration.Seconds())
}

// IncActiveCells increments the active cells gauge.
func IncActiveCells() {
	Init()
	crawlerActiveCells.Inc()
}

// DecActiveCells decrements the active cells gauge.
func DecActiveCells() {
	Init()
	crawlerActiveCells.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
