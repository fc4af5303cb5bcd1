// Package metrics exposes Prometheus collectors for the crawler service.
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

var (
	crawlRunsTotal             *prometheus.CounterVec
	crawlRunSkipsTotal         *prometheus.CounterVec
	crawlRunDurationSeconds    *prometheus.HistogramVec
	crawlListingsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	authCodesIssuedTotal       prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_runs_total",
				Help: "Total number of crawl runs, labeled by trigger and outcome.",
			},
			[]string{"trigger", "outcome"},
		)

		crawlRunSkipsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_run_skips_total",
				Help: "Total number of triggers skipped because a run was active.",
			},
			[]string{"trigger"},
		)

		crawlRunDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_run_duration_seconds",
				Help:    "Histogram of crawl run durations, labeled by outcome.",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"outcome"},
		)

		crawlListingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_listings_total",
				Help: "Total number of listings stored, labeled by site and action.",
			},
			[]string{"site", "action"},
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

		authCodesIssuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "auth_codes_issued_total",
				Help: "Total number of login codes issued.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records one finished crawl run.
func ObserveRun(trigger, outcome string, duration time.Duration) {
	crawlRunsTotal.WithLabelValues(trigger, outcome).Inc()
	crawlRunDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveRunSkip counts a trigger refused because a run was already active.
func ObserveRunSkip(trigger string) {
	crawlRunSkipsTotal.WithLabelValues(trigger).Inc()
}

// ObserveListing counts one stored listing. Action is "inserted" or "updated".
func ObserveListing(site, action string) {
	crawlListingsTotal.WithLabelValues(site, action).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAuthCodeIssued counts one issued login code.
func ObserveAuthCodeIssued() {
	authCodesIssuedTotal.Inc()
}
