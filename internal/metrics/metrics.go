// Package metrics owns the Prometheus collectors shared by the API and worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "savings_circle"

var (
	// Registry holds the application collectors; the default registry is left alone.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	chainReads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "circle_reads_total",
			Help:      "Circle contract read batches by outcome.",
		},
		[]string{"outcome"},
	)

	refreshRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "refresh_runs_total",
			Help:      "Circle refresh passes by outcome.",
		},
		[]string{"outcome"},
	)

	refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of circle refresh passes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	refreshedCircles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "refreshed_circles",
			Help:      "Circles refreshed by the last pass.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		chainReads,
		refreshRuns,
		refreshDuration,
		refreshedCircles,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted bumps the in-flight gauge; call the returned func when done
func RequestStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordHTTPRequest records one finished request. route is the route pattern,
// never the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordChainRead counts a circle read batch: "ok", "error" or "incomplete"
func RecordChainRead(outcome string) {
	chainReads.WithLabelValues(outcome).Inc()
}

// RecordRefresh records one worker pass: "ok", "error" or "skipped"
func RecordRefresh(outcome string, circles int, duration time.Duration) {
	refreshRuns.WithLabelValues(outcome).Inc()
	if outcome == "skipped" {
		return
	}
	refreshDuration.Observe(duration.Seconds())
	refreshedCircles.Set(float64(circles))
}
