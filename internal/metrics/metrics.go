// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "munreg",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "munreg",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "munreg",
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Tracked calls to the data, auth, storage and mail services.",
		},
		[]string{"service", "operation", "status"},
	)

	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "munreg",
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Duration of tracked remote calls.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"service", "operation"},
	)

	sagaSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "munreg",
			Subsystem: "assignment",
			Name:      "steps_total",
			Help:      "Seat assignment steps by outcome.",
		},
		[]string{"step", "status"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		remoteCalls,
		remoteDuration,
		sagaSteps,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveRemote records one tracked remote call.
func ObserveRemote(service, operation, status string, d time.Duration) {
	remoteCalls.WithLabelValues(service, operation, status).Inc()
	remoteDuration.WithLabelValues(service, operation).Observe(d.Seconds())
}

// ObserveStep records the outcome of one assignment step.
func ObserveStep(step, status string) {
	sagaSteps.WithLabelValues(step, status).Inc()
}
