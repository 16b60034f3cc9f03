// Package metrics exports request and reasoning-run metrics in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopping-assistant/internal/domain"
)

const namespace = "shopping_assistant"

type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// Exporter records HTTP requests and reasoning runs.
type Exporter struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runLatency     prometheus.Histogram
}

func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	e := &Exporter{registry: registry}
	e.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"route", "method", "code"},
	)
	e.requestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"route"},
	)
	e.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reasoning",
			Name:      "runs_total",
			Help:      "Reasoning service runs by final status",
		},
		[]string{"status"},
	)
	e.runLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reasoning",
			Name:      "run_duration_seconds",
			Help:      "Time from run start to final status in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
	)
	registry.MustRegister(e.requests, e.requestLatency, e.runs, e.runLatency)
	return e
}

func (e *Exporter) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	e.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	e.requestLatency.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (e *Exporter) ObserveRun(status domain.RunStatus, elapsed time.Duration) {
	e.runs.WithLabelValues(string(status)).Inc()
	e.runLatency.Observe(elapsed.Seconds())
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
