package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace/internal/queue"
)

const namespace = "marketplace"

// Metrics holds the marketplace collectors and their registry.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight  prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	gateway       *prometheus.CounterVec
	gatewayTiming *prometheus.HistogramVec
}

// New registers the marketplace collectors plus the Go and process
// collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight API requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route template, and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "executions_total",
			Help:      "Task executions by kind and result (done, retry, failed).",
		}, []string{"kind", "result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "execution_duration_seconds",
			Help:      "Task execution latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"kind"}),
		gateway: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paypal",
			Name:      "requests_total",
			Help:      "PayPal gateway calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "paypal",
			Name:      "request_duration_seconds",
			Help:      "PayPal gateway latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 8),
		}, []string{"operation"}),
	}
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.tasks,
		m.taskDuration,
		m.gateway,
		m.gatewayTiming,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request metrics. route names the matched route
// template; an empty result is reported as "unmatched" to bound label cardinality.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			next.ServeHTTP(rec, r)

			name := route(r)
			if name == "" {
				name = "unmatched"
			}
			method := strings.ToUpper(r.Method)
			m.httpRequests.WithLabelValues(method, name, strconv.Itoa(rec.status)).Inc()
			m.httpDuration.WithLabelValues(method, name).Observe(time.Since(start).Seconds())
		})
	}
}

// ObserveTask implements worker.TaskObserver.
func (m *Metrics) ObserveTask(kind queue.Kind, result string, elapsed time.Duration) {
	m.tasks.WithLabelValues(string(kind), result).Inc()
	m.taskDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveGateway records one PayPal call. It matches paypal.ObserveFunc.
func (m *Metrics) ObserveGateway(operation string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gateway.WithLabelValues(operation, outcome).Inc()
	m.gatewayTiming.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// QueueStats reports task counts by status.
type QueueStats interface {
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// RegisterQueue exports the task queue depth as a gauge per status,
// read at scrape time.
func (m *Metrics) RegisterQueue(q QueueStats) error {
	return m.Registry.Register(&queueCollector{
		stats: q,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "tasks", "queued"),
			"Tasks in the queue by status.",
			[]string{"status"}, nil,
		),
	})
}

type queueCollector struct {
	stats QueueStats
	desc  *prometheus.Desc
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	counts, err := c.stats.Stats(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.desc, err)
		return
	}
	for _, status := range queue.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(counts[status]), string(status))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
