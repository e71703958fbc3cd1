package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/pluginhost/internal/cron"
	"github.com/flemzord/pluginhost/internal/execution"
	"github.com/flemzord/pluginhost/internal/job"
)

const namespace = "pluginhost"

// Compile-time interface checks.
var (
	_ execution.Observer = (*Metrics)(nil)
	_ cron.Observer      = (*Metrics)(nil)
)

// Metrics is the Prometheus view of the host. It is registered as the
// "gateway.metrics" service so the engine and the cron loop report into it.
type Metrics struct {
	registry *prometheus.Registry

	executions *prometheus.CounterVec
	finished   *prometheus.CounterVec
	cronFired  *prometheus.CounterVec
	cronReaped *prometheus.CounterVec
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_started_total",
			Help:      "Actions whose process was started.",
		}, []string{"action"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_finished_total",
			Help:      "Actions that finished while a request was waiting on them.",
		}, []string{"action", "outcome"}),
		cronFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_fired_total",
			Help:      "Cron candidates fired, by registration acknowledgement.",
		}, []string{"job", "ack"}),
		cronReaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cron_reaped_total",
			Help:      "Cron processes reaped after exiting or being terminated.",
		}, []string{"job"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .05, .25, 1, 5, 30, 120},
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.executions, m.finished, m.cronFired, m.cronReaped, m.requests, m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ExecutionStarted implements execution.Observer.
func (m *Metrics) ExecutionStarted(action string) {
	m.executions.WithLabelValues(action).Inc()
}

// ExecutionFinished implements execution.Observer.
func (m *Metrics) ExecutionFinished(action, outcome string) {
	m.finished.WithLabelValues(action, outcome).Inc()
}

// CronFired implements cron.Observer.
func (m *Metrics) CronFired(job, ack string) {
	m.cronFired.WithLabelValues(job, ack).Inc()
}

// CronReaped implements cron.Observer.
func (m *Metrics) CronReaped(job string) {
	m.cronReaped.WithLabelValues(job).Inc()
}

// watchRegistry exports the job table sizes as gauges.
func (m *Metrics) watchRegistry(reg *job.Registry) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Interactive jobs currently running.",
		}, func() float64 {
			running, _ := reg.Counts()
			return float64(running)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_pending_removal",
			Help:      "Exited jobs kept until their grace period ends.",
		}, func() float64 {
			_, pending := reg.Counts()
			return float64(pending)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cron_jobs_running",
			Help:      "Cron jobs registered and not yet withdrawn.",
		}, func() float64 {
			return float64(reg.Cron().Len())
		}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// instrument counts requests by chi route pattern.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
