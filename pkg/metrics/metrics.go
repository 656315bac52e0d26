package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	callTransitionsTotal *prometheus.CounterVec
	callsFinishedTotal   *prometheus.CounterVec
	callsActive          prometheus.Gauge
	callDuration         prometheus.Histogram
	callsReconciledTotal prometheus.Counter

	providerCallbacksTotal *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry, service string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"service": service}

	return &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: labels,
		}, []string{"method", "endpoint", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		callTransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "call_transitions_total",
			Help:        "Call status transitions applied by the lifecycle",
			ConstLabels: labels,
		}, []string{"from", "to"}),
		callsFinishedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "calls_finished_total",
			Help:        "Calls that reached a terminal status",
			ConstLabels: labels,
		}, []string{"status"}),
		callsActive: f.NewGauge(prometheus.GaugeOpts{
			Name:        "calls_active",
			Help:        "Call lifecycles currently running in this process",
			ConstLabels: labels,
		}),
		callDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "call_duration_seconds",
			Help:        "Recorded duration of completed calls",
			ConstLabels: labels,
			Buckets:     []float64{5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		callsReconciledTotal: f.NewCounter(prometheus.CounterOpts{
			Name:        "calls_reconciled_total",
			Help:        "Stale calls force-failed by the reconciler",
			ConstLabels: labels,
		}),
		providerCallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "provider_callbacks_total",
			Help:        "Telephony provider status callbacks received",
			ConstLabels: labels,
		}, []string{"status"}),
	}
}

func (m *Metrics) RecordHTTPRequest(method, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

func (m *Metrics) CallTransition(from, to string) {
	if m == nil {
		return
	}
	m.callTransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) CallFinished(status string, durationSeconds int) {
	if m == nil {
		return
	}
	m.callsFinishedTotal.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		m.callDuration.Observe(float64(durationSeconds))
	}
}

func (m *Metrics) LifecycleStarted() {
	if m == nil {
		return
	}
	m.callsActive.Inc()
}

func (m *Metrics) LifecycleEnded() {
	if m == nil {
		return
	}
	m.callsActive.Dec()
}

func (m *Metrics) CallReconciled() {
	if m == nil {
		return
	}
	m.callsReconciledTotal.Inc()
}

// ProviderCallback implements telephony.CallbackObserver.
func (m *Metrics) ProviderCallback(status string) {
	if m == nil {
		return
	}
	m.providerCallbacksTotal.WithLabelValues(status).Inc()
}

// Middleware records one sample per request, keyed by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
