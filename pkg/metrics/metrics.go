// Package metrics provides Prometheus-based metrics recording for HTTP
// traffic and agent dispatches.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements metrics recording using Prometheus.
type Recorder struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	dispatchesTotal     *prometheus.CounterVec
	dispatchDuration    *prometheus.HistogramVec
	queueDepth          prometheus.Gauge
	queueDropsTotal     prometheus.Counter
}

// NewRecorder creates a new Prometheus-based metrics recorder. Collectors
// register against the default registry, so create at most one per process.
func NewRecorder() *Recorder {
	return &Recorder{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status code",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		dispatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_agent_dispatches_total",
				Help: "Total number of agent dispatches by agent, action, and status",
			},
			[]string{"agent", "action", "status"},
		),
		dispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_agent_dispatch_duration_seconds",
				Help:    "Duration of agent dispatches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent", "action"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_queue_depth",
				Help: "Number of deferred tasks waiting in the controller queue",
			},
		),
		queueDropsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_queue_drops_total",
				Help: "Total number of deferred tasks rejected because the queue was full",
			},
		),
	}
}

// ObserveHTTPRequest records one completed HTTP request.
func (r *Recorder) ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDispatch records one completed agent dispatch.
func (r *Recorder) ObserveDispatch(agent, action, status string, duration time.Duration) {
	r.dispatchesTotal.WithLabelValues(agent, action, status).Inc()
	r.dispatchDuration.WithLabelValues(agent, action).Observe(duration.Seconds())
}

// SetQueueDepth records the current controller queue depth.
func (r *Recorder) SetQueueDepth(depth int) {
	r.queueDepth.Set(float64(depth))
}

// IncQueueDrop records a rejected deferred task.
func (r *Recorder) IncQueueDrop() {
	r.queueDropsTotal.Inc()
}
