package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Webhook metrics
	WebhookRequestsTotal   *prometheus.CounterVec
	WebhookDurationSeconds *prometheus.HistogramVec

	// Dispatch metrics
	DispatchTotal           *prometheus.CounterVec
	DispatchMissesTotal     *prometheus.CounterVec
	DispatchDurationSeconds *prometheus.HistogramVec

	// Portal metrics
	PortalRequestsTotal   *prometheus.CounterVec
	PortalDurationSeconds *prometheus.HistogramVec

	// Storage metrics
	StorageErrorsTotal *prometheus.CounterVec

	// Delivery metrics
	DeliveriesTotal *prometheus.CounterVec

	// Broadcast metrics
	BroadcastRecipientsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec

	// Session metrics
	SessionsSweptTotal prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		WebhookRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_webhook_requests_total",
				Help: "Total number of webhook updates by kind and status",
			},
			[]string{"kind", "status"}, // kind: text, choice; status: success, error, dropped
		),

		WebhookDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sched_webhook_duration_seconds",
				Help:    "Webhook update processing duration in seconds by kind",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),

		DispatchTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_dispatch_total",
				Help: "Total dispatched events by handler and status",
			},
			[]string{"handler", "status"}, // status: success, error, collaborator_error
		),

		DispatchMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_dispatch_misses_total",
				Help: "Events that matched no handler, by state and event kind",
			},
			[]string{"state", "kind"},
		),

		DispatchDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sched_dispatch_duration_seconds",
				Help:    "Handler execution duration in seconds",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
			[]string{"handler"},
		),

		PortalRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_portal_requests_total",
				Help: "Total LMS portal requests by operation and status",
			},
			[]string{"op", "status"}, // op: login, marks, retakes; status: success, auth_failed, error, timeout
		),

		PortalDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sched_portal_duration_seconds",
				Help:    "LMS portal request duration in seconds by operation",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"op"},
		),

		StorageErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_storage_errors_total",
				Help: "Total storage errors by operation",
			},
			[]string{"op"},
		),

		DeliveriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_deliveries_total",
				Help: "Total outbound Telegram deliveries by method and status",
			},
			[]string{"method", "status"}, // method: send, edit; status: success, error
		),

		BroadcastRecipientsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_broadcast_recipients_total",
				Help: "Total broadcast recipients by delivery status",
			},
			[]string{"status"}, // status: delivered, failed
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sched_rate_limiter_dropped_total",
				Help: "Total number of updates dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user, global
		),

		SessionsSweptTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sched_sessions_swept_total",
				Help: "Total idle conversation sessions reset by the sweeper",
			},
		),
	}

	return m
}

// RecordWebhook records a processed webhook update
func (m *Metrics) RecordWebhook(kind, status string, duration float64) {
	m.WebhookRequestsTotal.WithLabelValues(kind, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(kind).Observe(duration)
}

// RecordDispatch records a handler execution
func (m *Metrics) RecordDispatch(handler, status string, duration float64) {
	m.DispatchTotal.WithLabelValues(handler, status).Inc()
	m.DispatchDurationSeconds.WithLabelValues(handler).Observe(duration)
}

// RecordDispatchMiss records an event that matched no handler
func (m *Metrics) RecordDispatchMiss(state, kind string) {
	m.DispatchMissesTotal.WithLabelValues(state, kind).Inc()
}

// RecordPortalRequest records an LMS portal call
func (m *Metrics) RecordPortalRequest(op, status string, duration float64) {
	m.PortalRequestsTotal.WithLabelValues(op, status).Inc()
	m.PortalDurationSeconds.WithLabelValues(op).Observe(duration)
}

// RecordStorageError records a storage failure
func (m *Metrics) RecordStorageError(op string) {
	m.StorageErrorsTotal.WithLabelValues(op).Inc()
}

// RecordDelivery records an outbound Telegram delivery
func (m *Metrics) RecordDelivery(method, status string) {
	m.DeliveriesTotal.WithLabelValues(method, status).Inc()
}

// RecordBroadcastRecipient records one broadcast recipient outcome
func (m *Metrics) RecordBroadcastRecipient(status string) {
	m.BroadcastRecipientsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimiterDrop records an update dropped by a rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// RecordSessionsSwept records idle sessions cleared by the sweeper
func (m *Metrics) RecordSessionsSwept(n int) {
	m.SessionsSweptTotal.Add(float64(n))
}
