package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Storefront groups the counters and histograms exported by the API and the publisher.
// A nil *Storefront is valid and records nothing.
type Storefront struct {
	checkoutTotal      *prometheus.CounterVec
	checkoutDuration   *prometheus.HistogramVec
	integrationTotal   *prometheus.CounterVec
	webhookTotal       *prometheus.CounterVec
	rejectedTransition *prometheus.CounterVec
	unmatchedPayment   *prometheus.CounterVec
	outboxTotal        *prometheus.CounterVec
}

// NewStorefront registers the storefront metrics on the provided registerer.
func NewStorefront(reg prometheus.Registerer) *Storefront {
	if reg == nil {
		return &Storefront{}
	}
	s := &Storefront{
		checkoutTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Checkout executions by flow and result.",
		}, []string{"flow", "result"}),
		checkoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Duration of checkout executions in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow"}),
		integrationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "integration_calls_total",
			Help: "Outcome of best-effort integration steps.",
		}, []string{"integration", "status"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_webhook_events_total",
			Help: "Genie webhook deliveries by event type and result.",
		}, []string{"event_type", "result"}),
		rejectedTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_transition_rejected_total",
			Help: "Gateway states that could not be applied to the current order or phase status.",
		}, []string{"state"}),
		unmatchedPayment: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genie_webhook_unmatched_total",
			Help: "Gateway transactions that matched no order.",
		}, []string{"state"}),
		outboxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox rows processed by the publisher.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		s.checkoutTotal,
		s.checkoutDuration,
		s.integrationTotal,
		s.webhookTotal,
		s.rejectedTransition,
		s.unmatchedPayment,
		s.outboxTotal,
	)
	return s
}

// ObserveCheckout records one checkout execution.
func (s *Storefront) ObserveCheckout(flow, result string, duration time.Duration) {
	if s == nil || s.checkoutTotal == nil {
		return
	}
	s.checkoutTotal.WithLabelValues(normalizeLabel(flow), normalizeLabel(result)).Inc()
	s.checkoutDuration.WithLabelValues(normalizeLabel(flow)).Observe(duration.Seconds())
}

func (s *Storefront) IncIntegration(integration, status string) {
	if s == nil || s.integrationTotal == nil {
		return
	}
	s.integrationTotal.WithLabelValues(normalizeLabel(integration), normalizeLabel(status)).Inc()
}

func (s *Storefront) IncWebhook(eventType, result string) {
	if s == nil || s.webhookTotal == nil {
		return
	}
	s.webhookTotal.WithLabelValues(normalizeLabel(eventType), normalizeLabel(result)).Inc()
}

func (s *Storefront) IncRejectedTransition(state string) {
	if s == nil || s.rejectedTransition == nil {
		return
	}
	s.rejectedTransition.WithLabelValues(normalizeLabel(state)).Inc()
}

func (s *Storefront) IncUnmatchedPayment(state string) {
	if s == nil || s.unmatchedPayment == nil {
		return
	}
	s.unmatchedPayment.WithLabelValues(normalizeLabel(state)).Inc()
}

func (s *Storefront) IncOutbox(result string) {
	if s == nil || s.outboxTotal == nil {
		return
	}
	s.outboxTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
