package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "knocktoolkit"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Tool metrics
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	// Deferred call metrics
	DeferredCallsTotal *prometheus.CounterVec

	// Webhook metrics
	WebhookDeliveriesTotal  *prometheus.CounterVec
	WebhookDeliveryDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool invocations",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Duration of tool invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),

		DeferredCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deferred_calls_total",
				Help:      "Deferred tool calls by lifecycle stage",
			},
			[]string{"stage"},
		),

		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_deliveries_total",
				Help:      "Inbound webhook deliveries by outcome",
			},
			[]string{"outcome"},
		),
		WebhookDeliveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_delivery_duration_seconds",
				Help:      "Time spent handling a webhook delivery in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.ToolCallsTotal)
	m.registry.MustRegister(m.ToolCallDuration)
	m.registry.MustRegister(m.DeferredCallsTotal)
	m.registry.MustRegister(m.WebhookDeliveriesTotal)
	m.registry.MustRegister(m.WebhookDeliveryDuration)
}

// ObserveToolCall records one tool invocation
func (m *Metrics) ObserveToolCall(method, status string, duration time.Duration) {
	m.ToolCallsTotal.WithLabelValues(method, status).Inc()
	m.ToolCallDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveDelivery records one webhook delivery
func (m *Metrics) ObserveDelivery(outcome string, duration time.Duration) {
	m.WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
	m.WebhookDeliveryDuration.Observe(duration.Seconds())
	if outcome == "completed" {
		m.DeferredCallsTotal.WithLabelValues("resumed").Inc()
	}
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
