// Package metrics holds the Prometheus collectors for the webhook pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "receptionist"

// Metrics is passed to components explicitly; New registers on reg.
type Metrics struct {
	Deliveries       *prometheus.CounterVec
	Events           *prometheus.CounterVec
	Bookings         prometheus.Counter
	OutboundFailures *prometheus.CounterVec
	AIRequests       *prometheus.CounterVec
	QueueDropped     prometheus.Counter

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook POST deliveries by result (accepted, forbidden, bad_request, misconfigured).",
		}, []string{"result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Processed messaging events by outcome.",
		}, []string{"outcome"}),
		Bookings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Pending bookings emitted by completed sessions.",
		}),
		OutboundFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_failures_total",
			Help:      "Failed Send API calls by kind (text, typing).",
		}, []string{"kind"}),
		AIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Text generation calls by status (ok, error, empty).",
		}, []string{"status"}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Events dropped because the processing queue was full or stopped.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.Deliveries,
		m.Events,
		m.Bookings,
		m.OutboundFailures,
		m.AIRequests,
		m.QueueDropped,
	)
	return m
}

// NewNop returns collectors bound to a private registry. Tests only.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
