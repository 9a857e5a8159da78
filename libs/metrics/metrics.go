// Package metrics holds the Prometheus collectors for the event core.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Consume outcomes.
const (
	OutcomeHandled      = "handled"
	OutcomeAckFailed    = "ack_failed"
	OutcomeUndecodable  = "undecodable"
	OutcomeNoHandler    = "no_handler"
	OutcomeHandlerError = "handler_error"
)

// Events holds event propagation metrics. A nil *Events is valid and
// records nothing.
type Events struct {
	Published       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	Consumed        *prometheus.CounterVec
	HandlerDuration *prometheus.HistogramVec
}

// NewRegistry returns a registry with the Go runtime and process
// collectors already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewEvents creates and registers the event metrics on reg.
func NewEvents(reg prometheus.Registerer) *Events {
	f := promauto.With(reg)
	return &Events{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published to the broker, by topic",
		}, []string{"topic"}),
		PublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "events_publish_failures_total",
			Help: "Domain event publishes that failed, by topic",
		}, []string{"topic"}),
		Consumed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Broker deliveries processed by the consumer, by topic and outcome",
		}, []string{"topic", "outcome"}),
		HandlerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "event_handler_duration_seconds",
			Help:    "Duration of a single event handler invocation",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *Events) ObservePublish(topic string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PublishFailures.WithLabelValues(topic).Inc()
		return
	}
	m.Published.WithLabelValues(topic).Inc()
}

func (m *Events) ObserveConsumed(topic, outcome string) {
	if m == nil {
		return
	}
	m.Consumed.WithLabelValues(topic, outcome).Inc()
}

func (m *Events) ObserveHandler(topic string, d time.Duration) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
