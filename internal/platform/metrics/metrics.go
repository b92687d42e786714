package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomeRetried = "retried"
	OutcomeFailed  = "failed"
)

// MessagingMetrics counts the bus traffic of one service.
type MessagingMetrics struct {
	Consumed   *prometheus.CounterVec
	Produced   *prometheus.CounterVec
	HandleTime *prometheus.HistogramVec
	InFlight   prometheus.Gauge
}

// NewMessagingMetrics registers the collectors on reg. Each service owns its
// registry so tests can build as many as they like.
func NewMessagingMetrics(reg prometheus.Registerer, service string) *MessagingMetrics {
	subsystem := strings.ReplaceAll(service, "-", "_")
	m := &MessagingMetrics{
		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: subsystem,
			Name:      "messages_consumed_total",
			Help:      "Messages handled, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		Produced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "saga",
			Subsystem: subsystem,
			Name:      "messages_produced_total",
			Help:      "Messages published, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		HandleTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "saga",
			Subsystem: subsystem,
			Name:      "message_handle_duration_ms",
			Help:      "Handler latency in milliseconds, retries included.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"topic"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "saga",
			Subsystem: subsystem,
			Name:      "messages_in_flight",
			Help:      "Messages dispatched to workers and not yet committed.",
		}),
	}
	reg.MustRegister(m.Consumed, m.Produced, m.HandleTime, m.InFlight)
	return m
}

// NewRegistry returns a registry preloaded with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
