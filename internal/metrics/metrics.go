package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ODCA117/ratchat/internal/core"
)

// Metrics holds the relay's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ConnectedClients   prometheus.Gauge
	SessionsTotal      *prometheus.CounterVec
	MessagesRelayed    prometheus.Counter
	Deliveries         prometheus.Counter
	SubscribersEvicted prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ratchat_connected_clients",
			Help: "Number of clients that completed the handshake and are still connected",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratchat_sessions_total",
			Help: "Finished sessions by transport and close reason",
		}, []string{"transport", "reason"}),
		MessagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratchat_messages_relayed_total",
			Help: "Messages moved from the ingestion queue to the bus",
		}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratchat_deliveries_total",
			Help: "Messages handed to subscriber buffers",
		}),
		SubscribersEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratchat_subscribers_evicted_total",
			Help: "Subscribers dropped from the bus for falling behind",
		}),
	}

	m.registry.MustRegister(
		m.ConnectedClients,
		m.SessionsTotal,
		m.MessagesRelayed,
		m.Deliveries,
		m.SubscribersEvicted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Relayed implements core.RelayObserver.
func (m *Metrics) Relayed(_ core.ChatMessage, delivered, evicted int) {
	m.MessagesRelayed.Inc()
	m.Deliveries.Add(float64(delivered))
	m.SubscribersEvicted.Add(float64(evicted))
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
