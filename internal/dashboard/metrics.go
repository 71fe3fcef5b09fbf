package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dashboard activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	clients  prometheus.Gauge
	sent     prometheus.Counter
	dropped  prometheus.Counter
	commands prometheus.Counter
}

// NewMetrics creates the dashboard metrics and registers them with reg.
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pigeon",
			Subsystem: "dashboard",
			Name:      "clients_connected",
			Help:      "Number of currently connected websocket clients",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "dashboard",
			Name:      "events_sent_total",
			Help:      "Events queued to websocket clients",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "dashboard",
			Name:      "events_dropped_total",
			Help:      "Events skipped because a client fell behind",
		}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "dashboard",
			Name:      "commands_received_total",
			Help:      "Command lines received from websocket clients",
		}),
	}

	reg.MustRegister(m.clients, m.sent, m.dropped, m.commands)
	return m
}

func (m *Metrics) setClients(n int) {
	if m != nil {
		m.clients.Set(float64(n))
	}
}

func (m *Metrics) eventSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *Metrics) eventDropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) commandReceived() {
	if m != nil {
		m.commands.Inc()
	}
}
