package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts bridge activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	relayed      prometheus.Counter
	decodeErrors prometheus.Counter
	sinkErrors   prometheus.Counter
	commands     prometheus.Counter
}

// NewMetrics creates the bridge metrics and registers them with reg.
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "bridge",
			Name:      "records_relayed_total",
			Help:      "Wire lines decoded and handed to every sink",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "bridge",
			Name:      "decode_errors_total",
			Help:      "Robot output lines that were not wire lines",
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "bridge",
			Name:      "sink_errors_total",
			Help:      "Records a sink failed to accept",
		}),
		commands: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "bridge",
			Name:      "commands_forwarded_total",
			Help:      "Input lines written to the robot",
		}),
	}

	reg.MustRegister(m.relayed, m.decodeErrors, m.sinkErrors, m.commands)
	return m
}

func (m *Metrics) recordRelayed() {
	if m != nil {
		m.relayed.Inc()
	}
}

func (m *Metrics) decodeFailed() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) sinkFailed() {
	if m != nil {
		m.sinkErrors.Inc()
	}
}

func (m *Metrics) commandForwarded() {
	if m != nil {
		m.commands.Inc()
	}
}
