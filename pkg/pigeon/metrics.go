package pigeon

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts registry activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	linesWritten  prometheus.Counter
	writeErrors   prometheus.Counter
	dispatchedOK  prometheus.Counter
	droppedLines  *prometheus.CounterVec
	replies       prometheus.Counter
	slotGrants    prometheus.Counter
	slotEvictions prometheus.Counter
}

// NewMetrics creates the registry metrics and registers them with reg.
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		linesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Name:      "lines_written_total",
			Help:      "Wire lines written to the output",
		}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Name:      "write_errors_total",
			Help:      "Wire lines the output failed to accept",
		}),
		dispatchedOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Name:      "requests_dispatched_total",
			Help:      "Input lines routed to an entry handler",
		}),
		droppedLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pigeon",
			Name:      "requests_dropped_total",
			Help:      "Input lines discarded, by reason",
		}, []string{"reason"}),
		replies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Name:      "handler_replies_total",
			Help:      "Reply lines emitted by entry handlers",
		}),
		slotGrants: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "pool",
			Name:      "slot_grants_total",
			Help:      "Message slots lent to entries",
		}),
		slotEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pigeon",
			Subsystem: "pool",
			Name:      "slot_evictions_total",
			Help:      "Slot grants that evicted another entry",
		}),
	}

	reg.MustRegister(
		m.linesWritten,
		m.writeErrors,
		m.dispatchedOK,
		m.droppedLines,
		m.replies,
		m.slotGrants,
		m.slotEvictions,
	)
	return m
}

func (m *Metrics) lineWritten() {
	if m != nil {
		m.linesWritten.Inc()
	}
}

func (m *Metrics) writeFailed() {
	if m != nil {
		m.writeErrors.Inc()
	}
}

func (m *Metrics) dispatched() {
	if m != nil {
		m.dispatchedOK.Inc()
	}
}

func (m *Metrics) dropped(reason string) {
	if m != nil {
		m.droppedLines.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) replied() {
	if m != nil {
		m.replies.Inc()
	}
}

func (m *Metrics) slotGranted(evicted bool) {
	if m == nil {
		return
	}
	m.slotGrants.Inc()
	if evicted {
		m.slotEvictions.Inc()
	}
}
