package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tracebridge"

// WorkflowMetrics counts status transitions of connections, requests and
// versions.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_transitions_total",
		Help:      "Committed status transitions per entity.",
	}, []string{"entity", "from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_conflicts_total",
		Help:      "Operations refused because the entity was not in a permitted status.",
	}, []string{"entity", "operation"})
	reg.MustRegister(transitions, rejected)
	return &WorkflowMetrics{transitions: transitions, rejected: rejected}
}

// Transition records a committed status change.
func (m *WorkflowMetrics) Transition(entity, from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(from), normalizeLabel(to)).Inc()
}

// Conflict records an operation rejected by a status guard.
func (m *WorkflowMetrics) Conflict(entity, operation string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(entity), normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
