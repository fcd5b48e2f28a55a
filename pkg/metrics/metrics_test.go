package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWorkflowMetricsCountsTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWorkflowMetrics(reg)
	m.Transition("contribution_request", "SENT", "IN_PROGRESS")
	m.Transition("contribution_request", "SENT", "IN_PROGRESS")
	m.Conflict("contribution_request", "submit")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	got, err := fetchCounterValue(mfs, "tracebridge_workflow_transitions_total", map[string]string{
		"entity": "contribution_request", "from": "SENT", "to": "IN_PROGRESS",
	})
	if err != nil {
		t.Fatalf("fetch transitions: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected 2 transitions, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "tracebridge_workflow_conflicts_total", map[string]string{"operation": "submit"}); err != nil || got != 1 {
		t.Fatalf("expected 1 conflict, got %f (%v)", got, err)
	}
}

func TestOutboxMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Published("product_created")
	m.Failed("product_created")
	m.DeadLettered("product_created", "max_attempts")
	m.ObserveBatch(250 * time.Millisecond)
	m.Consumed("audit-recorder", "ack")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for name, labels := range map[string]map[string]string{
		"tracebridge_outbox_published_total":        {"event_type": "product_created"},
		"tracebridge_outbox_publish_failures_total": {"event_type": "product_created"},
		"tracebridge_outbox_dead_lettered_total":    {"reason": "max_attempts"},
		"tracebridge_consumer_messages_total":       {"consumer": "audit-recorder", "outcome": "ack"},
	} {
		got, err := fetchCounterValue(mfs, name, labels)
		if err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		}
		if got != 1 {
			t.Fatalf("expected %s=1, got %f", name, got)
		}
	}
	mf := findMetricFamily(mfs, "tracebridge_outbox_batch_duration_seconds")
	if mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleSum() <= 0 {
		t.Fatalf("expected batch histogram sample")
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	NewWorkflowMetrics(nil).Transition("connection", "PENDING", "ACTIVE")
	NewOutboxMetrics(nil).Published("product_created")
	var m *WorkflowMetrics
	m.Transition("connection", "PENDING", "ACTIVE")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, label := range pairs {
			if label.GetName() == name && label.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
