package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestTriageMetricsObserve(t *testing.T) {
	m := NewTriageMetrics(prometheus.NewRegistry())
	m.ObserveClaim("auto_resolved", "P2")
	m.ObserveStage("classification", 0.02)
	m.ObserveValidation("validated")
	m.ObservePersistenceRetry()
	m.ObservePersistenceFailure()
}

func TestTriageMetricsNilSafe(t *testing.T) {
	var m *TriageMetrics
	m.ObserveClaim("escalated_to_human", "P0")
	m.ObserveStage("warranty", 0.1)
	m.ObserveValidation("cancelled")
	m.ObservePersistenceRetry()
	m.ObservePersistenceFailure()
}

func TestCircuitMetricsSetState(t *testing.T) {
	m := NewCircuitMetrics(prometheus.NewRegistry())
	m.SetState("bedrock", "closed")
	m.SetState("bedrock", "open")
	m.SetState("bedrock", "half_open")

	var nilMetrics *CircuitMetrics
	nilMetrics.SetState("bedrock", "open")
}
