package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for the claim triage pipeline.
type TriageMetrics struct {
	claimsTotal        *prometheus.CounterVec
	stageLatency       *prometheus.HistogramVec
	validationsTotal   *prometheus.CounterVec
	persistenceRetries prometheus.Counter
	persistenceFailed  prometheus.Counter
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		claimsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sav",
			Subsystem: "triage",
			Name:      "claims_total",
			Help:      "Total processed claims by decision and priority",
		}, []string{"decision", "priority"}),
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sav",
			Subsystem: "triage",
			Name:      "stage_latency_seconds",
			Help:      "Latency of each triage pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sav",
			Subsystem: "triage",
			Name:      "validations_total",
			Help:      "Customer validation outcomes",
		}, []string{"outcome"}),
		persistenceRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sav",
			Subsystem: "triage",
			Name:      "persistence_retries_total",
			Help:      "Ticket saves retried after a transient failure",
		}),
		persistenceFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sav",
			Subsystem: "triage",
			Name:      "persistence_failures_total",
			Help:      "Ticket saves that failed after retrying",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.claimsTotal, m.stageLatency, m.validationsTotal,
		m.persistenceRetries, m.persistenceFailed)
	return m
}

func (m *TriageMetrics) ObserveClaim(decision, priority string) {
	if m == nil {
		return
	}
	m.claimsTotal.WithLabelValues(decision, priority).Inc()
}

func (m *TriageMetrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *TriageMetrics) ObserveValidation(outcome string) {
	if m == nil {
		return
	}
	m.validationsTotal.WithLabelValues(outcome).Inc()
}

func (m *TriageMetrics) ObservePersistenceRetry() {
	if m == nil {
		return
	}
	m.persistenceRetries.Inc()
}

func (m *TriageMetrics) ObservePersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailed.Inc()
}

// CircuitMetrics mirrors breaker state into Prometheus.
type CircuitMetrics struct {
	state *prometheus.GaugeVec
}

func NewCircuitMetrics(reg prometheus.Registerer) *CircuitMetrics {
	m := &CircuitMetrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sav",
			Subsystem: "circuit",
			Name:      "state",
			Help:      "Circuit state (0 closed, 1 half-open, 2 open)",
		}, []string{"circuit"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.state)
	return m
}

// SetState records the breaker state, keyed by circuit name.
func (m *CircuitMetrics) SetState(circuit, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.state.WithLabelValues(circuit).Set(v)
}
