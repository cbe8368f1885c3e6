package infra

import (
	"github.com/prometheus/client_golang/prometheus"

	"aspirasi-gateway/admission/domain"
)

// VerdictMetrics conta vereditos por motivo e resultado.
type VerdictMetrics struct {
	verdicts *prometheus.CounterVec
}

func NewVerdictMetrics(reg prometheus.Registerer) *VerdictMetrics {
	m := &VerdictMetrics{
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aspirasi",
			Subsystem: "admission",
			Name:      "verdicts_total",
			Help:      "Admission verdicts by reason and outcome.",
		}, []string{"reason", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.verdicts)
	}
	return m
}

func (m *VerdictMetrics) ObserveVerdict(v domain.Verdict) {
	outcome := "denied"
	if v.Allowed {
		outcome = "allowed"
	}
	m.verdicts.WithLabelValues(string(v.Reason), outcome).Inc()
}

func (m *VerdictMetrics) Collector() prometheus.Collector { return m.verdicts }
