package infra

import (
	"context"

	"aspirasi-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as decisões como contador por classe/resultado.
// Nunca usa Key como label.
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer) *PrometheusStatsStore {
	s := &PrometheusStatsStore{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aspirasi",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions by route class and outcome.",
		}, []string{"class", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(s.decisions)
	}
	return s
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	outcome := "denied"
	if ev.Allowed {
		outcome = "allowed"
	}
	s.decisions.WithLabelValues(string(ev.Class), outcome).Inc()
	return nil
}

// Collector devolve o CounterVec (usado em testes).
func (s *PrometheusStatsStore) Collector() *prometheus.CounterVec { return s.decisions }
