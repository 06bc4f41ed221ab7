package metricsvc

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/masomo-enrol/core/registration"
)

const namespace = "masomo"

// RegistrationMetrics counts saga outcomes and profile strategy attempts.
type RegistrationMetrics struct {
	outcomes   *prometheus.CounterVec
	strategies *prometheus.CounterVec
}

var _ registration.Observer = (*RegistrationMetrics)(nil)

func NewRegistrationMetrics(reg prometheus.Registerer) (*RegistrationMetrics, error) {
	m := &RegistrationMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "outcomes_total",
			Help:      "Registration attempts by outcome.",
		}, []string{"outcome"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registration",
			Name:      "profile_strategies_total",
			Help:      "Profile creation strategy attempts by strategy and result.",
		}, []string{"strategy", "ok"}),
	}
	for _, c := range []prometheus.Collector{m.outcomes, m.strategies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *RegistrationMetrics) ObserveOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *RegistrationMetrics) ObserveStrategy(strategy string, ok bool) {
	m.strategies.WithLabelValues(strategy, strconv.FormatBool(ok)).Inc()
}
