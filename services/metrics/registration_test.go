package metricsvc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-enrol/core/registration"
)

func TestRegistrationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewRegistrationMetrics(reg)
	require.NoError(t, err)

	m.ObserveOutcome(registration.OutcomeSuccess)
	m.ObserveOutcome(registration.OutcomeSuccess)
	m.ObserveOutcome(registration.OutcomeRosterMismatch)
	m.ObserveStrategy(registration.StrategyDirectInsert, false)
	m.ObserveStrategy(registration.StrategyBypassProcedure, true)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.outcomes.WithLabelValues(registration.OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomes.WithLabelValues(registration.OutcomeRosterMismatch)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.strategies.WithLabelValues(registration.StrategyDirectInsert, "false")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.strategies.WithLabelValues(registration.StrategyBypassProcedure, "true")))

	t.Run("registering twice fails", func(t *testing.T) {
		_, err := NewRegistrationMetrics(reg)
		assert.Error(t, err)
	})
}
