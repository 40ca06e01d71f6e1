package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "odonto")

	m.Operations.WithLabelValues("assign_treatment", "success").Inc()
	m.OutboxEventsProcessed.Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("assign_treatment", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxEventsProcessed))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["odonto_odontogram_operations_total"])
	assert.True(t, names["odonto_outbox_events_processed_total"])
}

func TestNewNopDoesNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}
