package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusScheduler(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusScheduler(reg)

	rec.TaskStarted("beast", 10*time.Millisecond)
	rec.TaskStarted("beast", 0)
	rec.TaskFinished("beast", "completed", time.Second)
	rec.Fallback("premium", "beast")

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[mf.GetName()] += m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.InDelta(t, 1, values["ganesha_subagents_running"], 0)
	assert.InDelta(t, 1, values["ganesha_subagents_finished_total"], 0)
	assert.InDelta(t, 1, values["ganesha_provider_fallbacks_total"], 0)

	NopScheduler().TaskStarted("x", 0)
}
