package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/agent/llmerrors"
	"ganesha/pkg/config"
)

func TestMiddlewareRecordsUsage(t *testing.T) {
	internal := NewInternalRecorder()
	provider := config.ProviderConfig{Name: "cloud", Model: "m", CostPer1kTokens: 1.0}
	client := llm.Chain(llm.NewMockClient("m", "Hello there"), Middleware(internal, provider, nil))

	ctx := WithLabels(context.Background(), Labels{SessionID: "s1", TaskID: "t1"})
	resp, err := client.Complete(ctx, llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("Hello world")}))
	require.NoError(t, err)
	assert.Positive(t, resp.Usage.Total(), "usage is estimated when the backend reports none")

	got, ok := internal.Session("s1")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.RequestCount)
	assert.Equal(t, int64(resp.Usage.Total()), got.TotalTokens)
	assert.InDelta(t, float64(resp.Usage.Total())/1000, got.TotalCost, 1e-9)
}

func TestMiddlewareRecordsFailures(t *testing.T) {
	internal := NewInternalRecorder()
	mock := llm.NewMockClient("m", "x")
	mock.FailOnCall(0, llmerrors.NewError(llmerrors.ErrorTypeAuth, "denied"))
	client := llm.Chain(mock, Middleware(internal, config.ProviderConfig{Name: "p"}, nil))

	ctx := WithLabels(context.Background(), Labels{SessionID: "s1"})
	_, err := client.Complete(ctx, llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)

	got, ok := internal.Session("s1")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.FailedCount)
	assert.Zero(t, got.TotalTokens)
}

func TestInternalRecorderIgnoresUnlabelled(t *testing.T) {
	internal := NewInternalRecorder()
	internal.ObserveRequest(Observation{Success: true, PromptTokens: 5})
	_, ok := internal.Session("")
	assert.False(t, ok)

	internal.ObserveRequest(Observation{Labels: Labels{SessionID: "a"}, Success: true})
	internal.Reset()
	_, ok = internal.Session("a")
	assert.False(t, ok)
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	both := Multi(rec, Nop())

	both.ObserveRequest(Observation{
		Provider: "cloud", Model: "m", Labels: Labels{SessionID: "s"},
		PromptTokens: 10, CompletionTokens: 4, Cost: 0.5, Success: true,
	})
	both.ObserveRequest(Observation{Provider: "cloud", Model: "m", Labels: Labels{SessionID: "s"}, ErrorType: "auth"})

	totals := gatherCounters(t, reg)
	assert.InDelta(t, 2, totals["ganesha_llm_requests_total"], 0)
	assert.InDelta(t, 14, totals["ganesha_llm_tokens_total"], 0)
	assert.InDelta(t, 0.5, totals["ganesha_llm_costs_total"], 1e-9)
}

func TestLabelsFromEmptyContext(t *testing.T) {
	assert.Equal(t, Labels{}, LabelsFrom(context.Background()))
}

// gatherCounters sums every counter series per metric name.
func gatherCounters(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[mf.GetName()] += c.GetValue()
			}
		}
	}
	return out
}
