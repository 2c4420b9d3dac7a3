package metrics

import (
	"context"
	"errors"
	"time"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/agent/llmerrors"
	"ganesha/pkg/agent/middleware/resilience/circuit"
	"ganesha/pkg/config"
	"ganesha/pkg/logx"
	"ganesha/pkg/utils"
)

// Middleware records usage for every request sent to the provider. Backends
// that report no usage are estimated with tiktoken.
func Middleware(recorder Recorder, provider config.ProviderConfig, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				obs := Observation{
					Model:    next.GetModelName(),
					Provider: provider.Name,
					Labels:   LabelsFrom(ctx),
					Success:  err == nil,
					Duration: duration,
				}
				if err == nil {
					usage := utils.EstimateUsage(req, resp)
					resp.Usage = usage
					obs.PromptTokens = usage.PromptTokens
					obs.CompletionTokens = usage.CompletionTokens
					obs.Cost = provider.Cost(usage.Total())
				} else {
					obs.ErrorType = errorType(err)
				}
				recorder.ObserveRequest(obs)

				if logger != nil {
					status := "success"
					if err != nil {
						status = "error"
					}
					logger.Debug("🎯 LLM request: provider=%s model=%s task=%s tokens=%d+%d status=%s duration=%dms",
						obs.Provider, obs.Model, obs.Labels.TaskID, obs.PromptTokens, obs.CompletionTokens,
						status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			next.GetModelName,
		)
	}
}

// errorType labels err for metrics.
func errorType(err error) string {
	var circuitErr *circuit.Error
	switch {
	case errors.As(err, &circuitErr):
		return "circuit_breaker"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return llmerrors.TypeOf(err).String()
	}
}
