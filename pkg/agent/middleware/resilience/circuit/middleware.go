package circuit

import (
	"context"
	"errors"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/agent/llmerrors"
)

// Middleware rejects requests while the breaker is open. Prompt errors are the
// caller's fault and do not count against the provider.
func Middleware(provider string, breaker *Breaker) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if !breaker.Allow() {
					return llm.CompletionResponse{}, &Error{Provider: provider, State: breaker.State()}
				}

				resp, err := next.Complete(ctx, req)
				switch {
				case err == nil:
					breaker.Record(true)
				case llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt), errors.Is(err, context.Canceled):
				default:
					breaker.Record(false)
				}
				return resp, err //nolint:wrapcheck // middleware passes errors through unchanged
			},
			next.GetModelName,
		)
	}
}
