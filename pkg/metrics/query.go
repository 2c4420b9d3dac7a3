// Package metrics records scheduler activity and queries a Prometheus server
// for per-session LLM usage.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// SessionUsage is aggregated token and cost usage for one session.
type SessionUsage struct {
	SessionID        string  `json:"session_id"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost_usd"`
}

// QueryService queries Prometheus for usage recorded by the LLM middleware.
type QueryService struct {
	queryAPI v1.API
	now      func() time.Time
}

// NewQueryService creates a query service for the server at prometheusURL.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{queryAPI: v1.NewAPI(client), now: time.Now}, nil
}

// SessionUsage sums usage across every provider and model for sessionID.
func (q *QueryService) SessionUsage(ctx context.Context, sessionID string) (*SessionUsage, error) {
	usage := &SessionUsage{SessionID: sessionID}

	prompt, err := q.scalar(ctx, fmt.Sprintf(`sum(ganesha_llm_tokens_total{session_id=%q, type="prompt"})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query prompt tokens: %w", err)
	}
	completion, err := q.scalar(ctx, fmt.Sprintf(`sum(ganesha_llm_tokens_total{session_id=%q, type="completion"})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query completion tokens: %w", err)
	}
	cost, err := q.scalar(ctx, fmt.Sprintf(`sum(ganesha_llm_costs_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query total cost: %w", err)
	}

	usage.PromptTokens = int64(prompt)
	usage.CompletionTokens = int64(completion)
	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	usage.TotalCost = cost
	return usage, nil
}

// SessionUsageByProvider breaks usage for sessionID down by provider.
func (q *QueryService) SessionUsageByProvider(ctx context.Context, sessionID string) (map[string]*SessionUsage, error) {
	tokens, err := q.vector(ctx, fmt.Sprintf(`sum by (provider, type) (ganesha_llm_tokens_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens by provider: %w", err)
	}
	costs, err := q.vector(ctx, fmt.Sprintf(`sum by (provider) (ganesha_llm_costs_total{session_id=%q})`, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to query cost by provider: %w", err)
	}

	out := make(map[string]*SessionUsage)
	get := func(provider string) *SessionUsage {
		u, ok := out[provider]
		if !ok {
			u = &SessionUsage{SessionID: sessionID}
			out[provider] = u
		}
		return u
	}
	for _, sample := range tokens {
		u := get(string(sample.Metric["provider"]))
		switch sample.Metric["type"] {
		case "prompt":
			u.PromptTokens += int64(sample.Value)
		case "completion":
			u.CompletionTokens += int64(sample.Value)
		}
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	for _, sample := range costs {
		get(string(sample.Metric["provider"])).TotalCost += float64(sample.Value)
	}
	return out, nil
}

func (q *QueryService) vector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := q.queryAPI.Query(ctx, query, q.now())
	if err != nil {
		return nil, err //nolint:wrapcheck // callers add context
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s", result.Type())
	}
	return vector, nil
}

func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	vector, err := q.vector(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(vector) == 0 {
		return 0, nil
	}
	return float64(vector[0].Value), nil
}
