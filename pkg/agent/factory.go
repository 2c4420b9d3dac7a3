// Package agent builds model clients for configured providers and wraps them
// in the metrics and circuit-breaker middleware chain.
package agent

import (
	"fmt"
	"net/http"
	"sync"

	"ganesha/pkg/agent/internal/llmimpl/anthropic"
	"ganesha/pkg/agent/internal/llmimpl/google"
	"ganesha/pkg/agent/internal/llmimpl/ollama"
	"ganesha/pkg/agent/internal/llmimpl/openaicompat"
	"ganesha/pkg/agent/llm"
	"ganesha/pkg/agent/middleware/metrics"
	"ganesha/pkg/agent/middleware/resilience/circuit"
	"ganesha/pkg/config"
	"ganesha/pkg/logx"
)

// LLMClientFactory creates provider clients. Clients for the same provider
// share one circuit breaker.
type LLMClientFactory struct {
	recorder      metrics.Recorder
	breakerConfig circuit.Config
	httpClient    *http.Client
	logger        *logx.Logger

	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

// FactoryOption configures an LLMClientFactory.
type FactoryOption func(*LLMClientFactory)

// WithRecorder sets the metrics recorder. Defaults to metrics.Nop().
func WithRecorder(r metrics.Recorder) FactoryOption {
	return func(f *LLMClientFactory) { f.recorder = r }
}

// WithBreakerConfig overrides circuit.DefaultConfig.
func WithBreakerConfig(c circuit.Config) FactoryOption {
	return func(f *LLMClientFactory) { f.breakerConfig = c }
}

// WithHTTPClient sets the HTTP client used by the Ollama backend.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *LLMClientFactory) { f.httpClient = c }
}

// NewLLMClientFactory creates a factory.
func NewLLMClientFactory(opts ...FactoryOption) *LLMClientFactory {
	f := &LLMClientFactory{
		recorder:      metrics.Nop(),
		breakerConfig: circuit.DefaultConfig,
		logger:        logx.NewLogger("llm-factory"),
		breakers:      make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateClient builds a client for p with the middleware chain
// Metrics -> CircuitBreaker -> RawClient. There is no retry layer; a provider
// error reaches the caller on the first attempt.
func (f *LLMClientFactory) CreateClient(p config.ProviderConfig) (llm.LLMClient, error) {
	raw, err := f.rawClient(p)
	if err != nil {
		return nil, err
	}
	return llm.Chain(raw,
		metrics.Middleware(f.recorder, p, f.logger),
		circuit.Middleware(p.Name, f.breaker(p.Name)),
	), nil
}

// Breaker returns the provider's circuit breaker, creating it if needed.
func (f *LLMClientFactory) breaker(provider string) *circuit.Breaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.breakers[provider]
	if !ok {
		b = circuit.New(f.breakerConfig)
		f.breakers[provider] = b
	}
	return b
}

func (f *LLMClientFactory) rawClient(p config.ProviderConfig) (llm.LLMClient, error) {
	if p.RequiresCredential() && !p.HasCredential() {
		return nil, fmt.Errorf("provider %s: missing credential (set %s)", p.Name, p.APIKeyEnv)
	}
	apiKey := p.Credential()

	switch p.Backend {
	case config.BackendOpenAI, "":
		return openaicompat.NewClient(apiKey, p.Model, p.Endpoint), nil
	case config.BackendAnthropic:
		return anthropic.NewClaudeClient(apiKey, p.Model, p.Endpoint), nil
	case config.BackendOllama:
		return ollama.NewClient(p.Endpoint, p.Model, f.httpClient), nil
	case config.BackendGoogle:
		return google.NewGeminiClient(apiKey, p.Model, p.Endpoint), nil
	default:
		return nil, fmt.Errorf("provider %s: unsupported backend %q", p.Name, p.Backend)
	}
}
