package config

import (
	"fmt"
	"strings"
)

// Backend identifies the wire contract a provider speaks.
type Backend string

const (
	BackendOpenAI    Backend = "openai"    // OpenAI-style chat completions (also LM Studio)
	BackendAnthropic Backend = "anthropic" // Anthropic messages, separate system field
	BackendOllama    Backend = "ollama"
	BackendGoogle    Backend = "google"
)

// Well-known credential variables.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
)

// ProviderConfig describes one model backend and its concurrency/cost policy.
// Values are treated as immutable once loaded.
type ProviderConfig struct {
	Name            string    `yaml:"name"`
	Backend         Backend   `yaml:"backend"`
	Endpoint        string    `yaml:"endpoint"`
	Model           string    `yaml:"model"`
	Tier            ModelTier `yaml:"tier"`
	APIKey          string    `yaml:"api_key,omitempty"`
	APIKeyEnv       string    `yaml:"api_key_env,omitempty"`
	MaxConcurrent   int       `yaml:"max_concurrent"`
	CostPer1kTokens float64   `yaml:"cost_per_1k_tokens"`
}

// RequiresCredential reports whether the backend cannot be used without a key.
func (p *ProviderConfig) RequiresCredential() bool {
	if p.APIKeyEnv != "" {
		return true
	}
	switch p.Backend {
	case BackendAnthropic, BackendGoogle:
		return true
	case BackendOpenAI:
		return strings.Contains(p.Endpoint, "api.openai.com")
	default:
		return false
	}
}

// Credential resolves the provider key: inline value first, then secrets/env.
func (p *ProviderConfig) Credential() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv == "" {
		return ""
	}
	key, err := GetSecret(p.APIKeyEnv)
	if err != nil {
		return ""
	}
	return key
}

// HasCredential reports whether a required credential is available.
func (p *ProviderConfig) HasCredential() bool {
	return !p.RequiresCredential() || p.Credential() != ""
}

// IsLocal reports whether the provider runs without any credential.
func (p *ProviderConfig) IsLocal() bool {
	return !p.RequiresCredential()
}

// Cost returns the estimated cost for the given token usage.
func (p *ProviderConfig) Cost(tokens int) float64 {
	return float64(tokens) / 1000.0 * p.CostPer1kTokens
}

// Validate checks the fields needed to build a client and a limiter.
func (p *ProviderConfig) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if p.Model == "" {
		return fmt.Errorf("provider %s: model is required", p.Name)
	}
	switch p.Backend {
	case BackendOpenAI, BackendAnthropic, BackendOllama, BackendGoogle:
	default:
		return fmt.Errorf("provider %s: unknown backend %q", p.Name, p.Backend)
	}
	if p.MaxConcurrent <= 0 {
		return fmt.Errorf("provider %s: max_concurrent must be positive", p.Name)
	}
	if p.CostPer1kTokens < 0 {
		return fmt.Errorf("provider %s: cost_per_1k_tokens cannot be negative", p.Name)
	}
	return nil
}

// LMStudioBeast is the large local LM Studio box.
func LMStudioBeast() ProviderConfig {
	return ProviderConfig{
		Name:          "beast",
		Backend:       BackendOpenAI,
		Endpoint:      "http://192.168.245.155:1234",
		Model:         "gpt-oss-20b",
		Tier:          TierCapable,
		MaxConcurrent: 1,
	}
}

// LMStudioBedroom is the small, fast local LM Studio box.
func LMStudioBedroom() ProviderConfig {
	return ProviderConfig{
		Name:          "bedroom",
		Backend:       BackendOpenAI,
		Endpoint:      "http://192.168.27.182:1234",
		Model:         "ministral-3-3b",
		Tier:          TierFast,
		MaxConcurrent: 2,
	}
}

// BedroomVision is the bedroom box used for vision tasks.
func BedroomVision() ProviderConfig {
	return ProviderConfig{
		Name:          "bedroom-vision",
		Backend:       BackendOpenAI,
		Endpoint:      "http://192.168.27.182:1234",
		Model:         "ministral-3-3b",
		Tier:          TierVision,
		MaxConcurrent: 1,
	}
}

// OllamaLocal is a default local Ollama daemon.
func OllamaLocal() ProviderConfig {
	return ProviderConfig{
		Name:          "ollama",
		Backend:       BackendOllama,
		Endpoint:      "http://localhost:11434",
		Model:         "llama3.1:8b",
		Tier:          TierStandard,
		MaxConcurrent: 2,
	}
}

func AnthropicSonnet() ProviderConfig {
	return ProviderConfig{
		Name:            "anthropic-sonnet",
		Backend:         BackendAnthropic,
		Endpoint:        "https://api.anthropic.com",
		Model:           "claude-sonnet-4-5-20250514",
		Tier:            TierCloud,
		APIKeyEnv:       EnvAnthropicAPIKey,
		MaxConcurrent:   5,
		CostPer1kTokens: 0.003,
	}
}

func AnthropicOpus() ProviderConfig {
	return ProviderConfig{
		Name:            "anthropic-opus",
		Backend:         BackendAnthropic,
		Endpoint:        "https://api.anthropic.com",
		Model:           "claude-opus-4-20250514",
		Tier:            TierPremium,
		APIKeyEnv:       EnvAnthropicAPIKey,
		MaxConcurrent:   3,
		CostPer1kTokens: 0.015,
	}
}

func OpenAIGPT4o() ProviderConfig {
	return ProviderConfig{
		Name:            "openai-gpt4o",
		Backend:         BackendOpenAI,
		Endpoint:        "https://api.openai.com/v1",
		Model:           "gpt-4o",
		Tier:            TierCloud,
		APIKeyEnv:       EnvOpenAIAPIKey,
		MaxConcurrent:   5,
		CostPer1kTokens: 0.005,
	}
}

func GeminiPro() ProviderConfig {
	return ProviderConfig{
		Name:            "gemini",
		Backend:         BackendGoogle,
		Endpoint:        "https://generativelanguage.googleapis.com",
		Model:           "gemini-2.0-flash",
		Tier:            TierCloud,
		APIKeyEnv:       EnvGeminiAPIKey,
		MaxConcurrent:   5,
		CostPer1kTokens: 0.0001,
	}
}

// DefaultProviders returns the preset table, local backends first.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		LMStudioBeast(),
		LMStudioBedroom(),
		BedroomVision(),
		OllamaLocal(),
		AnthropicSonnet(),
		AnthropicOpus(),
		OpenAIGPT4o(),
		GeminiPro(),
	}
}
