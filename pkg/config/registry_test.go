package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestProviderPresets(t *testing.T) {
	beast := LMStudioBeast()
	assert.Equal(t, TierCapable, beast.Tier)
	assert.Equal(t, 0.0, beast.CostPer1kTokens)
	assert.False(t, beast.RequiresCredential())

	sonnet := AnthropicSonnet()
	assert.Equal(t, TierCloud, sonnet.Tier)
	assert.True(t, sonnet.RequiresCredential())
	assert.InDelta(t, 0.003, sonnet.CostPer1kTokens, 1e-9)

	for _, p := range DefaultProviders() {
		assert.NoError(t, p.Validate(), p.Name)
	}
}

func TestSelectPrefersTierWithCredential(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "sk-ant-test")

	reg, err := NewRegistry([]ProviderConfig{LMStudioBedroom(), AnthropicSonnet(), AnthropicOpus()})
	require.NoError(t, err)

	p, ok := reg.Select(TierPremium)
	require.True(t, ok)
	assert.Equal(t, "anthropic-opus", p.Name)

	p, ok = reg.Select(TierFast)
	require.True(t, ok)
	assert.Equal(t, "bedroom", p.Name)
}

func TestSelectFallsBackToLocalWithoutCredential(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "")

	reg, err := NewRegistry([]ProviderConfig{AnthropicSonnet(), LMStudioBeast()})
	require.NoError(t, err)

	p, ok := reg.Select(TierCloud)
	require.True(t, ok)
	assert.Equal(t, "beast", p.Name, "credential-less cloud tier should fall back to local backend")
}

func TestSelectNoMatch(t *testing.T) {
	t.Setenv(EnvAnthropicAPIKey, "")

	reg, err := NewRegistry([]ProviderConfig{AnthropicSonnet()})
	require.NoError(t, err)

	_, ok := reg.Select(TierCloud)
	assert.False(t, ok)
	assert.Equal(t, "anthropic-sonnet", reg.Default().Name)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.ErrorIs(t, err, ErrNoProvider)

	_, err = NewRegistry([]ProviderConfig{LMStudioBeast(), LMStudioBeast()})
	assert.Error(t, err)

	bad := LMStudioBeast()
	bad.MaxConcurrent = 0
	_, err = NewRegistry([]ProviderConfig{bad})
	assert.Error(t, err)
}

func TestInlineAPIKeyWins(t *testing.T) {
	p := AnthropicSonnet()
	p.APIKey = "inline"
	t.Setenv(EnvAnthropicAPIKey, "env")
	assert.Equal(t, "inline", p.Credential())
	assert.True(t, p.HasCredential())
}

func TestTierYAMLRoundTrip(t *testing.T) {
	var holder struct {
		Tier ModelTier `yaml:"tier"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("tier: Premium\n"), &holder))
	assert.Equal(t, TierPremium, holder.Tier)

	out, err := yaml.Marshal(holder)
	require.NoError(t, err)
	assert.Equal(t, "tier: premium\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("tier: galactic\n"), &holder))
}
