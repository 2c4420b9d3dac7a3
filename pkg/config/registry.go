package config

import (
	"errors"
	"fmt"
)

// ErrNoProvider is returned when the registry is built without any provider.
var ErrNoProvider = errors.New("no providers configured")

// Registry maps tiers to providers. It is immutable after construction.
type Registry struct {
	providers []ProviderConfig
	byName    map[string]int
}

// NewRegistry validates providers and builds a lookup table. Order is preserved
// and determines selection priority.
func NewRegistry(providers []ProviderConfig) (*Registry, error) {
	if len(providers) == 0 {
		return nil, ErrNoProvider
	}

	r := &Registry{
		providers: make([]ProviderConfig, len(providers)),
		byName:    make(map[string]int, len(providers)),
	}
	copy(r.providers, providers)

	for i := range r.providers {
		p := &r.providers[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate provider name %q", p.Name)
		}
		r.byName[p.Name] = i
	}
	return r, nil
}

// Select returns the first provider of the tier whose credential (if required)
// is present, falling back to the first credential-free local backend.
func (r *Registry) Select(tier ModelTier) (ProviderConfig, bool) {
	for i := range r.providers {
		p := &r.providers[i]
		if p.Tier == tier && p.HasCredential() {
			return *p, true
		}
	}
	for i := range r.providers {
		p := &r.providers[i]
		if p.IsLocal() {
			return *p, true
		}
	}
	return ProviderConfig{}, false
}

// Default returns the first configured provider.
func (r *Registry) Default() ProviderConfig {
	return r.providers[0]
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (ProviderConfig, bool) {
	i, ok := r.byName[name]
	if !ok {
		return ProviderConfig{}, false
	}
	return r.providers[i], true
}

// Providers returns a copy of the provider table.
func (r *Registry) Providers() []ProviderConfig {
	out := make([]ProviderConfig, len(r.providers))
	copy(out, r.providers)
	return out
}
