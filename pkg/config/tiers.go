// Package config holds provider definitions, the tier registry, file-based configuration and secrets.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ModelTier is an abstract capability/cost class used to pick a provider.
type ModelTier int

const (
	TierFast ModelTier = iota
	TierStandard
	TierCapable
	TierVision
	TierCloud
	TierPremium
)

func (t ModelTier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierStandard:
		return "standard"
	case TierCapable:
		return "capable"
	case TierVision:
		return "vision"
	case TierCloud:
		return "cloud"
	case TierPremium:
		return "premium"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier converts a tier name (case-insensitive) to a ModelTier.
func ParseTier(s string) (ModelTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast":
		return TierFast, nil
	case "standard":
		return TierStandard, nil
	case "capable":
		return TierCapable, nil
	case "vision":
		return TierVision, nil
	case "cloud":
		return TierCloud, nil
	case "premium":
		return TierPremium, nil
	default:
		return 0, fmt.Errorf("unknown model tier %q", s)
	}
}

// MarshalYAML writes the tier by name.
func (t ModelTier) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML reads a tier by name.
func (t *ModelTier) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("tier must be a string: %w", err)
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
