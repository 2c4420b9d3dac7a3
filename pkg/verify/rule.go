package verify

import (
	"context"
	"fmt"
)

// RuleFunc judges one attempt deterministically.
type RuleFunc func(intent, action, result string, history []IterationContext) Verification

// RuleVerifier adapts a function to Verifier. Suggestions are derived from the
// issue descriptions.
type RuleVerifier struct {
	Rule RuleFunc
}

// NewRuleVerifier wraps rule.
func NewRuleVerifier(rule RuleFunc) *RuleVerifier {
	return &RuleVerifier{Rule: rule}
}

// Verify implements Verifier.
func (r *RuleVerifier) Verify(_ context.Context, intent, action, result string, history []IterationContext) (Verification, error) {
	if r.Rule == nil {
		return Verification{}, fmt.Errorf("rule verifier has no rule")
	}
	return r.Rule(intent, action, result, history), nil
}

// SuggestImprovements implements Verifier.
func (r *RuleVerifier) SuggestImprovements(_ context.Context, _ string, issues []Issue) ([]string, error) {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, "Fix: "+i.Description)
	}
	return out, nil
}

// Always returns a verifier that gives the same judgment every time.
func Always(v Verification) *RuleVerifier {
	return NewRuleVerifier(func(string, string, string, []IterationContext) Verification { return v })
}
