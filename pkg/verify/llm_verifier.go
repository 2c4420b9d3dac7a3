package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ganesha/pkg/agent/llm"
)

const verifierSystemPrompt = "You are a precise verification agent. Respond only in the requested format."

const verifierTemperature = 0.1

// LLMVerifier asks a model for a JSON verdict.
type LLMVerifier struct {
	client    llm.LLMClient
	maxTokens int
}

// NewLLMVerifier creates a model-backed verifier.
func NewLLMVerifier(client llm.LLMClient) *LLMVerifier {
	return &LLMVerifier{client: client, maxTokens: 1000}
}

// Verify implements Verifier. A model that cannot be reached yields a failed
// verification with an Error issue, not a Go error, so the loop can retry.
func (v *LLMVerifier) Verify(ctx context.Context, intent, action, result string, history []IterationContext) (Verification, error) {
	prompt := fmt.Sprintf(`You are a verification agent. Your job is to check if an action achieved the intended goal.

ORIGINAL INTENT: %s

ACTION TAKEN: %s

RESULT:
%s

PREVIOUS ATTEMPTS: %d

Analyze whether the result satisfies the original intent.
Respond in this exact JSON format:
{
    "passed": true/false,
    "confidence": 0.0-1.0,
    "issues": [
        {"severity": "info/warning/error/critical", "description": "...", "location": "optional"}
    ],
    "suggestions": ["improvement 1", "improvement 2"]
}
`, intent, action, result, len(history))

	resp, err := v.ask(ctx, prompt)
	if err != nil {
		return Verification{
			Issues:      []Issue{{Severity: SeverityError, Description: "Verification failed to execute: " + err.Error()}},
			Suggestions: []string{"Retry the verification"},
		}, nil
	}
	return ParseVerdict(resp), nil
}

// SuggestImprovements implements Verifier.
func (v *LLMVerifier) SuggestImprovements(ctx context.Context, intent string, issues []Issue) ([]string, error) {
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = fmt.Sprintf("[%s] %s", issue.Severity, issue.Description)
	}
	prompt := fmt.Sprintf("Given this intent: %s\n\nAnd these issues:\n%s\n\nSuggest specific improvements to achieve the intent. Be concise.\n",
		intent, strings.Join(lines, "\n"))

	resp, err := v.ask(ctx, prompt)
	if err != nil {
		return []string{"Review the issues and try again"}, nil
	}
	var out []string
	for _, line := range strings.Split(resp, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}

func (v *LLMVerifier) ask(ctx context.Context, prompt string) (string, error) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{
		llm.NewSystemMessage(verifierSystemPrompt),
		llm.NewUserMessage(prompt),
	})
	req.Temperature = verifierTemperature
	req.MaxTokens = v.maxTokens
	resp, err := v.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

type verdict struct {
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Issues     []struct {
		Severity    string `json:"severity"`
		Description string `json:"description"`
		Location    string `json:"location"`
	} `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// ParseVerdict reads the outermost {...} in a model reply. Replies without
// valid JSON fall back to a keyword check.
func ParseVerdict(resp string) Verification {
	start := strings.Index(resp, "{")
	end := strings.LastIndex(resp, "}")
	if start >= 0 && end > start {
		var raw verdict
		if err := json.Unmarshal([]byte(resp[start:end+1]), &raw); err == nil {
			out := Verification{
				Passed:      raw.Passed,
				Confidence:  clamp01(raw.Confidence),
				Suggestions: raw.Suggestions,
			}
			for _, i := range raw.Issues {
				if i.Description == "" {
					continue
				}
				out.Issues = append(out.Issues, Issue{
					Severity:    ParseSeverity(i.Severity),
					Description: i.Description,
					Location:    i.Location,
				})
			}
			return out
		}
	}

	lower := strings.ToLower(resp)
	passed := strings.Contains(lower, "passed") || strings.Contains(lower, "success") || strings.Contains(lower, "complete")
	confidence := 0.3
	if passed {
		confidence = 0.7
	}
	return Verification{Passed: passed, Confidence: confidence}
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
