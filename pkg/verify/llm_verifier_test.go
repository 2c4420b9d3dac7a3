package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganesha/pkg/agent/llm"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Verification
		issues int
	}{
		{
			name:  "clean pass",
			input: `{"passed": true, "confidence": 0.95, "issues": [], "suggestions": []}`,
			want:  Verification{Passed: true, Confidence: 0.95, Suggestions: []string{}},
		},
		{
			name: "wrapped in prose with issues",
			input: "Here is my verdict:\n```json\n" +
				`{"passed": false, "confidence": 0.4, "issues": [{"severity": "error", "description": "Missing semicolon", "location": "line 42"}], "suggestions": ["Add semicolon at line 42"]}` +
				"\n```",
			want: Verification{
				Confidence:  0.4,
				Issues:      []Issue{{Severity: SeverityError, Description: "Missing semicolon", Location: "line 42"}},
				Suggestions: []string{"Add semicolon at line 42"},
			},
		},
		{
			name:  "unknown severity becomes warning",
			input: `{"passed": false, "confidence": 2, "issues": [{"severity": "meh", "description": "odd"}]}`,
			want:  Verification{Confidence: 1, Issues: []Issue{{Severity: SeverityWarning, Description: "odd"}}},
		},
		{
			name:  "keyword pass",
			input: "The task was completed successfully.",
			want:  Verification{Passed: true, Confidence: 0.7},
		},
		{
			name:  "keyword fail",
			input: "Nope, wrong file.",
			want:  Verification{Confidence: 0.3},
		},
		{
			name:  "broken json falls back",
			input: "{passed: yes} success",
			want:  Verification{Passed: true, Confidence: 0.7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.input))
		})
	}
}

func TestLLMVerifierVerify(t *testing.T) {
	mock := llm.NewMockClient("judge", `{"passed": true, "confidence": 0.9}`)
	v := NewLLMVerifier(mock)

	got, err := v.Verify(context.Background(), "greet", "wrote hello.txt", "ok", []IterationContext{{}, {}})
	require.NoError(t, err)
	assert.True(t, got.Passed)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)

	req := mock.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[1].Content, "ORIGINAL INTENT: greet")
	assert.Contains(t, req.Messages[1].Content, "PREVIOUS ATTEMPTS: 2")
	assert.InDelta(t, verifierTemperature, req.Temperature, 1e-6)
}

func TestLLMVerifierUnreachable(t *testing.T) {
	mock := llm.NewMockClient("judge", "unused")
	mock.FailOnCall(0, errors.New("connection refused"))
	mock.FailOnCall(1, errors.New("connection refused"))
	v := NewLLMVerifier(mock)

	got, err := v.Verify(context.Background(), "x", "a", "r", nil)
	require.NoError(t, err)
	assert.False(t, got.Passed)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, SeverityError, got.Issues[0].Severity)

	suggestions, err := v.SuggestImprovements(context.Background(), "x", got.Issues)
	require.NoError(t, err)
	assert.Equal(t, []string{"Review the issues and try again"}, suggestions)
}

func TestLLMVerifierSuggestions(t *testing.T) {
	mock := llm.NewMockClient("judge", "  add tests \n\n check imports")
	got, err := NewLLMVerifier(mock).SuggestImprovements(context.Background(), "x",
		[]Issue{{Severity: SeverityCritical, Description: "no tests"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"add tests", "check imports"}, got)
	assert.Contains(t, mock.Requests()[0].Messages[1].Content, "[Critical] no tests")
}

func TestLLMVerifierDrivesLoop(t *testing.T) {
	mock := llm.NewMockClient("judge",
		`{"passed": false, "confidence": 0.2, "issues": [{"severity": "error", "description": "empty"}], "suggestions": ["write something"]}`,
		`{"passed": true, "confidence": 0.92}`,
	)
	attempts := 0
	out, err := NewLoop(NewLLMVerifier(mock), DefaultConfig()).Run(context.Background(), "write notes",
		func(context.Context, string, []IterationContext) (string, string, error) {
			attempts++
			return "write", "notes", nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Iterations)
	assert.Equal(t, 2, attempts)
}
