package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganesha/pkg/config"
)

type recordingExec struct {
	prompts   []string
	histories [][]IterationContext
	err       error
}

func (r *recordingExec) run(_ context.Context, prompt string, history []IterationContext) (string, string, error) {
	r.prompts = append(r.prompts, prompt)
	r.histories = append(r.histories, history)
	if r.err != nil {
		return "", "", r.err
	}
	return "action", "result " + string(rune('0'+len(r.prompts))), nil
}

func cfg(maxIter int) Config {
	c := DefaultConfig()
	c.MaxIterations = maxIter
	return c
}

func TestAlwaysFailingExhaustsBudget(t *testing.T) {
	exec := &recordingExec{}
	loop := NewLoop(Always(Verification{Passed: false, Confidence: 0}), cfg(4))

	out, err := loop.Run(context.Background(), "make tests pass", exec.run)
	require.Nil(t, out)

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Len(t, maxErr.History, 4)
	assert.Len(t, exec.prompts, 4)
	for i, h := range maxErr.History {
		assert.Equal(t, i, h.Iteration)
	}
	assert.Equal(t, "max iterations (4) reached", err.Error())
	assert.Len(t, HistoryOf(err), 4)
}

func TestCriticalIssueAbortsImmediately(t *testing.T) {
	exec := &recordingExec{}
	v := Verification{Issues: []Issue{
		{Severity: SeverityWarning, Description: "style"},
		{Severity: SeverityCritical, Description: "deleted production data"},
	}}
	loop := NewLoop(Always(v), cfg(5))

	_, err := loop.Run(context.Background(), "clean up", exec.run)

	var critErr *CriticalIssueError
	require.ErrorAs(t, err, &critErr)
	assert.Len(t, critErr.History, 1)
	require.Len(t, critErr.Issues, 1)
	assert.Equal(t, "deleted production data", critErr.Issues[0].Description)
	assert.Len(t, exec.prompts, 1)
	assert.Contains(t, err.Error(), "deleted production data")
}

func TestConfidentPassSucceedsFirstTry(t *testing.T) {
	exec := &recordingExec{}
	loop := NewLoop(Always(Verification{Passed: true, Confidence: 0.95}), cfg(5))

	out, err := loop.Run(context.Background(), "say hi", exec.run)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Iterations)
	assert.Equal(t, "result 1", out.FinalResult)
	assert.Len(t, out.History, 1)
	assert.Equal(t, []string{"say hi"}, exec.prompts, "first prompt is the bare intent")
}

func TestPassBelowThresholdRetries(t *testing.T) {
	loop := NewLoop(Always(Verification{Passed: true, Confidence: 0.5}), cfg(2))
	_, err := loop.Run(context.Background(), "x", (&recordingExec{}).run)
	var maxErr *MaxIterationsError
	assert.ErrorAs(t, err, &maxErr)
}

func TestRetryPromptCarriesFeedback(t *testing.T) {
	calls := 0
	verifier := NewRuleVerifier(func(_, _, result string, history []IterationContext) Verification {
		calls++
		if calls == 1 {
			assert.Empty(t, history)
			return Verification{
				Issues:      []Issue{{Severity: SeverityError, Description: "missing newline"}},
				Suggestions: []string{"append a newline"},
			}
		}
		assert.Len(t, history, 1)
		return Verification{Passed: true, Confidence: 0.9}
	})
	exec := &recordingExec{}

	out, err := NewLoop(verifier, cfg(5)).Run(context.Background(), "write file", exec.run)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Iterations)

	require.Len(t, exec.prompts, 2)
	want := "write file\n\nPREVIOUS ATTEMPT FAILED. Issues:\n- Error: missing newline\n\nSuggestions:\n- append a newline\n\nTry again with these improvements."
	assert.Equal(t, want, exec.prompts[1])
	assert.Len(t, exec.histories[1], 1, "history is shared with the executor")
}

func TestSuggestionsFilledFromVerifier(t *testing.T) {
	v := Verification{Issues: []Issue{{Severity: SeverityError, Description: "typo"}}}
	exec := &recordingExec{}
	_, err := NewLoop(Always(v), cfg(2)).Run(context.Background(), "x", exec.run)
	require.Error(t, err)

	history := HistoryOf(err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{"Fix: typo"}, history[0].Verification.Suggestions)
	assert.Contains(t, exec.prompts[1], "- Fix: typo")
}

func TestIncludeHistoryDisabled(t *testing.T) {
	c := cfg(2)
	c.IncludeHistory = false
	exec := &recordingExec{}
	_, _ = NewLoop(Always(Verification{}), c).Run(context.Background(), "x", exec.run)
	for _, h := range exec.histories {
		assert.Nil(t, h)
	}
}

func TestExecutionErrorStopsLoop(t *testing.T) {
	boom := errors.New("provider down")
	exec := &recordingExec{err: boom}
	_, err := NewLoop(Always(Verification{}), cfg(5)).Run(context.Background(), "x", exec.run)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, execErr.Iteration)
	assert.Len(t, exec.prompts, 1)
}

func TestTimeoutCheckedBetweenIterations(t *testing.T) {
	clock := time.Unix(0, 0)
	loop := NewLoop(Always(Verification{}), Config{MaxIterations: 10, ConfidenceThreshold: 0.85, Timeout: time.Minute})
	loop.now = func() time.Time { return clock }

	iterations := 0
	_, err := loop.Run(context.Background(), "x", func(context.Context, string, []IterationContext) (string, string, error) {
		iterations++
		clock = clock.Add(40 * time.Second)
		return "a", "r", nil
	})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 2, iterations, "the second attempt runs to completion past the deadline")
	assert.Len(t, timeoutErr.History, 2)
	assert.True(t, strings.Contains(err.Error(), "timed out"))
}

func TestFromConfig(t *testing.T) {
	got := FromConfig(config.VerifyConfig{MaxIterations: 3})
	assert.Equal(t, 3, got.MaxIterations)
	assert.Equal(t, config.DefaultConfidenceThreshold, got.ConfidenceThreshold)
	assert.Equal(t, config.DefaultVerifyTimeout, got.Timeout)
	assert.True(t, got.IncludeHistory)
}
