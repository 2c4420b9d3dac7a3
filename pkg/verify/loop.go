package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ganesha/pkg/config"
	"ganesha/pkg/logx"
)

// Config bounds a verification loop.
type Config struct {
	MaxIterations       int
	ConfidenceThreshold float64
	Timeout             time.Duration
	// IncludeHistory passes prior attempts to the execute function.
	IncludeHistory bool
}

// DefaultConfig returns the stock budgets.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       config.DefaultMaxIterations,
		ConfidenceThreshold: config.DefaultConfidenceThreshold,
		Timeout:             config.DefaultVerifyTimeout,
		IncludeHistory:      true,
	}
}

// FromConfig builds a loop config from the file config, keeping defaults for unset fields.
func FromConfig(c config.VerifyConfig) Config {
	out := DefaultConfig()
	if c.MaxIterations > 0 {
		out.MaxIterations = c.MaxIterations
	}
	if c.ConfidenceThreshold > 0 {
		out.ConfidenceThreshold = c.ConfidenceThreshold
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	return out
}

// Loop retries an action until its verifier trusts the result.
type Loop struct {
	cfg      Config
	verifier Verifier
	logger   *logx.Logger
	now      func() time.Time
}

// NewLoop creates a loop around verifier.
func NewLoop(verifier Verifier, cfg Config) *Loop {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = config.DefaultMaxIterations
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultVerifyTimeout
	}
	return &Loop{cfg: cfg, verifier: verifier, logger: logx.NewLogger("verify"), now: time.Now}
}

// Run executes, verifies and retries. The timeout is only checked between
// iterations; a running attempt is never interrupted by it.
func (l *Loop) Run(ctx context.Context, intent string, execute ExecuteFunc) (*Success, error) {
	start := l.now()
	var history []IterationContext

	for i := 0; i < l.cfg.MaxIterations; i++ {
		if l.now().Sub(start) > l.cfg.Timeout {
			return nil, &TimeoutError{Timeout: l.cfg.Timeout, History: history}
		}
		if err := ctx.Err(); err != nil {
			return nil, &ExecutionError{Iteration: i, Err: err, History: history}
		}

		prompt := buildPrompt(intent, history)
		var execHistory []IterationContext
		if l.cfg.IncludeHistory {
			execHistory = cloneHistory(history)
		}

		iterStart := l.now()
		action, result, err := execute(ctx, prompt, execHistory)
		if err != nil {
			l.logger.Warn("🔁 iteration %d execution failed: %v", i+1, err)
			return nil, &ExecutionError{Iteration: i, Err: err, History: history}
		}

		v, err := l.verifier.Verify(ctx, intent, action, result, cloneHistory(history))
		if err != nil {
			return nil, &VerifierError{Iteration: i, Err: err, History: history}
		}
		if !v.Passed && len(v.Suggestions) == 0 && len(v.Issues) > 0 {
			if more, serr := l.verifier.SuggestImprovements(ctx, intent, v.Issues); serr == nil {
				v.Suggestions = more
			}
		}

		history = append(history, IterationContext{
			Iteration:    i,
			Action:       action,
			Result:       result,
			Verification: v,
			Duration:     l.now().Sub(iterStart),
		})

		if v.Passed && v.Confidence >= l.cfg.ConfidenceThreshold {
			l.logger.Info("✅ verified after %d iterations (confidence %.2f)", i+1, v.Confidence)
			return &Success{
				Iterations:    i + 1,
				FinalResult:   result,
				TotalDuration: l.now().Sub(start),
				History:       history,
			}, nil
		}

		if critical := v.Critical(); len(critical) > 0 {
			l.logger.Error("🛑 critical issue on iteration %d: %s", i+1, critical[0].Description)
			return nil, &CriticalIssueError{Issues: critical, History: history}
		}

		l.logger.Info("🔁 iteration %d not accepted (passed=%t confidence=%.2f, %d issues)", i+1, v.Passed, v.Confidence, len(v.Issues))
	}

	return nil, &MaxIterationsError{History: history}
}

// HistoryOf extracts the attempt history from any loop error.
func HistoryOf(err error) []IterationContext {
	var (
		te *TimeoutError
		ee *ExecutionError
		ce *CriticalIssueError
		me *MaxIterationsError
		ve *VerifierError
	)
	switch {
	case errors.As(err, &te):
		return te.History
	case errors.As(err, &ee):
		return ee.History
	case errors.As(err, &ce):
		return ce.History
	case errors.As(err, &me):
		return me.History
	case errors.As(err, &ve):
		return ve.History
	}
	return nil
}

func buildPrompt(intent string, history []IterationContext) string {
	if len(history) == 0 {
		return intent
	}
	last := history[len(history)-1].Verification

	issues := make([]string, len(last.Issues))
	for i, issue := range last.Issues {
		issues[i] = fmt.Sprintf("- %s: %s", issue.Severity, issue.Description)
	}
	suggestions := ""
	if len(last.Suggestions) > 0 {
		suggestions = "- " + strings.Join(last.Suggestions, "\n- ")
	}
	return fmt.Sprintf("%s\n\nPREVIOUS ATTEMPT FAILED. Issues:\n%s\n\nSuggestions:\n%s\n\nTry again with these improvements.",
		intent, strings.Join(issues, "\n"), suggestions)
}

func cloneHistory(h []IterationContext) []IterationContext {
	if h == nil {
		return nil
	}
	out := make([]IterationContext, len(h))
	copy(out, h)
	return out
}
