// Package verify wraps any action in a propose, execute, verify loop that
// retries with the verifier's feedback until the result is trusted.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Severity grades a verification issue.
type Severity int

// Issue severities. Critical aborts the loop.
const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityError:
		return "Error"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity maps a verdict string to a severity. Unknown values are warnings.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo
	case "error":
		return SeverityError
	case "critical":
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Issue is one problem a verifier found.
type Issue struct {
	Severity    Severity
	Description string
	Location    string
}

// Verification is a verifier's judgment of one attempt.
type Verification struct {
	Passed      bool
	Confidence  float64
	Issues      []Issue
	Suggestions []string
}

// Critical returns the critical issues, if any.
func (v Verification) Critical() []Issue {
	var out []Issue
	for _, i := range v.Issues {
		if i.Severity == SeverityCritical {
			out = append(out, i)
		}
	}
	return out
}

// IterationContext records one attempt.
type IterationContext struct {
	Iteration    int
	Action       string
	Result       string
	Verification Verification
	Duration     time.Duration
}

// Verifier judges whether a result satisfies an intent.
type Verifier interface {
	Verify(ctx context.Context, intent, action, result string, history []IterationContext) (Verification, error)
	SuggestImprovements(ctx context.Context, intent string, issues []Issue) ([]string, error)
}

// ExecuteFunc performs one attempt for prompt and reports what it did and what came of it.
type ExecuteFunc func(ctx context.Context, prompt string, history []IterationContext) (action, result string, err error)

// Success is the outcome of a loop that reached the confidence threshold.
type Success struct {
	Iterations    int
	FinalResult   string
	TotalDuration time.Duration
	History       []IterationContext
}
