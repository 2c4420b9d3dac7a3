package verify

import (
	"fmt"
	"strings"
	"time"
)

// TimeoutError is returned when the wall-clock budget runs out between iterations.
type TimeoutError struct {
	Timeout time.Duration
	History []IterationContext
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("verification loop timed out after %s (%d iterations)", e.Timeout, len(e.History))
}

// ExecutionError wraps a failure of the caller's execute function.
type ExecutionError struct {
	Iteration int
	Err       error
	History   []IterationContext
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CriticalIssueError aborts the loop on a critical issue.
type CriticalIssueError struct {
	Issues  []Issue
	History []IterationContext
}

func (e *CriticalIssueError) Error() string {
	descs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		descs[i] = issue.Description
	}
	return "critical issue: " + strings.Join(descs, "; ")
}

// MaxIterationsError carries every attempt made before the budget ran out.
type MaxIterationsError struct {
	History []IterationContext
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("max iterations (%d) reached", len(e.History))
}

// VerifierError wraps a failure of the verifier itself.
type VerifierError struct {
	Iteration int
	Err       error
	History   []IterationContext
}

func (e *VerifierError) Error() string {
	return fmt.Sprintf("verifier failed on iteration %d: %v", e.Iteration, e.Err)
}

func (e *VerifierError) Unwrap() error { return e.Err }
