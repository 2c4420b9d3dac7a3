// Package minime runs disposable sub-agents ("Mini-Me") against a forked,
// minimal context and reports a bounded summary back to the orchestrator.
package minime

import (
	"time"

	"github.com/google/uuid"

	"ganesha/pkg/config"
)

// DefaultTaskTimeout bounds a task whose Timeout is zero.
const DefaultTaskTimeout = config.DefaultTaskTimeout

// Task is one unit of delegated work. It is immutable once spawned.
type Task struct {
	ID              uuid.UUID
	Description     string
	Context         ForkedContext
	RequiredTier    config.ModelTier
	AllowEscalation bool
	Timeout         time.Duration
}

// NewTask creates a task with a fresh id and the default timeout.
func NewTask(description string, fc ForkedContext, tier config.ModelTier) Task {
	return Task{
		ID:           uuid.New(),
		Description:  description,
		Context:      fc,
		RequiredTier: tier,
		Timeout:      DefaultTaskTimeout,
	}
}

// Outcome says how a task's loop ended.
type Outcome int

const (
	// OutcomeCompleted means the model emitted the completion sentinel.
	OutcomeCompleted Outcome = iota
	// OutcomeEscalated means the model declared itself stuck and escalation was allowed.
	OutcomeEscalated
	// OutcomeExhausted means the turn budget ran out; the summary is best-effort.
	OutcomeExhausted
	// OutcomeFailed means a provider error or timeout ended the loop.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeEscalated:
		return "escalated"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is produced exactly once per task.
//
//nolint:govet // logical grouping
type Result struct {
	TaskID        uuid.UUID
	Success       bool
	Outcome       Outcome
	Summary       string
	Findings      []string
	FilesModified []string
	Errors        []string
	Duration      time.Duration
	ModelUsed     string
	Provider      string
	// FellBack is set when the required tier had no usable provider and the
	// default provider ran the task instead.
	FellBack   bool
	TokensUsed int
	Cost       float64
	Turns      int
	// CheckpointID names the checkpoint session covering this task's writes,
	// for Checkpointer.Rollback. Empty when checkpointing is off.
	CheckpointID string
}

// Failed builds a failed result for a task that could not run at all.
func Failed(taskID uuid.UUID, err error) Result {
	return Result{TaskID: taskID, Outcome: OutcomeFailed, Errors: []string{err.Error()}}
}
