package orchestrator

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepStatus is the lifecycle of a plan step.
type StepStatus string

// Step statuses. Pending -> InProgress|Delegated -> Completed|Failed.
const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepDelegated  StepStatus = "delegated"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// PlanStep is one step of the session plan.
type PlanStep struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	// TaskID is set once the step is delegated to a sub-agent.
	TaskID uuid.UUID `json:"task_id"`
}

// CompletedStep records how a step ended.
type CompletedStep struct {
	StepID      string    `json:"step_id"`
	TaskID      uuid.UUID `json:"task_id"`
	Success     bool      `json:"success"`
	Summary     string    `json:"summary"`
	CompletedAt time.Time `json:"completed_at"`
}

// Session is the orchestrator's plan for one goal.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	Goal         string          `json:"goal"`
	StartedAt    time.Time       `json:"started_at"`
	Steps        []PlanStep      `json:"steps"`
	Completed    []CompletedStep `json:"completed"`
	PendingTasks []uuid.UUID     `json:"pending_tasks"`
	Decisions    []string        `json:"decisions"`
}

func newSession() *Session {
	return &Session{ID: uuid.New(), StartedAt: time.Now()}
}

func (s *Session) clone() Session {
	return Session{
		ID:           s.ID,
		Goal:         s.Goal,
		StartedAt:    s.StartedAt,
		Steps:        slices.Clone(s.Steps),
		Completed:    slices.Clone(s.Completed),
		PendingTasks: slices.Clone(s.PendingTasks),
		Decisions:    slices.Clone(s.Decisions),
	}
}

func (s *Session) step(id string) (*PlanStep, error) {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStep, id)
}

// Summary renders the session for a human or a higher-tier agent.
func (s *Session) Summary() string {
	done := 0
	for i := range s.Steps {
		if s.Steps[i].Status == StepCompleted {
			done++
		}
	}
	decisions := ""
	if len(s.Decisions) > 0 {
		decisions = "- " + strings.Join(s.Decisions, "\n- ")
	}
	return fmt.Sprintf("Session: %s\nGoal: %s\nCompleted: %d/%d\nPending Mini-Me: %d\n\nDecisions:\n%s",
		s.ID, s.Goal, done, len(s.Steps), len(s.PendingTasks), decisions)
}
