package orchestrator

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"ganesha/pkg/minime"
)

// UpdatePlan replaces the goal and steps. Steps without a status start Pending.
func (o *Orchestrator) UpdatePlan(goal string, steps []PlanStep) error {
	seen := make(map[string]bool, len(steps))
	for _, st := range steps {
		if st.ID == "" {
			return fmt.Errorf("plan step without id: %q", st.Description)
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate plan step id %q", st.ID)
		}
		seen[st.ID] = true
	}

	return o.plan.mutate(func(s *Session) (bool, error) {
		s.Goal = goal
		s.Steps = slices.Clone(steps)
		for i := range s.Steps {
			if s.Steps[i].Status == "" {
				s.Steps[i].Status = StepPending
			}
		}
		return true, nil
	})
}

// StartStep marks a step the caller is handling itself as in progress.
func (o *Orchestrator) StartStep(stepID string) error {
	return o.plan.mutate(func(s *Session) (bool, error) {
		st, err := s.step(stepID)
		if err != nil {
			return false, err
		}
		if st.Status != StepPending {
			return false, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, stepID, st.Status)
		}
		st.Status = StepInProgress
		return true, nil
	})
}

// DelegateStep attaches a spawned task to a step, moving it to Delegated.
func (o *Orchestrator) DelegateStep(stepID string, taskID uuid.UUID) error {
	if _, ok := o.State(taskID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	return o.plan.mutate(func(s *Session) (bool, error) {
		st, err := s.step(stepID)
		if err != nil {
			return false, err
		}
		if st.Status != StepPending && st.Status != StepInProgress {
			return false, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, stepID, st.Status)
		}
		st.Status = StepDelegated
		st.TaskID = taskID
		return true, nil
	})
}

// CompleteStep correlates a result with its step, moving it to Completed or
// Failed and appending a CompletedStep record.
func (o *Orchestrator) CompleteStep(stepID string, r minime.Result) error {
	return o.plan.mutate(func(s *Session) (bool, error) {
		st, err := s.step(stepID)
		if err != nil {
			return false, err
		}
		switch st.Status {
		case StepDelegated:
			if st.TaskID != r.TaskID {
				return false, fmt.Errorf("%w: %s is delegated to %s, not %s", ErrInvalidTransition, stepID, st.TaskID, r.TaskID)
			}
		case StepInProgress:
		default:
			return false, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, stepID, st.Status)
		}

		st.Status = StepFailed
		if r.Success {
			st.Status = StepCompleted
		}
		s.Completed = append(s.Completed, CompletedStep{
			StepID:      stepID,
			TaskID:      r.TaskID,
			Success:     r.Success,
			Summary:     r.Summary,
			CompletedAt: time.Now(),
		})
		return true, nil
	})
}

// AddDecision appends to the session's decision log.
func (o *Orchestrator) AddDecision(text string) error {
	return o.plan.mutate(func(s *Session) (bool, error) {
		s.Decisions = append(s.Decisions, text)
		return true, nil
	})
}

// Summary renders the session plan.
func (o *Orchestrator) Summary() string {
	var out string
	o.plan.read(func(s *Session) { out = s.Summary() })
	return out
}

// Snapshot returns a deep copy of the session.
func (o *Orchestrator) Snapshot() Session {
	var out Session
	o.plan.read(func(s *Session) { out = s.clone() })
	return out
}
