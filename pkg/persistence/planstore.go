package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"ganesha/pkg/minime"
	"ganesha/pkg/orchestrator"
)

// PlanStore adapts a Store to orchestrator.PlanStore.
type PlanStore struct {
	store *Store
}

var _ orchestrator.PlanStore = (*PlanStore)(nil)

// NewPlanStore wraps store.
func NewPlanStore(store *Store) *PlanStore {
	return &PlanStore{store: store}
}

// SaveSession implements orchestrator.PlanStore.
func (p *PlanStore) SaveSession(ctx context.Context, s orchestrator.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	rec := SessionRecord{
		ID:        s.ID.String(),
		Goal:      s.Goal,
		StartedAt: s.StartedAt,
		Decisions: s.Decisions,
		Payload:   payload,
	}
	for _, st := range s.Steps {
		step := StepRecord{ID: st.ID, Description: st.Description, Status: string(st.Status)}
		if st.TaskID != uuid.Nil {
			step.TaskID = st.TaskID.String()
		}
		rec.Steps = append(rec.Steps, step)
	}
	return p.store.SaveSession(ctx, rec)
}

// SaveResult implements orchestrator.PlanStore.
func (p *PlanStore) SaveResult(ctx context.Context, sessionID uuid.UUID, r minime.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return p.store.SaveResult(ctx, sessionID.String(), ResultRecord{
		TaskID:     r.TaskID.String(),
		Success:    r.Success,
		Outcome:    r.Outcome.String(),
		Summary:    r.Summary,
		Provider:   r.Provider,
		Model:      r.ModelUsed,
		FellBack:   r.FellBack,
		TokensUsed: r.TokensUsed,
		Cost:       r.Cost,
		Turns:      r.Turns,
		Duration:   r.Duration,
		Payload:    payload,
	})
}

// LoadSession restores a session snapshot written by SaveSession.
func (p *PlanStore) LoadSession(ctx context.Context, id uuid.UUID) (orchestrator.Session, error) {
	rec, err := p.store.LoadSession(ctx, id.String())
	if err != nil {
		return orchestrator.Session{}, err
	}
	var s orchestrator.Session
	if err := json.Unmarshal(rec.Payload, &s); err != nil {
		return orchestrator.Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return s, nil
}

// LoadResults restores every result saved for a session.
func (p *PlanStore) LoadResults(ctx context.Context, sessionID uuid.UUID) ([]minime.Result, error) {
	recs, err := p.store.ListResults(ctx, sessionID.String())
	if err != nil {
		return nil, err
	}
	out := make([]minime.Result, 0, len(recs))
	for _, rec := range recs {
		var r minime.Result
		if err := json.Unmarshal(rec.Payload, &r); err != nil {
			return nil, fmt.Errorf("failed to decode result %s: %w", rec.TaskID, err)
		}
		out = append(out, r)
	}
	return out, nil
}
