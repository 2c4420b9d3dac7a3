package metrics

import (
	"sync"
	"time"
)

// SessionMetrics aggregates successful requests for one session.
//
//nolint:govet
type SessionMetrics struct {
	SessionID        string    `json:"session_id"`
	PromptTokens     int64     `json:"prompt_tokens"`
	CompletionTokens int64     `json:"completion_tokens"`
	TotalTokens      int64     `json:"total_tokens"`
	RequestCount     int64     `json:"request_count"`
	FailedCount      int64     `json:"failed_count"`
	TotalCost        float64   `json:"total_cost_usd"`
	LastUpdated      time.Time `json:"last_updated"`
}

// InternalRecorder aggregates usage in memory, keyed by session id.
type InternalRecorder struct {
	sessions map[string]*SessionMetrics
	mu       sync.RWMutex
}

// NewInternalRecorder creates an empty in-memory recorder.
func NewInternalRecorder() *InternalRecorder {
	return &InternalRecorder{sessions: make(map[string]*SessionMetrics)}
}

// ObserveRequest folds obs into its session's totals. Requests without a
// session label are ignored.
func (r *InternalRecorder) ObserveRequest(obs Observation) {
	if obs.Labels.SessionID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[obs.Labels.SessionID]
	if !ok {
		s = &SessionMetrics{SessionID: obs.Labels.SessionID}
		r.sessions[obs.Labels.SessionID] = s
	}
	s.RequestCount++
	s.LastUpdated = time.Now()
	if !obs.Success {
		s.FailedCount++
		return
	}
	s.PromptTokens += int64(obs.PromptTokens)
	s.CompletionTokens += int64(obs.CompletionTokens)
	s.TotalTokens = s.PromptTokens + s.CompletionTokens
	s.TotalCost += obs.Cost
}

// Session returns a copy of the totals for sessionID.
func (r *InternalRecorder) Session(sessionID string) (SessionMetrics, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return SessionMetrics{}, false
	}
	return *s, true
}

// Reset clears all totals.
func (r *InternalRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = make(map[string]*SessionMetrics)
}
