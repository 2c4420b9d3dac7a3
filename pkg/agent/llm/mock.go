package llm

import (
	"context"
	"sync"
)

// MockClient replays scripted responses. Once the script runs out the last
// response repeats. Safe for concurrent use.
type MockClient struct {
	model     string
	responses []string
	errs      map[int]error
	hook      func(ctx context.Context, req CompletionRequest) (string, error)

	mu       sync.Mutex
	calls    int
	requests []CompletionRequest
}

// NewMockClient creates a mock that returns the given responses in order.
func NewMockClient(model string, responses ...string) *MockClient {
	return &MockClient{model: model, responses: responses, errs: map[int]error{}}
}

// NewMockClientFunc creates a mock whose responses come from fn.
func NewMockClientFunc(model string, fn func(ctx context.Context, req CompletionRequest) (string, error)) *MockClient {
	return &MockClient{model: model, hook: fn, errs: map[int]error{}}
}

// FailOnCall makes the n-th call (0-based) return err.
func (m *MockClient) FailOnCall(n int, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[n] = err
	return m
}

// Complete returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	n := m.calls
	m.calls++
	m.requests = append(m.requests, req)
	err := m.errs[n]
	hook := m.hook
	var content string
	if len(m.responses) > 0 {
		idx := n
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		}
		content = m.responses[idx]
	}
	m.mu.Unlock()

	if err != nil {
		return CompletionResponse{}, err
	}
	if hook != nil {
		out, hookErr := hook(ctx, req)
		if hookErr != nil {
			return CompletionResponse{}, hookErr
		}
		content = out
	}
	return CompletionResponse{Content: content, StopReason: "end_turn"}, nil
}

// GetModelName returns the configured model name.
func (m *MockClient) GetModelName() string {
	return m.model
}

// Calls returns how many times Complete was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request received.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
