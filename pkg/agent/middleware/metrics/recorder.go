// Package metrics records per-request LLM usage for sub-agent tasks.
package metrics

import (
	"context"
	"time"
)

// Labels identify which session and task a request belongs to.
type Labels struct {
	SessionID string
	TaskID    string
}

type labelsKey struct{}

// WithLabels attaches request labels to ctx.
func WithLabels(ctx context.Context, l Labels) context.Context {
	return context.WithValue(ctx, labelsKey{}, l)
}

// LabelsFrom returns the labels attached to ctx, or the zero value.
func LabelsFrom(ctx context.Context) Labels {
	if l, ok := ctx.Value(labelsKey{}).(Labels); ok {
		return l
	}
	return Labels{}
}

// Observation is one completed model request.
//
//nolint:govet // logical grouping
type Observation struct {
	Model            string
	Provider         string
	Labels           Labels
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Success          bool
	ErrorType        string
	Duration         time.Duration
}

// Recorder defines the interface for recording LLM operation metrics.
type Recorder interface {
	ObserveRequest(obs Observation)
}

// NoopRecorder discards all observations.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder.
func Nop() Recorder {
	return &NoopRecorder{}
}

// ObserveRequest does nothing.
func (n *NoopRecorder) ObserveRequest(Observation) {}

// multi fans an observation out to several recorders.
type multi []Recorder

// Multi returns a recorder that forwards to each of rs in order.
func Multi(rs ...Recorder) Recorder {
	return multi(rs)
}

func (m multi) ObserveRequest(obs Observation) {
	for _, r := range m {
		r.ObserveRequest(obs)
	}
}
