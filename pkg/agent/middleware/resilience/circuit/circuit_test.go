package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/agent/llmerrors"
)

func TestBreakerTransitions(t *testing.T) {
	now := time.Unix(1000, 0)
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 2, Timeout: time.Minute})
	b.now = func() time.Time { return now }

	assert.True(t, b.Allow())
	b.Record(false)
	assert.Equal(t, Closed, b.State())
	b.Record(false)
	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())

	now = now.Add(time.Minute)
	assert.True(t, b.Allow())
	assert.Equal(t, HalfOpen, b.State())

	b.Record(false)
	assert.Equal(t, Open, b.State(), "failure while probing reopens")

	now = now.Add(time.Minute)
	require.True(t, b.Allow())
	b.Record(true)
	assert.Equal(t, HalfOpen, b.State())
	b.Record(true)
	assert.Equal(t, Closed, b.State())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New(Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})
	b.Record(false)
	b.Record(true)
	b.Record(false)
	assert.Equal(t, Closed, b.State())

	b.Record(false)
	assert.Equal(t, Open, b.State())
	b.Reset()
	assert.Equal(t, Closed, b.State())
}

func TestMiddleware(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour})
	boom := llmerrors.NewError(llmerrors.ErrorTypeTransient, "boom")
	mock := llm.NewMockClient("m", "ok")
	mock.FailOnCall(0, boom)
	client := llm.Chain(mock, Middleware("local", b))
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")})

	_, err := client.Complete(context.Background(), req)
	require.ErrorIs(t, err, boom)

	_, err = client.Complete(context.Background(), req)
	var circuitErr *Error
	require.True(t, errors.As(err, &circuitErr))
	assert.Equal(t, "local", circuitErr.Provider)
	assert.Equal(t, Open, circuitErr.State)
	assert.Equal(t, 1, mock.Calls(), "open circuit must not reach the provider")
}

func TestMiddlewareIgnoresBadPrompt(t *testing.T) {
	b := New(Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour})
	mock := llm.NewMockClient("m", "ok")
	mock.FailOnCall(0, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "bad"))
	client := llm.Chain(mock, Middleware("local", b))

	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, "m", client.GetModelName())
}
