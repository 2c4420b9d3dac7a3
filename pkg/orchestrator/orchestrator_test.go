package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/config"
	"ganesha/pkg/minime"
)

func localProvider(name string, tier config.ModelTier, maxConcurrent int) config.ProviderConfig {
	return config.ProviderConfig{
		Name:          name,
		Backend:       config.BackendOpenAI,
		Endpoint:      "http://localhost:1234",
		Model:         name + "-model",
		Tier:          tier,
		MaxConcurrent: maxConcurrent,
	}
}

func newRegistry(t *testing.T, providers ...config.ProviderConfig) *config.Registry {
	t.Helper()
	r, err := config.NewRegistry(providers)
	require.NoError(t, err)
	return r
}

func newTask(t *testing.T, description string, tier config.ModelTier) minime.Task {
	t.Helper()
	fc, err := minime.Fork("test goal", nil)
	require.NoError(t, err)
	return minime.NewTask(description, fc.WithWorkDir(t.TempDir()), tier)
}

func staticFactory(client llm.LLMClient) ClientFactory {
	return ClientFactoryFunc(func(config.ProviderConfig) (llm.LLMClient, error) { return client, nil })
}

func closeOrch(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Close(ctx))
}

func TestPeakConcurrencyBoundedByProvider(t *testing.T) {
	const limit = 2
	const tasks = 6
	// A task counts as in flight from its first model call until its last, so
	// a permit released between turns would push the peak over the limit.
	var inFlight, peak atomic.Int32
	client := llm.NewMockClientFunc("m", func(_ context.Context, req llm.CompletionRequest) (string, error) {
		time.Sleep(10 * time.Millisecond)
		if len(req.Messages) == 2 {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			return "Looking first.\n```json\n{\"tool\": \"read_file\", \"args\": {\"path\": \"notes.txt\"}}\n```", nil
		}
		inFlight.Add(-1)
		return "TASK_COMPLETE done", nil
	})

	o, err := New(newRegistry(t, localProvider("local", config.TierFast, limit)), staticFactory(client))
	require.NoError(t, err)
	defer closeOrch(t, o)

	var ids []uuid.UUID
	for i := 0; i < tasks; i++ {
		ids = append(ids, o.Spawn(context.Background(), newTask(t, "work", config.TierFast)))
	}
	for _, id := range ids {
		res, err := o.WaitFor(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, id, res.TaskID)
		assert.Equal(t, 2, res.Turns)
	}

	assert.Equal(t, 2*tasks, client.Calls())
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
	assert.Zero(t, inFlight.Load())
	assert.Empty(t, o.Active())
}

func TestWaitForFilesOtherResults(t *testing.T) {
	releaseA := make(chan struct{})
	client := llm.NewMockClientFunc("m", func(ctx context.Context, req llm.CompletionRequest) (string, error) {
		if strings.HasPrefix(req.Messages[1].Content, "TASK: A") {
			select {
			case <-releaseA:
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return "TASK_COMPLETE A done", nil
		}
		return "TASK_COMPLETE B done", nil
	})

	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 2)), staticFactory(client))
	require.NoError(t, err)
	defer closeOrch(t, o)

	idA := o.Spawn(context.Background(), newTask(t, "A", config.TierFast))
	idB := o.Spawn(context.Background(), newTask(t, "B", config.TierFast))

	type waitResult struct {
		res minime.Result
		err error
	}
	gotA := make(chan waitResult, 1)
	go func() {
		res, err := o.WaitFor(context.Background(), idA)
		gotA <- waitResult{res, err}
	}()

	require.Eventually(t, func() bool {
		_, ok := o.Result(idB)
		return ok
	}, 2*time.Second, 5*time.Millisecond, "B must be filed while waiting for A")

	state, ok := o.State(idB)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, state)
	assert.Equal(t, []uuid.UUID{idA}, o.Active())

	close(releaseA)
	wr := <-gotA
	require.NoError(t, wr.err)
	assert.Equal(t, idA, wr.res.TaskID)
	assert.Equal(t, "A done", wr.res.Summary)

	resB, err := o.WaitFor(context.Background(), idB)
	require.NoError(t, err)
	assert.Equal(t, "B done", resB.Summary)
	assert.Empty(t, o.Snapshot().PendingTasks)
}

func TestWaitForUnknownTask(t *testing.T) {
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 1)), staticFactory(llm.NewMockClient("m", "TASK_COMPLETE")))
	require.NoError(t, err)
	defer closeOrch(t, o)

	_, err = o.WaitFor(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestWaitForContextCanceled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client := llm.NewMockClientFunc("m", func(context.Context, llm.CompletionRequest) (string, error) {
		<-block
		return "TASK_COMPLETE", nil
	})
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 1)), staticFactory(client))
	require.NoError(t, err)

	id := o.Spawn(context.Background(), newTask(t, "slow", config.TierFast))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = o.WaitFor(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFallbackIsObservable(t *testing.T) {
	cloud := config.ProviderConfig{
		Name: "opus", Backend: config.BackendAnthropic, Model: "claude-opus",
		Tier: config.TierPremium, APIKeyEnv: "GANESHA_TEST_NO_SUCH_KEY", MaxConcurrent: 1,
	}
	var usedProvider string
	factory := ClientFactoryFunc(func(p config.ProviderConfig) (llm.LLMClient, error) {
		usedProvider = p.Name
		return llm.NewMockClient("m", "TASK_COMPLETE ok"), nil
	})

	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 1), cloud), factory)
	require.NoError(t, err)
	defer closeOrch(t, o)

	id := o.Spawn(context.Background(), newTask(t, "hard", config.TierPremium))
	res, err := o.WaitFor(context.Background(), id)
	require.NoError(t, err)

	assert.True(t, res.FellBack)
	assert.Equal(t, "local", res.Provider)
	assert.Equal(t, "local", usedProvider)
	decisions := o.Snapshot().Decisions
	require.Len(t, decisions, 1)
	assert.Contains(t, decisions[0], "fell back to local")
}

func TestMatchingTierDoesNotFallBack(t *testing.T) {
	o, err := New(newRegistry(t, localProvider("fast", config.TierFast, 1), localProvider("capable", config.TierCapable, 1)),
		staticFactory(llm.NewMockClient("m", "TASK_COMPLETE ok")))
	require.NoError(t, err)
	defer closeOrch(t, o)

	res, err := o.WaitFor(context.Background(), o.Spawn(context.Background(), newTask(t, "x", config.TierCapable)))
	require.NoError(t, err)
	assert.False(t, res.FellBack)
	assert.Equal(t, "capable", res.Provider)
	assert.Empty(t, o.Snapshot().Decisions)
}

func TestFactoryErrorIsFailedResult(t *testing.T) {
	factory := ClientFactoryFunc(func(config.ProviderConfig) (llm.LLMClient, error) {
		return nil, errors.New("no credential")
	})
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 1)), factory)
	require.NoError(t, err)
	defer closeOrch(t, o)

	id := o.Spawn(context.Background(), newTask(t, "x", config.TierFast))
	res, err := o.WaitFor(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, minime.OutcomeFailed, res.Outcome)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "no credential")

	state, _ := o.State(id)
	assert.Equal(t, TaskFailed, state)
}

func TestSpawnAfterCloseStartsNothing(t *testing.T) {
	var created atomic.Int32
	factory := ClientFactoryFunc(func(config.ProviderConfig) (llm.LLMClient, error) {
		created.Add(1)
		return llm.NewMockClient("m", "TASK_COMPLETE ok"), nil
	})
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 1)), factory)
	require.NoError(t, err)
	closeOrch(t, o)

	id := o.Spawn(context.Background(), newTask(t, "late", config.TierFast))
	res, err := o.WaitFor(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, res.TaskID)
	assert.False(t, res.Success)
	assert.Equal(t, minime.OutcomeFailed, res.Outcome)
	assert.Equal(t, []string{ErrClosed.Error()}, res.Errors)

	state, ok := o.State(id)
	require.True(t, ok)
	assert.Equal(t, TaskFailed, state)
	assert.Empty(t, o.Active())
	assert.Empty(t, o.CollectResults(), "no goroutine publishes a completion")
	assert.Zero(t, created.Load())
	closeOrch(t, o)
}

func TestCollectResults(t *testing.T) {
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 3)), staticFactory(llm.NewMockClient("m", "TASK_COMPLETE ok")))
	require.NoError(t, err)
	defer closeOrch(t, o)

	assert.Empty(t, o.CollectResults(), "nothing spawned yet")

	for i := 0; i < 3; i++ {
		o.Spawn(context.Background(), newTask(t, "x", config.TierFast))
	}
	var collected []minime.Result
	require.Eventually(t, func() bool {
		collected = append(collected, o.CollectResults()...)
		return len(collected) == 3
	}, 2*time.Second, 5*time.Millisecond)

	for _, r := range collected {
		filed, ok := o.Result(r.TaskID)
		require.True(t, ok)
		assert.Equal(t, r.TaskID, filed.TaskID)
	}
}

func TestSpawnReplacesDuplicateID(t *testing.T) {
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 2)), staticFactory(llm.NewMockClient("m", "TASK_COMPLETE ok")))
	require.NoError(t, err)
	defer closeOrch(t, o)

	task := newTask(t, "x", config.TierFast)
	first := o.Spawn(context.Background(), task)
	second := o.Spawn(context.Background(), task)
	assert.Equal(t, task.ID, first)
	assert.NotEqual(t, first, second)
}

type memoryStore struct {
	mu       sync.Mutex
	sessions []Session
	results  []minime.Result
}

func (m *memoryStore) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *memoryStore) SaveResult(_ context.Context, _ uuid.UUID, r minime.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func TestPlanStorePersistsMutationsAndResults(t *testing.T) {
	store := &memoryStore{}
	o, err := New(newRegistry(t, localProvider("local", config.TierFast, 1)),
		staticFactory(llm.NewMockClient("m", "TASK_COMPLETE ok")), WithPlanStore(store))
	require.NoError(t, err)

	require.NoError(t, o.UpdatePlan("ship it", []PlanStep{{ID: "s1", Description: "build"}}))
	id := o.Spawn(context.Background(), newTask(t, "build", config.TierFast))
	_, err = o.WaitFor(context.Background(), id)
	require.NoError(t, err)
	closeOrch(t, o)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.GreaterOrEqual(t, len(store.sessions), 3, "plan update, spawn and filing each persist")
	last := store.sessions[len(store.sessions)-1]
	assert.Equal(t, "ship it", last.Goal)
	assert.Equal(t, o.SessionID(), last.ID)
	require.Len(t, store.results, 1)
	assert.Equal(t, id, store.results[0].TaskID)
}
