// Package orchestrator schedules Mini-Me sub-agents with per-provider
// concurrency limits and owns the session plan they work against.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/checkpoint"
	"ganesha/pkg/config"
	"ganesha/pkg/logx"
	"ganesha/pkg/metrics"
	"ganesha/pkg/minime"
)

var (
	// ErrUnknownTask is returned for task ids that were never spawned.
	ErrUnknownTask = errors.New("unknown task")
	// ErrUnknownStep is returned for plan step ids not in the session.
	ErrUnknownStep = errors.New("unknown plan step")
	// ErrInvalidTransition is returned when a step cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid step transition")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// ClientFactory builds a model client for a provider.
type ClientFactory interface {
	CreateClient(p config.ProviderConfig) (llm.LLMClient, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(p config.ProviderConfig) (llm.LLMClient, error)

// CreateClient calls f.
func (f ClientFactoryFunc) CreateClient(p config.ProviderConfig) (llm.LLMClient, error) {
	return f(p)
}

// TaskState is the scheduler-side lifecycle of a task.
type TaskState int

// Task states. Transitions only move forward.
const (
	TaskPending TaskState = iota
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type taskEntry struct {
	task     minime.Task
	provider string
	state    TaskState
	done     chan struct{} // closed once the result is filed
}

// Orchestrator spawns sub-agents and collects their results.
type Orchestrator struct {
	registry    *config.Registry
	factory     ClientFactory
	limiters    map[string]*semaphore.Weighted
	completions chan minime.Result
	plan        *planActor
	sessionID   uuid.UUID
	recorder    metrics.SchedulerRecorder
	logger      *logx.Logger
	subAgent    config.SubAgentConfig
	checkpoint  checkpoint.Checkpointer

	mu      sync.Mutex
	tasks   map[uuid.UUID]*taskEntry
	results map[uuid.UUID]minime.Result
	closed  bool

	wg        sync.WaitGroup
	closeOnce sync.Once
}

type options struct {
	store    PlanStore
	recorder metrics.SchedulerRecorder
	logger     *logx.Logger
	subAgent   config.SubAgentConfig
	checkpoint checkpoint.Checkpointer
}

// Option configures an Orchestrator.
type Option func(*options)

// WithPlanStore persists the session after every plan mutation and every filed result.
func WithPlanStore(store PlanStore) Option {
	return func(o *options) { o.store = store }
}

// WithRecorder records scheduling metrics.
func WithRecorder(r metrics.SchedulerRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger overrides the orchestrator logger.
func WithLogger(l *logx.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSubAgentConfig sets execution-loop budgets and the result buffer size.
func WithSubAgentConfig(c config.SubAgentConfig) Option {
	return func(o *options) { o.subAgent = c }
}

// WithCheckpointer wraps every task in a checkpoint session on c.
func WithCheckpointer(c checkpoint.Checkpointer) Option {
	return func(o *options) { o.checkpoint = c }
}

// New creates an orchestrator with one counting limiter per provider, sized
// to the provider's MaxConcurrent.
func New(registry *config.Registry, factory ClientFactory, opts ...Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, config.ErrNoProvider
	}
	if factory == nil {
		return nil, fmt.Errorf("client factory is required")
	}

	o := &options{
		recorder: metrics.NopScheduler(),
		logger:   logx.NewLogger("orchestrator"),
		subAgent: config.SubAgentConfig{
			MaxTurns:        config.DefaultMaxTurns,
			MaxSummaryBytes: config.DefaultMaxSummaryBytes,
			TaskTimeout:     config.DefaultTaskTimeout,
			ResultBuffer:    config.DefaultResultBuffer,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.subAgent.ResultBuffer <= 0 {
		o.subAgent.ResultBuffer = config.DefaultResultBuffer
	}

	limiters := make(map[string]*semaphore.Weighted)
	for _, p := range registry.Providers() {
		limiters[p.Name] = semaphore.NewWeighted(int64(p.MaxConcurrent))
	}

	orch := &Orchestrator{
		registry:    registry,
		factory:     factory,
		limiters:    limiters,
		completions: make(chan minime.Result, o.subAgent.ResultBuffer),
		plan:        newPlanActor(o.store, o.logger),
		recorder:    o.recorder,
		logger:      o.logger,
		subAgent:    o.subAgent,
		checkpoint:  o.checkpoint,
		tasks:       make(map[uuid.UUID]*taskEntry),
		results:     make(map[uuid.UUID]minime.Result),
	}
	orch.plan.read(func(s *Session) { orch.sessionID = s.ID })
	return orch, nil
}

// SessionID returns the id of the session this orchestrator owns.
func (o *Orchestrator) SessionID() uuid.UUID {
	return o.sessionID
}

// Spawn registers task and starts it asynchronously. The provider permit is
// held for the whole execution loop. Spawn never blocks on the permit. After
// Close nothing is started and the task's result is a failure carrying ErrClosed.
func (o *Orchestrator) Spawn(ctx context.Context, task minime.Task) uuid.UUID {
	if task.Timeout <= 0 {
		task.Timeout = o.subAgent.TaskTimeout
	}

	o.mu.Lock()
	if _, exists := o.tasks[task.ID]; exists || task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	entry := &taskEntry{task: task, state: TaskPending, done: make(chan struct{})}
	o.tasks[task.ID] = entry
	closed := o.closed
	if !closed {
		o.wg.Add(1)
	}
	o.mu.Unlock()

	if closed {
		o.logger.Warn("🚫 Refusing to spawn %s: %v", task.ID, ErrClosed)
		o.file(minime.Failed(task.ID, ErrClosed))
		return task.ID
	}

	provider, fellBack := o.resolve(task.RequiredTier)
	o.mu.Lock()
	entry.provider = provider.Name
	o.mu.Unlock()

	o.updatePlan("spawn "+task.ID.String(), func(s *Session) (bool, error) {
		s.PendingTasks = append(s.PendingTasks, task.ID)
		if fellBack {
			s.Decisions = append(s.Decisions, fmt.Sprintf("Task %s: no usable %s provider, fell back to %s (%s)",
				task.ID, task.RequiredTier, provider.Name, provider.Tier))
		}
		return true, nil
	})

	o.logger.Info("🐣 Spawned Mini-Me %s on %s (tier %s): %s", task.ID, provider.Name, task.RequiredTier, task.Description)

	go o.run(context.WithoutCancel(ctx), task, provider, fellBack)
	return task.ID
}

// updatePlan applies fn on the plan actor and logs a failure. ErrClosed is
// expected once Close has run.
func (o *Orchestrator) updatePlan(what string, fn func(*Session) (bool, error)) {
	err := o.plan.mutate(fn)
	switch {
	case err == nil:
	case errors.Is(err, ErrClosed):
		o.logger.Debug("plan update for %s skipped: %v", what, err)
	default:
		o.logger.Warn("plan update for %s failed: %v", what, err)
	}
}

// resolve picks the provider for tier. When the registry has no provider of
// that tier, the default provider runs the task and the fallback is reported.
func (o *Orchestrator) resolve(tier config.ModelTier) (config.ProviderConfig, bool) {
	p, ok := o.registry.Select(tier)
	if ok && p.Tier == tier {
		return p, false
	}
	if !ok {
		p = o.registry.Default()
	}
	o.logger.Warn("⚠️ No usable %s provider; falling back to %s (%s tier)", tier, p.Name, p.Tier)
	o.recorder.Fallback(tier.String(), p.Name)
	return p, true
}

func (o *Orchestrator) run(ctx context.Context, task minime.Task, provider config.ProviderConfig, fellBack bool) {
	defer o.wg.Done()
	res := o.execute(ctx, task, provider)
	res.Provider = provider.Name
	res.FellBack = fellBack
	o.completions <- res
}

// execute holds the provider permit for the entire loop and releases it
// before the result is published.
func (o *Orchestrator) execute(ctx context.Context, task minime.Task, provider config.ProviderConfig) minime.Result {
	client, err := o.factory.CreateClient(provider)
	if err != nil {
		o.logger.Error("❌ Mini-Me %s: %v", task.ID, err)
		return minime.Failed(task.ID, fmt.Errorf("create client for %s: %w", provider.Name, err))
	}

	sem := o.limiters[provider.Name]
	waitStart := time.Now()
	if err := sem.Acquire(ctx, 1); err != nil {
		return minime.Failed(task.ID, fmt.Errorf("acquire %s permit: %w", provider.Name, err))
	}
	defer sem.Release(1)

	o.setState(task.ID, TaskRunning)
	o.recorder.TaskStarted(provider.Name, time.Since(waitStart))

	runner := minime.NewRunner(client, provider)
	runner.MaxTurns = o.subAgent.MaxTurns
	runner.MaxSummaryBytes = o.subAgent.MaxSummaryBytes
	runner.SessionID = o.sessionID.String()
	runner.Checkpoint = o.checkpoint

	res := runner.Run(ctx, task)
	o.recorder.TaskFinished(provider.Name, res.Outcome.String(), res.Duration)
	return res
}

func (o *Orchestrator) setState(id uuid.UUID, state TaskState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.tasks[id]; ok && e.state < state {
		e.state = state
	}
}

// file records r in the results table and the trackers. A second result for
// the same task is dropped.
func (o *Orchestrator) file(r minime.Result) {
	o.mu.Lock()
	if _, dup := o.results[r.TaskID]; dup {
		o.mu.Unlock()
		o.logger.Warn("duplicate result for %s dropped", r.TaskID)
		return
	}
	o.results[r.TaskID] = r
	if e, ok := o.tasks[r.TaskID]; ok {
		e.state = TaskFailed
		if r.Success {
			e.state = TaskCompleted
		}
		close(e.done)
	}
	o.mu.Unlock()

	o.updatePlan("result "+r.TaskID.String(), func(s *Session) (bool, error) {
		s.PendingTasks = slices.DeleteFunc(s.PendingTasks, func(id uuid.UUID) bool { return id == r.TaskID })
		return true, nil
	})
	o.plan.saveResult(r)

	o.logger.Info("📬 Filed result for %s: %s (%d turns)", r.TaskID, r.Outcome, r.Turns)
}

// WaitFor blocks until id's result is available. Every result observed while
// waiting is filed, not only id's.
func (o *Orchestrator) WaitFor(ctx context.Context, id uuid.UUID) (minime.Result, error) {
	o.mu.Lock()
	if r, ok := o.results[id]; ok {
		o.mu.Unlock()
		return r, nil
	}
	entry, ok := o.tasks[id]
	o.mu.Unlock()
	if !ok {
		return minime.Result{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}

	for {
		select {
		case <-entry.done:
			r, _ := o.Result(id)
			return r, nil
		case r := <-o.completions:
			o.file(r)
		case <-ctx.Done():
			return minime.Result{}, ctx.Err()
		}
	}
}

// CollectResults files and returns every result currently available without blocking.
func (o *Orchestrator) CollectResults() []minime.Result {
	var out []minime.Result
	for {
		select {
		case r := <-o.completions:
			o.file(r)
			out = append(out, r)
		default:
			return out
		}
	}
}

// Result looks up a filed result.
func (o *Orchestrator) Result(id uuid.UUID) (minime.Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.results[id]
	return r, ok
}

// State returns the scheduler state of a task.
func (o *Orchestrator) State(id uuid.UUID) (TaskState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.tasks[id]
	if !ok {
		return 0, false
	}
	return e.state, true
}

// Active lists tasks that have not had a result filed, in no particular order.
func (o *Orchestrator) Active() []uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []uuid.UUID
	for id, e := range o.tasks {
		if e.state == TaskPending || e.state == TaskRunning {
			out = append(out, id)
		}
	}
	return out
}

// Close refuses further spawns, waits for running tasks, filing their
// results, then stops the plan actor. ctx bounds the wait.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()

	var err error
loop:
	for {
		select {
		case r := <-o.completions:
			o.file(r)
		case <-finished:
			o.CollectResults()
			break loop
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		}
	}
	o.closeOnce.Do(o.plan.stop)
	return err
}
