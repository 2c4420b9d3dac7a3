package minime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ganesha/pkg/agent/llm"
	"ganesha/pkg/agent/middleware/metrics"
	"ganesha/pkg/checkpoint"
	"ganesha/pkg/config"
	"ganesha/pkg/logx"
	"ganesha/pkg/tools"
	"ganesha/pkg/utils"
)

// Runner drives one task's bounded exchange with a model. The model alone
// decides control flow; every side effect goes through Tools.
type Runner struct {
	Client          llm.LLMClient
	Tools           *tools.Executor
	Provider        config.ProviderConfig
	MaxTurns        int
	MaxSummaryBytes int
	Logger          *logx.Logger

	// SessionID labels model requests for metrics.
	SessionID string

	// Checkpoint is given to executors built per task. Ignored when Tools is set.
	Checkpoint checkpoint.Checkpointer
}

// NewRunner creates a runner with default budgets. A nil executor is built
// from each task's forked context.
func NewRunner(client llm.LLMClient, provider config.ProviderConfig) *Runner {
	return &Runner{
		Client:          client,
		Provider:        provider,
		MaxTurns:        config.DefaultMaxTurns,
		MaxSummaryBytes: config.DefaultMaxSummaryBytes,
		Logger:          logx.NewLogger("minime"),
	}
}

// Run executes task and always returns a result. A provider error ends the
// loop immediately; there is no retry here.
func (r *Runner) Run(ctx context.Context, task Task) Result {
	start := time.Now()
	logger := r.logger()

	timeout := task.Timeout
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = metrics.WithLabels(ctx, metrics.Labels{SessionID: r.SessionID, TaskID: task.ID.String()})

	executor := r.Tools
	if executor == nil {
		executor = tools.NewExecutor(task.Context.WorkDir, task.Context.AllowedTools)
		if r.Checkpoint != nil {
			executor.Checkpoint = r.Checkpoint
		}
	}

	maxTurns := r.MaxTurns
	if maxTurns <= 0 {
		maxTurns = config.DefaultMaxTurns
	}

	res := Result{
		TaskID:    task.ID,
		ModelUsed: r.Client.GetModelName(),
		Provider:  r.Provider.Name,
	}
	cp := executor.Checkpoint
	if cp != nil {
		id, err := cp.BeginSession(fmt.Sprintf("Mini-Me %s: %s", short(task), task.Description))
		if err != nil {
			logger.Warn("📸 Mini-Me %s checkpoint session not started: %v", short(task), err)
			cp = nil
		} else {
			res.CheckpointID = id
		}
	}
	finish := func(res Result) Result {
		res.Summary = Bound(res.Summary, r.maxSummaryBytes())
		res.FilesModified = executor.FilesModified()
		res.Cost = r.Provider.Cost(res.TokensUsed)
		res.Duration = time.Since(start)
		if cp != nil {
			if err := cp.EndSession(fmt.Sprintf("Mini-Me %s %s: %s", short(task), res.Outcome, firstLine(res.Summary))); err != nil {
				logger.Warn("📸 Mini-Me %s checkpoint session not closed: %v", short(task), err)
			}
		}
		return res
	}

	messages := []llm.CompletionMessage{
		llm.NewSystemMessage(SystemPrompt(task.Context)),
		llm.NewUserMessage(SeedMessage(task)),
	}

	logger.Info("🚀 Mini-Me %s starting on %s (%s): %s", short(task), res.Provider, res.ModelUsed, task.Description)

	for turn := 1; turn <= maxTurns; turn++ {
		res.Turns = turn

		req := llm.NewCompletionRequest(messages)
		resp, err := r.Client.Complete(ctx, req)
		if err != nil {
			res.Outcome = OutcomeFailed
			res.Errors = append(res.Errors, describeProviderError(ctx, err, timeout))
			res.Summary = fmt.Sprintf("Task failed on turn %d: %s", turn, res.Errors[len(res.Errors)-1])
			logger.Error("❌ Mini-Me %s provider error on turn %d: %v", short(task), turn, err)
			return finish(res)
		}
		res.TokensUsed += utils.EstimateUsage(req, resp).Total()

		calls := tools.ParseToolCalls(resp.Content)
		messages = append(messages, llm.NewAssistantMessage(resp.Content))

		if len(calls) > 0 {
			for _, call := range calls {
				out := executor.Execute(ctx, call)
				if !out.Success {
					res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", call.Tool, firstLine(out.Output)))
				}
				messages = append(messages, llm.ToolResultMessage(call.Tool, out.Output))
			}
			logger.Debug("🔧 Mini-Me %s turn %d executed %d tool calls", short(task), turn, len(calls))
			continue
		}

		if IsComplete(resp.Content) {
			res.Success = true
			res.Outcome = OutcomeCompleted
			res.Summary = ExtractSummary(resp.Content)
			res.Findings = append([]string{res.Summary}, bulletFindings(res.Summary)...)
			logger.Info("✅ Mini-Me %s completed in %d turns", short(task), turn)
			return finish(res)
		}

		if IsStuck(resp.Content) && task.AllowEscalation {
			res.Outcome = OutcomeEscalated
			res.Summary = ExtractSummary(resp.Content)
			logger.Warn("⬆️ Mini-Me %s escalating after %d turns: %s", short(task), turn, firstLine(res.Summary))
			return finish(res)
		}

		messages = append(messages, llm.NewUserMessage(continueNudge))
	}

	res.Success = true
	res.Outcome = OutcomeExhausted
	res.Summary = fmt.Sprintf("Task completed after %d turns. Files modified: %v", maxTurns, executor.FilesModified())
	logger.Warn("⏱️ Mini-Me %s exhausted %d turns", short(task), maxTurns)
	return finish(res)
}

func (r *Runner) logger() *logx.Logger {
	if r.Logger == nil {
		return logx.NewLogger("minime")
	}
	return r.Logger
}

func (r *Runner) maxSummaryBytes() int {
	if r.MaxSummaryBytes <= 0 {
		return config.DefaultMaxSummaryBytes
	}
	return r.MaxSummaryBytes
}

func describeProviderError(ctx context.Context, err error, timeout time.Duration) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("task timed out after %s", timeout)
	}
	return err.Error()
}

func short(t Task) string {
	return t.ID.String()[:8]
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
