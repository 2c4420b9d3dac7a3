package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"ganesha/pkg/checkpoint"
	"ganesha/pkg/exec"
	"ganesha/pkg/logx"
)

// Result is tool output fed back to the model. Failures are data too.
type Result struct {
	Success bool
	Output  string
}

func failure(format string, args ...any) Result {
	return Result{Success: false, Output: fmt.Sprintf(format, args...)}
}

// Executor runs tool calls for one task. WorkDir bounds all writes.
type Executor struct {
	WorkDir    string
	Allowed    []string
	Runner     exec.Executor
	Checkpoint checkpoint.Checkpointer
	Logger     *logx.Logger

	mu       sync.Mutex
	modified []string
}

// NewExecutor creates an executor rooted at workDir with the local runner and
// no checkpointing. A nil allowed list means DefaultTools.
func NewExecutor(workDir string, allowed []string) *Executor {
	if allowed == nil {
		allowed = DefaultTools()
	}
	return &Executor{
		WorkDir:    workDir,
		Allowed:    allowed,
		Runner:     exec.NewLocalExec(),
		Checkpoint: checkpoint.Nop(),
		Logger:     logx.NewLogger("tools"),
	}
}

// Execute dispatches call. It never returns an error; side effects only happen
// for allowed tools.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	name := canonicalName(call.Tool)
	if !e.allowed(call.Tool, name) {
		return failure("Tool not allowed: %s", call.Tool)
	}

	var res Result
	switch name {
	case ToolReadFile:
		res = e.readFile(call)
	case ToolWriteFile:
		res = e.writeFile(call)
	case ToolRunCommand:
		res = e.runCommand(ctx, call)
	case ToolSearch:
		res = e.search(ctx, call)
	default:
		return failure("Unknown tool: %s", call.Tool)
	}

	if e.Logger != nil {
		e.Logger.Debug("🔧 %s success=%t output=%d bytes", name, res.Success, len(res.Output))
	}
	return res
}

func (e *Executor) allowed(raw, canonical string) bool {
	return slices.Contains(e.Allowed, raw) || slices.Contains(e.Allowed, canonical)
}

// FilesModified returns the paths written so far, in write order, without duplicates.
func (e *Executor) FilesModified() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.modified)
}

func (e *Executor) recordWrite(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !slices.Contains(e.modified, path) {
		e.modified = append(e.modified, path)
	}
}

func (e *Executor) workDir() string {
	if e.WorkDir == "" {
		return "."
	}
	return e.WorkDir
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.workDir(), path)
}

func (e *Executor) runner() exec.Executor {
	if e.Runner == nil {
		return exec.NewLocalExec()
	}
	return e.Runner
}
