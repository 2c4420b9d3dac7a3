// Package exec runs shell commands on behalf of sub-agent tools.
package exec

import (
	"context"
	"time"
)

// Executor runs a command and reports its output. A non-zero exit status is a
// Result, not an error; errors mean the command could not be run at all.
type Executor interface {
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Name returns the executor name for logging.
	Name() string
}

// Opts contains options for command execution.
type Opts struct {
	// Env holds extra KEY=VALUE pairs appended to the current environment.
	Env []string

	// Timeout bounds the command. Zero means only ctx applies.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string
}

// Result contains the result of command execution.
type Result struct {
	Stdout       string
	Stderr       string
	ExecutorUsed string
	Duration     time.Duration
	ExitCode     int
}

// DefaultExecOpts returns default execution options.
func DefaultExecOpts() Opts {
	return Opts{Timeout: 2 * time.Minute}
}
