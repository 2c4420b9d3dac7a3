package tools

import (
	"context"
	"fmt"
	"strings"

	"ganesha/pkg/exec"
)

func (e *Executor) search(ctx context.Context, call Call) Result {
	pattern, ok := call.stringArg("pattern")
	if !ok || pattern == "" {
		return failure("search requires a string 'pattern' argument")
	}
	path, _ := call.stringArg("path")
	if path == "" {
		path = "."
	}

	// -e and -- keep a leading dash in pattern or path from being read as a flag.
	opts := &exec.Opts{WorkDir: e.workDir()}
	res, err := e.runner().Run(ctx, []string{"rg", "--line-number", "--no-heading", "-e", pattern, "--", path}, opts)
	if err != nil {
		// rg not installed
		res, err = e.runner().Run(ctx, []string{"grep", "-rn", "-e", pattern, "--", path}, opts)
		if err != nil {
			return failure("Search failed: %v", err)
		}
	}
	// Exit 1 means no matches for both tools; anything higher is an error.
	if res.ExitCode > 1 {
		return failure("Search failed (exit %d): %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	out := res.Stdout
	if strings.TrimSpace(out) == "" {
		return Result{Success: true, Output: "No matches found"}
	}
	if len(out) > MaxSearchBytes {
		head := cutUTF8(out, MaxSearchBytes)
		out = fmt.Sprintf("%s...\n[%d more bytes]", head, len(out)-len(head))
	}
	return Result{Success: true, Output: out}
}
