package tools

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"ganesha/pkg/exec"
)

// deniedPattern is one deny-list class. Name is what the caller is told.
type deniedPattern struct {
	Name string
	re   *regexp.Regexp
}

// commandSeparators split a shell line into simple commands.
var commandSeparators = regexp.MustCompile(`[;&|()\n]`)

// deniedPatterns are rejected before any command runs. Matching happens after
// collapsing whitespace.
//
//nolint:gochecknoglobals
var deniedPatterns = []deniedPattern{
	{Name: "dd of=/dev/", re: regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/`)},
	{Name: "dd if=", re: regexp.MustCompile(`(?i)\bdd\s+if=`)},
	{Name: "mkfs", re: regexp.MustCompile(`(?i)\bmkfs`)},
	{Name: "> /dev/", re: regexp.MustCompile(`>\s*/dev/(?:sd|hd|nvme|vd|disk|mapper)`)},
	{Name: ":(){ :|:& };:", re: regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`)},
}

// DeniedPattern returns the name of the first deny-list class cmd matches.
func DeniedPattern(cmd string) (string, bool) {
	normalized := strings.Join(strings.Fields(cmd), " ")
	if recursiveForceRemove(normalized) {
		return "rm -rf", true
	}
	for _, p := range deniedPatterns {
		if p.re.MatchString(normalized) {
			return p.Name, true
		}
	}
	return "", false
}

// recursiveForceRemove reports whether any rm invocation in cmd carries both a
// recursive and a force flag, in any order, spelling or case.
func recursiveForceRemove(cmd string) bool {
	for _, segment := range commandSeparators.Split(cmd, -1) {
		fields := strings.Fields(segment)
		start := slices.IndexFunc(fields, func(f string) bool {
			return strings.EqualFold(path.Base(strings.Trim(f, `"'`)), "rm")
		})
		if start < 0 {
			continue
		}
		var recursive, force bool
		for _, flag := range fields[start+1:] {
			if flag == "--" {
				break
			}
			switch {
			case strings.HasPrefix(flag, "--"):
				switch strings.ToLower(flag) {
				case "--recursive":
					recursive = true
				case "--force":
					force = true
				}
			case strings.HasPrefix(flag, "-"):
				recursive = recursive || strings.ContainsAny(flag, "rR")
				force = force || strings.ContainsAny(flag, "fF")
			}
		}
		if recursive && force {
			return true
		}
	}
	return false
}

func (e *Executor) runCommand(ctx context.Context, call Call) Result {
	cmd, ok := call.stringArg("command")
	if !ok {
		cmd, ok = call.stringArg("cmd")
	}
	if !ok || strings.TrimSpace(cmd) == "" {
		return failure("run_command requires a string 'command' argument")
	}
	if p, denied := DeniedPattern(cmd); denied {
		return failure("Blocked dangerous command pattern: %s", p)
	}

	res, err := e.runner().Run(ctx, []string{"bash", "-c", cmd}, &exec.Opts{WorkDir: e.workDir()})
	if err != nil {
		return failure("Failed to execute command: %v", err)
	}
	return Result{
		Success: res.ExitCode == 0,
		Output:  fmt.Sprintf("Exit code: %d\nstdout:\n%s\nstderr:\n%s", res.ExitCode, res.Stdout, res.Stderr),
	}
}
