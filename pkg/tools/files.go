package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

func (e *Executor) readFile(call Call) Result {
	path, ok := call.stringArg("path")
	if !ok || path == "" {
		return failure("read_file requires a string 'path' argument")
	}
	data, err := os.ReadFile(e.resolve(path))
	if err != nil {
		return failure("Failed to read %s: %v", path, err)
	}
	if len(data) > MaxReadBytes {
		return Result{
			Success: true,
			Output:  fmt.Sprintf("%s...\n[truncated, %d bytes total]", cutUTF8(string(data), MaxReadBytes), len(data)),
		}
	}
	return Result{Success: true, Output: string(data)}
}

func (e *Executor) writeFile(call Call) Result {
	path, ok := call.stringArg("path")
	if !ok || path == "" {
		return failure("write_file requires a string 'path' argument")
	}
	content, ok := call.stringArg("content")
	if !ok {
		return failure("write_file requires a string 'content' argument")
	}

	target, err := e.containedPath(path)
	if err != nil {
		return failure("Security: Cannot write outside working directory")
	}

	if e.Checkpoint != nil {
		if err := e.Checkpoint.SnapshotPath(target); err != nil {
			return failure("Checkpoint failed for %s: %v", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return failure("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil { //nolint:gosec // sub-agent output files are not secret
		return failure("Failed to write %s: %v", path, err)
	}
	e.recordWrite(path)
	return Result{Success: true, Output: fmt.Sprintf("Wrote %d bytes to %s", len(content), path)}
}

// containedPath resolves path for writing. Any ".." segment is rejected
// outright, as is a path outside the working directory once symlinks in the
// existing part of it are resolved.
func (e *Executor) containedPath(path string) (string, error) {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", fmt.Errorf("parent traversal in %q", path)
		}
	}

	root, err := filepath.Abs(e.workDir())
	if err != nil {
		return "", fmt.Errorf("resolve work dir: %w", err)
	}
	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	if !within(root, target) {
		return "", fmt.Errorf("%q is outside %s", path, root)
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve work dir: %w", err)
	}
	realTarget, err := resolveExisting(target)
	if err != nil {
		return "", err
	}
	if !within(realRoot, realTarget) {
		return "", fmt.Errorf("%q resolves outside %s", path, root)
	}
	return target, nil
}

// resolveExisting evaluates symlinks in the deepest existing ancestor of p and
// re-appends the parts that do not exist yet.
func resolveExisting(p string) (string, error) {
	var missing []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %s: %w", cur, err)
		}
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("%s is a dangling symlink", cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		missing = append([]string{filepath.Base(cur)}, missing...)
		cur = parent
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// cutUTF8 returns at most n bytes of s without splitting a rune.
func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
