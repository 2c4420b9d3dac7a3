package exec

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalExec_Name(t *testing.T) {
	if NewLocalExec().Name() != "local" {
		t.Errorf("Expected name 'local', got %s", NewLocalExec().Name())
	}
}

func TestLocalExec_Run_Success(t *testing.T) {
	exec := NewLocalExec()
	opts := DefaultExecOpts()
	result, err := exec.Run(context.Background(), []string{"echo", "hello world"}, &opts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stdout) != "hello world" {
		t.Errorf("Expected stdout 'hello world', got %s", result.Stdout)
	}
	if result.ExecutorUsed != "local" {
		t.Errorf("Expected executor 'local', got %s", result.ExecutorUsed)
	}
}

func TestLocalExec_Run_NonZeroExit(t *testing.T) {
	result, err := NewLocalExec().Run(context.Background(), []string{"sh", "-c", "echo oops >&2; exit 3"}, nil)
	if err != nil {
		t.Fatalf("Non-zero exit should not be an error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", result.ExitCode)
	}
	if strings.TrimSpace(result.Stderr) != "oops" {
		t.Errorf("Expected stderr 'oops', got %q", result.Stderr)
	}
}

func TestLocalExec_Run_EmptyCommand(t *testing.T) {
	if _, err := NewLocalExec().Run(context.Background(), nil, nil); err == nil {
		t.Error("Expected error for empty command")
	}
}

func TestLocalExec_Run_MissingBinary(t *testing.T) {
	result, err := NewLocalExec().Run(context.Background(), []string{"ganesha-no-such-binary"}, nil)
	if err == nil {
		t.Fatal("Expected error for missing binary")
	}
	if result.ExitCode != -1 {
		t.Errorf("Expected exit code -1, got %d", result.ExitCode)
	}
}

func TestLocalExec_Run_WorkDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := NewLocalExec().Run(context.Background(), []string{"ls"}, &Opts{WorkDir: dir})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(result.Stdout, "marker.txt") {
		t.Errorf("Expected listing of %s, got %q", dir, result.Stdout)
	}

	if _, err := NewLocalExec().Run(context.Background(), []string{"ls"}, &Opts{WorkDir: filepath.Join(dir, "missing")}); err == nil {
		t.Error("Expected error for missing work dir")
	}
}

func TestLocalExec_Run_Timeout(t *testing.T) {
	result, err := NewLocalExec().Run(context.Background(), []string{"sleep", "5"}, &Opts{Timeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if result.ExitCode != -1 {
		t.Errorf("Expected exit code -1, got %d", result.ExitCode)
	}
}

func TestLocalExec_Run_Env(t *testing.T) {
	result, err := NewLocalExec().Run(context.Background(), []string{"sh", "-c", "echo $GANESHA_TEST_VAR"},
		&Opts{Env: []string{"GANESHA_TEST_VAR=forked"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "forked" {
		t.Errorf("Expected env passthrough, got %q", result.Stdout)
	}
}
