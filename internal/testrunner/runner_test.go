package testrunner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pipelinehardening/paratest/internal/domain"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runner.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSubprocessRunner_Run_ParsesWireResult(t *testing.T) {
	script := writeScript(t, `echo '{"status":"COMPLETE","tasks_passed":3,"tasks_failed":1}'`)
	r := New(script)

	result, err := r.Run(context.Background(), t.TempDir(), "plans/a.md", domain.AllBatches, domain.RunnerConfig{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != domain.StatusComplete {
		t.Errorf("Status = %v, want COMPLETE", result.Status)
	}
	if result.TasksPassed != 3 || result.TasksFailed != 1 {
		t.Errorf("got TasksPassed=%d TasksFailed=%d, want 3, 1", result.TasksPassed, result.TasksFailed)
	}
	if result.StartedAt.After(result.CompletedAt) {
		t.Errorf("StartedAt %v is after CompletedAt %v", result.StartedAt, result.CompletedAt)
	}
}

func TestSubprocessRunner_Run_NonZeroExitReturnsError(t *testing.T) {
	script := writeScript(t, `echo 'not json' >&2; exit 1`)
	r := New(script)

	result, err := r.Run(context.Background(), t.TempDir(), "plans/a.md", domain.AllBatches, domain.RunnerConfig{})
	if err == nil {
		t.Fatal("expected an error for a non-zero exit")
	}
	if result.Status != domain.StatusError {
		t.Errorf("Status = %v, want ERROR", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Error("expected ErrorMessage to be populated")
	}
}

func TestSubprocessRunner_Run_UnparseableStdoutIsAnError(t *testing.T) {
	script := writeScript(t, `echo 'this is not json'`)
	r := New(script)

	_, err := r.Run(context.Background(), t.TempDir(), "plans/a.md", domain.AllBatches, domain.RunnerConfig{})
	if err == nil {
		t.Fatal("expected an error when stdout has no parseable wireResult")
	}
}

func TestSubprocessRunner_Run_FailedStatusIsNotAGoError(t *testing.T) {
	// A wireResult with status FAILED (a test failure, not an
	// infrastructure error) exits zero and must not be treated as an
	// exec.Cmd error, only classified as domain.StatusFailed.
	script := writeScript(t, `echo '{"status":"FAILED","tasks_passed":1,"tasks_failed":2}'`)
	r := New(script)

	result, err := r.Run(context.Background(), t.TempDir(), "plans/a.md", domain.AllBatches, domain.RunnerConfig{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != domain.StatusFailed {
		t.Errorf("Status = %v, want FAILED", result.Status)
	}
}

func TestSubprocessRunner_Run_PassesWorktreePlanBatchRangeArgs(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, `printf '%s\n' "$@" > `+argsFile+`
echo '{"status":"COMPLETE"}'`)
	r := New(script, "--extra-flag")

	worktree := t.TempDir()
	_, err := r.Run(context.Background(), worktree, "plans/checkout.md", domain.BatchRange{Start: 2, End: 5}, domain.RunnerConfig{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("reading captured args: %v", err)
	}
	gotStr := string(got)
	for _, want := range []string{"--extra-flag", "--worktree", worktree, "--plan", "plans/checkout.md", "--batch-range", "2-5"} {
		if !strings.Contains(gotStr, want) {
			t.Errorf("captured args %q missing %q", gotStr, want)
		}
	}
}

func TestBatchRangeArg(t *testing.T) {
	tests := []struct {
		name string
		br   domain.BatchRange
		want string
	}{
		{"all", domain.AllBatches, "all"},
		{"explicit range", domain.BatchRange{Start: 1, End: 4}, "1-4"},
		{"single batch", domain.BatchRange{Start: 3, End: 3}, "3-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := batchRangeArg(tt.br); got != tt.want {
				t.Errorf("batchRangeArg(%+v) = %q, want %q", tt.br, got, tt.want)
			}
		})
	}
}
