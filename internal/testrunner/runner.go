// Package testrunner implements execworker.Runner. The core treats the
// test runner as an external, re-entrant async function; this package
// provides a real subprocess-based implementation plus a deterministic
// fixture used by the property-test suite.
//
// Grounded on internal/executor/agent.go's exec.Cmd/context wiring for
// spawning and capturing a long-running subprocess, and on
// original_source/backend/app/services/execution_worker.py's
// _run_test_simulation for the fixture's outcome shape.
package testrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/pipelinehardening/paratest/internal/execworker"

	"github.com/pipelinehardening/paratest/internal/domain"
)

// wireResult is the JSON shape a subprocess runner writes to stdout,
// matching spec.md §6's RunnerResult.
type wireResult struct {
	Status      string `json:"status"`
	TasksPassed int    `json:"tasks_passed"`
	TasksFailed int    `json:"tasks_failed"`
	ReportPath  string `json:"report_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SubprocessRunner invokes an external command per spec.md §6:
// run(worktree_path, plan_path, batch_range, runner_config) → RunnerResult.
// The command is expected to print one wireResult JSON object to
// stdout and exit zero for COMPLETE/FAILED (the wireResult.Status
// distinguishes them) or non-zero for an infrastructure ERROR.
type SubprocessRunner struct {
	// Command is the runner executable, e.g. the path to a test-harness
	// CLI. Args are appended after the fixed worktree/plan/batch-range
	// arguments.
	Command string
	Args    []string
}

// New creates a SubprocessRunner invoking command with any extra args.
func New(command string, args ...string) *SubprocessRunner {
	return &SubprocessRunner{Command: command, Args: args}
}

func batchRangeArg(br domain.BatchRange) string {
	if br.All {
		return "all"
	}
	return fmt.Sprintf("%d-%d", br.Start, br.End)
}

// Run implements execworker.Runner.
func (r *SubprocessRunner) Run(ctx context.Context, worktreePath, planPath string, br domain.BatchRange, cfg domain.RunnerConfig) (domain.TestResult, error) {
	args := append([]string{}, r.Args...)
	args = append(args, "--worktree", worktreePath, "--plan", planPath, "--batch-range", batchRangeArg(br))

	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = worktreePath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	completed := time.Now()

	result := domain.TestResult{StartedAt: started, CompletedAt: completed}

	var wire wireResult
	if decErr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &wire); decErr == nil {
		result.Status = domain.ResultStatus(wire.Status)
		result.TasksPassed = wire.TasksPassed
		result.TasksFailed = wire.TasksFailed
		result.ReportPath = wire.ReportPath
		result.ErrorMessage = wire.Error
	}

	if runErr != nil {
		if result.Status == "" {
			result.Status = domain.StatusError
		}
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("%v: %s", runErr, stderr.String())
		}
		return result, runErr
	}

	if result.Status == "" {
		return result, fmt.Errorf("runner produced no parseable result: stdout=%q stderr=%q", stdout.String(), stderr.String())
	}

	return result, nil
}

// Outcome is one scripted response a Fixture returns for a given
// invocation index of a request.
type Outcome struct {
	Status      domain.ResultStatus
	TasksPassed int
	TasksFailed int
	Err         error
	Sleep       time.Duration
}

// Fixture is a deterministic, re-entrant test double implementing
// execworker.Runner, used by the pool/queue/worker/orchestrator test
// suite in place of a real subprocess. Run does not receive a request
// id (per spec.md §6's runner signature), so scripts are keyed by plan
// path; each call records an invocation and returns the next scripted
// Outcome for that plan path (cycling on the last one once exhausted).
type Fixture struct {
	mu          sync.Mutex
	scripts     map[string][]Outcome
	defaultOut  Outcome
	invocations map[string]int
	calls       []string
}

// NewFixture creates a Fixture whose default outcome (used for any
// plan path without a specific script) is COMPLETE with 1 task
// passed.
func NewFixture() *Fixture {
	return &Fixture{
		scripts:     make(map[string][]Outcome),
		defaultOut:  Outcome{Status: domain.StatusComplete, TasksPassed: 1},
		invocations: make(map[string]int),
	}
}

// Script sets the sequence of outcomes planPath should receive on its
// successive invocations (supporting retry scenarios like S4/S5).
func (f *Fixture) Script(planPath string, outcomes ...Outcome) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[planPath] = outcomes
	return f
}

// SetDefault overrides the outcome used for unscripted plan paths.
func (f *Fixture) SetDefault(o Outcome) *Fixture {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultOut = o
	return f
}

// Invocations returns how many times Run was called for planPath.
func (f *Fixture) Invocations(planPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invocations[planPath]
}

// Calls returns the plan path of every Run invocation, in order.
func (f *Fixture) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Run implements execworker.Runner.
func (f *Fixture) Run(ctx context.Context, worktreePath, planPath string, br domain.BatchRange, cfg domain.RunnerConfig) (domain.TestResult, error) {
	f.mu.Lock()
	idx := f.invocations[planPath]
	f.invocations[planPath] = idx + 1
	f.calls = append(f.calls, planPath)

	out := f.defaultOut
	if script, ok := f.scripts[planPath]; ok && len(script) > 0 {
		if idx < len(script) {
			out = script[idx]
		} else {
			out = script[len(script)-1]
		}
	}
	f.mu.Unlock()

	started := time.Now()
	if out.Sleep > 0 {
		select {
		case <-time.After(out.Sleep):
		case <-ctx.Done():
			return domain.TestResult{
				Status:      domain.StatusError,
				StartedAt:   started,
				CompletedAt: time.Now(),
			}, ctx.Err()
		}
	}

	result := domain.TestResult{
		Status:      out.Status,
		TasksPassed: out.TasksPassed,
		TasksFailed: out.TasksFailed,
		StartedAt:   started,
		CompletedAt: time.Now(),
	}
	if out.Err != nil {
		result.ErrorMessage = out.Err.Error()
		return result, out.Err
	}
	return result, nil
}

var (
	_ execworker.Runner = (*SubprocessRunner)(nil)
	_ execworker.Runner = (*Fixture)(nil)
)
