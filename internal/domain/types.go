// Package domain holds the value types shared by the worktree pool, the
// test queue, the execution workers and the orchestrator: requests,
// results, leases and the session report. Values here are immutable
// from the runner's and client's perspective; the queue is the only
// mutator of request state.
package domain

import "time"

// ResultStatus is the outcome of one execution attempt.
type ResultStatus string

const (
	StatusComplete ResultStatus = "COMPLETE"
	StatusFailed   ResultStatus = "FAILED"
	StatusError    ResultStatus = "ERROR"
)

// LeaseStatus is the lifecycle state of a worktree lease.
type LeaseStatus string

const (
	LeaseFree LeaseStatus = "FREE"
	LeaseBusy LeaseStatus = "BUSY"
	LeaseErr  LeaseStatus = "ERROR"
)

// SessionStatus is the terminal-or-not classification of a session,
// derived from the queue's terminal counts.
type SessionStatus string

const (
	SessionNoTests        SessionStatus = "NO_TESTS"
	SessionRunning        SessionStatus = "RUNNING"
	SessionComplete       SessionStatus = "COMPLETE"
	SessionPartialSuccess SessionStatus = "PARTIAL_SUCCESS"
	SessionFailed         SessionStatus = "FAILED"
)

// BatchRange selects the batches of a plan a runner should execute.
// All true means the literal "all" selector; otherwise [Start, End]
// is an inclusive integer range.
type BatchRange struct {
	All   bool
	Start int
	End   int
}

// AllBatches is the literal "all" selector.
var AllBatches = BatchRange{All: true}

// RunnerConfig carries per-request runner tuning. A zero Timeout means
// "use the orchestrator default".
type RunnerConfig struct {
	Timeout    time.Duration
	MaxRetries int
	Extra      map[string]string
}

// TestRequest is a unit of work submitted to the queue.
type TestRequest struct {
	ID         string
	PlanPath   string
	BatchRange BatchRange
	Config     RunnerConfig
	Priority   int
	RetryCount int
	MaxRetries int
	CreatedAt  time.Time
}

// TestResult is the outcome of one execution attempt against a request.
type TestResult struct {
	RequestID    string
	WorktreeID   string
	WorkerID     string
	Status       ResultStatus
	TasksPassed  int
	TasksFailed  int
	StartedAt    time.Time
	CompletedAt  time.Time
	ErrorMessage string
	ReportPath   string
}

// Duration returns the derived execution duration of the result.
func (r TestResult) Duration() time.Duration {
	if r.CompletedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// WorktreeLease is the exclusive handle a worker holds while executing
// a request inside one worktree.
type WorktreeLease struct {
	ID        string
	Path      string
	Branch    string
	Status    LeaseStatus
	CreatedAt time.Time
	LastUsed  time.Time
}

// Summary is the aggregate counters the queue reports.
type Summary struct {
	Total     int
	Passed    int
	Failed    int
	Pending   int
	Running   int
	Completed int
}

// SessionReport is the orchestrator's terminal artifact, produced once
// a session drains.
type SessionReport struct {
	SessionID       string
	Status          SessionStatus
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64
	Summary         Summary
	Results         []TestResult
	Warnings        []string
}

// DeriveSessionStatus implements the session-status classification:
// COMPLETE iff every submitted request completed and none failed,
// PARTIAL_SUCCESS iff some of each, FAILED iff none completed and all
// failed, NO_TESTS iff nothing was submitted, RUNNING otherwise.
func DeriveSessionStatus(total, completed, failed int) SessionStatus {
	switch {
	case total == 0:
		return SessionNoTests
	case failed == 0 && completed == total:
		return SessionComplete
	case completed > 0 && failed > 0:
		return SessionPartialSuccess
	case completed == 0 && failed == total:
		return SessionFailed
	default:
		return SessionRunning
	}
}
