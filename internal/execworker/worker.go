// Package execworker implements the long-lived execution agent: the
// acquire→execute→release loop that dequeues a request, leases a
// worktree, invokes the external test runner, classifies the outcome,
// and unconditionally releases the lease.
//
// Grounded on internal/buildworker/pool.go's slot bookkeeping and on
// original_source/backend/app/services/execution_worker.py's
// _process_next_test, whose try/finally release guarantee becomes a Go
// defer here.
package execworker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/orcerr"
	"github.com/pipelinehardening/paratest/internal/testqueue"
	"github.com/pipelinehardening/paratest/internal/worktreepool"
)

// State is a worker's position in the IDLE→FETCHING→LEASING→RUNNING→
// FINALISING→IDLE state machine of spec.md §4.3.
type State string

const (
	StateIdle       State = "IDLE"
	StateFetching   State = "FETCHING"
	StateLeasing    State = "LEASING"
	StateRunning    State = "RUNNING"
	StateFinalising State = "FINALISING"
	StateStopped    State = "STOPPED"
)

// Runner is the external test-runner capability: given a worktree path,
// a plan path, a batch range and per-request config, execute the plan
// and report a structured outcome. Implementations must be re-entrant
// across concurrent calls against distinct worktrees and must honour
// ctx cancellation promptly.
type Runner interface {
	Run(ctx context.Context, worktreePath, planPath string, br domain.BatchRange, cfg domain.RunnerConfig) (domain.TestResult, error)
}

// Pool is the subset of worktreepool.Pool a worker needs.
type Pool interface {
	Acquire(ctx context.Context) (domain.WorktreeLease, error)
	Release(ctx context.Context, lease domain.WorktreeLease)
}

// Queue is the subset of testqueue.Queue a worker needs.
type Queue interface {
	Dequeue(timeout time.Duration) (*domain.TestRequest, bool)
	MarkRunning(req *domain.TestRequest)
	MarkCompleted(id string, result domain.TestResult)
	MarkFailed(id string, result domain.TestResult)
	RequeueForRetry(req *domain.TestRequest) bool
}

// DefaultRunnerTimeout bounds a runner invocation when the request's
// own config does not specify one.
const DefaultRunnerTimeout = 5 * time.Minute

// dequeuePoll is how long a single Dequeue call blocks before a worker
// rechecks its stop flag.
const dequeuePoll = 200 * time.Millisecond

// Worker is one execution agent bound to a shared queue and pool.
type Worker struct {
	ID    string
	queue Queue
	pool  Pool
	run   Runner

	mu      sync.Mutex
	state   State
	current *domain.TestRequest
	lease   *domain.WorktreeLease

	stop chan struct{}
	done chan struct{}
}

// New creates a worker bound to the given queue, pool and runner.
func New(id string, queue Queue, pool Pool, run Runner) *Worker {
	return &Worker{
		ID:    id,
		queue: queue,
		pool:  pool,
		run:   run,
		state: StateIdle,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the worker loop in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Stop signals the worker to exit after its current iteration and
// blocks until it has done so.
func (w *Worker) Stop() {
	w.mu.Lock()
	select {
	case <-w.stop:
		// already stopping
	default:
		close(w.stop)
	}
	w.mu.Unlock()
	<-w.done
}

// Status returns a cheap, lock-light snapshot of the worker's current
// state, request and lease for reporting.
func (w *Worker) Status() (State, *domain.TestRequest, *domain.WorktreeLease) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.current, w.lease
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			w.setState(StateStopped)
			return
		default:
		}

		w.setState(StateFetching)
		req, ok := w.queue.Dequeue(dequeuePoll)
		if !ok {
			continue
		}

		w.processOne(ctx, req)
	}
}

// processOne runs exactly one request lifecycle: mark_running →
// acquire → run → classify → finalise → release. Release happens on
// every exit path via defer, including panics propagated from the
// runner.
func (w *Worker) processOne(ctx context.Context, req *domain.TestRequest) {
	w.mu.Lock()
	w.current = req
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.current = nil
		w.lease = nil
		w.mu.Unlock()
	}()

	w.queue.MarkRunning(req)

	w.setState(StateLeasing)
	lease, err := w.pool.Acquire(ctx)
	if err != nil {
		result := domain.TestResult{
			RequestID:    req.ID,
			WorkerID:     w.ID,
			Status:       domain.StatusError,
			StartedAt:    time.Now(),
			CompletedAt:  time.Now(),
			ErrorMessage: fmt.Sprintf("%v: %v", orcerr.ErrLeaseFailure, err),
		}
		w.finalise(req, result)
		return
	}

	w.mu.Lock()
	w.lease = &lease
	w.mu.Unlock()

	defer w.pool.Release(context.Background(), lease)

	w.setState(StateRunning)
	result := w.execute(req, lease)

	w.setState(StateFinalising)
	w.finalise(req, result)
}

// execute invokes the runner under a context bounded only by the
// request's own timeout, deliberately NOT derived from ctx: per
// spec.md §4.3/§5, a RUNNING worker ignores shutdown until its current
// attempt yields a result or its per-request timeout expires, so
// cancelling ctx (as Shutdown does) must not abort an in-flight
// runner call. Only LEASING's pool.Acquire honours ctx directly.
func (w *Worker) execute(req *domain.TestRequest, lease domain.WorktreeLease) domain.TestResult {
	timeout := req.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultRunnerTimeout
	}
	runCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	result, err := w.run.Run(runCtx, lease.Path, req.PlanPath, req.BatchRange, req.Config)
	result.RequestID = req.ID
	result.WorkerID = w.ID
	result.WorktreeID = lease.ID
	if result.StartedAt.IsZero() {
		result.StartedAt = started
	}
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}

	if err != nil {
		result.Status = domain.StatusError
		failure := &orcerr.RunnerFailure{
			RequestID: req.ID,
			Timeout:   runCtx.Err() == context.DeadlineExceeded,
			Err:       err,
		}
		result.ErrorMessage = failure.Error()
	}
	return result
}

// finalise classifies the outcome and updates the queue. COMPLETE is
// terminal; FAILED and ERROR both attempt a retry and fall back to
// mark_failed when retries are exhausted — the source treats both
// categories identically (see DESIGN.md Open Question 1).
func (w *Worker) finalise(req *domain.TestRequest, result domain.TestResult) {
	if result.Status == domain.StatusComplete {
		w.queue.MarkCompleted(req.ID, result)
		return
	}

	if w.queue.RequeueForRetry(req) {
		return
	}
	w.queue.MarkFailed(req.ID, result)
}

// ensure Pool/Queue are satisfied by the real implementations.
var (
	_ Pool  = (*worktreepool.Pool)(nil)
	_ Queue = (*testqueue.Queue)(nil)
)
