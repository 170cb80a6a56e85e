// Package orchestrator composes the worktree pool, the test queue and
// the execution workers into one session: initialize→start→(submit*/
// wait_for_completion)→shutdown, plus a cheap get_status snapshot.
//
// Grounded on internal/buildpool/coordinator.go's component composition
// and status handler, and on the lifecycle assertions in
// original_source/tests/test_orchestrator.py (idempotent shutdown,
// NO_TESTS on an empty session, at-most-once wait_for_completion).
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipelinehardening/paratest/internal/domain"
	"github.com/pipelinehardening/paratest/internal/execworker"
	"github.com/pipelinehardening/paratest/internal/orcerr"
	"github.com/pipelinehardening/paratest/internal/testqueue"
	"github.com/pipelinehardening/paratest/internal/worktreepool"
)

// Config configures a session.
type Config struct {
	NumWorkers      int
	WorktreeBaseDir string
	MaxQueueSize    int
	ResetFailureCap int
	DrainPoll       time.Duration
}

func (c Config) drainPoll() time.Duration {
	if c.DrainPoll > 0 {
		return c.DrainPoll
	}
	return 50 * time.Millisecond
}

// WorkerStatus is one row of get_status()'s per-worker snapshot.
type WorkerStatus struct {
	ID             string
	State          execworker.State
	CurrentRequest string
	CurrentLease   string
}

// Status is the cheap, lock-light snapshot spec.md §4.4 requires.
type Status struct {
	SessionID string
	Started   bool
	Pending   int
	Running   int
	Completed int
	Failed    int
	Workers   []WorkerStatus
}

// Orchestrator is the parallel test-plan execution core's entry point.
type Orchestrator struct {
	cfg   Config
	vcs   worktreepool.VCSDriver
	run   execworker.Runner
	queue *testqueue.Queue
	pool  *worktreepool.Pool

	sessionID string

	mu          sync.Mutex
	initialized bool
	started     bool
	shutdownAt  bool
	waited      bool
	startedAt   time.Time
	workers     []*execworker.Worker
	cancel      context.CancelFunc
}

// New constructs an orchestrator. Call Initialize before Start.
func New(cfg Config, vcs worktreepool.VCSDriver, run execworker.Runner) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		vcs:       vcs,
		run:       run,
		sessionID: uuid.NewString(),
	}
}

// Initialize constructs the queue, the pool (creating its worktrees)
// and the workers. On pool setup failure it returns
// orcerr.ErrSetupFailure and leaves the orchestrator uninitialized.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		return nil
	}

	o.queue = testqueue.New(o.cfg.MaxQueueSize)
	o.pool = worktreepool.New(o.vcs, worktreepool.Config{
		Size:            o.cfg.NumWorkers,
		BaseDir:         o.cfg.WorktreeBaseDir,
		ResetFailureCap: o.cfg.ResetFailureCap,
	})

	if err := o.pool.Initialize(ctx); err != nil {
		return err
	}

	o.workers = make([]*execworker.Worker, 0, o.cfg.NumWorkers)
	for i := 1; i <= o.cfg.NumWorkers; i++ {
		id := fmt.Sprintf("worker-%d", i)
		o.workers = append(o.workers, execworker.New(id, o.queue, o.pool, o.run))
	}

	o.initialized = true
	return nil
}

// Start launches every worker in its own goroutine. A no-op if already
// started.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized {
		return orcerr.ErrNotInitialized
	}
	if o.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.startedAt = time.Now()

	for _, w := range o.workers {
		w.Start(runCtx)
	}
	o.started = true
	return nil
}

// SubmitTest enqueues a single request. Rejected with
// orcerr.ErrShutdownInProgress once shutdown has begun.
func (o *Orchestrator) SubmitTest(req *domain.TestRequest) error {
	if o.isClosed() {
		return orcerr.ErrShutdownInProgress
	}
	return o.queue.Enqueue(req)
}

// SubmitBatch enqueues a batch of requests atomically. Rejected with
// orcerr.ErrShutdownInProgress once shutdown has begun.
func (o *Orchestrator) SubmitBatch(reqs []*domain.TestRequest) error {
	if o.isClosed() {
		return orcerr.ErrShutdownInProgress
	}
	return o.queue.EnqueueBatch(reqs)
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.shutdownAt || o.waited
}

// WaitForCompletion blocks until the queue drains (pending=0 and
// running=0), then builds the session report. Later calls skip the
// drain wait and rebuild the report from the terminal queue state;
// CompletedAt is taken anew on each call, and pool warnings appear only
// in the first call's report because Pool.Warnings clears them.
func (o *Orchestrator) WaitForCompletion() domain.SessionReport {
	o.mu.Lock()
	alreadyWaited := o.waited
	o.mu.Unlock()

	if !alreadyWaited {
		o.queue.WaitUntilDrained(o.cfg.drainPoll())
		o.mu.Lock()
		o.waited = true
		o.mu.Unlock()
	}

	return o.buildReport()
}

func (o *Orchestrator) buildReport() domain.SessionReport {
	summary := o.queue.Summary()
	results := o.queue.Results()
	warnings := o.pool.Warnings()

	completedAt := time.Now()
	o.mu.Lock()
	startedAt := o.startedAt
	o.mu.Unlock()
	if startedAt.IsZero() {
		startedAt = completedAt
	}

	return domain.SessionReport{
		SessionID:       o.sessionID,
		Status:          domain.DeriveSessionStatus(summary.Total, summary.Completed, summary.Failed),
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		DurationSeconds: completedAt.Sub(startedAt).Seconds(),
		Summary:         summary,
		Results:         results,
		Warnings:        warnings,
	}
}

// Shutdown stops every worker and cleans up the pool's worktrees.
// Idempotent.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	if o.shutdownAt {
		o.mu.Unlock()
		return
	}
	o.shutdownAt = true
	workers := o.workers
	pool := o.pool
	queue := o.queue
	cancel := o.cancel
	o.mu.Unlock()

	if queue != nil {
		queue.Close()
	}
	// Cancel before stopping workers: a worker blocked inside pool.Acquire
	// during LEASING only wakes on ctx.Done(), never on w.stop alone, so
	// cancelling first is what makes Stop() below return promptly.
	if cancel != nil {
		cancel()
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *execworker.Worker) {
			defer wg.Done()
			w.Stop()
		}(w)
	}
	wg.Wait()

	if pool != nil {
		pool.Cleanup(ctx)
	}
}

// RunTests is the convenience composition:
// initialize→start→enqueue_batch→wait_for_completion→shutdown.
func (o *Orchestrator) RunTests(ctx context.Context, reqs []*domain.TestRequest) (domain.SessionReport, error) {
	if err := o.Initialize(ctx); err != nil {
		return domain.SessionReport{}, err
	}
	if err := o.Start(ctx); err != nil {
		return domain.SessionReport{}, err
	}
	if len(reqs) > 0 {
		if err := o.SubmitBatch(reqs); err != nil {
			o.Shutdown(ctx)
			return domain.SessionReport{}, err
		}
	}
	report := o.WaitForCompletion()
	o.Shutdown(ctx)
	return report, nil
}

// GetStatus returns a cheap, read-only snapshot of session and
// per-worker state.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	started := o.started
	workers := o.workers
	o.mu.Unlock()

	var rows []WorkerStatus
	for _, w := range workers {
		state, req, lease := w.Status()
		row := WorkerStatus{ID: w.ID, State: state}
		if req != nil {
			row.CurrentRequest = req.ID
		}
		if lease != nil {
			row.CurrentLease = lease.ID
		}
		rows = append(rows, row)
	}

	summary := domain.Summary{}
	if o.queue != nil {
		summary = o.queue.Summary()
	}

	return Status{
		SessionID: o.sessionID,
		Started:   started,
		Pending:   summary.Pending,
		Running:   summary.Running,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		Workers:   rows,
	}
}

// SessionID returns the orchestrator's session identifier.
func (o *Orchestrator) SessionID() string { return o.sessionID }

// Scoped runs fn with an initialized, started orchestrator and
// guarantees Shutdown on every exit path, including a panic inside fn —
// the Go-native equivalent of the source's context-manager lifecycle.
func Scoped(ctx context.Context, cfg Config, vcs worktreepool.VCSDriver, run execworker.Runner, fn func(*Orchestrator) error) error {
	o := New(cfg, vcs, run)
	defer o.Shutdown(ctx)

	if err := o.Initialize(ctx); err != nil {
		return err
	}
	if err := o.Start(ctx); err != nil {
		return err
	}
	return fn(o)
}
